package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mcdev12/guessroom/go/internal/game/events"
)

// Roster resolves the players currently indexed to a room
type Roster interface {
	Members(sessionID string) []string
}

// ConnectionManager manages WebSocket connections, one per player
type ConnectionManager struct {
	// Connections keyed by the player id assigned on connect
	connections map[string]*Connection
	mu          sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig

	// Event broadcasting
	broadcastCh chan BroadcastMessage

	roster Roster
	clock  clockwork.Clock

	// Set by Bind once the coordinator exists
	router       *Router
	onDisconnect func(playerID string)
}

// Connection represents a WebSocket connection to a player
type Connection struct {
	PlayerID string
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	limiter *rate.Limiter

	// Connection metadata
	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout      time.Duration
	ReadTimeout       time.Duration
	PingInterval      time.Duration
	MaxMessageSize    int64
	ReadBufferSize    int
	WriteBufferSize   int
	CommandsPerSecond float64
	CommandBurst      int
	MaxChatLength     int
	CheckOrigin       func(r *http.Request) bool
}

// BroadcastMessage is an event addressed to a fixed set of players
type BroadcastMessage struct {
	SessionID string
	Targets   []string
	Event     *events.Event
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:      10 * time.Second,
		ReadTimeout:       60 * time.Second,
		PingInterval:      30 * time.Second,
		MaxMessageSize:    4096,
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		CommandsPerSecond: 10,
		CommandBurst:      20,
		MaxChatLength:     DefaultMaxChatLength,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, roster Roster, clock clockwork.Clock) *ConnectionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000), // Buffer for high throughput
		roster:      roster,
		clock:       clock,
	}
}

// Bind attaches the command router and the disconnect hook
func (cm *ConnectionManager) Bind(router *Router, onDisconnect func(playerID string)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.router = router
	cm.onDisconnect = onDisconnect
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and assigns a player id
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) (string, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return "", fmt.Errorf("failed to upgrade connection: %w", err)
	}

	now := cm.clock.Now()
	connection := &Connection{
		PlayerID:    uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		limiter:     rate.NewLimiter(rate.Limit(cm.config.CommandsPerSecond), cm.config.CommandBurst),
		ConnectedAt: now,
		LastPing:    now,
	}

	cm.registerConnection(connection)

	if evt, err := events.New("", events.EventTypeConnected, now, events.ConnectedPayload{PlayerID: connection.PlayerID}); err == nil {
		connection.deliver(evt)
	}

	// Start connection handlers
	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("player_id", connection.PlayerID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return connection.PlayerID, nil
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn.PlayerID] = conn

	log.Debug().
		Str("player_id", conn.PlayerID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection and fires the disconnect hook once
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	current, exists := cm.connections[conn.PlayerID]
	if !exists || current != conn {
		cm.mu.Unlock()
		return
	}
	delete(cm.connections, conn.PlayerID)
	close(conn.Send)
	onDisconnect := cm.onDisconnect
	cm.mu.Unlock()

	log.Info().
		Str("player_id", conn.PlayerID).
		Dur("connected_for", cm.clock.Since(conn.ConnectedAt)).
		Msg("connection unregistered")

	if onDisconnect != nil {
		onDisconnect(conn.PlayerID)
	}
}

// BroadcastToSession sends an event to every player in a room. Recipients are
// resolved now so members removed by the same operation are not skipped.
func (cm *ConnectionManager) BroadcastToSession(sessionID string, event *events.Event) {
	cm.enqueue(BroadcastMessage{SessionID: sessionID, Targets: cm.roster.Members(sessionID), Event: event})
}

// SendToPlayer sends an event to a single player
func (cm *ConnectionManager) SendToPlayer(playerID string, event *events.Event) {
	cm.enqueue(BroadcastMessage{SessionID: event.SessionID, Targets: []string{playerID}, Event: event})
}

func (cm *ConnectionManager) enqueue(message BroadcastMessage) {
	if len(message.Targets) == 0 {
		return
	}
	select {
	case cm.broadcastCh <- message:
	default:
		log.Warn().
			Str("session_id", message.SessionID).
			Str("event_type", string(message.Event.Type)).
			Msg("broadcast channel full, dropping message")
	}
}

// handleBroadcast processes a broadcast message
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	targetConnections := make([]*Connection, 0, len(message.Targets))
	for _, playerID := range message.Targets {
		if conn, ok := cm.connections[playerID]; ok {
			targetConnections = append(targetConnections, conn)
		}
	}
	cm.mu.RUnlock()

	if len(targetConnections) == 0 {
		return
	}

	// Marshal the event once
	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targetConnections {
		cm.sendRaw(conn, eventData)
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("session_id", message.SessionID).
		Int("connections", len(targetConnections)).
		Msg("event broadcasted")
}

// sendRaw queues a frame, dropping a connection whose buffer is full
func (cm *ConnectionManager) sendRaw(conn *Connection, data []byte) {
	cm.mu.RLock()
	current, ok := cm.connections[conn.PlayerID]
	if !ok || current != conn {
		cm.mu.RUnlock()
		return
	}
	select {
	case conn.Send <- data:
		cm.mu.RUnlock()
	default:
		cm.mu.RUnlock()
		// Connection is slow/dead, close it
		log.Warn().
			Str("player_id", conn.PlayerID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}
}

// ConnectionCount returns the number of connected players
func (cm *ConnectionManager) ConnectionCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		conn.Conn.Close()
	}
}

// deliver marshals and queues an event for this connection only
func (c *Connection) deliver(event *events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("player_id", c.PlayerID).Msg("failed to marshal event")
		return
	}
	c.Manager.sendRaw(c, data)
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("player_id", c.PlayerID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("player_id", c.PlayerID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading commands from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("player_id", c.PlayerID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage routes one inbound command and sends back any reply
func (c *Connection) handleClientMessage(message []byte) {
	if !c.limiter.Allow() {
		log.Warn().Str("player_id", c.PlayerID).Msg("command rate limit exceeded")
		if evt := c.Manager.errorEvent("rate limit exceeded, slow down"); evt != nil {
			c.deliver(evt)
		}
		return
	}

	c.Manager.mu.RLock()
	router := c.Manager.router
	c.Manager.mu.RUnlock()
	if router == nil {
		log.Warn().Str("player_id", c.PlayerID).Msg("no command router bound, dropping message")
		return
	}

	if reply := router.Handle(c.PlayerID, message); reply != nil {
		c.deliver(reply)
	}
}

func (cm *ConnectionManager) errorEvent(message string) *events.Event {
	evt, err := events.New("", events.EventTypeError, cm.clock.Now(), events.ErrorPayload{Message: message})
	if err != nil {
		log.Error().Err(err).Msg("failed to build error event")
		return nil
	}
	return evt
}
