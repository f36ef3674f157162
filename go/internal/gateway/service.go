package gateway

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/guessroom/go/internal/game/events"
)

// Directory is what the gateway needs from the session registry
type Directory interface {
	Roster
	RoomCounter
}

// Game is the coordinator surface the gateway binds to
type Game interface {
	Commands
	StateProvider
	Disconnect(playerID string)
}

// Service is the game gateway: WebSocket connections, command routing and
// state endpoints
type Service struct {
	config            Config
	clock             clockwork.Clock
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
}

// Config holds configuration for the game gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the game gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates the gateway. It can broadcast immediately; commands are
// served once Bind attaches the game.
func NewService(config Config, directory Directory, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	connectionManager := NewConnectionManager(config.ConnectionConfig, directory, clock)

	return &Service{
		config:            config,
		clock:             clock,
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager, directory),
	}
}

// Bind attaches the game so commands, disconnects and state routes reach it
func (s *Service) Bind(g Game) {
	router := NewRouter(g, s.clock, s.config.ConnectionConfig.MaxChatLength)
	s.connectionManager.Bind(router, g.Disconnect)
	s.stateHandler = NewStateHandler(g)
}

// Start runs the broadcast loop until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting game gateway service")
	s.connectionManager.Start(ctx)
	log.Info().Msg("game gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and state HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	if s.stateHandler != nil {
		s.stateHandler.RegisterStateRoutes(mux)
	}
	log.Info().Msg("game gateway routes registered")
}

// BroadcastToSession implements game.Broadcaster
func (s *Service) BroadcastToSession(sessionID string, event *events.Event) {
	s.connectionManager.BroadcastToSession(sessionID, event)
}

// SendToPlayer implements game.Broadcaster
func (s *Service) SendToPlayer(playerID string, event *events.Event) {
	s.connectionManager.SendToPlayer(playerID, event)
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	stats := ConnectionStats{ConnectedUsers: s.connectionManager.ConnectionCount()}
	if s.wsHandler.rooms != nil {
		stats.ActiveRooms = s.wsHandler.rooms.Count()
	}
	return stats
}
