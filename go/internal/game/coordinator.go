package game

import (
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/guessroom/go/internal/game/events"
	"github.com/mcdev12/guessroom/go/internal/models"
	"github.com/mcdev12/guessroom/go/internal/registry"
	"github.com/mcdev12/guessroom/go/internal/round"
)

// Coordinator drives every session through waiting, in-progress and ended.
//
// Each operation resolves its session, takes that session's lock and runs to
// completion under it. Timer ticks and delayed callbacks take the same lock,
// so a winning answer and an expiring countdown are serialized per session
// while different sessions proceed independently.
type Coordinator struct {
	registry    *registry.Registry
	timers      *round.Timers
	broadcaster Broadcaster
	rules       Rules
	clock       clockwork.Clock
}

// NewCoordinator wires a coordinator. A nil broadcaster drops all notifications.
func NewCoordinator(reg *registry.Registry, timers *round.Timers, broadcaster Broadcaster, rules Rules, clock clockwork.Clock) *Coordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if broadcaster == nil {
		broadcaster = nopBroadcaster{}
	}
	return &Coordinator{
		registry:    reg,
		timers:      timers,
		broadcaster: broadcaster,
		rules:       rules.withDefaults(),
		clock:       clock,
	}
}

// Rules returns the rules the coordinator enforces
func (c *Coordinator) Rules() Rules {
	return c.rules
}

// CreateSession registers a new room with playerID as its master
func (c *Coordinator) CreateSession(playerID, playerName string) (SessionView, error) {
	sess, err := c.registry.Create(playerID, playerName, c.rules.RoundSeconds)
	if err != nil {
		return SessionView{}, fmt.Errorf("failed to create session: %w", err)
	}

	sess.Lock()
	defer sess.Unlock()

	c.sendTo(playerID, sess.ID, events.EventTypeSessionCreated, events.SessionCreatedPayload{
		SessionID: sess.ID,
		PlayerID:  playerID,
		Players:   sess.Snapshot(),
	})

	log.Info().
		Str("session_id", sess.ID).
		Str("master_id", playerID).
		Str("master_name", playerName).
		Msg("Session created")

	return viewOf(sess), nil
}

// JoinSession adds a player to a waiting room
func (c *Coordinator) JoinSession(sessionID, playerID, playerName string) (SessionView, error) {
	sess, err := c.lockSession(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	defer sess.Unlock()

	if sess.Status != models.SessionStatusWaiting {
		return SessionView{}, fmt.Errorf("cannot join session %s while %s: %w", sess.ID, sess.Status, models.ErrState)
	}
	if _, err := c.registry.AddMembership(sess, playerID, playerName); err != nil {
		return SessionView{}, fmt.Errorf("failed to join session %s: %w", sess.ID, err)
	}

	c.broadcast(sess.ID, events.EventTypePlayerJoined, events.PlayerJoinedPayload{
		SessionID:   sess.ID,
		PlayerID:    playerID,
		PlayerName:  playerName,
		PlayerCount: sess.PlayerCount(),
		Players:     sess.Snapshot(),
	})

	log.Info().
		Str("session_id", sess.ID).
		Str("player_id", playerID).
		Int("player_count", sess.PlayerCount()).
		Msg("Player joined session")

	return viewOf(sess), nil
}

// EndSession closes a room on its master's request
func (c *Coordinator) EndSession(sessionID, callerID string) error {
	sess, err := c.lockSession(sessionID)
	if err != nil {
		return err
	}
	defer sess.Unlock()

	if sess.MasterID != callerID {
		return fmt.Errorf("only the game master can end session %s: %w", sess.ID, models.ErrPermission)
	}

	c.broadcast(sess.ID, events.EventTypeSessionEnded, events.SessionEndedPayload{SessionID: sess.ID})
	c.teardownLocked(sess)
	return nil
}

// ListSessions summarizes every live room, oldest first
func (c *Coordinator) ListSessions() []events.SessionSummary {
	out := make([]events.SessionSummary, 0, c.registry.Count())
	for _, sess := range c.registry.List() {
		sess.Lock()
		if !sess.Closed() {
			out = append(out, events.SessionSummary{
				ID:          sess.ID,
				PlayerCount: sess.PlayerCount(),
				CreatedAt:   sess.CreatedAt,
				Status:      sess.Status,
			})
		}
		sess.Unlock()
	}
	return out
}

// GameStatus describes the room a player is in from that player's point of view
func (c *Coordinator) GameStatus(playerID string) (events.GameStatusPayload, error) {
	sess, err := c.lockPlayerSession(playerID)
	if err != nil {
		return events.GameStatusPayload{}, err
	}
	defer sess.Unlock()

	status := events.GameStatusPayload{
		SessionID:     sess.ID,
		Status:        sess.Status,
		TimeRemaining: sess.TimeRemaining,
		Round:         sess.Round,
		IsGameMaster:  sess.MasterID == playerID,
		Players:       sess.Snapshot(),
	}
	if sess.Status == models.SessionStatusInProgress {
		status.Question = sess.CurrentQuestion
	}
	return status, nil
}

// SessionState returns a copy of a room's state
func (c *Coordinator) SessionState(sessionID string) (SessionView, error) {
	sess, err := c.lockSession(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	defer sess.Unlock()
	return viewOf(sess), nil
}

// Chat relays a message from a member to the whole room
func (c *Coordinator) Chat(sessionID, playerID, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return fmt.Errorf("empty chat message: %w", models.ErrValidation)
	}

	sess, err := c.lockSession(sessionID)
	if err != nil {
		return err
	}
	defer sess.Unlock()

	p, ok := sess.Player(playerID)
	if !ok {
		return fmt.Errorf("player %s in session %s: %w", playerID, sess.ID, models.ErrNotFound)
	}

	c.broadcast(sess.ID, events.EventTypeChatMessage, events.ChatMessagePayload{
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Message:    message,
	})
	return nil
}

// Close cancels every round timer and pending callback
func (c *Coordinator) Close() {
	c.timers.Stop()
	log.Info().Msg("Coordinator stopped")
}

// lockSession finds and locks a live session by id. The caller must unlock it.
func (c *Coordinator) lockSession(sessionID string) (*models.GameSession, error) {
	sess, err := c.registry.Find(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Lock()
	if sess.Closed() {
		sess.Unlock()
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}
	return sess, nil
}

// lockPlayerSession finds and locks the session playerID currently belongs to
func (c *Coordinator) lockPlayerSession(playerID string) (*models.GameSession, error) {
	sess, ok := c.registry.FindByPlayer(playerID)
	if !ok {
		return nil, fmt.Errorf("no session for player %s: %w", playerID, models.ErrNotFound)
	}
	sess.Lock()
	if sess.Closed() || !sess.HasPlayer(playerID) {
		sess.Unlock()
		return nil, fmt.Errorf("no session for player %s: %w", playerID, models.ErrNotFound)
	}
	return sess, nil
}

// lockMasterSession finds and locks the session callerID is master of
func (c *Coordinator) lockMasterSession(callerID string) (*models.GameSession, error) {
	sess, ok := c.registry.FindByMaster(callerID)
	if !ok {
		if _, member := c.registry.FindByPlayer(callerID); member {
			return nil, fmt.Errorf("player %s is not a game master: %w", callerID, models.ErrPermission)
		}
		return nil, fmt.Errorf("no session for player %s: %w", callerID, models.ErrNotFound)
	}

	sess.Lock()
	if sess.Closed() || !sess.HasPlayer(callerID) {
		sess.Unlock()
		return nil, fmt.Errorf("no session for player %s: %w", callerID, models.ErrNotFound)
	}
	// The role may have rotated between the lookup and the lock
	if sess.MasterID != callerID {
		sess.Unlock()
		return nil, fmt.Errorf("player %s is not a game master: %w", callerID, models.ErrPermission)
	}
	return sess, nil
}

// teardownLocked removes a session and everything scheduled for it
func (c *Coordinator) teardownLocked(sess *models.GameSession) {
	c.timers.Cancel(sess.ID)
	c.timers.Unschedule(round.NextRoundKey(sess.ID))
	for _, pid := range c.registry.Teardown(sess) {
		c.timers.Unschedule(round.DisconnectKey(pid))
	}

	log.Info().
		Str("session_id", sess.ID).
		Int("round", sess.Round).
		Msg("Session removed")
}

func (c *Coordinator) broadcast(sessionID string, eventType events.EventType, payload interface{}) {
	evt, err := events.New(sessionID, eventType, c.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to build event")
		return
	}
	c.broadcaster.BroadcastToSession(sessionID, evt)
}

func (c *Coordinator) sendTo(playerID, sessionID string, eventType events.EventType, payload interface{}) {
	evt, err := events.New(sessionID, eventType, c.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("player_id", playerID).Msg("failed to build event")
		return
	}
	c.broadcaster.SendToPlayer(playerID, evt)
}
