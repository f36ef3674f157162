package game

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/guessroom/go/internal/game/events"
	"github.com/mcdev12/guessroom/go/internal/models"
	"github.com/mcdev12/guessroom/go/internal/round"
)

// LeaveSession removes playerID from sessionID at the player's request
func (c *Coordinator) LeaveSession(sessionID, playerID string) error {
	sess, err := c.lockSession(sessionID)
	if err != nil {
		return err
	}
	defer sess.Unlock()

	if !sess.HasPlayer(playerID) {
		return fmt.Errorf("player %s in session %s: %w", playerID, sess.ID, models.ErrNotFound)
	}
	c.removeLocked(sess, playerID)
	return nil
}

// RemovePlayer drops playerID from whichever session it belongs to
func (c *Coordinator) RemovePlayer(playerID string) error {
	sess, err := c.lockPlayerSession(playerID)
	if err != nil {
		return err
	}
	defer sess.Unlock()

	c.removeLocked(sess, playerID)
	return nil
}

// removeLocked takes a present player out of sess and keeps the room playable.
// The caller must hold the session lock.
func (c *Coordinator) removeLocked(sess *models.GameSession, playerID string) {
	p, ok := c.registry.RemoveMembership(sess, playerID)
	if !ok {
		return
	}
	c.timers.Unschedule(round.DisconnectKey(playerID))

	log.Info().
		Str("session_id", sess.ID).
		Str("player_id", playerID).
		Int("player_count", sess.PlayerCount()).
		Msg("Player left session")

	if sess.PlayerCount() == 0 {
		c.teardownLocked(sess)
		return
	}

	if playerID == sess.MasterID && sess.Status == models.SessionStatusWaiting {
		master := sess.PromoteFirstPlayer()
		c.broadcast(sess.ID, events.EventTypeNewGameMaster, events.NewGameMasterPayload{
			ID:      master.ID,
			Name:    master.Name,
			Players: sess.Snapshot(),
		})
		log.Info().
			Str("session_id", sess.ID).
			Str("master_id", master.ID).
			Msg("Game master promoted")
	}

	c.broadcast(sess.ID, events.EventTypePlayerLeft, events.PlayerLeftPayload{
		PlayerID:     p.ID,
		PlayerName:   p.Name,
		PlayerCount:  sess.PlayerCount(),
		GameMasterID: sess.MasterID,
		Players:      sess.Snapshot(),
	})

	if sess.Status == models.SessionStatusInProgress && sess.AllGuessersFinished(c.rules.MaxAttempts) {
		c.endRoundLocked(sess, models.EndReasonTimeout, nil)
	}
}

// Disconnect handles a dropped connection. The player is removed once the
// grace period passes unless it reconnects first.
func (c *Coordinator) Disconnect(playerID string) {
	if _, ok := c.registry.FindByPlayer(playerID); !ok {
		return
	}

	if c.rules.DisconnectGrace <= 0 {
		c.removeAfterDisconnect(playerID)
		return
	}

	c.timers.Schedule(round.DisconnectKey(playerID), c.rules.DisconnectGrace, func() {
		c.removeAfterDisconnect(playerID)
	})

	log.Info().
		Str("player_id", playerID).
		Dur("grace", c.rules.DisconnectGrace).
		Msg("Player disconnected, removal pending")
}

func (c *Coordinator) removeAfterDisconnect(playerID string) {
	if err := c.RemovePlayer(playerID); err != nil && !errors.Is(err, models.ErrNotFound) {
		log.Error().Err(err).Str("player_id", playerID).Msg("failed to remove disconnected player")
	}
}

// Reconnect moves a player's seat, score and round state to a new player id
func (c *Coordinator) Reconnect(oldPlayerID, newPlayerID string) (SessionView, error) {
	sess, err := c.lockPlayerSession(oldPlayerID)
	if err != nil {
		return SessionView{}, err
	}
	defer sess.Unlock()

	if _, err := c.registry.Rekey(sess, oldPlayerID, newPlayerID); err != nil {
		return SessionView{}, fmt.Errorf("failed to reconnect %s: %w", oldPlayerID, err)
	}
	c.timers.Unschedule(round.DisconnectKey(oldPlayerID))

	c.broadcast(sess.ID, events.EventTypePlayerReconnected, events.PlayerReconnectedPayload{
		OldPlayerID: oldPlayerID,
		NewPlayerID: newPlayerID,
		Players:     sess.Snapshot(),
	})

	log.Info().
		Str("session_id", sess.ID).
		Str("old_player_id", oldPlayerID).
		Str("new_player_id", newPlayerID).
		Msg("Player reconnected")

	return viewOf(sess), nil
}
