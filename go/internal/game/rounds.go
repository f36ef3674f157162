package game

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/guessroom/go/internal/game/events"
	"github.com/mcdev12/guessroom/go/internal/models"
	"github.com/mcdev12/guessroom/go/internal/round"
)

const (
	// closeGuessDistance is the largest edit distance reported as a near miss
	closeGuessDistance = 2
	// closeGuessMinLength keeps very short answers from always looking close
	closeGuessMinLength = 4
)

// StartRound begins a round in sessionID with the given question and answer
func (c *Coordinator) StartRound(sessionID, question, answer string) error {
	sess, err := c.lockSession(sessionID)
	if err != nil {
		return err
	}
	defer sess.Unlock()
	return c.startRoundLocked(sess, question, answer)
}

// StartGame begins a round in the session callerID is master of
func (c *Coordinator) StartGame(callerID, question, answer string) error {
	sess, err := c.lockMasterSession(callerID)
	if err != nil {
		return err
	}
	defer sess.Unlock()
	return c.startRoundLocked(sess, question, answer)
}

func (c *Coordinator) startRoundLocked(sess *models.GameSession, question, answer string) error {
	if !sess.CanStartRound() {
		if sess.Status != models.SessionStatusWaiting {
			return fmt.Errorf("session %s is %s: %w", sess.ID, sess.Status, models.ErrState)
		}
		return fmt.Errorf("session %s needs at least %d players: %w", sess.ID, models.MinPlayersToStart, models.ErrState)
	}

	question = strings.TrimSpace(question)
	answer = models.NormalizeAnswer(answer)
	if question == "" || answer == "" {
		return fmt.Errorf("question and answer are required: %w", models.ErrValidation)
	}

	sess.CurrentQuestion = question
	sess.CurrentAnswer = answer
	sess.Status = models.SessionStatusInProgress
	sess.EndReason = ""
	sess.TimeRemaining = c.rules.RoundSeconds
	sess.Round++
	sess.ResetPlayersForNewRound()

	c.timers.Unschedule(round.NextRoundKey(sess.ID))
	roundNo := sess.Round
	c.timers.Arm(sess.ID, func() { c.handleTick(sess, roundNo) })

	c.broadcast(sess.ID, events.EventTypeGameStarted, events.GameStartedPayload{
		Question:      sess.CurrentQuestion,
		TimeRemaining: sess.TimeRemaining,
		PlayerCount:   sess.PlayerCount(),
		Round:         sess.Round,
		GameMasterID:  sess.MasterID,
		Players:       sess.Snapshot(),
	})

	log.Info().
		Str("session_id", sess.ID).
		Str("master_id", sess.MasterID).
		Int("round", sess.Round).
		Int("player_count", sess.PlayerCount()).
		Msg("Round started")

	return nil
}

// SubmitAnswer records one guess from playerID. The first correct guess of a
// round wins it; every later guess fails with ErrState.
func (c *Coordinator) SubmitAnswer(playerID, rawAnswer string) (AnswerResult, error) {
	sess, err := c.lockPlayerSession(playerID)
	if err != nil {
		return AnswerResult{}, err
	}
	defer sess.Unlock()

	if sess.Status != models.SessionStatusInProgress {
		return AnswerResult{}, fmt.Errorf("no round in progress in session %s: %w", sess.ID, models.ErrState)
	}
	if sess.MasterID == playerID {
		return AnswerResult{}, fmt.Errorf("the game master cannot answer: %w", models.ErrPermission)
	}

	p, _ := sess.Player(playerID)
	if !p.CanGuess(c.rules.MaxAttempts) {
		return AnswerResult{}, fmt.Errorf("player %s: %w", playerID, models.ErrAttemptsExhausted)
	}

	p.RecordGuess()
	guess := models.NormalizeAnswer(rawAnswer)
	left := c.rules.MaxAttempts - p.Attempts

	if guess == sess.CurrentAnswer {
		p.HasAnswered = true
		p.AddScore(c.rules.PointsPerWin)
		winner := p.Snapshot()

		res := AnswerResult{
			Correct:      true,
			AttemptsLeft: left,
			Message:      "Correct!",
			Winner:       &winner,
		}
		c.sendTo(playerID, sess.ID, events.EventTypeAnswerResult, events.AnswerResultPayload{
			Correct:      true,
			AttemptsLeft: left,
			Message:      res.Message,
		})
		c.endRoundLocked(sess, models.EndReasonWinner, &winner)
		return res, nil
	}

	res := AnswerResult{
		AttemptsLeft: left,
		Close:        isCloseGuess(guess, sess.CurrentAnswer),
	}
	res.Message = attemptsMessage(left, res.Close)
	c.sendTo(playerID, sess.ID, events.EventTypeAnswerResult, events.AnswerResultPayload{
		AttemptsLeft: left,
		Message:      res.Message,
		Close:        res.Close,
	})

	log.Debug().
		Str("session_id", sess.ID).
		Str("player_id", playerID).
		Int("attempts_left", left).
		Msg("Incorrect answer")

	return res, nil
}

// ForceEndRound ends the running round as a timeout on the master's request
func (c *Coordinator) ForceEndRound(callerID string) error {
	sess, err := c.lockMasterSession(callerID)
	if err != nil {
		return err
	}
	defer sess.Unlock()

	if !c.endRoundLocked(sess, models.EndReasonTimeout, nil) {
		return fmt.Errorf("no round in progress in session %s: %w", sess.ID, models.ErrState)
	}
	return nil
}

// SkipToNextRound ends any running round and rotates the master immediately
func (c *Coordinator) SkipToNextRound(callerID string) error {
	sess, err := c.lockMasterSession(callerID)
	if err != nil {
		return err
	}
	defer sess.Unlock()

	c.endRoundLocked(sess, models.EndReasonTimeout, nil)
	c.prepareNextRoundLocked(sess)
	return nil
}

// PrepareNextRound rotates the master and returns a finished room to waiting
func (c *Coordinator) PrepareNextRound(sessionID string) error {
	sess, err := c.lockSession(sessionID)
	if err != nil {
		return err
	}
	defer sess.Unlock()

	if sess.Status == models.SessionStatusInProgress {
		return fmt.Errorf("round still in progress in session %s: %w", sess.ID, models.ErrState)
	}
	c.prepareNextRoundLocked(sess)
	return nil
}

// endRoundLocked moves an in-progress session to ended. It reports false and
// changes nothing when the round has already ended.
func (c *Coordinator) endRoundLocked(sess *models.GameSession, reason models.EndReason, winner *models.PlayerSnapshot) bool {
	if sess.Status != models.SessionStatusInProgress {
		return false
	}
	sess.Status = models.SessionStatusEnded
	sess.EndReason = reason
	c.timers.Cancel(sess.ID)

	c.broadcast(sess.ID, events.EventTypeGameEnded, events.GameEndedPayload{
		Reason:   reason,
		Answer:   sess.CurrentAnswer,
		Question: sess.CurrentQuestion,
		Winner:   winner,
		Players:  sess.Snapshot(),
	})

	roundNo := sess.Round
	c.timers.Schedule(round.NextRoundKey(sess.ID), c.rules.NextRoundDelay, func() {
		c.handleNextRoundDue(sess, roundNo)
	})

	logEvt := log.Info().
		Str("session_id", sess.ID).
		Int("round", sess.Round).
		Str("reason", string(reason))
	if winner != nil {
		logEvt = logEvt.Str("winner_id", winner.ID)
	}
	logEvt.Msg("Round ended")

	return true
}

// prepareNextRoundLocked rotates the master and clears the round
func (c *Coordinator) prepareNextRoundLocked(sess *models.GameSession) {
	c.timers.Unschedule(round.NextRoundKey(sess.ID))
	c.timers.Cancel(sess.ID)

	if sess.PlayerCount() == 0 {
		c.teardownLocked(sess)
		return
	}

	master := sess.RotateGameMaster()
	sess.ClearRound(c.rules.RoundSeconds)

	c.broadcast(sess.ID, events.EventTypeNewRoundReady, events.NewRoundReadyPayload{
		NewGameMaster: events.GameMasterRef{ID: master.ID, Name: master.Name},
		Players:       sess.Snapshot(),
	})

	log.Info().
		Str("session_id", sess.ID).
		Str("master_id", master.ID).
		Msg("Game master rotated")
}

// handleTick runs once per interval on the round timer goroutine
func (c *Coordinator) handleTick(sess *models.GameSession, roundNo int) {
	sess.Lock()
	defer sess.Unlock()

	if sess.Closed() || sess.Status != models.SessionStatusInProgress || sess.Round != roundNo {
		log.Debug().
			Str("session_id", sess.ID).
			Int("round", roundNo).
			Msg("ignoring stale tick")
		return
	}

	sess.TimeRemaining--
	c.broadcast(sess.ID, events.EventTypeTimerUpdate, events.TimerUpdatePayload{TimeRemaining: sess.TimeRemaining})

	if sess.TimeRemaining <= 0 {
		c.endRoundLocked(sess, models.EndReasonTimeout, nil)
	}
}

// handleNextRoundDue runs when the delay after a round end expires
func (c *Coordinator) handleNextRoundDue(sess *models.GameSession, roundNo int) {
	sess.Lock()
	defer sess.Unlock()

	if sess.Closed() || sess.Status != models.SessionStatusEnded || sess.Round != roundNo {
		log.Debug().
			Str("session_id", sess.ID).
			Int("round", roundNo).
			Msg("ignoring stale next-round callback")
		return
	}
	c.prepareNextRoundLocked(sess)
}

func attemptsMessage(left int, near bool) string {
	if left <= 0 {
		return "No more attempts!"
	}
	unit := "attempts"
	if left == 1 {
		unit = "attempt"
	}
	if near {
		return fmt.Sprintf("Close! %d %s left", left, unit)
	}
	return fmt.Sprintf("Wrong! %d %s left", left, unit)
}

func isCloseGuess(guess, answer string) bool {
	if utf8.RuneCountInString(answer) < closeGuessMinLength {
		return false
	}
	return levenshtein.ComputeDistance(guess, answer) <= closeGuessDistance
}
