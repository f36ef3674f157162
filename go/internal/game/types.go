package game

import (
	"time"

	"github.com/mcdev12/guessroom/go/internal/models"
)

// Rules are the tunable constants of a game
type Rules struct {
	RoundSeconds    int
	MaxAttempts     int
	PointsPerWin    int
	NextRoundDelay  time.Duration
	DisconnectGrace time.Duration
}

// DefaultRules returns the standard game rules
func DefaultRules() Rules {
	return Rules{
		RoundSeconds:    models.DefaultRoundSeconds,
		MaxAttempts:     models.DefaultMaxAttempts,
		PointsPerWin:    10,
		NextRoundDelay:  5 * time.Second,
		DisconnectGrace: 10 * time.Second,
	}
}

func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.RoundSeconds <= 0 {
		r.RoundSeconds = d.RoundSeconds
	}
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = d.MaxAttempts
	}
	if r.PointsPerWin <= 0 {
		r.PointsPerWin = d.PointsPerWin
	}
	if r.NextRoundDelay < 0 {
		r.NextRoundDelay = 0
	}
	if r.DisconnectGrace < 0 {
		r.DisconnectGrace = 0
	}
	return r
}

// AnswerResult is the outcome of a single guess
type AnswerResult struct {
	Correct      bool                   `json:"correct"`
	AttemptsLeft int                    `json:"attemptsLeft"`
	Message      string                 `json:"message"`
	Close        bool                   `json:"close,omitempty"`
	Winner       *models.PlayerSnapshot `json:"winner,omitempty"`
}

// SessionView is a consistent copy of a session taken under its lock
type SessionView struct {
	ID              string                  `json:"id"`
	MasterID        string                  `json:"masterId"`
	Status          models.SessionStatus    `json:"status"`
	CurrentQuestion string                  `json:"currentQuestion,omitempty"`
	TimeRemaining   int                     `json:"timeRemaining"`
	Round           int                     `json:"round"`
	EndReason       models.EndReason        `json:"endReason,omitempty"`
	CreatedAt       time.Time               `json:"createdAt"`
	Players         []models.PlayerSnapshot `json:"players"`
}

// viewOf copies sess. The caller must hold the session lock.
func viewOf(sess *models.GameSession) SessionView {
	return SessionView{
		ID:              sess.ID,
		MasterID:        sess.MasterID,
		Status:          sess.Status,
		CurrentQuestion: sess.CurrentQuestion,
		TimeRemaining:   sess.TimeRemaining,
		Round:           sess.Round,
		EndReason:       sess.EndReason,
		CreatedAt:       sess.CreatedAt,
		Players:         sess.Snapshot(),
	}
}
