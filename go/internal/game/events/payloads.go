package events

import (
	"time"

	"github.com/mcdev12/guessroom/go/internal/models"
)

// Payload types shared by the coordinator, the gateway and the event mirror

// ConnectedPayload tells a fresh connection which player id it was assigned
type ConnectedPayload struct {
	PlayerID string `json:"playerId"`
}

// SessionCreatedPayload is sent to the master that created a session
type SessionCreatedPayload struct {
	SessionID string                  `json:"sessionId"`
	PlayerID  string                  `json:"playerId"`
	Players   []models.PlayerSnapshot `json:"players"`
}

// PlayerJoinedPayload is broadcast when a player joins a room
type PlayerJoinedPayload struct {
	SessionID   string                  `json:"sessionId"`
	PlayerID    string                  `json:"playerId"`
	PlayerName  string                  `json:"playerName"`
	PlayerCount int                     `json:"playerCount"`
	Players     []models.PlayerSnapshot `json:"players"`
}

// PlayerLeftPayload is broadcast when a player leaves or is dropped
type PlayerLeftPayload struct {
	PlayerID     string                  `json:"playerId"`
	PlayerName   string                  `json:"playerName"`
	PlayerCount  int                     `json:"playerCount"`
	GameMasterID string                  `json:"gameMasterId"`
	Players      []models.PlayerSnapshot `json:"players"`
}

// PlayerReconnectedPayload is broadcast when a player resumes under a new id
type PlayerReconnectedPayload struct {
	OldPlayerID string                  `json:"oldPlayerId"`
	NewPlayerID string                  `json:"newPlayerId"`
	Players     []models.PlayerSnapshot `json:"players"`
}

// GameStartedPayload is broadcast when the master starts a round
type GameStartedPayload struct {
	Question      string                  `json:"question"`
	TimeRemaining int                     `json:"timeRemaining"`
	PlayerCount   int                     `json:"playerCount"`
	Round         int                     `json:"round"`
	GameMasterID  string                  `json:"gameMasterId"`
	Players       []models.PlayerSnapshot `json:"players"`
}

// TimerUpdatePayload carries the countdown once per tick
type TimerUpdatePayload struct {
	TimeRemaining int `json:"timeRemaining"`
}

// AnswerResultPayload is sent only to the player who guessed
type AnswerResultPayload struct {
	Correct      bool   `json:"correct"`
	AttemptsLeft int    `json:"attemptsLeft"`
	Message      string `json:"message"`
	Close        bool   `json:"close,omitempty"`
}

// GameEndedPayload is broadcast once per round when it ends
type GameEndedPayload struct {
	Reason   models.EndReason        `json:"reason"`
	Answer   string                  `json:"answer"`
	Question string                  `json:"question"`
	Winner   *models.PlayerSnapshot  `json:"winner"`
	Players  []models.PlayerSnapshot `json:"players"`
}

// NewRoundReadyPayload is broadcast after the master rotates
type NewRoundReadyPayload struct {
	NewGameMaster GameMasterRef           `json:"newGameMaster"`
	Players       []models.PlayerSnapshot `json:"players"`
}

// GameMasterRef identifies a master in notifications
type GameMasterRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewGameMasterPayload is broadcast when a master is promoted outside rotation
type NewGameMasterPayload struct {
	ID      string                  `json:"id"`
	Name    string                  `json:"name"`
	Players []models.PlayerSnapshot `json:"players"`
}

// SessionEndedPayload is broadcast when the master ends the session
type SessionEndedPayload struct {
	SessionID string `json:"sessionId"`
}

// SessionSummary is one row of the session list
type SessionSummary struct {
	ID          string               `json:"id"`
	PlayerCount int                  `json:"playerCount"`
	CreatedAt   time.Time            `json:"createdAt"`
	Status      models.SessionStatus `json:"status"`
}

// SessionsListPayload answers list-sessions
type SessionsListPayload struct {
	Sessions []SessionSummary `json:"sessions"`
}

// GameStatusPayload answers get-game-status
type GameStatusPayload struct {
	SessionID     string                  `json:"sessionId"`
	Status        models.SessionStatus    `json:"status"`
	Question      string                  `json:"question,omitempty"`
	TimeRemaining int                     `json:"timeRemaining"`
	Round         int                     `json:"round"`
	IsGameMaster  bool                    `json:"isGameMaster"`
	Players       []models.PlayerSnapshot `json:"players"`
}

// ChatMessagePayload is broadcast for room chat
type ChatMessagePayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Message    string `json:"message"`
}

// ErrorPayload reports a failed command to its sender
type ErrorPayload struct {
	Message string `json:"message"`
}
