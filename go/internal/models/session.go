package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// SessionStatus represents where a session is in its round cycle
type SessionStatus string

const (
	SessionStatusWaiting    SessionStatus = "waiting"
	SessionStatusInProgress SessionStatus = "in-progress"
	SessionStatusEnded      SessionStatus = "ended"
)

// EndReason records why the last round ended
type EndReason string

const (
	EndReasonWinner  EndReason = "winner"
	EndReasonTimeout EndReason = "timeout"
)

const (
	// MinPlayersToStart is the smallest roster that can play a round
	MinPlayersToStart = 2
	// DefaultRoundSeconds is the countdown every round starts from
	DefaultRoundSeconds = 60
)

// GameSession is one room: a master, an ordered roster and the current round.
//
// A session carries its own lock. Every read or write of its fields after
// registration must happen while holding it.
type GameSession struct {
	mu deadlock.Mutex

	ID              string        `json:"id"`
	MasterID        string        `json:"masterId"`
	Status          SessionStatus `json:"status"`
	CurrentQuestion string        `json:"currentQuestion"`
	CurrentAnswer   string        `json:"-"`
	TimeRemaining   int           `json:"timeRemaining"`
	Round           int           `json:"round"`
	EndReason       EndReason     `json:"endReason,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`

	players map[string]*Player
	order   []string
	closed  bool
}

// NewGameSession creates a waiting session whose only player is the master
func NewGameSession(id, masterID, masterName string, createdAt time.Time, roundSeconds int) *GameSession {
	if roundSeconds <= 0 {
		roundSeconds = DefaultRoundSeconds
	}
	s := &GameSession{
		ID:            id,
		MasterID:      masterID,
		Status:        SessionStatusWaiting,
		TimeRemaining: roundSeconds,
		CreatedAt:     createdAt,
		players:       make(map[string]*Player),
	}
	s.players[masterID] = NewPlayer(masterID, masterName, true)
	s.order = append(s.order, masterID)
	return s
}

// Lock acquires the session lock
func (s *GameSession) Lock() { s.mu.Lock() }

// Unlock releases the session lock
func (s *GameSession) Unlock() { s.mu.Unlock() }

// Closed reports whether the session has been torn down
func (s *GameSession) Closed() bool { return s.closed }

// MarkClosed flags the session as torn down. Callbacks still holding a
// pointer to it use this to bail out.
func (s *GameSession) MarkClosed() { s.closed = true }

// AddPlayer appends a player to the roster
func (s *GameSession) AddPlayer(id, name string, isGameMaster bool) (*Player, error) {
	if _, exists := s.players[id]; exists {
		return nil, fmt.Errorf("player %s: %w", id, ErrDuplicate)
	}
	p := NewPlayer(id, name, isGameMaster)
	s.players[id] = p
	s.order = append(s.order, id)
	if isGameMaster {
		s.setMaster(id)
	}
	return p, nil
}

// RemovePlayer deletes a player and returns it if it was present
func (s *GameSession) RemovePlayer(id string) (*Player, bool) {
	p, exists := s.players[id]
	if !exists {
		return nil, false
	}
	delete(s.players, id)
	s.order = slices.DeleteFunc(s.order, func(pid string) bool { return pid == id })
	return p, true
}

// RenamePlayer moves a player to a new id, keeping its roster position and state
func (s *GameSession) RenamePlayer(oldID, newID string) (*Player, error) {
	p, exists := s.players[oldID]
	if !exists {
		return nil, fmt.Errorf("player %s: %w", oldID, ErrNotFound)
	}
	if _, taken := s.players[newID]; taken {
		return nil, fmt.Errorf("player %s: %w", newID, ErrDuplicate)
	}

	delete(s.players, oldID)
	p.ID = newID
	s.players[newID] = p
	s.order[slices.Index(s.order, oldID)] = newID
	if s.MasterID == oldID {
		s.MasterID = newID
	}
	return p, nil
}

// Player looks up a player by id
func (s *GameSession) Player(id string) (*Player, bool) {
	p, ok := s.players[id]
	return p, ok
}

// HasPlayer reports whether id is on the roster
func (s *GameSession) HasPlayer(id string) bool {
	_, ok := s.players[id]
	return ok
}

// PlayerCount returns the roster size
func (s *GameSession) PlayerCount() int {
	return len(s.order)
}

// Players returns the roster in join order
func (s *GameSession) Players() []*Player {
	out := make([]*Player, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.players[id])
	}
	return out
}

// PlayerIDs returns the roster ids in join order
func (s *GameSession) PlayerIDs() []string {
	return slices.Clone(s.order)
}

// Snapshot returns the client-facing roster in join order
func (s *GameSession) Snapshot() []PlayerSnapshot {
	out := make([]PlayerSnapshot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.players[id].Snapshot())
	}
	return out
}

// Master returns the current game master, if they are still on the roster
func (s *GameSession) Master() (*Player, bool) {
	return s.Player(s.MasterID)
}

// CanStartRound reports whether a new round may begin
func (s *GameSession) CanStartRound() bool {
	return s.Status == SessionStatusWaiting && s.PlayerCount() >= MinPlayersToStart
}

// ResetPlayersForNewRound clears guess state on every player
func (s *GameSession) ResetPlayersForNewRound() {
	for _, p := range s.players {
		p.ResetForNewRound()
	}
}

// RotateGameMaster hands the master role to the player after the current
// master in join order, wrapping around. When the master is no longer on the
// roster rotation starts at the first player.
func (s *GameSession) RotateGameMaster() *Player {
	if len(s.order) == 0 {
		return nil
	}
	idx := slices.Index(s.order, s.MasterID)
	next := s.order[(idx+1)%len(s.order)]
	s.setMaster(next)
	return s.players[next]
}

// PromoteFirstPlayer makes the first player in join order the master
func (s *GameSession) PromoteFirstPlayer() *Player {
	if len(s.order) == 0 {
		return nil
	}
	s.setMaster(s.order[0])
	return s.players[s.order[0]]
}

// AllGuessersFinished reports whether every player other than the master has
// either answered correctly or run out of attempts
func (s *GameSession) AllGuessersFinished(maxAttempts int) bool {
	for _, p := range s.players {
		if p.ID == s.MasterID {
			continue
		}
		if !p.Finished(maxAttempts) {
			return false
		}
	}
	return true
}

// ClearRound returns the session to an idle waiting state
func (s *GameSession) ClearRound(roundSeconds int) {
	s.Status = SessionStatusWaiting
	s.CurrentQuestion = ""
	s.CurrentAnswer = ""
	s.TimeRemaining = roundSeconds
	s.EndReason = ""
	s.ResetPlayersForNewRound()
}

func (s *GameSession) setMaster(id string) {
	for pid, p := range s.players {
		p.IsGameMaster = pid == id
	}
	s.MasterID = id
}

// NormalizeAnswer trims and lower-cases an answer for comparison
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
