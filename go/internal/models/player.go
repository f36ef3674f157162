package models

// DefaultMaxAttempts is the number of guesses a player gets per round
const DefaultMaxAttempts = 3

// Player represents a participant in a single game session
type Player struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Score        int    `json:"score"`
	Attempts     int    `json:"attempts"`
	HasAnswered  bool   `json:"hasAnswered"`
	IsGameMaster bool   `json:"isGameMaster"`
}

// PlayerSnapshot is the roster view sent to clients
type PlayerSnapshot struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Score        int    `json:"score"`
	Attempts     int    `json:"attempts"`
	HasAnswered  bool   `json:"hasAnswered"`
	IsGameMaster bool   `json:"isGameMaster"`
}

// NewPlayer creates a player with a zero score
func NewPlayer(id, name string, isGameMaster bool) *Player {
	return &Player{
		ID:           id,
		Name:         name,
		IsGameMaster: isGameMaster,
	}
}

// ResetForNewRound clears per-round guess state. Score is kept.
func (p *Player) ResetForNewRound() {
	p.Attempts = 0
	p.HasAnswered = false
}

// AddScore adds points to the player's score. Negative values are ignored.
func (p *Player) AddScore(points int) {
	if points > 0 {
		p.Score += points
	}
}

// CanGuess reports whether the player still has a guess left this round
func (p *Player) CanGuess(maxAttempts int) bool {
	return p.Attempts < maxAttempts && !p.HasAnswered
}

// RecordGuess consumes one attempt
func (p *Player) RecordGuess() {
	p.Attempts++
}

// Finished reports whether the player can no longer affect the current round
func (p *Player) Finished(maxAttempts int) bool {
	return p.HasAnswered || p.Attempts >= maxAttempts
}

// Snapshot copies the player into its client-facing form
func (p *Player) Snapshot() PlayerSnapshot {
	return PlayerSnapshot{
		ID:           p.ID,
		Name:         p.Name,
		Score:        p.Score,
		Attempts:     p.Attempts,
		HasAnswered:  p.HasAnswered,
		IsGameMaster: p.IsGameMaster,
	}
}
