package game

import (
	"github.com/mcdev12/guessroom/go/internal/game/events"
)

// Broadcaster delivers notifications produced by the coordinator.
//
// Both methods are called while a session lock is held, so implementations
// must not block and must not call back into the coordinator.
type Broadcaster interface {
	// BroadcastToSession sends an event to every member of a room
	BroadcastToSession(sessionID string, event *events.Event)
	// SendToPlayer sends an event to a single player
	SendToPlayer(playerID string, event *events.Event)
}

// MultiBroadcaster fans every notification out to several broadcasters in order
type MultiBroadcaster []Broadcaster

// BroadcastToSession implements Broadcaster
func (m MultiBroadcaster) BroadcastToSession(sessionID string, event *events.Event) {
	for _, b := range m {
		b.BroadcastToSession(sessionID, event)
	}
}

// SendToPlayer implements Broadcaster
func (m MultiBroadcaster) SendToPlayer(playerID string, event *events.Event) {
	for _, b := range m {
		b.SendToPlayer(playerID, event)
	}
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastToSession(string, *events.Event) {}
func (nopBroadcaster) SendToPlayer(string, *events.Event)       {}
