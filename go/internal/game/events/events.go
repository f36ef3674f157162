package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for every notification sent to a room or a player
type Event struct {
	ID        string          `json:"id"`                   // Event UUID
	SessionID string          `json:"session_id,omitempty"` // Empty for events not tied to a room
	Type      EventType       `json:"type"`                 // Event type
	Timestamp time.Time       `json:"timestamp"`            // Event creation time
	Data      json.RawMessage `json:"data"`                 // Event-specific payload
}

// EventType represents the type of game notification
type EventType string

const (
	EventTypeConnected         EventType = "connected"
	EventTypeSessionCreated    EventType = "session-created"
	EventTypePlayerJoined      EventType = "player-joined"
	EventTypePlayerLeft        EventType = "player-left"
	EventTypePlayerReconnected EventType = "player-reconnected"
	EventTypeGameStarted       EventType = "game-started"
	EventTypeTimerUpdate       EventType = "timer-update"
	EventTypeAnswerResult      EventType = "answer-result"
	EventTypeGameEnded         EventType = "game-ended"
	EventTypeNewRoundReady     EventType = "new-round-ready"
	EventTypeNewGameMaster     EventType = "new-game-master"
	EventTypeSessionEnded      EventType = "session-ended"
	EventTypeSessionsList      EventType = "sessions-list"
	EventTypeGameStatus        EventType = "game-status"
	EventTypeChatMessage       EventType = "chat-message"
	EventTypeError             EventType = "error"
)

// New builds an event with a fresh id, marshalling payload into Data
func New(sessionID string, eventType EventType, at time.Time, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Type:      eventType,
		Timestamp: at,
		Data:      data,
	}, nil
}

// ParseEventPayload decodes event data into its payload struct
func ParseEventPayload(event *Event) (interface{}, error) {
	var payload interface{}
	switch event.Type {
	case EventTypeConnected:
		payload = &ConnectedPayload{}
	case EventTypeSessionCreated:
		payload = &SessionCreatedPayload{}
	case EventTypePlayerJoined:
		payload = &PlayerJoinedPayload{}
	case EventTypePlayerLeft:
		payload = &PlayerLeftPayload{}
	case EventTypePlayerReconnected:
		payload = &PlayerReconnectedPayload{}
	case EventTypeGameStarted:
		payload = &GameStartedPayload{}
	case EventTypeTimerUpdate:
		payload = &TimerUpdatePayload{}
	case EventTypeAnswerResult:
		payload = &AnswerResultPayload{}
	case EventTypeGameEnded:
		payload = &GameEndedPayload{}
	case EventTypeNewRoundReady:
		payload = &NewRoundReadyPayload{}
	case EventTypeNewGameMaster:
		payload = &NewGameMasterPayload{}
	case EventTypeSessionEnded:
		payload = &SessionEndedPayload{}
	case EventTypeSessionsList:
		payload = &SessionsListPayload{}
	case EventTypeGameStatus:
		payload = &GameStatusPayload{}
	case EventTypeChatMessage:
		payload = &ChatMessagePayload{}
	case EventTypeError:
		payload = &ErrorPayload{}
	default:
		return nil, nil // Unknown event type
	}

	if err := json.Unmarshal(event.Data, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
