package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/guessroom/go/internal/game"
	"github.com/mcdev12/guessroom/go/internal/game/events"
	"github.com/mcdev12/guessroom/go/internal/models"
)

const (
	DefaultMaxChatLength = 500

	minPlayerNameLength = 2
	minQuestionLength   = 5
)

// CommandType names an inbound client command
type CommandType string

const (
	CommandCreateSession   CommandType = "create-session"
	CommandJoinSession     CommandType = "join-session"
	CommandLeaveSession    CommandType = "leave-session"
	CommandEndSession      CommandType = "end-session"
	CommandListSessions    CommandType = "list-sessions"
	CommandStartGame       CommandType = "start-game"
	CommandSubmitAnswer    CommandType = "submit-answer"
	CommandGetGameStatus   CommandType = "get-game-status"
	CommandReconnect       CommandType = "reconnect"
	CommandForceEndGame    CommandType = "force-end-game"
	CommandSkipToNextRound CommandType = "skip-to-next-round"
	CommandChatMessage     CommandType = "chat-message"
)

// Command is the inbound frame
type Command struct {
	Type CommandType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

type createSessionData struct {
	PlayerName string `json:"playerName"`
}

type joinSessionData struct {
	SessionID  string `json:"sessionId"`
	PlayerName string `json:"playerName"`
}

type sessionRefData struct {
	SessionID string `json:"sessionId"`
}

type startGameData struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type submitAnswerData struct {
	Answer string `json:"answer"`
}

type reconnectData struct {
	OldPlayerID string `json:"oldPlayerId"`
}

type chatMessageData struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// Commands is the game surface the router drives
type Commands interface {
	CreateSession(playerID, playerName string) (game.SessionView, error)
	JoinSession(sessionID, playerID, playerName string) (game.SessionView, error)
	LeaveSession(sessionID, playerID string) error
	EndSession(sessionID, callerID string) error
	ListSessions() []events.SessionSummary
	StartGame(callerID, question, answer string) error
	SubmitAnswer(playerID, answer string) (game.AnswerResult, error)
	GameStatus(playerID string) (events.GameStatusPayload, error)
	Reconnect(oldPlayerID, newPlayerID string) (game.SessionView, error)
	ForceEndRound(callerID string) error
	SkipToNextRound(callerID string) error
	Chat(sessionID, playerID, message string) error
}

// Router validates inbound frames and dispatches them to the game
type Router struct {
	commands      Commands
	clock         clockwork.Clock
	maxChatLength int
}

// NewRouter creates a router. A non-positive maxChatLength uses the default.
func NewRouter(commands Commands, clock clockwork.Clock, maxChatLength int) *Router {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if maxChatLength <= 0 {
		maxChatLength = DefaultMaxChatLength
	}
	return &Router{
		commands:      commands,
		clock:         clock,
		maxChatLength: maxChatLength,
	}
}

// Handle runs one raw frame for playerID. It returns the event to send back
// to that player, or nil when the game already notified everyone involved.
func (r *Router) Handle(playerID string, raw []byte) *events.Event {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return r.reply(playerID, "", fmt.Errorf("malformed message: %w", models.ErrValidation))
	}

	evt, err := r.dispatch(playerID, cmd)
	if err != nil {
		return r.reply(playerID, cmd.Type, err)
	}
	return evt
}

func (r *Router) dispatch(playerID string, cmd Command) (*events.Event, error) {
	switch cmd.Type {
	case CommandCreateSession:
		var data createSessionData
		if err := decode(cmd, &data); err != nil {
			return nil, err
		}
		name, err := playerName(data.PlayerName)
		if err != nil {
			return nil, err
		}
		_, err = r.commands.CreateSession(playerID, name)
		return nil, err

	case CommandJoinSession:
		var data joinSessionData
		if err := decode(cmd, &data); err != nil {
			return nil, err
		}
		name, err := playerName(data.PlayerName)
		if err != nil {
			return nil, err
		}
		sessionID, err := required("sessionId", data.SessionID)
		if err != nil {
			return nil, err
		}
		_, err = r.commands.JoinSession(sessionID, playerID, name)
		return nil, err

	case CommandLeaveSession:
		var data sessionRefData
		if err := decode(cmd, &data); err != nil {
			return nil, err
		}
		sessionID, err := required("sessionId", data.SessionID)
		if err != nil {
			return nil, err
		}
		return nil, r.commands.LeaveSession(sessionID, playerID)

	case CommandEndSession:
		var data sessionRefData
		if err := decode(cmd, &data); err != nil {
			return nil, err
		}
		sessionID, err := required("sessionId", data.SessionID)
		if err != nil {
			return nil, err
		}
		return nil, r.commands.EndSession(sessionID, playerID)

	case CommandListSessions:
		return events.New("", events.EventTypeSessionsList, r.clock.Now(), events.SessionsListPayload{
			Sessions: r.commands.ListSessions(),
		})

	case CommandStartGame:
		var data startGameData
		if err := decode(cmd, &data); err != nil {
			return nil, err
		}
		question := strings.TrimSpace(data.Question)
		if utf8.RuneCountInString(question) < minQuestionLength {
			return nil, fmt.Errorf("question must be at least %d characters: %w", minQuestionLength, models.ErrValidation)
		}
		answer, err := required("answer", data.Answer)
		if err != nil {
			return nil, err
		}
		return nil, r.commands.StartGame(playerID, question, answer)

	case CommandSubmitAnswer:
		var data submitAnswerData
		if err := decode(cmd, &data); err != nil {
			return nil, err
		}
		answer, err := required("answer", data.Answer)
		if err != nil {
			return nil, err
		}
		_, err = r.commands.SubmitAnswer(playerID, answer)
		return nil, err

	case CommandGetGameStatus:
		status, err := r.commands.GameStatus(playerID)
		if err != nil {
			return nil, err
		}
		return events.New(status.SessionID, events.EventTypeGameStatus, r.clock.Now(), status)

	case CommandReconnect:
		var data reconnectData
		if err := decode(cmd, &data); err != nil {
			return nil, err
		}
		oldID, err := required("oldPlayerId", data.OldPlayerID)
		if err != nil {
			return nil, err
		}
		_, err = r.commands.Reconnect(oldID, playerID)
		return nil, err

	case CommandForceEndGame:
		return nil, r.commands.ForceEndRound(playerID)

	case CommandSkipToNextRound:
		return nil, r.commands.SkipToNextRound(playerID)

	case CommandChatMessage:
		var data chatMessageData
		if err := decode(cmd, &data); err != nil {
			return nil, err
		}
		sessionID, err := required("sessionId", data.SessionID)
		if err != nil {
			return nil, err
		}
		message, err := required("message", data.Message)
		if err != nil {
			return nil, err
		}
		if utf8.RuneCountInString(message) > r.maxChatLength {
			return nil, fmt.Errorf("message longer than %d characters: %w", r.maxChatLength, models.ErrValidation)
		}
		return nil, r.commands.Chat(sessionID, playerID, message)

	default:
		return nil, fmt.Errorf("unknown command %q: %w", cmd.Type, models.ErrValidation)
	}
}

// reply turns a failed command into an error event for its sender
func (r *Router) reply(playerID string, cmdType CommandType, err error) *events.Event {
	level := log.Debug()
	if !isClientError(err) {
		level = log.Error()
	}
	level.Err(err).
		Str("player_id", playerID).
		Str("command", string(cmdType)).
		Msg("command failed")

	evt, buildErr := events.New("", events.EventTypeError, r.clock.Now(), events.ErrorPayload{Message: err.Error()})
	if buildErr != nil {
		log.Error().Err(buildErr).Msg("failed to build error event")
		return nil
	}
	return evt
}

func isClientError(err error) bool {
	for _, target := range []error{
		models.ErrValidation,
		models.ErrNotFound,
		models.ErrState,
		models.ErrAttemptsExhausted,
		models.ErrPermission,
		models.ErrDuplicate,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func decode(cmd Command, v interface{}) error {
	if len(cmd.Data) == 0 {
		return fmt.Errorf("%s requires data: %w", cmd.Type, models.ErrValidation)
	}
	if err := json.Unmarshal(cmd.Data, v); err != nil {
		return fmt.Errorf("invalid %s data: %w", cmd.Type, models.ErrValidation)
	}
	return nil
}

func required(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%s is required: %w", field, models.ErrValidation)
	}
	return value, nil
}

func playerName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < minPlayerNameLength {
		return "", fmt.Errorf("player name must be at least %d characters: %w", minPlayerNameLength, models.ErrValidation)
	}
	return name, nil
}
