package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/guessroom/go/internal/game"
	"github.com/mcdev12/guessroom/go/internal/game/events"
	"github.com/mcdev12/guessroom/go/internal/models"
)

type call struct {
	method string
	args   []string
}

// fakeCommands records every call and returns err for all of them
type fakeCommands struct {
	calls  []call
	err    error
	status events.GameStatusPayload
	list   []events.SessionSummary
}

func (f *fakeCommands) record(method string, args ...string) {
	f.calls = append(f.calls, call{method: method, args: args})
}

func (f *fakeCommands) CreateSession(playerID, playerName string) (game.SessionView, error) {
	f.record("CreateSession", playerID, playerName)
	return game.SessionView{}, f.err
}

func (f *fakeCommands) JoinSession(sessionID, playerID, playerName string) (game.SessionView, error) {
	f.record("JoinSession", sessionID, playerID, playerName)
	return game.SessionView{}, f.err
}

func (f *fakeCommands) LeaveSession(sessionID, playerID string) error {
	f.record("LeaveSession", sessionID, playerID)
	return f.err
}

func (f *fakeCommands) EndSession(sessionID, callerID string) error {
	f.record("EndSession", sessionID, callerID)
	return f.err
}

func (f *fakeCommands) ListSessions() []events.SessionSummary {
	f.record("ListSessions")
	return f.list
}

func (f *fakeCommands) StartGame(callerID, question, answer string) error {
	f.record("StartGame", callerID, question, answer)
	return f.err
}

func (f *fakeCommands) SubmitAnswer(playerID, answer string) (game.AnswerResult, error) {
	f.record("SubmitAnswer", playerID, answer)
	return game.AnswerResult{}, f.err
}

func (f *fakeCommands) GameStatus(playerID string) (events.GameStatusPayload, error) {
	f.record("GameStatus", playerID)
	return f.status, f.err
}

func (f *fakeCommands) Reconnect(oldPlayerID, newPlayerID string) (game.SessionView, error) {
	f.record("Reconnect", oldPlayerID, newPlayerID)
	return game.SessionView{}, f.err
}

func (f *fakeCommands) ForceEndRound(callerID string) error {
	f.record("ForceEndRound", callerID)
	return f.err
}

func (f *fakeCommands) SkipToNextRound(callerID string) error {
	f.record("SkipToNextRound", callerID)
	return f.err
}

func (f *fakeCommands) Chat(sessionID, playerID, message string) error {
	f.record("Chat", sessionID, playerID, message)
	return f.err
}

func frame(t *testing.T, cmdType CommandType, data interface{}) []byte {
	t.Helper()
	cmd := map[string]interface{}{"type": cmdType}
	if data != nil {
		cmd["data"] = data
	}
	raw, err := json.Marshal(cmd)
	require.NoError(t, err)
	return raw
}

func errorMessage(t *testing.T, evt *events.Event) string {
	t.Helper()
	require.NotNil(t, evt)
	require.Equal(t, events.EventTypeError, evt.Type)
	var payload events.ErrorPayload
	require.NoError(t, json.Unmarshal(evt.Data, &payload))
	return payload.Message
}

func TestRouterDispatch(t *testing.T) {
	tests := []struct {
		name string
		cmd  CommandType
		data interface{}
		want call
	}{
		{
			name: "create session trims name",
			cmd:  CommandCreateSession,
			data: map[string]string{"playerName": "  Alice "},
			want: call{"CreateSession", []string{"p1", "Alice"}},
		},
		{
			name: "join session",
			cmd:  CommandJoinSession,
			data: map[string]string{"sessionId": "SESSION_ABC", "playerName": "Bob"},
			want: call{"JoinSession", []string{"SESSION_ABC", "p1", "Bob"}},
		},
		{
			name: "leave session",
			cmd:  CommandLeaveSession,
			data: map[string]string{"sessionId": "session_abc"},
			want: call{"LeaveSession", []string{"session_abc", "p1"}},
		},
		{
			name: "end session",
			cmd:  CommandEndSession,
			data: map[string]string{"sessionId": "session_abc"},
			want: call{"EndSession", []string{"session_abc", "p1"}},
		},
		{
			name: "start game",
			cmd:  CommandStartGame,
			data: map[string]string{"question": "What is 2+2?", "answer": " 4 "},
			want: call{"StartGame", []string{"p1", "What is 2+2?", "4"}},
		},
		{
			name: "submit answer",
			cmd:  CommandSubmitAnswer,
			data: map[string]string{"answer": "Paris"},
			want: call{"SubmitAnswer", []string{"p1", "Paris"}},
		},
		{
			name: "reconnect uses connection id as the new id",
			cmd:  CommandReconnect,
			data: map[string]string{"oldPlayerId": "p0"},
			want: call{"Reconnect", []string{"p0", "p1"}},
		},
		{
			name: "force end",
			cmd:  CommandForceEndGame,
			want: call{"ForceEndRound", []string{"p1"}},
		},
		{
			name: "skip round",
			cmd:  CommandSkipToNextRound,
			want: call{"SkipToNextRound", []string{"p1"}},
		},
		{
			name: "chat",
			cmd:  CommandChatMessage,
			data: map[string]string{"sessionId": "session_abc", "message": " hi "},
			want: call{"Chat", []string{"session_abc", "p1", "hi"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := &fakeCommands{}
			r := NewRouter(cmds, clockwork.NewFakeClock(), 0)

			reply := r.Handle("p1", frame(t, tt.cmd, tt.data))
			assert.Nil(t, reply)
			require.Len(t, cmds.calls, 1)
			assert.Equal(t, tt.want, cmds.calls[0])
		})
	}
}

func TestRouterValidation(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"malformed json", []byte("{not json")},
		{"unknown command", frame(t, "dance", nil)},
		{"missing data", frame(t, CommandCreateSession, nil)},
		{"short name", frame(t, CommandCreateSession, map[string]string{"playerName": " A "})},
		{"missing session id", frame(t, CommandJoinSession, map[string]string{"playerName": "Bob"})},
		{"short question", frame(t, CommandStartGame, map[string]string{"question": "2+2", "answer": "4"})},
		{"blank answer", frame(t, CommandStartGame, map[string]string{"question": "What is 2+2?", "answer": "  "})},
		{"blank guess", frame(t, CommandSubmitAnswer, map[string]string{"answer": ""})},
		{"blank chat", frame(t, CommandChatMessage, map[string]string{"sessionId": "s", "message": " "})},
		{"long chat", frame(t, CommandChatMessage, map[string]string{"sessionId": "s", "message": strings.Repeat("x", 11)})},
		{"wrong data type", frame(t, CommandSubmitAnswer, map[string]int{"answer": 4})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := &fakeCommands{}
			r := NewRouter(cmds, clockwork.NewFakeClock(), 10)

			reply := r.Handle("p1", tt.raw)
			assert.NotEmpty(t, errorMessage(t, reply))
			assert.Empty(t, cmds.calls, "invalid input must not reach the game")
		})
	}
}

func TestRouterReportsGameErrors(t *testing.T) {
	cmds := &fakeCommands{err: fmt.Errorf("session x: %w", models.ErrNotFound)}
	r := NewRouter(cmds, clockwork.NewFakeClock(), 0)

	reply := r.Handle("p1", frame(t, CommandJoinSession, map[string]string{"sessionId": "x", "playerName": "Bob"}))
	assert.Equal(t, "session x: not found", errorMessage(t, reply))
}

func TestRouterRepliesToQueries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cmds := &fakeCommands{
		list:   []events.SessionSummary{{ID: "session_abc", PlayerCount: 2, Status: models.SessionStatusWaiting}},
		status: events.GameStatusPayload{SessionID: "session_abc", Status: models.SessionStatusInProgress, Question: "2+2?"},
	}
	r := NewRouter(cmds, clock, 0)

	reply := r.Handle("p1", frame(t, CommandListSessions, nil))
	require.NotNil(t, reply)
	assert.Equal(t, events.EventTypeSessionsList, reply.Type)
	assert.Equal(t, clock.Now(), reply.Timestamp)
	parsed, err := events.ParseEventPayload(reply)
	require.NoError(t, err)
	assert.Equal(t, cmds.list, parsed.(*events.SessionsListPayload).Sessions)

	reply = r.Handle("p1", frame(t, CommandGetGameStatus, nil))
	require.NotNil(t, reply)
	assert.Equal(t, events.EventTypeGameStatus, reply.Type)
	assert.Equal(t, "session_abc", reply.SessionID)
	parsed, err = events.ParseEventPayload(reply)
	require.NoError(t, err)
	assert.Equal(t, "2+2?", parsed.(*events.GameStatusPayload).Question)
}
