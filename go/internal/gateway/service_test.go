package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/guessroom/go/internal/game"
	"github.com/mcdev12/guessroom/go/internal/game/events"
	"github.com/mcdev12/guessroom/go/internal/registry"
	"github.com/mcdev12/guessroom/go/internal/round"
)

type testServer struct {
	url   string
	coord *game.Coordinator
	svc   *Service
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()
	return startTestServerWithConfig(t, DefaultConfig())
}

func startTestServerWithConfig(t *testing.T, cfg Config) *testServer {
	t.Helper()
	clock := clockwork.NewRealClock()
	reg := registry.NewRegistry(clock)

	svc := NewService(cfg, reg, clock)
	rules := game.DefaultRules()
	rules.DisconnectGrace = 0
	coord := game.NewCoordinator(reg, round.NewTimers(clock, time.Second), svc, rules, clock)
	svc.Bind(coord)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Start(ctx)

	t.Cleanup(func() {
		cancel()
		coord.Close()
		srv.Close()
	})
	return &testServer{url: srv.URL, coord: coord, svc: svc}
}

type client struct {
	t        *testing.T
	conn     *websocket.Conn
	playerID string
}

func (s *testServer) dial(t *testing.T) *client {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(s.url, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &client{t: t, conn: conn}
	evt := c.expect(events.EventTypeConnected)
	var payload events.ConnectedPayload
	require.NoError(t, json.Unmarshal(evt.Data, &payload))
	require.NotEmpty(t, payload.PlayerID)
	c.playerID = payload.PlayerID
	return c
}

func (c *client) send(cmdType CommandType, data interface{}) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, frame(c.t, cmdType, data)))
}

// expect reads frames until one of the wanted type arrives
func (c *client) expect(eventType events.EventType) *events.Event {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, raw, err := c.conn.ReadMessage()
		require.NoError(c.t, err, "waiting for %s", eventType)

		var evt events.Event
		require.NoError(c.t, json.Unmarshal(raw, &evt))
		if evt.Type == eventType {
			return &evt
		}
	}
}

func TestGatewayRoundTrip(t *testing.T) {
	srv := startTestServer(t)
	alice := srv.dial(t)
	bob := srv.dial(t)
	assert.NotEqual(t, alice.playerID, bob.playerID)

	alice.send(CommandCreateSession, map[string]string{"playerName": "Alice"})
	created := alice.expect(events.EventTypeSessionCreated)
	var session events.SessionCreatedPayload
	require.NoError(t, json.Unmarshal(created.Data, &session))

	bob.send(CommandJoinSession, map[string]string{"sessionId": strings.ToUpper(session.SessionID), "playerName": "Bob"})
	bob.expect(events.EventTypePlayerJoined)
	alice.expect(events.EventTypePlayerJoined)

	alice.send(CommandStartGame, map[string]string{"question": "Capital of France?", "answer": "Paris"})
	bob.expect(events.EventTypeGameStarted)

	bob.send(CommandSubmitAnswer, map[string]string{"answer": "london"})
	result := bob.expect(events.EventTypeAnswerResult)
	var wrong events.AnswerResultPayload
	require.NoError(t, json.Unmarshal(result.Data, &wrong))
	assert.False(t, wrong.Correct)
	assert.Equal(t, 2, wrong.AttemptsLeft)

	bob.send(CommandSubmitAnswer, map[string]string{"answer": "  PARIS "})
	ended := alice.expect(events.EventTypeGameEnded)
	var payload events.GameEndedPayload
	require.NoError(t, json.Unmarshal(ended.Data, &payload))
	require.NotNil(t, payload.Winner)
	assert.Equal(t, bob.playerID, payload.Winner.ID)
	assert.Equal(t, 10, payload.Winner.Score)
}

func TestGatewayReportsErrorsToSender(t *testing.T) {
	srv := startTestServer(t)
	alice := srv.dial(t)

	alice.send(CommandJoinSession, map[string]string{"sessionId": "session_missing", "playerName": "Alice"})
	evt := alice.expect(events.EventTypeError)
	assert.Contains(t, errorMessage(t, evt), "not found")

	alice.send(CommandCreateSession, map[string]string{"playerName": "A"})
	evt = alice.expect(events.EventTypeError)
	assert.Contains(t, errorMessage(t, evt), "validation failed")
}

func TestGatewayDisconnectRemovesPlayer(t *testing.T) {
	srv := startTestServer(t)
	alice := srv.dial(t)
	bob := srv.dial(t)

	alice.send(CommandCreateSession, map[string]string{"playerName": "Alice"})
	created := alice.expect(events.EventTypeSessionCreated)
	var session events.SessionCreatedPayload
	require.NoError(t, json.Unmarshal(created.Data, &session))

	bob.send(CommandJoinSession, map[string]string{"sessionId": session.SessionID, "playerName": "Bob"})
	alice.expect(events.EventTypePlayerJoined)

	require.NoError(t, bob.conn.Close())

	left := alice.expect(events.EventTypePlayerLeft)
	var payload events.PlayerLeftPayload
	require.NoError(t, json.Unmarshal(left.Data, &payload))
	assert.Equal(t, bob.playerID, payload.PlayerID)
	assert.Equal(t, 1, payload.PlayerCount)
}

func TestStateRoutes(t *testing.T) {
	srv := startTestServer(t)
	view, err := srv.coord.CreateSession("alice", "Alice")
	require.NoError(t, err)

	resp, err := http.Get(srv.url + "/api/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list events.SessionsListPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, view.ID, list.Sessions[0].ID)

	resp, err = http.Get(srv.url + "/api/sessions/" + view.ID + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state game.SessionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, "alice", state.MasterID)

	resp, err = http.Get(srv.url + "/api/sessions/session_missing/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.url + "/ws/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats ConnectionStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.ActiveRooms)
	assert.Equal(t, srv.svc.GetStats(), stats)
}

func TestGatewayRateLimitsCommands(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectionConfig.CommandsPerSecond = 0.001
	cfg.ConnectionConfig.CommandBurst = 1
	srv := startTestServerWithConfig(t, cfg)
	alice := srv.dial(t)

	alice.send(CommandListSessions, nil)
	alice.expect(events.EventTypeSessionsList)

	alice.send(CommandListSessions, nil)
	evt := alice.expect(events.EventTypeError)
	var payload events.ErrorPayload
	require.NoError(t, json.Unmarshal(evt.Data, &payload))
	assert.Contains(t, payload.Message, "rate limit")
}
