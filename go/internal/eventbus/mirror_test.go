package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/guessroom/go/internal/game/events"
)

// flakyPublisher fails the first failures calls, then records envelopes
type flakyPublisher struct {
	mu        sync.Mutex
	failures  int
	calls     int
	published []Envelope
}

func (p *flakyPublisher) Publish(ctx context.Context, env Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		return errors.New("nats unavailable")
	}
	p.published = append(p.published, env)
	return nil
}

func (p *flakyPublisher) snapshot() (int, []Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls, append([]Envelope(nil), p.published...)
}

func newEvent(t *testing.T, sessionID string, eventType events.EventType) *events.Event {
	t.Helper()
	evt, err := events.New(sessionID, eventType, time.Unix(100, 0), events.TimerUpdatePayload{TimeRemaining: 42})
	require.NoError(t, err)
	return evt
}

func startMirror(t *testing.T, pub Publisher, cfg Config) *Mirror {
	t.Helper()
	m := NewMirror(pub, cfg, clockwork.NewRealClock())
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop() })
	return m
}

func TestMirrorPublishesInOrder(t *testing.T) {
	pub := &flakyPublisher{}
	m := startMirror(t, pub, Config{BufferSize: 8, MaxRetries: 1, RetryDelay: time.Millisecond})

	first := newEvent(t, "session_abc", events.EventTypeTimerUpdate)
	second := newEvent(t, "session_abc", events.EventTypeAnswerResult)
	m.BroadcastToSession("session_abc", first)
	m.SendToPlayer("p1", second)

	require.Eventually(t, func() bool {
		_, published := pub.snapshot()
		return len(published) == 2
	}, time.Second, time.Millisecond)

	_, published := pub.snapshot()
	assert.Equal(t, Envelope{Scope: ScopeSession, Target: "session_abc", Event: first}, published[0])
	assert.Equal(t, Envelope{Scope: ScopePlayer, Target: "p1", Event: second}, published[1])
}

func TestMirrorRetriesFailedPublish(t *testing.T) {
	pub := &flakyPublisher{failures: 2}
	m := startMirror(t, pub, Config{BufferSize: 8, MaxRetries: 3, RetryDelay: time.Millisecond})

	m.BroadcastToSession("session_abc", newEvent(t, "session_abc", events.EventTypeGameEnded))

	require.Eventually(t, func() bool {
		_, published := pub.snapshot()
		return len(published) == 1
	}, time.Second, time.Millisecond)
	calls, _ := pub.snapshot()
	assert.Equal(t, 3, calls)
}

func TestMirrorGivesUpAfterMaxRetries(t *testing.T) {
	pub := &flakyPublisher{failures: 100}
	m := startMirror(t, pub, Config{BufferSize: 8, MaxRetries: 2, RetryDelay: time.Millisecond})

	m.BroadcastToSession("session_abc", newEvent(t, "session_abc", events.EventTypeGameEnded))
	require.Eventually(t, func() bool {
		calls, _ := pub.snapshot()
		return calls == 3
	}, time.Second, time.Millisecond)

	// the worker moves on to the next event
	pub.mu.Lock()
	pub.failures = 0
	pub.mu.Unlock()
	m.BroadcastToSession("session_abc", newEvent(t, "session_abc", events.EventTypeNewRoundReady))
	require.Eventually(t, func() bool {
		_, published := pub.snapshot()
		return len(published) == 1
	}, time.Second, time.Millisecond)
}

func TestMirrorDropsWhenQueueFull(t *testing.T) {
	pub := &flakyPublisher{}
	m := NewMirror(pub, Config{BufferSize: 1}, clockwork.NewRealClock())

	// not started, so nothing drains the queue
	m.BroadcastToSession("s", newEvent(t, "s", events.EventTypeTimerUpdate))
	m.BroadcastToSession("s", newEvent(t, "s", events.EventTypeTimerUpdate))
	assert.Len(t, m.queue, 1)
}

func TestMirrorStartStop(t *testing.T) {
	m := NewMirror(&flakyPublisher{}, DefaultConfig(), nil)
	require.Error(t, m.Stop())
	require.NoError(t, m.Start(context.Background()))
	require.Error(t, m.Start(context.Background()))
	require.NoError(t, m.Stop())
}

func TestBuildMsg(t *testing.T) {
	evt := newEvent(t, "session_abc", events.EventTypeTimerUpdate)

	msg, err := buildMsg("game", Envelope{Scope: ScopeSession, Target: "session_abc", Event: evt})
	require.NoError(t, err)
	assert.Equal(t, "game.events.timer-update", msg.Subject)
	assert.Equal(t, evt.ID, msg.Header.Get("Event-ID"))
	assert.Equal(t, "session_abc", msg.Header.Get("Session-ID"))

	var decoded events.Event
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, evt.ID, decoded.ID)
	assert.JSONEq(t, `{"timeRemaining":42}`, string(decoded.Data))

	direct := Subject("game", Envelope{Scope: ScopePlayer, Target: "p1", Event: evt})
	assert.Equal(t, "game.direct.timer-update", direct)
}

func TestStreamConfig(t *testing.T) {
	cfg := DefaultJetStreamConfig()
	sc := streamConfig(cfg)
	assert.Equal(t, "GAME_EVENTS", sc.Name)
	assert.Equal(t, []string{"game.>"}, sc.Subjects)
	assert.True(t, isStreamConfigEqual(sc, streamConfig(cfg)))

	cfg.MaxAge = time.Minute
	assert.False(t, isStreamConfigEqual(sc, streamConfig(cfg)))
}
