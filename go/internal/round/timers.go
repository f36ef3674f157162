package round

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

// DefaultTickInterval is the countdown granularity of a round
const DefaultTickInterval = time.Second

type ticker struct {
	t    clockwork.Ticker
	done chan struct{}
}

type delay struct {
	t     clockwork.Timer
	token uint64
}

// Timers holds at most one repeating round ticker per session plus any number
// of keyed one-shot delays. Both kinds are cancelled without waiting for an
// in-flight callback, so callers may cancel while holding a session lock.
type Timers struct {
	clock    clockwork.Clock
	interval time.Duration

	mu      deadlock.Mutex
	tickers map[string]*ticker
	delays  map[string]*delay
	seq     uint64
}

// NewTimers creates a timer set. A non-positive interval falls back to one second.
func NewTimers(clock clockwork.Clock, interval time.Duration) *Timers {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Timers{
		clock:    clock,
		interval: interval,
		tickers:  make(map[string]*ticker),
		delays:   make(map[string]*delay),
	}
}

// Arm starts a repeating ticker for sessionID, replacing any existing one.
// onTick runs on the ticker goroutine once per interval until Cancel.
func (t *Timers) Arm(sessionID string, onTick func()) {
	h := &ticker{
		t:    t.clock.NewTicker(t.interval),
		done: make(chan struct{}),
	}
	t.replaceTicker(sessionID, h)

	go func(h *ticker) {
		for {
			select {
			case <-h.done:
				return
			case <-h.t.Chan():
				// A cancel may race with a pending tick
				select {
				case <-h.done:
					return
				default:
				}
				onTick()
			}
		}
	}(h)

	log.Debug().
		Str("session_id", sessionID).
		Dur("interval", t.interval).
		Msg("armed round timer")
}

// replaceTicker swaps in a new ticker, stopping the previous one under the same lock
func (t *Timers) replaceTicker(sessionID string, h *ticker) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.tickers[sessionID]; ok {
		stopTicker(existing)
		log.Debug().Str("session_id", sessionID).Msg("replaced existing round timer")
	}
	t.tickers[sessionID] = h
}

// Cancel stops the round ticker for sessionID. It is a no-op when none is armed.
func (t *Timers) Cancel(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h, ok := t.tickers[sessionID]; ok {
		stopTicker(h)
		delete(t.tickers, sessionID)
		log.Debug().Str("session_id", sessionID).Msg("cancelled round timer")
	}
}

// Active reports whether a round ticker is armed for sessionID
func (t *Timers) Active(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.tickers[sessionID]
	return ok
}

func stopTicker(h *ticker) {
	h.t.Stop()
	close(h.done)
}

// Schedule runs fn once after d, replacing any delay already held under key.
// A delay that has been unscheduled or replaced never runs.
func (t *Timers) Schedule(key string, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.delays[key]; ok {
		existing.t.Stop()
	}

	t.seq++
	token := t.seq
	t.delays[key] = &delay{
		token: token,
		t: t.clock.AfterFunc(d, func() {
			if !t.claim(key, token) {
				return
			}
			fn()
		}),
	}

	log.Debug().Str("key", key).Dur("delay", d).Msg("scheduled delayed action")
}

// claim removes the delay if it is still the one identified by token
func (t *Timers) claim(key string, token uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.delays[key]
	if !ok || current.token != token {
		return false
	}
	delete(t.delays, key)
	return true
}

// Unschedule drops a pending delay. It reports whether one was pending.
func (t *Timers) Unschedule(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.delays[key]
	if !ok {
		return false
	}
	d.t.Stop()
	delete(t.delays, key)
	log.Debug().Str("key", key).Msg("unscheduled delayed action")
	return true
}

// Pending reports whether a delay is scheduled under key
func (t *Timers) Pending(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.delays[key]
	return ok
}

// Stop cancels every ticker and delay
func (t *Timers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, h := range t.tickers {
		stopTicker(h)
		delete(t.tickers, id)
	}
	for key, d := range t.delays {
		d.t.Stop()
		delete(t.delays, key)
	}
}

// NextRoundKey is the delay key for the automatic next-round transition
func NextRoundKey(sessionID string) string {
	return "next-round:" + sessionID
}

// DisconnectKey is the delay key for a player's disconnect grace period
func DisconnectKey(playerID string) string {
	return "disconnect:" + playerID
}
