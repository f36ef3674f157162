package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/guessroom/go/internal/game/events"
)

// Scope says whether a notification went to a room or to a single player
type Scope string

const (
	ScopeSession Scope = "events"
	ScopePlayer  Scope = "direct"
)

// Envelope is one notification queued for publishing
type Envelope struct {
	Scope  Scope
	Target string // session id or player id
	Event  *events.Event
}

// Publisher writes envelopes to the bus
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

type Config struct {
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		BufferSize: 1024,
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
	}
}

// Mirror is a game.Broadcaster that copies every notification onto the bus.
// Enqueueing never blocks; a full buffer drops the notification.
type Mirror struct {
	publisher Publisher
	config    Config
	clock     clockwork.Clock
	queue     chan Envelope

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewMirror(publisher Publisher, cfg Config, clock clockwork.Clock) *Mirror {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	return &Mirror{
		publisher: publisher,
		config:    cfg,
		clock:     clock,
		queue:     make(chan Envelope, cfg.BufferSize),
		stopChan:  make(chan struct{}),
	}
}

// BroadcastToSession implements game.Broadcaster
func (m *Mirror) BroadcastToSession(sessionID string, event *events.Event) {
	m.enqueue(Envelope{Scope: ScopeSession, Target: sessionID, Event: event})
}

// SendToPlayer implements game.Broadcaster
func (m *Mirror) SendToPlayer(playerID string, event *events.Event) {
	m.enqueue(Envelope{Scope: ScopePlayer, Target: playerID, Event: event})
}

func (m *Mirror) enqueue(env Envelope) {
	select {
	case m.queue <- env:
	default:
		log.Warn().
			Str("event_type", string(env.Event.Type)).
			Str("target", env.Target).
			Msg("event mirror queue full, dropping event")
	}
}

func (m *Mirror) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("event mirror already running")
	}
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(ctx)

	log.Info().
		Int("buffer_size", m.config.BufferSize).
		Int("max_retries", m.config.MaxRetries).
		Msg("event mirror started")

	return nil
}

func (m *Mirror) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("event mirror not running")
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopChan)
	m.wg.Wait()

	log.Info().Msg("event mirror stopped")
	return nil
}

func (m *Mirror) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case env := <-m.queue:
			if err := m.publishWithRetry(ctx, env); err != nil {
				log.Error().
					Err(err).
					Str("event_id", env.Event.ID).
					Str("event_type", string(env.Event.Type)).
					Msg("failed to mirror event")
			}
		}
	}
}

func (m *Mirror) publishWithRetry(ctx context.Context, env Envelope) error {
	var lastErr error

	for attempt := 0; attempt <= m.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-m.stopChan:
				return fmt.Errorf("event mirror stopped: %w", lastErr)
			case <-m.clock.After(m.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := m.publisher.Publish(ctx, env); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Str("event_id", env.Event.ID).
				Int("attempt", attempt+1).
				Msg("failed to publish event, retrying")
			continue
		}

		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", m.config.MaxRetries+1, lastErr)
}
