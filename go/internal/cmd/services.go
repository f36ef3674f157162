package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/guessroom/go/internal/config"
	"github.com/mcdev12/guessroom/go/internal/eventbus"
	"github.com/mcdev12/guessroom/go/internal/game"
	"github.com/mcdev12/guessroom/go/internal/gateway"
	"github.com/mcdev12/guessroom/go/internal/registry"
	"github.com/mcdev12/guessroom/go/internal/round"
)

type Services struct {
	Registry    *registry.Registry
	Coordinator *game.Coordinator
	Gateway     *gateway.Service

	// nil unless NATS_URL is set
	Mirror    *eventbus.Mirror
	publisher *eventbus.JetStreamPublisher
}

func setupServices(cfg config.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Registry → Gateway → (Event mirror) → Coordinator → Gateway binding
	clock := clockwork.NewRealClock()

	reg := registry.NewRegistry(clock)

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.ConnectionConfig.CommandsPerSecond = cfg.Game.CommandsPerSecond
	gatewayConfig.ConnectionConfig.CommandBurst = max(1, int(2*cfg.Game.CommandsPerSecond))
	gatewayConfig.ConnectionConfig.MaxChatLength = cfg.Game.MaxChatLength
	gatewayService := gateway.NewService(gatewayConfig, reg, clock)

	services := &Services{
		Registry: reg,
		Gateway:  gatewayService,
	}
	broadcasters := game.MultiBroadcaster{gatewayService}

	if cfg.NATSURL != "" {
		jsConfig := eventbus.DefaultJetStreamConfig()
		jsConfig.URL = cfg.NATSURL
		publisher, err := eventbus.NewJetStreamPublisher(jsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to set up event mirror: %w", err)
		}
		services.publisher = publisher
		services.Mirror = eventbus.NewMirror(publisher, eventbus.DefaultConfig(), clock)
		broadcasters = append(broadcasters, services.Mirror)
		log.Info().Str("url", cfg.NATSURL).Msg("mirroring game events to NATS JetStream")
	}

	timers := round.NewTimers(clock, round.DefaultTickInterval)
	services.Coordinator = game.NewCoordinator(reg, timers, broadcasters, cfg.Game.Rules(), clock)
	gatewayService.Bind(services.Coordinator)

	return services, nil
}

// Start launches the background loops. They stop when ctx is cancelled.
func (s *Services) Start(ctx context.Context) error {
	if s.Mirror != nil {
		if err := s.Mirror.Start(ctx); err != nil {
			return err
		}
	}

	go func() {
		if err := s.Gateway.Start(ctx); err != nil {
			log.Error().Err(err).Msg("game gateway stopped with error")
		}
	}()
	return nil
}

func (s *Services) Close() {
	s.Coordinator.Close()

	if s.Mirror != nil {
		if err := s.Mirror.Stop(); err != nil {
			log.Warn().Err(err).Msg("failed to stop event mirror")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close NATS connection")
		}
	}
}
