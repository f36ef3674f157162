package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/guessroom/go/internal/config"
)

type ServeCmd struct {
	Config string `help:"Path to a game rules YAML file. Overrides GAME_CONFIG." optional:"" type:"path"`
}

func (cmd *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cmd.Config)
	if err != nil {
		return err
	}
	setLogLevel(cfg.LogLevel, cli.Debug)

	services, err := setupServices(cfg)
	if err != nil {
		return err
	}
	defer services.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := services.Start(ctx); err != nil {
		return err
	}

	server := setupServer(cfg, services)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Int("round_seconds", cfg.Game.RoundSeconds).
			Int("max_attempts", cfg.Game.MaxAttempts).
			Msg("guessroom server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return err
	}

	log.Info().Msg("server exited")
	return nil
}

type ConfigCmd struct{}

func (cmd *ConfigCmd) Run() error {
	data, err := config.DefaultGameConfig().YAML()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

type CLI struct {
	Debug bool `help:"Enable debug logging."`

	Serve  ServeCmd  `cmd:"" default:"1" help:"Run the game server."`
	Config ConfigCmd `cmd:"" help:"Print the default game rules as YAML."`
}

func setLogLevel(level string, debug bool) {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		log.Warn().Str("level", level).Msg("unknown LOG_LEVEL, using info")
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("guessroom"),
		kong.Description("Room-based multiplayer guessing game server."),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
