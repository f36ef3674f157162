package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/guessroom/go/internal/game"
	"github.com/mcdev12/guessroom/go/internal/models"
)

// Config holds process settings read from the environment plus the game rules.
type Config struct {
	Port           string
	NATSURL        string
	LogLevel       string
	GameConfigPath string
	Game           GameConfig
}

// GameConfig is the YAML rules file
type GameConfig struct {
	RoundSeconds      int           `yaml:"round_seconds"`
	MaxAttempts       int           `yaml:"max_attempts"`
	PointsPerWin      int           `yaml:"points_per_win"`
	NextRoundDelay    time.Duration `yaml:"next_round_delay"`
	DisconnectGrace   time.Duration `yaml:"disconnect_grace"`
	MaxChatLength     int           `yaml:"max_chat_length"`
	CommandsPerSecond float64       `yaml:"commands_per_second"`
}

// DefaultGameConfig returns the standard rules
func DefaultGameConfig() GameConfig {
	rules := game.DefaultRules()
	return GameConfig{
		RoundSeconds:      rules.RoundSeconds,
		MaxAttempts:       rules.MaxAttempts,
		PointsPerWin:      rules.PointsPerWin,
		NextRoundDelay:    rules.NextRoundDelay,
		DisconnectGrace:   rules.DisconnectGrace,
		MaxChatLength:     500,
		CommandsPerSecond: 10,
	}
}

// NewConfigFromEnv reads environment variables (with defaults).
func NewConfigFromEnv() Config {
	return Config{
		Port:           getEnv("PORT", "8080"),
		NATSURL:        getEnv("NATS_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		GameConfigPath: getEnv("GAME_CONFIG", ""),
		Game:           DefaultGameConfig(),
	}
}

// Load reads the environment, then overlays the rules file. path overrides
// GAME_CONFIG when set.
func Load(path string) (Config, error) {
	cfg := NewConfigFromEnv()
	if path != "" {
		cfg.GameConfigPath = path
	}

	if cfg.GameConfigPath != "" {
		if err := loadGameConfig(cfg.GameConfigPath, &cfg.Game); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Game.Validate(); err != nil {
		return Config{}, err
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return Config{}, fmt.Errorf("invalid PORT %q: %w", cfg.Port, models.ErrValidation)
	}
	return cfg, nil
}

func loadGameConfig(path string, into *GameConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Validate rejects rules the game cannot run with
func (g GameConfig) Validate() error {
	var errs []error
	if g.RoundSeconds <= 0 {
		errs = append(errs, fmt.Errorf("round_seconds must be positive"))
	}
	if g.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("max_attempts must be positive"))
	}
	if g.PointsPerWin <= 0 {
		errs = append(errs, fmt.Errorf("points_per_win must be positive"))
	}
	if g.NextRoundDelay < 0 {
		errs = append(errs, fmt.Errorf("next_round_delay must not be negative"))
	}
	if g.DisconnectGrace < 0 {
		errs = append(errs, fmt.Errorf("disconnect_grace must not be negative"))
	}
	if g.MaxChatLength <= 0 {
		errs = append(errs, fmt.Errorf("max_chat_length must be positive"))
	}
	if g.CommandsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("commands_per_second must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid game config: %w: %w", models.ErrValidation, errors.Join(errs...))
	}
	return nil
}

// Rules converts the file into coordinator rules
func (g GameConfig) Rules() game.Rules {
	return game.Rules{
		RoundSeconds:    g.RoundSeconds,
		MaxAttempts:     g.MaxAttempts,
		PointsPerWin:    g.PointsPerWin,
		NextRoundDelay:  g.NextRoundDelay,
		DisconnectGrace: g.DisconnectGrace,
	}
}

// YAML renders the rules as a config file
func (g GameConfig) YAML() ([]byte, error) {
	return yaml.Marshal(g)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
