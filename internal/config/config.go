package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string       `yaml:"discord_token"`
	DatabasePath  string       `yaml:"database_path"`
	LogLevel      string       `yaml:"log_level"`
	TranscriptDir string       `yaml:"transcript_dir"`
	Health        HealthConfig `yaml:"health"`
	Jail          JailConfig   `yaml:"jail"`
	Strikes       StrikeConfig `yaml:"strikes"`
	EmbedColors   EmbedColors  `yaml:"embed_colors"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type JailConfig struct {
	SweepSeconds            int `yaml:"sweep_seconds"`
	MaxDurationDays         int `yaml:"max_duration_days"`
	AppealCooldownHours     int `yaml:"appeal_cooldown_hours"`
	TicketCloseDelaySeconds int `yaml:"ticket_close_delay_seconds"`
	LockdownProgressStep    int `yaml:"lockdown_progress_step"`
	FixProgressStep         int `yaml:"fix_progress_step"`
}

type StrikeConfig struct {
	SweepSeconds     int      `yaml:"sweep_seconds"`
	MaxActive        int      `yaml:"max_active"`
	TerminationRoles []string `yaml:"termination_roles"`
}

type EmbedColors struct {
	Action  int `yaml:"action"`
	Success int `yaml:"success"`
	Warning int `yaml:"warning"`
	Error   int `yaml:"error"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:  "warden.db",
		LogLevel:      "info",
		TranscriptDir: "transcripts",
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		Jail: JailConfig{
			SweepSeconds:            30,
			MaxDurationDays:         28,
			AppealCooldownHours:     24,
			TicketCloseDelaySeconds: 5,
			LockdownProgressStep:    5,
			FixProgressStep:         10,
		},
		Strikes: StrikeConfig{
			SweepSeconds: 86400,
			MaxActive:    3,
		},
		EmbedColors: EmbedColors{
			Action:  0x5865F2,
			Success: 0x57F287,
			Warning: 0xF59E0B,
			Error:   0xEF4444,
		},
	}
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.Jail.SweepSeconds <= 0 {
		cfg.Jail.SweepSeconds = 30
	}
	if cfg.Jail.MaxDurationDays <= 0 {
		cfg.Jail.MaxDurationDays = 28
	}
	if cfg.Strikes.SweepSeconds <= 0 {
		cfg.Strikes.SweepSeconds = 86400
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.TranscriptDir = envString("TRANSCRIPT_DIR", cfg.TranscriptDir)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Jail.SweepSeconds = envInt("JAIL_SWEEP_SECONDS", cfg.Jail.SweepSeconds)
	cfg.Jail.MaxDurationDays = envInt("JAIL_MAX_DURATION_DAYS", cfg.Jail.MaxDurationDays)
	cfg.Jail.AppealCooldownHours = envInt("APPEAL_COOLDOWN_HOURS", cfg.Jail.AppealCooldownHours)
	cfg.Jail.TicketCloseDelaySeconds = envInt("TICKET_CLOSE_DELAY_SECONDS", cfg.Jail.TicketCloseDelaySeconds)
	cfg.Strikes.SweepSeconds = envInt("STRIKE_SWEEP_SECONDS", cfg.Strikes.SweepSeconds)
	cfg.Strikes.MaxActive = envInt("STRIKE_MAX_ACTIVE", cfg.Strikes.MaxActive)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
