package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/claudex/internal/labeler"
	"github.com/MikeSquared-Agency/claudex/internal/parser"
	"github.com/MikeSquared-Agency/claudex/internal/store"
)

type Config struct {
	Port            int
	DatabaseURL     string
	NatsURL         string
	NatsToken       string
	NatsPrefix      string
	LogLevel        string
	AnthropicAPIKey string
	AnthropicModel  string
	MarkersFile     string
	APIToken        string
	SlackBotToken   string
	SlackChannel    string
	Labeler         labeler.Config
}

func Load() Config {
	def := labeler.DefaultConfig()
	return Config{
		Port:            envInt("CLAUDEX_PORT", 8760),
		DatabaseURL:     envStr("DATABASE_URL", defaultDatabasePath()),
		NatsURL:         envStr("NATS_URL", ""),
		NatsToken:       envStr("NATS_TOKEN", ""),
		NatsPrefix:      envStr("NATS_SUBJECT_PREFIX", "claudex"),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("CLAUDEX_MODEL", "claude-sonnet-4-20250514"),
		MarkersFile:     envStr("CLAUDEX_MARKERS_FILE", ""),
		APIToken:        envStr("CLAUDEX_API_TOKEN", ""),
		SlackBotToken:   envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:    envStr("SLACK_CHANNEL", ""),
		Labeler: labeler.Config{
			MaxQuestionChars: envInt("LABEL_MAX_QUESTION", def.MaxQuestionChars),
			MaxAnswerChars:   envInt("LABEL_MAX_ANSWER", def.MaxAnswerChars),
			MaxTokens:        envInt("LABEL_MAX_TOKENS", def.MaxTokens),
			RetryBackoff:     envDuration("LABEL_RETRY_BACKOFF", def.RetryBackoff),
			MinInterval:      envDuration("LABEL_MIN_INTERVAL", def.MinInterval),
		},
	}
}

// SlackEnabled reports whether index notifications should go to Slack.
func (c Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackChannel != ""
}

// UsesPostgres reports whether DatabaseURL points at Postgres rather than a
// local SQLite file.
func (c Config) UsesPostgres() bool {
	return store.IsPostgresURL(c.DatabaseURL)
}

// LoadMarkers reads speaker aliases from a YAML file. An empty path yields
// the defaults; a list missing from the file keeps its default.
func LoadMarkers(path string) (parser.Markers, error) {
	m := parser.DefaultMarkers()
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read markers file: %w", err)
	}

	var file parser.Markers
	if err := yaml.Unmarshal(data, &file); err != nil {
		return m, fmt.Errorf("parse markers file: %w", err)
	}
	if len(file.Asker) > 0 {
		m.Asker = file.Asker
	}
	if len(file.Responder) > 0 {
		m.Responder = file.Responder
	}
	return m, nil
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "claudex.db"
	}
	return filepath.Join(home, ".claudex", "claudex.db")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration accepts Go durations ("20s") or bare seconds ("20").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
