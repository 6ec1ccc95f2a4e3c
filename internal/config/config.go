// Package config loads agent configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider identifies an embedding backend.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// Config holds all configuration values for the agent.
type Config struct {
	// Discord gateway
	Token   string
	BotName string

	// Generation backend
	ModelName       string
	APIKey          string
	BaseURL         string
	HandleImages    bool
	Temperature     float64
	MaxOutputTokens int

	// Retrieval
	SimilarityThreshold float64
	ContextWindow       int

	// Rate limiting (per backend)
	RateLimitMaxRequests int
	RateLimitWindowMs    int

	// Vector store (SurrealDB)
	VectorURL       string
	VectorNamespace string
	VectorDatabase  string
	VectorUser      string
	VectorPass      string
	Collection      string

	// Embedding
	EmbedProvider  Provider
	EmbedModel     string
	EmbedDimension int
	OllamaHost     string
	OpenAIAPIKey   string

	// Conversation store (SQLite)
	DBPath           string
	MaxRecentTurns   int
	MaxMessageLength int

	// Prompting
	SystemPrompt       string
	ResponseGuidelines string

	// Access control
	AdminUsers       []string
	RestrictChannels bool
	AllowedChannels  []string

	// Reactions
	ReactionResponseChance float64

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	cfg := Config{
		Token:   os.Getenv("DISCORD_TOKEN"),
		BotName: os.Getenv("BOT_NAME"),

		ModelName:       os.Getenv("AI_MODEL_NAME"),
		APIKey:          os.Getenv("AI_API_KEY"),
		BaseURL:         os.Getenv("AI_BASE_URL"),
		HandleImages:    getEnv("HANDLE_IMAGES", "false") == "true",
		Temperature:     getEnvFloat("TEMPERATURE", 0.7),
		MaxOutputTokens: getEnvInt("MAX_TOKENS", 1000),

		SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", 0.75),
		ContextWindow:       getEnvInt("MAX_HISTORY_MESSAGES", 10),

		RateLimitMaxRequests: getEnvInt("RATE_LIMIT_MAX_REQUESTS", 10),
		RateLimitWindowMs:    getEnvInt("RATE_LIMIT_WINDOW_MS", 60000),

		VectorURL:       getEnv("VECTOR_DB_URL", "ws://localhost:8000/rpc"),
		VectorNamespace: getEnv("VECTOR_NAMESPACE", "reverie"),
		VectorDatabase:  getEnv("VECTOR_DATABASE", "memory"),
		VectorUser:      getEnv("VECTOR_USER", "root"),
		VectorPass:      getEnv("VECTOR_PASS", "root"),
		Collection:      getEnv("COLLECTION_NAME", "chat_messages"),

		EmbedProvider:  Provider(getEnv("EMBEDDING_PROVIDER", string(ProviderOllama))),
		EmbedModel:     getEnv("EMBEDDING_MODEL", "all-minilm:l6-v2"),
		EmbedDimension: getEnvInt("EMBEDDING_DIMENSION", 384),
		OllamaHost:     getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),

		DBPath:           os.Getenv("DB_PATH"),
		MaxRecentTurns:   getEnvInt("MAX_RECENT_DB_MESSAGES", 2),
		MaxMessageLength: getEnvInt("MAX_MESSAGE_LENGTH", 2000),

		SystemPrompt:       os.Getenv("SYSTEM_PROMPT"),
		ResponseGuidelines: os.Getenv("MESSAGE_RESPONSE_GUIDELINES"),

		AdminUsers:       splitList(os.Getenv("ADMIN_USERS")),
		RestrictChannels: getEnv("RESTRICT_CHANNELS", "false") == "true",
		AllowedChannels:  splitList(os.Getenv("ALLOWED_CHANNELS")),

		ReactionResponseChance: getEnvFloat("REACTION_RESPONSE_CHANCE", 0.5),

		LogFile:  getEnv("REVERIE_LOG_FILE", "/tmp/reverie.log"),
		LogLevel: parseLogLevel(getEnv("REVERIE_LOG_LEVEL", "INFO")),
	}

	if cfg.DBPath == "" {
		name := cfg.BotName
		if name == "" {
			name = "reverie"
		}
		cfg.DBPath = name + "_conversations.db"
	}

	return cfg
}

// fileOverlay is the optional YAML configuration file shape. It carries only
// the settings that are awkward as environment variables.
type fileOverlay struct {
	SystemPrompt       string   `yaml:"system_prompt"`
	ResponseGuidelines string   `yaml:"response_guidelines"`
	AdminUsers         []string `yaml:"admin_users"`
	RestrictChannels   *bool    `yaml:"restrict_channels"`
	AllowedChannels    []string `yaml:"allowed_channels"`
}

// LoadFile overlays config values from a YAML file onto cfg.
// Fields absent from the file leave the existing values untouched.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if overlay.SystemPrompt != "" {
		c.SystemPrompt = overlay.SystemPrompt
	}
	if overlay.ResponseGuidelines != "" {
		c.ResponseGuidelines = overlay.ResponseGuidelines
	}
	if len(overlay.AdminUsers) > 0 {
		c.AdminUsers = overlay.AdminUsers
	}
	if overlay.RestrictChannels != nil {
		c.RestrictChannels = *overlay.RestrictChannels
	}
	if len(overlay.AllowedChannels) > 0 {
		c.AllowedChannels = overlay.AllowedChannels
	}

	return nil
}

// Validate checks that every required setting is present.
// A failure here is fatal at startup.
func (c Config) Validate() error {
	var missing []string
	if c.Token == "" {
		missing = append(missing, "DISCORD_TOKEN")
	}
	if c.BotName == "" {
		missing = append(missing, "BOT_NAME")
	}
	if c.ModelName == "" {
		missing = append(missing, "AI_MODEL_NAME")
	}
	if c.APIKey == "" {
		missing = append(missing, "AI_API_KEY")
	}
	if c.VectorURL == "" {
		missing = append(missing, "VECTOR_DB_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ChannelAllowed reports whether events from a channel may be handled.
func (c Config) ChannelAllowed(channelID string) bool {
	if !c.RestrictChannels {
		return true
	}
	for _, id := range c.AllowedChannels {
		if id == channelID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether a user may run privileged commands.
func (c Config) IsAdmin(userID string) bool {
	for _, id := range c.AdminUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
