package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/taskops/telegram-bridge/internal/biz/domain"
)

// Config represents application configuration
type Config struct {
	// Telegram configuration
	Telegram TelegramConfig

	// Poller tunables
	Poll PollConfig

	// Task-board collaborator
	BoardAPIURL string

	// Local inference collaborator
	Ollama OllamaConfig

	// Recovery script workspace override
	WorkspaceRoot string

	// Runtime state directory (preferences, run journal)
	StateDir string

	// Debug mode
	Debug bool
}

// TelegramConfig contains chat platform configuration
type TelegramConfig struct {
	Token        string
	AllowedChat  int64 // the single authorized conversation; 0 means unconfigured
	AllowAnyChat bool  // dev-only override, disables the guard
	BaseURL      string
}

// PollConfig contains long-poll and backoff tunables
type PollConfig struct {
	Timeout           time.Duration // server-side long-poll hold
	BaseInterval      time.Duration // delay between successful polls
	BaseBackoff       time.Duration // starting delay for conflict backoff
	BackoffCap        time.Duration
	BackoffStep       time.Duration // linear growth per failure for generic errors
	UnauthorizedRetry time.Duration // fixed retry interval while the credential is rejected
	NotifyCooldown    time.Duration // min gap between operator alerts of one kind
}

// OllamaConfig contains local inference configuration
type OllamaConfig struct {
	BaseURL      string
	DefaultModel string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	stateDir := os.Getenv("STATE_DIR")
	if stateDir == "" {
		homeDir, _ := os.UserHomeDir()
		stateDir = filepath.Join(homeDir, ".taskboard-bridge")
	}

	allowedChat := int64(0)
	if val := os.Getenv("TELEGRAM_CHAT_ID"); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			allowedChat = parsed
		}
	}

	pollTimeout := 30 * time.Second
	if val := os.Getenv("POLL_TIMEOUT_SECONDS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			pollTimeout = time.Duration(parsed) * time.Second
		}
	}

	boardURL := os.Getenv("BOARD_API_URL")
	if boardURL == "" {
		boardURL = "http://127.0.0.1:3001"
	}

	ollamaURL := os.Getenv("OLLAMA_API_URL")
	if ollamaURL == "" {
		ollamaURL = "http://127.0.0.1:11434"
	}

	ollamaModel := os.Getenv("OLLAMA_MODEL")
	if ollamaModel == "" {
		ollamaModel = "qwen2.5:7b"
	}

	return &Config{
		Telegram: TelegramConfig{
			Token:        os.Getenv("TELEGRAM_BOT_TOKEN"),
			AllowedChat:  allowedChat,
			AllowAnyChat: os.Getenv("ALLOW_ANY_CHAT") == "true",
			BaseURL:      os.Getenv("TELEGRAM_BASE_URL"),
		},
		Poll: PollConfig{
			Timeout:           pollTimeout,
			BaseInterval:      500 * time.Millisecond,
			BaseBackoff:       2 * time.Second,
			BackoffCap:        60 * time.Second,
			BackoffStep:       2 * time.Second,
			UnauthorizedRetry: 60 * time.Second,
			NotifyCooldown:    10 * time.Minute,
		},
		BoardAPIURL: boardURL,
		Ollama: OllamaConfig{
			BaseURL:      ollamaURL,
			DefaultModel: ollamaModel,
		},
		WorkspaceRoot: os.Getenv("WORKSPACE_ROOT"),
		StateDir:      stateDir,
		Debug:         os.Getenv("DEBUG") == "true",
	}
}

// ToTunables converts the poll settings into the poller's delay parameters.
func (p PollConfig) ToTunables() domain.PollTunables {
	return domain.PollTunables{
		BaseInterval:      p.BaseInterval,
		BaseBackoff:       p.BaseBackoff,
		BackoffCap:        p.BackoffCap,
		BackoffStep:       p.BackoffStep,
		UnauthorizedRetry: p.UnauthorizedRetry,
	}
}

// Validate validates the configuration. Only the credential is hard-required;
// a missing allowed chat leaves the bridge fail-closed but running.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return &ConfigError{Field: "TELEGRAM_BOT_TOKEN", Message: "required"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
