package retouch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	defaults "github.com/Paranoid-AF/retouch/default"
	"github.com/Paranoid-AF/retouch/keybind"
)

// Config represents the user's retouch configuration.
type Config struct {
	// Prompt is the rewrite instruction placed before the clipboard text.
	Prompt string `json:"prompt" toml:"prompt"`
	// Model is the chat-completion model identifier.
	Model string `json:"model" toml:"model"`
	// Hotkey is the global key binding, e.g. "CommandOrControl+Shift+G".
	Hotkey string `json:"hotkey" toml:"hotkey"`
	// APIKey is the bearer credential. Empty means not configured.
	APIKey string `json:"openaiApiKey,omitempty" toml:"openaiApiKey,omitempty"`
	// BaseURL is the API base, without the /chat/completions suffix.
	BaseURL string `json:"baseUrl,omitempty" toml:"baseUrl,omitempty"`
	// CacheTTLSeconds enables the suggestion cache when positive.
	CacheTTLSeconds int `json:"cacheTtlSeconds,omitempty" toml:"cacheTtlSeconds,omitempty"`
}

// ConfigDir returns the config directory path.
// Resolution order: $RETOUCH_CONFIG_DIR > $XDG_CONFIG_HOME/retouch > ~/.config/retouch
func ConfigDir() string {
	if dir := os.Getenv("RETOUCH_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "retouch")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "retouch-config")
	}
	return filepath.Join(home, ".config", "retouch")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// DefaultConfig returns the built-in configuration from the embedded defaults.
func DefaultConfig() Config {
	var cfg Config
	if err := json.Unmarshal(defaults.DefaultConfigJSON, &cfg); err != nil {
		panic("retouch: invalid embedded default_config.json: " + err.Error())
	}
	cfg.Prompt = strings.TrimSpace(defaults.DefaultPrompt)
	if cfg.Prompt == "" || cfg.Model == "" || !keybind.Valid(cfg.Hotkey) {
		panic("retouch: embedded defaults are incomplete")
	}
	return cfg
}

// Store persists the configuration as a JSON file. It has a single writer:
// the agent process.
type Store struct {
	path string
}

// NewStore returns a store for the config file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the config file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the config file. A missing or unparsable file yields the
// defaults; a key that is missing or holds an invalid value falls back to
// its default alone. Load never fails.
func (s *Store) Load() Config {
	cfg, warnings := s.Inspect()
	for _, w := range warnings {
		slog.Debug("config fallback", "path", s.path, "reason", w)
	}
	return cfg
}

// Inspect is Load plus a description of every fallback that was applied.
func (s *Store) Inspect() (Config, []string) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, []string{fmt.Sprintf("cannot read config: %v", err)}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, []string{fmt.Sprintf("cannot parse config: %v", err)}
	}

	var warnings []string
	str := func(key string, dst *string, valid func(string) bool) {
		msg, ok := raw[key]
		if !ok {
			return
		}
		var v string
		if err := json.Unmarshal(msg, &v); err != nil || !valid(v) {
			warnings = append(warnings, fmt.Sprintf("invalid %q, using default", key))
			return
		}
		*dst = v
	}
	nonEmpty := func(v string) bool { return strings.TrimSpace(v) != "" }
	always := func(string) bool { return true }

	str("prompt", &cfg.Prompt, nonEmpty)
	str("model", &cfg.Model, nonEmpty)
	str("hotkey", &cfg.Hotkey, keybind.Valid)
	str("openaiApiKey", &cfg.APIKey, always)
	str("baseUrl", &cfg.BaseURL, nonEmpty)

	if msg, ok := raw["cacheTtlSeconds"]; ok {
		var ttl int
		if err := json.Unmarshal(msg, &ttl); err != nil || ttl < 0 {
			warnings = append(warnings, `invalid "cacheTtlSeconds", using default`)
		} else {
			cfg.CacheTTLSeconds = ttl
		}
	}

	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Hotkey = keybind.Normalize(cfg.Hotkey)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return cfg, warnings
}

// Save writes cfg atomically. An empty APIKey keeps the key already stored
// on disk, so settings updates that never carry the key do not erase it.
func (s *Store) Save(cfg Config) error {
	if cfg.APIKey == "" {
		cfg.APIKey = s.storedAPIKey()
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := writeFileAtomic(s.path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// storedAPIKey reads the key currently on disk, ignoring any other content.
func (s *Store) storedAPIKey() string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return ""
	}
	var stored struct {
		APIKey string `json:"openaiApiKey"`
	}
	if err := json.Unmarshal(data, &stored); err != nil {
		return ""
	}
	return strings.TrimSpace(stored.APIKey)
}

// ResolveAPIKey returns the API key.
// Priority: $RETOUCH_API_KEY env > config value.
func ResolveAPIKey(cfg Config) string {
	if key := os.Getenv("RETOUCH_API_KEY"); key != "" {
		return key
	}
	return cfg.APIKey
}

// ResolveBaseURL returns the API base URL.
// Priority: $RETOUCH_BASE_URL env > config value > default.
func ResolveBaseURL(cfg Config) string {
	if url := os.Getenv("RETOUCH_BASE_URL"); url != "" {
		return strings.TrimRight(url, "/")
	}
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	return DefaultConfig().BaseURL
}

// ResolveModel returns the model identifier.
// Priority: $RETOUCH_MODEL env > config value.
func ResolveModel(cfg Config) string {
	if model := os.Getenv("RETOUCH_MODEL"); model != "" {
		return model
	}
	return cfg.Model
}

// MaskKey hides all but the last four characters of an API key.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", 8) + key[len(key)-4:]
}

// Masked returns a copy of cfg safe to print or log.
func (cfg Config) Masked() Config {
	cfg.APIKey = MaskKey(cfg.APIKey)
	return cfg
}
