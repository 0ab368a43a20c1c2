// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jeranaias/medibot/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete medibot configuration.
type Config struct {
	Server ServerConfig `toml:"server" json:"server"`
	Chat   ChatConfig   `toml:"chat" json:"chat"`
	Speech SpeechConfig `toml:"speech" json:"speech"`
	UI     UIConfig     `toml:"ui" json:"ui"`
	Log    LogConfig    `toml:"log" json:"log"`
}

// ServerConfig describes the chat endpoint.
type ServerConfig struct {
	URL      string `toml:"url" json:"url"`
	ChatPath string `toml:"chat_path" json:"chat_path"`

	// ConnectTimeout bounds the wait for response headers.
	ConnectTimeout Duration `toml:"connect_timeout" json:"connect_timeout"`

	// IdleTimeout bounds the gap between reply chunks. 0 disables it.
	IdleTimeout Duration `toml:"idle_timeout" json:"idle_timeout"`

	// StrictUTF8 fails a reply containing invalid UTF-8 instead of
	// substituting U+FFFD.
	StrictUTF8 bool `toml:"strict_utf8" json:"strict_utf8"`
}

// ChatConfig holds the fixed conversation texts.
type ChatConfig struct {
	Greeting       string `toml:"greeting" json:"greeting"`
	FailureMessage string `toml:"failure_message" json:"failure_message"`
	SessionPrefix  string `toml:"session_prefix" json:"session_prefix"`
}

// SpeechConfig selects and tunes the speech-to-text backend.
type SpeechConfig struct {
	Enabled     bool     `toml:"enabled" json:"enabled"`
	Command     string   `toml:"command" json:"command"`
	Args        []string `toml:"args" json:"args"`
	Language    string   `toml:"language" json:"language"`
	MaxDuration Duration `toml:"max_duration" json:"max_duration"`
}

// UIConfig contains terminal presentation settings.
type UIConfig struct {
	MaxFPS   int  `toml:"max_fps" json:"max_fps"`
	Markdown bool `toml:"markdown" json:"markdown"`
}

// LogConfig controls the log file.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	File  string `toml:"file" json:"file"` // default: ~/.medibot/medibot.log
}

// =============================================================================
// DURATION
// =============================================================================

// Duration is a time.Duration encoded as a Go duration string.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:            "http://127.0.0.1:8000",
			ChatPath:       "/chat",
			ConnectTimeout: Duration(30 * time.Second),
			IdleTimeout:    Duration(60 * time.Second),
			StrictUTF8:     true,
		},
		Chat: ChatConfig{
			Greeting:       "Hello! I'm Medibot. How can I help you today?",
			FailureMessage: "Sorry, something went wrong. Please try again.",
			SessionPrefix:  "session_",
		},
		Speech: SpeechConfig{
			Enabled:     true,
			Language:    "en-US",
			MaxDuration: Duration(30 * time.Second),
		},
		UI: UIConfig{
			MaxFPS:   30,
			Markdown: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// fillDefaults fills in empty strings and non-positive values that have no
// meaning when unset. Zero IdleTimeout is meaningful and left alone.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Server.URL == "" {
		cfg.Server.URL = defaults.Server.URL
	}
	if cfg.Server.ChatPath == "" {
		cfg.Server.ChatPath = defaults.Server.ChatPath
	}
	if cfg.Server.ConnectTimeout == 0 {
		cfg.Server.ConnectTimeout = defaults.Server.ConnectTimeout
	}

	if cfg.Chat.Greeting == "" {
		cfg.Chat.Greeting = defaults.Chat.Greeting
	}
	if cfg.Chat.FailureMessage == "" {
		cfg.Chat.FailureMessage = defaults.Chat.FailureMessage
	}
	if cfg.Chat.SessionPrefix == "" {
		cfg.Chat.SessionPrefix = defaults.Chat.SessionPrefix
	}

	if cfg.Speech.Language == "" {
		cfg.Speech.Language = defaults.Speech.Language
	}

	if cfg.UI.MaxFPS == 0 {
		cfg.UI.MaxFPS = defaults.UI.MaxFPS
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the medibot configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, ".medibot"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DefaultLogPath returns ~/.medibot/medibot.log.
func DefaultLogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "medibot.log"), nil
}

// ResolvePath returns the file Load would read: the TOML file if present,
// else the JSON file if present, else "".
func ResolvePath() string {
	for _, candidate := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := candidate()
		if err != nil {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the default config file if one exists, falling back to
// built-in defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	if path := ResolvePath(); path != "" {
		return LoadFromPath(path)
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Files ending in .json are read as JSON, anything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	var err error
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		err = LoadJSON(cfg, path)
	} else {
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load config from %s", path)
	}

	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to decode TOML file")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read JSON file")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return errors.Wrap(err, "failed to decode JSON file")
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# medibot configuration file\n")
	buf.WriteString("# Generated by medibot - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// SaveJSON writes cfg as indented JSON, atomically with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every setting and returns all problems at once as
// ValidateErrors, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Server
	if u, err := url.Parse(c.Server.URL); err != nil {
		add("server.url", "invalid URL: %v", err)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("server.url", "scheme must be http or https, got '%s'", u.Scheme)
	} else if u.Host == "" {
		add("server.url", "missing host")
	}
	if !strings.HasPrefix(c.Server.ChatPath, "/") {
		add("server.chat_path", "must start with '/'")
	}
	if c.Server.ConnectTimeout <= 0 {
		add("server.connect_timeout", "must be positive")
	}
	if c.Server.IdleTimeout < 0 {
		add("server.idle_timeout", "must be zero (disabled) or positive")
	}

	// Chat
	if strings.TrimSpace(c.Chat.Greeting) == "" {
		add("chat.greeting", "must not be blank")
	}
	if strings.TrimSpace(c.Chat.FailureMessage) == "" {
		add("chat.failure_message", "must not be blank")
	}

	// Speech
	if c.Speech.MaxDuration < 0 {
		add("speech.max_duration", "must not be negative")
	}

	// UI
	if c.UI.MaxFPS < 1 || c.UI.MaxFPS > 120 {
		add("ui.max_fps", "must be between 1 and 120, got %d", c.UI.MaxFPS)
	}

	// Log
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		add("log.level", "unknown level '%s'", c.Log.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the configuration.
//
// Supported environment variables:
//   - MEDIBOT_SERVER_URL: overrides server.url
//   - MEDIBOT_IDLE_TIMEOUT: overrides server.idle_timeout (e.g. "90s", "0")
//   - MEDIBOT_SPEECH_COMMAND: overrides speech.command and enables speech
//   - MEDIBOT_LANGUAGE: overrides speech.language
//   - MEDIBOT_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("MEDIBOT_SERVER_URL"); v != "" {
		c.Server.URL = v
	}

	if v := os.Getenv("MEDIBOT_IDLE_TIMEOUT"); v != "" {
		if v == "0" {
			c.Server.IdleTimeout = 0
		} else if d, err := time.ParseDuration(v); err == nil {
			c.Server.IdleTimeout = Duration(d)
		}
	}

	if v := os.Getenv("MEDIBOT_SPEECH_COMMAND"); v != "" {
		c.Speech.Command = v
		c.Speech.Enabled = true
	}

	if v := os.Getenv("MEDIBOT_LANGUAGE"); v != "" {
		c.Speech.Language = v
	}

	if v := os.Getenv("MEDIBOT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Speech.Args != nil {
		clone.Speech.Args = append([]string(nil), c.Speech.Args...)
	}
	return &clone
}

// String returns the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}

// Endpoint returns the full chat URL.
func (c *Config) Endpoint() string {
	return strings.TrimRight(c.Server.URL, "/") + "/" + strings.TrimLeft(c.Server.ChatPath, "/")
}
