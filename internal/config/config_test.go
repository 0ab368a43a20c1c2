// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv isolates a test from the caller's MEDIBOT_* variables and home.
func clearEnv(t *testing.T) string {
	t.Helper()
	for _, k := range []string{
		"MEDIBOT_SERVER_URL", "MEDIBOT_IDLE_TIMEOUT", "MEDIBOT_SPEECH_COMMAND",
		"MEDIBOT_LANGUAGE", "MEDIBOT_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// =============================================================================
// DEFAULTS
// =============================================================================

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://127.0.0.1:8000", cfg.Server.URL)
	assert.Equal(t, "/chat", cfg.Server.ChatPath)
	assert.Equal(t, "http://127.0.0.1:8000/chat", cfg.Endpoint())
	assert.Equal(t, 30*time.Second, cfg.Server.ConnectTimeout.D())
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout.D())
	assert.True(t, cfg.Server.StrictUTF8)
	assert.Equal(t, "Hello! I'm Medibot. How can I help you today?", cfg.Chat.Greeting)
	assert.Equal(t, "Sorry, something went wrong. Please try again.", cfg.Chat.FailureMessage)
	assert.Equal(t, "session_", cfg.Chat.SessionPrefix)
	assert.Equal(t, "en-US", cfg.Speech.Language)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Empty(t, ResolvePath())
}

// =============================================================================
// LOADING
// =============================================================================

func TestLoadFromPath_TOML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[server]
url = "https://chat.example.test"
idle_timeout = "90s"
strict_utf8 = false

[speech]
command = "whisper-listen"
args = ["--lang", "{language}"]
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "https://chat.example.test", cfg.Server.URL)
	assert.Equal(t, 90*time.Second, cfg.Server.IdleTimeout.D())
	assert.False(t, cfg.Server.StrictUTF8)
	assert.Equal(t, "whisper-listen", cfg.Speech.Command)
	assert.Equal(t, []string{"--lang", "{language}"}, cfg.Speech.Args)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, "/chat", cfg.Server.ChatPath)
	assert.Equal(t, 30*time.Second, cfg.Server.ConnectTimeout.D())
	assert.True(t, cfg.UI.Markdown)
}

func TestLoadFromPath_IdleTimeoutDisabled(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[server]\nidle_timeout = \"0s\"\n")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Server.IdleTimeout)
}

func TestLoadFromPath_JSON(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"server": {"url": "http://10.0.0.2:9000", "connect_timeout": "5s"}, "ui": {"max_fps": 60}}`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:9000", cfg.Server.URL)
	assert.Equal(t, 5*time.Second, cfg.Server.ConnectTimeout.D())
	assert.Equal(t, 60, cfg.UI.MaxFPS)
}

func TestLoadFromPath_UnknownKey(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[server]\nurll = \"typo\"\n")

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.urll")
}

func TestLoadFromPath_Invalid(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[server]\nurl = \"ftp://nope\"\n[ui]\nmax_fps = 500\n")

	_, err := LoadFromPath(path)
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, len(verrs))
	for i, e := range verrs {
		fields[i] = e.Field
	}
	assert.ElementsMatch(t, []string{"server.url", "ui.max_fps"}, fields)
}

func TestLoad_PrefersTOMLOverJSON(t *testing.T) {
	home := clearEnv(t)
	writeFile(t, filepath.Join(home, ".medibot", "config.json"), `{"server": {"url": "http://json.test"}}`)
	writeFile(t, filepath.Join(home, ".medibot", "config.toml"), "[server]\nurl = \"http://toml.test\"\n")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://toml.test", cfg.Server.URL)
}

func TestLoad_JSONFallback(t *testing.T) {
	home := clearEnv(t)
	writeFile(t, filepath.Join(home, ".medibot", "config.json"), `{"server": {"url": "http://json.test"}}`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://json.test", cfg.Server.URL)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEDIBOT_SERVER_URL", "http://env.test:8000")
	t.Setenv("MEDIBOT_IDLE_TIMEOUT", "2m")
	t.Setenv("MEDIBOT_SPEECH_COMMAND", "stt")
	t.Setenv("MEDIBOT_LANGUAGE", "de-DE")
	t.Setenv("MEDIBOT_LOG_LEVEL", "debug")

	cfg := Default()
	cfg.Speech.Enabled = false
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "http://env.test:8000", cfg.Server.URL)
	assert.Equal(t, 2*time.Minute, cfg.Server.IdleTimeout.D())
	assert.Equal(t, "stt", cfg.Speech.Command)
	assert.True(t, cfg.Speech.Enabled)
	assert.Equal(t, "de-DE", cfg.Speech.Language)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestApplyEnvOverrides_IdleTimeoutZero(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEDIBOT_IDLE_TIMEOUT", "0")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Zero(t, cfg.Server.IdleTimeout)
}

func TestApplyEnvOverrides_OverFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEDIBOT_SERVER_URL", "http://env.test")
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[server]\nurl = \"http://file.test\"\n")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env.test", cfg.Server.URL)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing scheme", func(c *Config) { c.Server.URL = "localhost:8000" }, "server.url"},
		{"missing host", func(c *Config) { c.Server.URL = "http://" }, "server.url"},
		{"relative chat path", func(c *Config) { c.Server.ChatPath = "chat" }, "server.chat_path"},
		{"zero connect timeout", func(c *Config) { c.Server.ConnectTimeout = 0 }, "server.connect_timeout"},
		{"negative idle timeout", func(c *Config) { c.Server.IdleTimeout = Duration(-time.Second) }, "server.idle_timeout"},
		{"blank greeting", func(c *Config) { c.Chat.Greeting = "  " }, "chat.greeting"},
		{"blank failure message", func(c *Config) { c.Chat.FailureMessage = "" }, "chat.failure_message"},
		{"negative listen limit", func(c *Config) { c.Speech.MaxDuration = Duration(-1) }, "speech.max_duration"},
		{"fps too high", func(c *Config) { c.UI.MaxFPS = 1000 }, "ui.max_fps"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestValidateErrors_Error(t *testing.T) {
	assert.Equal(t, "no validation errors", ValidateErrors{}.Error())
	errs := ValidateErrors{{Field: "a", Message: "x"}, {Field: "b", Message: "y"}}
	assert.Equal(t, "a: x; b: y", errs.Error())
}

// =============================================================================
// SAVE
// =============================================================================

func TestSaveTOML_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Server.IdleTimeout = Duration(45 * time.Second)
	cfg.Speech.Args = []string{"-l", "{language}"}
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `idle_timeout = "45s"`)

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSaveJSON_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.UI.MaxFPS = 12
	require.NoError(t, SaveJSON(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

// =============================================================================
// GET/SET
// =============================================================================

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("server.idle_timeout", "15s"))
	require.NoError(t, cfg.Set("server.strict_utf8", "false"))
	require.NoError(t, cfg.Set("ui.max_fps", "10"))
	require.NoError(t, cfg.Set("speech.args", "--model, base.en"))
	require.NoError(t, cfg.Set("chat.greeting", "Hi"))

	assert.Equal(t, 15*time.Second, cfg.Server.IdleTimeout.D())
	assert.False(t, cfg.Server.StrictUTF8)
	assert.Equal(t, 10, cfg.UI.MaxFPS)
	assert.Equal(t, []string{"--model", "base.en"}, cfg.Speech.Args)

	v, err := cfg.Get("server.idle_timeout")
	require.NoError(t, err)
	assert.Equal(t, "15s", v)

	v, err = cfg.Get("speech.args")
	require.NoError(t, err)
	assert.Equal(t, "--model,base.en", v)

	v, err = cfg.Get("chat.greeting")
	require.NoError(t, err)
	assert.Equal(t, "Hi", v)
}

func TestGetSet_Errors(t *testing.T) {
	cfg := Default()

	_, err := cfg.Get("server")
	assert.Error(t, err)
	_, err = cfg.Get("server.nope")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("ui.max_fps", "fast"))
	assert.Error(t, cfg.Set("server.idle_timeout", "soon"))
	assert.Error(t, cfg.Set("server.strict_utf8", "maybe"))
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "server.url")
	assert.Contains(t, keys, "server.idle_timeout")
	assert.Contains(t, keys, "speech.max_duration")
	assert.Contains(t, keys, "log.level")

	cfg := Default()
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestClone(t *testing.T) {
	cfg := Default()
	cfg.Speech.Args = []string{"a"}

	clone := cfg.Clone()
	clone.Speech.Args[0] = "b"
	clone.Server.URL = "http://other"

	assert.Equal(t, "a", cfg.Speech.Args[0])
	assert.Equal(t, "http://127.0.0.1:8000", cfg.Server.URL)
}

// =============================================================================
// WATCH
// =============================================================================

func TestWatch_ReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[log]\nlevel = \"info\"\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, path, 20*time.Millisecond, func(c *Config) { changes <- c }, nil)
	}()

	// Give the watcher time to register before editing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "[log]\nlevel = \"debug\"\n")

	select {
	case cfg := <-changes:
		assert.Equal(t, "debug", cfg.Log.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatch_ReportsInvalidFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[log]\nlevel = \"info\"\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 4)
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, path, 20*time.Millisecond, func(*Config) {
			t.Error("invalid config must not be applied")
		}, func(err error) { errs <- err })
	}()

	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "[log]\nlevel = \"shouting\"\n")

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "log.level")
	case <-time.After(5 * time.Second):
		t.Fatal("no error observed")
	}

	cancel()
	require.NoError(t, <-done)
}
