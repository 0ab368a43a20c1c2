// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package internal provides integration tests for the complete medibot
// pipeline: configuration, streaming transport, controller, input bridge
// and the command-backed speech recognizer.
package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/medibot/internal/config"
	"github.com/jeranaias/medibot/internal/controller"
	"github.com/jeranaias/medibot/internal/input"
	"github.com/jeranaias/medibot/internal/model"
	"github.com/jeranaias/medibot/internal/speech"
	"github.com/jeranaias/medibot/internal/stream"
)

// =============================================================================
// TEST UTILITIES
// =============================================================================

// chunkedServer answers every prompt with the given chunks, flushing after
// each one.
func chunkedServer(t *testing.T, chunks ...[]byte) (*httptest.Server, func() []stream.ChatRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []stream.ChatRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req stream.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		reqs = append(reqs, req)
		mu.Unlock()

		flusher, _ := w.(http.Flusher)
		for _, c := range chunks {
			_, _ = w.Write(c)
			if flusher != nil {
				flusher.Flush()
			}
			time.Sleep(5 * time.Millisecond)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, func() []stream.ChatRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]stream.ChatRequest(nil), reqs...)
	}
}

// loadConfig writes a config file pointing at url and loads it the way the
// CLI does.
func loadConfig(t *testing.T, url string, extra string) *config.Config {
	t.Helper()
	for _, k := range []string{
		"MEDIBOT_SERVER_URL", "MEDIBOT_IDLE_TIMEOUT", "MEDIBOT_SPEECH_COMMAND",
		"MEDIBOT_LANGUAGE", "MEDIBOT_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[server]\nurl = \"" + url + "\"\nidle_timeout = \"2s\"\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)
	return cfg
}

func newController(cfg *config.Config) *controller.Controller {
	client := stream.NewClient(&stream.ClientConfig{
		BaseURL:        cfg.Server.URL,
		ChatPath:       cfg.Server.ChatPath,
		ConnectTimeout: cfg.Server.ConnectTimeout.D(),
		IdleTimeout:    cfg.Server.IdleTimeout.D(),
		StrictUTF8:     cfg.Server.StrictUTF8,
	})
	return controller.New(controller.Options{
		Client:         client,
		Greeting:       cfg.Chat.Greeting,
		FailureMessage: cfg.Chat.FailureMessage,
		SessionPrefix:  cfg.Chat.SessionPrefix,
		Logger:         zerolog.Nop(),
	})
}

// =============================================================================
// END-TO-END TESTS
// =============================================================================

// TestEndToEndTypedExchange sends a typed message through the bridge and
// receives a reply whose multi-byte characters are split across chunks.
func TestEndToEndTypedExchange(t *testing.T) {
	reply := []byte("Rest and drink fluids. Fièvre: 38°C")
	split := len("Rest and drink fluids. Fi") + 1 // inside "è"
	srv, requests := chunkedServer(t, reply[:split], reply[split:])

	cfg := loadConfig(t, srv.URL, "[chat]\nsession_prefix = \"visit_\"\n")
	ctrl := newController(cfg)

	var updates atomic.Int32
	unsubscribe := ctrl.Subscribe(func(ev controller.Event) {
		if ev.Kind == controller.EventTurnUpdated {
			updates.Add(1)
		}
	})
	defer unsubscribe()

	bridge := input.NewBridge(input.Options{Conversation: ctrl, Logger: zerolog.Nop()})
	for _, r := range "I have a fever" {
		bridge.InsertRune(r)
	}
	require.True(t, bridge.SubmitBuffer(context.Background()))
	assert.Empty(t, bridge.Buffer())
	bridge.Wait()

	want := []model.Turn{
		{Role: model.RoleAssistant, Content: cfg.Chat.Greeting},
		{Role: model.RoleUser, Content: "I have a fever"},
		{Role: model.RoleAssistant, Content: string(reply)},
	}
	if diff := cmp.Diff(want, ctrl.Render()); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
	assert.GreaterOrEqual(t, updates.Load(), int32(1))

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "I have a fever", reqs[0].Prompt)
	assert.Equal(t, ctrl.SessionID(), reqs[0].SessionID)
	assert.Regexp(t, `^visit_[0-9a-f-]{36}$`, reqs[0].SessionID)
	assert.Equal(t, 1, ctrl.Session().Exchanges())
}

// TestEndToEndSpokenExchange runs a speech command whose stdout becomes the
// prompt.
func TestEndToEndSpokenExchange(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("uses /bin/sh")
	}
	srv, requests := chunkedServer(t, []byte("Where does it hurt?"))

	cfg := loadConfig(t, srv.URL,
		"[speech]\nenabled = true\ncommand = \"sh\"\nargs = [\"-c\", \"echo my {language} head hurts\"]\n")
	ctrl := newController(cfg)

	rec := speech.New(speech.Config{
		Enabled: cfg.Speech.Enabled,
		Command: cfg.Speech.Command,
		Args:    cfg.Speech.Args,
		Logger:  zerolog.Nop(),
	})
	require.True(t, rec.Available())

	opts := speech.DefaultOptions()
	opts.Language = cfg.Speech.Language
	bridge := input.NewBridge(input.Options{
		Conversation: ctrl,
		Recognizer:   rec,
		Speech:       opts,
		Logger:       zerolog.Nop(),
	})

	bridge.SetBuffer("typed but not sent")
	assert.Equal(t, input.StateListening, bridge.ToggleListening(context.Background()))
	assert.Empty(t, bridge.Buffer())
	bridge.Wait()

	assert.Equal(t, input.StateIdle, bridge.State())
	assert.Empty(t, bridge.Notice())

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "my en-US head hurts", reqs[0].Prompt)

	turns := ctrl.Render()
	require.Len(t, turns, 3)
	assert.Equal(t, "Where does it hurt?", turns[2].Content)
}

// TestEndToEndServerDown reports the fixed apology when nothing listens on
// the configured port.
func TestEndToEndServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := loadConfig(t, url, "")
	ctrl := newController(cfg)

	var failure error
	unsubscribe := ctrl.Subscribe(func(ev controller.Event) {
		if ev.Kind == controller.EventTurnFailed {
			failure = ev.Err
		}
	})
	defer unsubscribe()

	require.True(t, ctrl.Submit(context.Background(), "hello"))
	assert.Equal(t, stream.ErrTypeTransport, stream.TypeOf(failure))

	turns := ctrl.Render()
	require.Len(t, turns, 3)
	assert.Equal(t, cfg.Chat.FailureMessage, turns[2].Content)
	assert.False(t, ctrl.InFlight())
}

// =============================================================================
// CONCURRENCY TESTS
// =============================================================================

// TestConcurrency_RenderWhileStreaming reads snapshots from many goroutines
// while a reply streams. Run with -race.
func TestConcurrency_RenderWhileStreaming(t *testing.T) {
	chunks := make([][]byte, 20)
	for i := range chunks {
		chunks[i] = []byte("word ")
	}
	srv, _ := chunkedServer(t, chunks...)
	ctrl := newController(loadConfig(t, srv.URL, ""))

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				for _, turn := range ctrl.Render() {
					assert.NotEmpty(t, turn.Content)
				}
				_ = ctrl.InFlight()
			}
		}()
	}

	require.True(t, ctrl.Submit(context.Background(), "talk"))
	close(done)
	wg.Wait()

	turns := ctrl.Render()
	require.Len(t, turns, 3)
	assert.Len(t, turns[2].Content, len("word ")*20)
}

// TestConcurrency_SubmitRace lets many goroutines submit at once; exactly
// one submission is accepted.
func TestConcurrency_SubmitRace(t *testing.T) {
	srv, requests := chunkedServer(t, []byte("ok"))
	ctrl := newController(loadConfig(t, srv.URL, ""))
	bridge := input.NewBridge(input.Options{Conversation: ctrl, Logger: zerolog.Nop()})
	bridge.SetBuffer("once")

	var (
		accepted atomic.Int32
		wg       sync.WaitGroup
		start    = make(chan struct{})
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if bridge.SubmitBuffer(context.Background()) {
				accepted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	bridge.Wait()

	assert.Equal(t, int32(1), accepted.Load())
	assert.Len(t, requests(), 1)
	assert.Len(t, ctrl.Turns(), 3)
}
