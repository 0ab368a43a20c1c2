// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config selects the speech backend.
type Config struct {
	Enabled bool

	// Command is a speech-to-text program. It must record from the default
	// microphone, print the recognized text on stdout and exit. A non-zero
	// exit is a recognition error whose reason is the last stderr line.
	Command string

	// Args may contain {language} and {max_alternatives} placeholders.
	Args []string

	Logger zerolog.Logger
}

// New returns the recognizer for cfg, or Unsupported when speech is disabled
// or no command is configured.
func New(cfg Config) Recognizer {
	if !cfg.Enabled || strings.TrimSpace(cfg.Command) == "" {
		return Unsupported{}
	}
	return NewCommandRecognizer(cfg)
}

// =============================================================================
// COMMAND RECOGNIZER
// =============================================================================

// waitDelay bounds how long a stopped command may keep its output open.
const waitDelay = 500 * time.Millisecond

// CommandRecognizer runs an external speech-to-text program per session.
type CommandRecognizer struct {
	command string
	args    []string
	log     zerolog.Logger
}

// NewCommandRecognizer creates a recognizer for cfg.Command.
func NewCommandRecognizer(cfg Config) *CommandRecognizer {
	return &CommandRecognizer{
		command: cfg.Command,
		args:    append([]string(nil), cfg.Args...),
		log:     cfg.Logger.With().Str("component", "speech").Logger(),
	}
}

// Available reports whether the command can be found.
func (r *CommandRecognizer) Available() bool {
	if r.command == "" {
		return false
	}
	_, err := exec.LookPath(r.command)
	return err == nil
}

// Start launches the command.
func (r *CommandRecognizer) Start(ctx context.Context, opts Options) (Session, error) {
	if !r.Available() {
		return nil, ErrUnsupported
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if opts.MaxDuration > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.MaxDuration)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	cmd := exec.CommandContext(runCtx, r.command, expandArgs(r.args, opts)...)
	cmd.Env = append(os.Environ(),
		"MEDIBOT_SPEECH_LANGUAGE="+opts.Language,
		"MEDIBOT_SPEECH_MAX_ALTERNATIVES="+strconv.Itoa(opts.MaxAlternatives),
		"MEDIBOT_SPEECH_INTERIM="+strconv.FormatBool(opts.InterimResults),
		"MEDIBOT_SPEECH_CONTINUOUS="+strconv.FormatBool(opts.Continuous),
	)
	cmd.WaitDelay = waitDelay

	s := &commandSession{
		events: make(chan Event, 2),
		cancel: cancel,
		runCtx: runCtx,
		log:    r.log,
	}
	cmd.Stdout = &s.stdout
	cmd.Stderr = &s.stderr

	if err := cmd.Start(); err != nil {
		cancel()
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrUnsupported
		}
		return nil, pkgerrors.Wrap(err, "start speech command")
	}

	r.log.Debug().
		Str("command", r.command).
		Str("language", opts.Language).
		Int("pid", cmd.Process.Pid).
		Msg("Listening")

	s.events <- Event{Kind: EventStarted}
	s.wg.Add(1)
	go s.run(cmd)
	return s, nil
}

func expandArgs(args []string, opts Options) []string {
	r := strings.NewReplacer(
		"{language}", opts.Language,
		"{max_alternatives}", strconv.Itoa(opts.MaxAlternatives),
	)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

// =============================================================================
// SESSION
// =============================================================================

type commandSession struct {
	events chan Event
	cancel context.CancelFunc
	runCtx context.Context
	log    zerolog.Logger

	stdout bytes.Buffer
	stderr bytes.Buffer

	stopped atomic.Bool
	wg      sync.WaitGroup
}

func (s *commandSession) Events() <-chan Event {
	return s.events
}

func (s *commandSession) Stop() error {
	s.stopped.Store(true)
	s.cancel()
	return nil
}

// wait blocks until the command has exited.
func (s *commandSession) wait() {
	s.wg.Wait()
}

func (s *commandSession) run(cmd *exec.Cmd) {
	defer s.wg.Done()
	defer s.cancel()
	defer close(s.events)

	waitErr := cmd.Wait()
	ev := s.classify(waitErr)

	s.log.Debug().
		Str("event", ev.Kind.String()).
		Str("reason", ev.Reason).
		Int("transcript_len", len(ev.Transcript)).
		Msg("Listening finished")

	s.events <- ev
}

func (s *commandSession) classify(waitErr error) Event {
	if s.stopped.Load() {
		return Event{Kind: EventEnded}
	}
	if errors.Is(s.runCtx.Err(), context.DeadlineExceeded) {
		return Event{Kind: EventError, Reason: "no speech recognized before the time limit"}
	}
	if s.runCtx.Err() != nil {
		return Event{Kind: EventEnded}
	}
	if waitErr != nil {
		reason := lastLine(s.stderr.String())
		if reason == "" {
			reason = waitErr.Error()
		}
		return Event{Kind: EventError, Reason: reason}
	}
	if transcript := joinLines(s.stdout.String()); transcript != "" {
		return Event{Kind: EventResult, Transcript: transcript}
	}
	return Event{Kind: EventEnded}
}

func joinLines(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
