// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package input

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jeranaias/medibot/internal/controller"
	"github.com/jeranaias/medibot/internal/speech"
)

// Default notice texts.
const (
	DefaultUnsupportedNotice = "Speech recognition is not supported on this system."
	DefaultRecognitionNotice = "Microphone error. Please try again."
)

// =============================================================================
// STATE
// =============================================================================

// State is the speech producer state.
type State int

const (
	StateIdle State = iota
	StateListening
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	default:
		return "unknown"
	}
}

// =============================================================================
// OPTIONS
// =============================================================================

// Conversation accepts submissions.
type Conversation interface {
	Accept(text string) (*controller.Exchange, error)
	InFlight() bool
}

// Options configures a Bridge.
type Options struct {
	Conversation Conversation
	Recognizer   speech.Recognizer
	Speech       speech.Options

	UnsupportedNotice string
	RecognitionNotice string

	// OnChange is called after any change to the buffer, state or notice,
	// outside the bridge's lock. It must not block.
	OnChange func()

	Logger zerolog.Logger
}

// =============================================================================
// BRIDGE
// =============================================================================

// Bridge is the single input slot shared by typing and speech.
type Bridge struct {
	conv       Conversation
	rec        speech.Recognizer
	speechOpts speech.Options

	unsupportedNotice string
	recognitionNotice string

	onChange func()
	log      zerolog.Logger

	mu      sync.Mutex
	buffer  []rune
	state   State
	notice  string
	session speech.Session
	gen     uint64 // bumped whenever a session starts or is abandoned

	wg sync.WaitGroup
}

// NewBridge creates a bridge. A nil Recognizer means speech is unsupported.
func NewBridge(opts Options) *Bridge {
	if opts.Recognizer == nil {
		opts.Recognizer = speech.Unsupported{}
	}
	if opts.Speech == (speech.Options{}) {
		opts.Speech = speech.DefaultOptions()
	}
	if opts.UnsupportedNotice == "" {
		opts.UnsupportedNotice = DefaultUnsupportedNotice
	}
	if opts.RecognitionNotice == "" {
		opts.RecognitionNotice = DefaultRecognitionNotice
	}
	if opts.OnChange == nil {
		opts.OnChange = func() {}
	}

	return &Bridge{
		conv:              opts.Conversation,
		rec:               opts.Recognizer,
		speechOpts:        opts.Speech,
		unsupportedNotice: opts.UnsupportedNotice,
		recognitionNotice: opts.RecognitionNotice,
		onChange:          opts.OnChange,
		log:               opts.Logger.With().Str("component", "input").Logger(),
	}
}

// -----------------------------------------------------------------------------
// Buffer editing
// -----------------------------------------------------------------------------

// Buffer returns the pending typed text.
func (b *Bridge) Buffer() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buffer)
}

// SetBuffer replaces the pending typed text.
func (b *Bridge) SetBuffer(text string) {
	b.mu.Lock()
	b.buffer = []rune(text)
	b.mu.Unlock()
	b.onChange()
}

// InsertRune appends r to the buffer.
func (b *Bridge) InsertRune(r rune) {
	b.mu.Lock()
	b.buffer = append(b.buffer, r)
	b.mu.Unlock()
	b.onChange()
}

// Backspace removes the last character from the buffer.
func (b *Bridge) Backspace() {
	b.mu.Lock()
	if n := len(b.buffer); n > 0 {
		b.buffer = b.buffer[:n-1]
	}
	b.mu.Unlock()
	b.onChange()
}

// -----------------------------------------------------------------------------
// Status
// -----------------------------------------------------------------------------

// State returns the speech producer state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Notice returns the current input notice, or "" when there is none.
func (b *Bridge) Notice() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.notice
}

// DismissNotice clears the input notice.
func (b *Bridge) DismissNotice() {
	b.mu.Lock()
	b.notice = ""
	b.mu.Unlock()
	b.onChange()
}

// SpeechAvailable reports whether listening can start at all.
func (b *Bridge) SpeechAvailable() bool {
	return b.rec.Available()
}

// Wait blocks until every reply started through the bridge has finished
// and no listening session is being watched.
func (b *Bridge) Wait() {
	b.wg.Wait()
}

// -----------------------------------------------------------------------------
// Manual submission
// -----------------------------------------------------------------------------

// SubmitBuffer submits the typed text. When the submission is accepted the
// buffer and notice are cleared at once and the reply streams in the
// background; otherwise nothing changes and false is returned.
func (b *Bridge) SubmitBuffer(ctx context.Context) bool {
	b.mu.Lock()
	ex, err := b.conv.Accept(string(b.buffer))
	if err != nil {
		b.mu.Unlock()
		b.log.Debug().Err(err).Msg("Submission rejected")
		return false
	}
	b.buffer = b.buffer[:0]
	b.notice = ""
	b.wg.Add(1)
	b.mu.Unlock()
	b.onChange()

	go func() {
		defer b.wg.Done()
		_ = ex.Stream(ctx)
	}()
	return true
}

// -----------------------------------------------------------------------------
// Speech
// -----------------------------------------------------------------------------

// ToggleListening starts a listening session when idle, or stops the
// current one. Every toggle first clears the notice. It returns the
// resulting state.
func (b *Bridge) ToggleListening(ctx context.Context) State {
	defer b.onChange()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.notice = ""

	if b.state == StateListening {
		sess := b.session
		b.state = StateIdle
		b.session = nil
		b.gen++
		if sess != nil {
			_ = sess.Stop()
		}
		b.log.Debug().Msg("Listening stopped")
		return b.state
	}

	if b.conv.InFlight() {
		b.log.Debug().Msg("Listening refused while in flight")
		return b.state
	}

	if !b.rec.Available() {
		b.notice = b.unsupportedNotice
		return b.state
	}

	sess, err := b.rec.Start(ctx, b.speechOpts)
	if err != nil {
		if errors.Is(err, speech.ErrUnsupported) {
			b.notice = b.unsupportedNotice
		} else {
			b.notice = b.recognitionNotice
			b.log.Warn().Err(err).Msg("Failed to start listening")
		}
		return b.state
	}

	b.state = StateListening
	b.session = sess
	b.buffer = b.buffer[:0]
	b.gen++

	b.wg.Add(1)
	go b.watch(ctx, sess, b.gen)

	b.log.Debug().Str("language", b.speechOpts.Language).Msg("Listening started")
	return b.state
}

// watch consumes one session's events until its terminal event.
func (b *Bridge) watch(ctx context.Context, sess speech.Session, gen uint64) {
	defer b.wg.Done()

	for ev := range sess.Events() {
		switch ev.Kind {
		case speech.EventStarted:
			continue
		case speech.EventResult:
			b.finish(ctx, gen, "", ev.Transcript)
		case speech.EventError:
			notice := ev.Reason
			if notice == "" {
				notice = b.recognitionNotice
			}
			b.log.Warn().Str("reason", ev.Reason).Msg("Recognition error")
			b.finish(ctx, gen, notice, "")
		case speech.EventEnded:
			b.finish(ctx, gen, "", "")
		}
		return
	}
	// closed without a terminal event
	b.finish(ctx, gen, "", "")
}

// finish moves a still-current session to Idle, sets the notice and submits
// the transcript, bypassing the typed buffer.
func (b *Bridge) finish(ctx context.Context, gen uint64, notice, transcript string) {
	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.state = StateIdle
	b.session = nil
	if notice != "" {
		b.notice = notice
	}

	var ex *controller.Exchange
	if transcript != "" {
		var err error
		ex, err = b.conv.Accept(transcript)
		if err != nil {
			b.log.Debug().Err(err).Msg("Transcript dropped")
		} else {
			b.notice = ""
		}
	}
	b.mu.Unlock()
	b.onChange()

	if ex != nil {
		_ = ex.Stream(ctx)
	}
}
