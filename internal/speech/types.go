// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"context"
	"errors"
	"time"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventKind identifies a recognition session event.
type EventKind int

const (
	EventStarted EventKind = iota
	EventResult
	EventError
	EventEnded
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventResult:
		return "result"
	case EventError:
		return "error"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Terminal reports whether the event ends its session.
func (k EventKind) Terminal() bool {
	return k != EventStarted
}

// Event is emitted by a listening session.
type Event struct {
	Kind       EventKind
	Transcript string // EventResult
	Reason     string // EventError
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options are the recognition parameters for one session.
type Options struct {
	Language        string
	MaxAlternatives int
	InterimResults  bool
	Continuous      bool

	// MaxDuration stops listening with an error after this long. Zero means
	// no limit.
	MaxDuration time.Duration
}

// DefaultOptions returns single-shot, final-result-only recognition in
// US English.
func DefaultOptions() Options {
	return Options{
		Language:        "en-US",
		MaxAlternatives: 1,
		InterimResults:  false,
		Continuous:      false,
		MaxDuration:     30 * time.Second,
	}
}

// =============================================================================
// CAPABILITY CONTRACT
// =============================================================================

// ErrUnsupported is returned by Start when the system has no speech capability.
var ErrUnsupported = errors.New("speech recognition is not supported on this system")

// RecognitionError is an engine-reported failure while listening.
type RecognitionError struct {
	Reason string
}

func (e *RecognitionError) Error() string {
	if e.Reason == "" {
		return "speech recognition failed"
	}
	return "speech recognition failed: " + e.Reason
}

// Recognizer starts listening sessions.
type Recognizer interface {
	// Available reports whether Start can succeed at all.
	Available() bool

	// Start begins a listening session. It returns ErrUnsupported when the
	// capability is missing.
	Start(ctx context.Context, opts Options) (Session, error)
}

// Session is one listening session.
type Session interface {
	// Events yields EventStarted, then one terminal event, then closes.
	Events() <-chan Event

	// Stop ends the session early. The terminal event is then EventEnded.
	// Calling Stop more than once is harmless.
	Stop() error
}

// =============================================================================
// UNSUPPORTED
// =============================================================================

// Unsupported is the recognizer used when no speech backend is configured.
type Unsupported struct{}

// Available always returns false.
func (Unsupported) Available() bool { return false }

// Start always fails with ErrUnsupported.
func (Unsupported) Start(context.Context, Options) (Session, error) {
	return nil, ErrUnsupported
}
