// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/jeranaias/medibot/internal/model"
	"github.com/jeranaias/medibot/internal/session"
	"github.com/jeranaias/medibot/internal/stream"
	"github.com/jeranaias/medibot/internal/util"
)

// Defaults for Options.
const (
	DefaultGreeting       = "Hello! I'm Medibot. How can I help you today?"
	DefaultFailureMessage = "Sorry, something went wrong. Please try again."
)

// Submission errors returned by Accept.
var (
	ErrEmptyPrompt  = errors.New("prompt is empty")
	ErrInFlight     = errors.New("a reply is still streaming")
	ErrEmptyReply   = errors.New("server closed the reply without any text")
	ErrExchangeUsed = errors.New("exchange already streamed")
)

// =============================================================================
// OPTIONS
// =============================================================================

// Opener opens a streaming chat request.
type Opener interface {
	Open(ctx context.Context, req stream.ChatRequest) (*stream.Reader, error)
}

// Options configures a Controller.
type Options struct {
	// Client is the streaming transport (required).
	Client Opener

	// Greeting seeds the conversation (default: DefaultGreeting).
	Greeting string

	// FailureMessage replaces a failed reply (default: DefaultFailureMessage).
	FailureMessage string

	// SessionPrefix prefixes the generated session id (default: "session_").
	SessionPrefix string

	Logger zerolog.Logger
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the conversation state and serializes submissions.
//
// All methods are safe for concurrent use. At most one exchange is in
// flight at any time.
type Controller struct {
	store          *model.Store
	session        *session.Manager
	client         Opener
	failureMessage string
	log            zerolog.Logger

	inFlight atomic.Bool
	turns    atomic.Int64

	subMu  sync.RWMutex
	subs   map[int]func(Event)
	nextID int
}

// New creates a controller with a fresh session id and a store seeded with
// the greeting.
func New(opts Options) *Controller {
	if opts.Greeting == "" {
		opts.Greeting = DefaultGreeting
	}
	if opts.FailureMessage == "" {
		opts.FailureMessage = DefaultFailureMessage
	}
	if opts.SessionPrefix == "" {
		opts.SessionPrefix = session.DefaultPrefix
	}
	if opts.Client == nil {
		opts.Client = stream.NewClient(nil)
	}

	sess := session.NewManager(session.Config{Prefix: opts.SessionPrefix})
	store := model.NewStore()
	// Cannot fail: the store is new and the greeting is non-empty.
	_ = store.Initialize(opts.Greeting)

	c := &Controller{
		store:          store,
		session:        sess,
		client:         opts.Client,
		failureMessage: opts.FailureMessage,
		subs:           make(map[int]func(Event)),
	}
	c.log = opts.Logger.With().
		Str("component", "controller").
		Str("session_id", sess.SessionID()).
		Logger()

	c.log.Info().Msg("Conversation started")
	return c
}

// SessionID returns the identifier attached to every request.
func (c *Controller) SessionID() string {
	return c.session.SessionID()
}

// Session returns the session manager for status display.
func (c *Controller) Session() *session.Manager {
	return c.session
}

// InFlight reports whether a reply is currently streaming.
func (c *Controller) InFlight() bool {
	return c.inFlight.Load()
}

// Render returns the visible turns in display order.
func (c *Controller) Render() []model.Turn {
	return c.store.Render()
}

// Turns returns every turn, including an open placeholder.
func (c *Controller) Turns() []model.Turn {
	return c.store.Turns()
}

// FailureMessage returns the text that replaces a failed reply.
func (c *Controller) FailureMessage() string {
	return c.failureMessage
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. fn runs on the streaming goroutine and must not block
// for long or call Submit.
func (c *Controller) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Controller) emit(ev Event) {
	c.subMu.RLock()
	fns := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit runs the full send protocol for text and blocks until the reply
// has finished or failed. It returns false without side effects when text
// is blank or another reply is in flight.
func (c *Controller) Submit(ctx context.Context, text string) bool {
	ex, err := c.Accept(text)
	if err != nil {
		return false
	}
	_ = ex.Stream(ctx)
	return true
}

// Accept applies the submission guard and, if it passes, sets the in-flight
// flag and opens a new turn. The returned Exchange must be streamed; until
// then the controller stays in flight.
func (c *Controller) Accept(text string) (*Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyPrompt
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		c.log.Debug().Msg("Submission ignored while in flight")
		return nil, ErrInFlight
	}

	h, err := c.store.BeginTurn(text)
	if err != nil {
		c.inFlight.Store(false)
		return nil, err
	}
	c.session.RecordActivity()

	turn := c.turns.Add(1)
	c.log.Debug().
		Int64("turn", turn).
		Str("prompt", util.Preview(text, 60)).
		Msg("Turn opened")

	c.emit(Event{Kind: EventTurnOpened, Index: h.Index()})

	return &Exchange{c: c, handle: h, prompt: text, turn: turn}, nil
}

// =============================================================================
// EXCHANGE
// =============================================================================

// Exchange is an accepted submission.
type Exchange struct {
	c       *Controller
	handle  model.TurnHandle
	prompt  string
	turn    int64
	started atomic.Bool
	stats   stream.Stats
}

// Prompt returns the submitted text.
func (e *Exchange) Prompt() string {
	return e.prompt
}

// Stats returns stream counters once Stream has returned.
func (e *Exchange) Stats() stream.Stats {
	return e.stats
}

// Stream sends the request and folds the reply into the open turn. On any
// failure the turn's content becomes the failure message. The in-flight
// flag is cleared on every path, including a panic, before the terminal
// event fires.
//
// The returned error describes why the reply failed; it has already been
// reported in the conversation.
func (e *Exchange) Stream(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrExchangeUsed
	}
	ev, err := e.settle(ctx)
	e.c.emit(ev)
	return err
}

// settle runs the request and records the outcome in the store. It
// releases the in-flight flag on return, failing the open turn first if
// consume panicked.
func (e *Exchange) settle(ctx context.Context) (ev Event, err error) {
	c := e.c
	defer func() {
		if r := recover(); r != nil {
			_ = c.store.FailOpenTurn(e.handle, c.failureMessage)
			c.inFlight.Store(false)
			panic(r)
		}
		c.session.RecordExchange()
		c.inFlight.Store(false)
	}()

	content, err := e.consume(ctx)
	if err == nil {
		if cerr := c.store.CloseOpenTurn(e.handle); cerr != nil {
			err = ErrEmptyReply
		}
	}

	if err != nil {
		if ferr := c.store.FailOpenTurn(e.handle, c.failureMessage); ferr != nil {
			c.log.Error().Err(ferr).Int64("turn", e.turn).Msg("Failed to record failed turn")
		}
		c.log.Warn().
			Err(err).
			Int64("turn", e.turn).
			Str("error_type", stream.TypeOf(err).String()).
			Int64("bytes", e.stats.Bytes).
			Int("chunks", e.stats.Chunks).
			Msg("Turn failed")
		return Event{Kind: EventTurnFailed, Index: e.handle.Index(), Content: c.failureMessage, Err: err}, err
	}

	c.log.Info().
		Int64("turn", e.turn).
		Int64("bytes", e.stats.Bytes).
		Int("chunks", e.stats.Chunks).
		Dur("first_byte", e.stats.FirstByte).
		Dur("elapsed", e.stats.Elapsed).
		Msg("Turn completed")
	return Event{Kind: EventTurnClosed, Index: e.handle.Index(), Content: content}, nil
}

// consume opens the request and writes the cumulative text after every
// chunk. It returns the last cumulative text.
func (e *Exchange) consume(ctx context.Context) (string, error) {
	c := e.c

	reader, err := c.client.Open(ctx, stream.ChatRequest{
		Prompt:    e.prompt,
		SessionID: c.session.SessionID(),
	})
	if err != nil {
		return "", err
	}
	defer reader.Close()

	var acc strings.Builder
	for chunk, err := range reader.Chunks() {
		if err != nil {
			e.stats = reader.Stats()
			return acc.String(), err
		}
		acc.WriteString(chunk)
		cumulative := acc.String()
		if err := c.store.UpdateOpenTurn(e.handle, cumulative); err != nil {
			e.stats = reader.Stats()
			return cumulative, err
		}
		c.emit(Event{Kind: EventTurnUpdated, Index: e.handle.Index(), Content: cumulative})
	}

	e.stats = reader.Stats()
	return acc.String(), nil
}
