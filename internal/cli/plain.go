// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/muesli/termenv"
	"github.com/peterh/liner"

	"github.com/jeranaias/medibot/internal/config"
	"github.com/jeranaias/medibot/internal/controller"
	"github.com/jeranaias/medibot/internal/input"
	"github.com/jeranaias/medibot/internal/model"
)

const plainHelp = `Commands:
  /mic    speak one message (Ctrl+C stops listening)
  /help   show this help
  /quit   exit
Ctrl+C cancels a reply, Ctrl+D exits.`

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader is the part of liner.State the REPL uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// chatHistory wraps liner with a history file in the config directory.
type chatHistory struct {
	*liner.State
	path string
}

func newChatHistory() *chatHistory {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	h := &chatHistory{State: line, path: filepath.Join(dir, "chat_history")}

	if f, err := os.Open(h.path); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return h
}

// Close saves history with owner-only permissions and restores the terminal.
func (h *chatHistory) Close() error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0o700); err == nil {
		if f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = h.WriteHistory(f)
			f.Close()
		}
	}
	return h.State.Close()
}

// =============================================================================
// LINE-MODE CHAT
// =============================================================================

type plainChat struct {
	ctrl   *controller.Controller
	bridge *input.Bridge
	lines  lineReader
	w      io.Writer
	pal    palette
	reply  *deltaPrinter

	// voice is set while a listening session may submit a transcript, so
	// the transcript is echoed before the reply.
	voice atomic.Bool

	// interrupt scopes one reply or listening session; the default cancels
	// it on Ctrl+C.
	interrupt func(context.Context) (context.Context, context.CancelFunc)
}

func runPlain(ctx context.Context, a *app, w io.Writer) error {
	history := newChatHistory()
	defer history.Close()

	return newPlainChat(a, history, w, GetColorProfile()).run(ctx)
}

func newPlainChat(a *app, lines lineReader, w io.Writer, profile termenv.Profile) *plainChat {
	out := &lockedWriter{w: w}
	pal := newPalette(out, profile)
	return &plainChat{
		ctrl:   a.ctrl,
		bridge: a.newBridge(nil),
		lines:  lines,
		w:      out,
		pal:    pal,
		reply:  newDeltaPrinter(out, pal, true),
		interrupt: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}
}

func (p *plainChat) run(ctx context.Context) error {
	unsubscribe := p.ctrl.Subscribe(p.observe)
	defer unsubscribe()

	for _, t := range p.ctrl.Render() {
		p.printTurn(t)
	}
	if p.bridge.SpeechAvailable() {
		fmt.Fprintln(p.w, p.pal.muted("Type /mic to speak, /help for commands."))
	}

	prompt := model.RoleUser.DisplayName() + ": "
	for ctx.Err() == nil {
		line, err := p.lines.Prompt(prompt)
		if err != nil {
			// Ctrl+C at the prompt or EOF
			fmt.Fprintln(p.w)
			return nil
		}

		switch strings.TrimSpace(line) {
		case "":
			continue
		case "/quit", "/exit", "/q":
			return nil
		case "/help", "/h":
			fmt.Fprintln(p.w, plainHelp)
			continue
		case "/mic":
			p.listen(ctx)
			continue
		}

		p.lines.AppendHistory(line)
		p.send(ctx, line)
	}
	return nil
}

// send submits one typed line and blocks until the reply ends.
func (p *plainChat) send(ctx context.Context, line string) {
	turnCtx, stop := p.interrupt(ctx)
	defer stop()

	p.bridge.SetBuffer(line)
	if !p.bridge.SubmitBuffer(turnCtx) {
		p.bridge.SetBuffer("")
		return
	}
	p.bridge.Wait()
	p.printNotice()
}

// listen runs one listening session and any reply it produces.
func (p *plainChat) listen(ctx context.Context) {
	turnCtx, stop := p.interrupt(ctx)
	defer stop()

	p.voice.Store(true)
	defer p.voice.Store(false)

	// The status line goes out before the session starts; once it has,
	// the transcript and reply are written from the streaming goroutine.
	if p.bridge.SpeechAvailable() {
		fmt.Fprintln(p.w, p.pal.muted("Listening... (Ctrl+C to stop)"))
	}
	if p.bridge.ToggleListening(turnCtx) != input.StateListening {
		p.printNotice()
		return
	}
	p.bridge.Wait()
	p.printNotice()
}

// observe prints controller events. Runs on the streaming goroutine.
func (p *plainChat) observe(ev controller.Event) {
	if ev.Kind == controller.EventTurnOpened && p.voice.Load() {
		turns := p.ctrl.Turns()
		if i := ev.Index - 1; i >= 0 && i < len(turns) {
			p.printTurn(turns[i])
		}
	}
	p.reply.handle(ev)
}

func (p *plainChat) printNotice() {
	if notice := p.bridge.Notice(); notice != "" {
		fmt.Fprintln(p.w, p.pal.alert("[!] "+notice))
		p.bridge.DismissNotice()
	}
}

func (p *plainChat) printTurn(t model.Turn) {
	name := t.Role.DisplayName() + ": "
	if t.Role == model.RoleUser {
		fmt.Fprintln(p.w, p.pal.user(name)+t.Content)
		return
	}
	fmt.Fprintln(p.w, p.pal.assistant(name)+t.Content)
}
