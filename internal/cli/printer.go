// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/muesli/termenv"

	"github.com/jeranaias/medibot/internal/controller"
	"github.com/jeranaias/medibot/internal/model"
)

// =============================================================================
// OUTPUT
// =============================================================================

// lockedWriter serializes writes from the prompt loop and the streaming
// goroutine so lines never interleave mid-write.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// =============================================================================
// STYLES
// =============================================================================

const (
	colorCyan   = "#22D3EE"
	colorPurple = "#A78BFA"
	colorRose   = "#FB7185"
	colorMuted  = "#6C7086"
)

// palette renders the line-mode colors for one output.
type palette struct {
	out     *termenv.Output
	profile termenv.Profile
}

func newPalette(w io.Writer, profile termenv.Profile) palette {
	return palette{
		out:     termenv.NewOutput(w, termenv.WithProfile(profile)),
		profile: profile,
	}
}

func (p palette) color(s, hex string, bold bool) string {
	if p.profile == termenv.Ascii {
		return s
	}
	st := p.out.String(s).Foreground(p.out.Color(hex))
	if bold {
		st = st.Bold()
	}
	return st.String()
}

func (p palette) user(s string) string      { return p.color(s, colorCyan, true) }
func (p palette) assistant(s string) string { return p.color(s, colorPurple, true) }
func (p palette) alert(s string) string     { return p.color(s, colorRose, true) }
func (p palette) muted(s string) string     { return p.color(s, colorMuted, false) }

// =============================================================================
// DELTA PRINTER
// =============================================================================

// deltaPrinter writes a streaming reply as it grows. Controller events carry
// the cumulative text; only the new suffix is printed.
type deltaPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	pal     palette
	label   bool
	printed string
	started bool
}

func newDeltaPrinter(w io.Writer, pal palette, label bool) *deltaPrinter {
	return &deltaPrinter{w: w, pal: pal, label: label}
}

func (d *deltaPrinter) handle(ev controller.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch ev.Kind {
	case controller.EventTurnOpened:
		d.printed = ""
		d.started = false

	case controller.EventTurnUpdated:
		d.start()
		delta := ev.Content
		if strings.HasPrefix(ev.Content, d.printed) {
			delta = ev.Content[len(d.printed):]
		}
		fmt.Fprint(d.w, delta)
		d.printed = ev.Content

	case controller.EventTurnClosed:
		fmt.Fprintln(d.w)

	case controller.EventTurnFailed:
		if d.started {
			fmt.Fprintln(d.w)
		}
		d.start()
		fmt.Fprintln(d.w, d.pal.alert(ev.Content))
	}
}

func (d *deltaPrinter) start() {
	if d.started {
		return
	}
	d.started = true
	if d.label {
		fmt.Fprint(d.w, d.pal.assistant(model.RoleAssistant.DisplayName()+": "))
	}
}
