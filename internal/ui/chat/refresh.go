// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"
)

// DefaultMaxFPS caps redraws while a reply streams.
const DefaultMaxFPS = 30

// RefreshMsg tells the model to re-read conversation and bridge state.
type RefreshMsg struct{}

// =============================================================================
// REFRESHER
// =============================================================================

// Refresher turns change notifications from other goroutines into at most
// maxFPS RefreshMsgs per second.
//
// Signal never blocks: the dirty channel holds one pending notification and
// extra signals are dropped. That is safe because a refresh reads a full
// snapshot, so the last signal before a redraw always shows the latest
// state, terminal events included.
type Refresher struct {
	dirty   chan struct{}
	limiter *rate.Limiter

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewRefresher creates a refresher. maxFPS <= 0 uses DefaultMaxFPS.
func NewRefresher(maxFPS int) *Refresher {
	if maxFPS <= 0 {
		maxFPS = DefaultMaxFPS
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Refresher{
		dirty:   make(chan struct{}, 1),
		limiter: rate.NewLimiter(rate.Limit(maxFPS), 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Signal marks the screen dirty. Safe from any goroutine.
func (r *Refresher) Signal() {
	select {
	case r.dirty <- struct{}{}:
	default:
	}
}

// Next returns a command that waits for the next signal, respecting the
// frame rate. After Close the command yields nil.
func (r *Refresher) Next() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-r.ctx.Done():
			return nil
		case <-r.dirty:
		}
		if err := r.limiter.Wait(r.ctx); err != nil {
			return nil
		}
		return RefreshMsg{}
	}
}

// Close releases any command blocked in Next.
func (r *Refresher) Close() {
	r.closeOnce.Do(r.cancel)
}
