// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"sync"
)

// Store errors.
var (
	ErrAlreadyInitialized = errors.New("conversation already initialized")
	ErrNotInitialized     = errors.New("conversation not initialized")
	ErrTurnOpen           = errors.New("an assistant turn is already open")
	ErrNoOpenTurn         = errors.New("no open assistant turn")
	ErrStaleHandle        = errors.New("turn handle no longer refers to the open turn")
	ErrEmptyContent       = errors.New("turn content must not be empty")
)

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// Store is the ordered, append-only sequence of turns.
//
// Invariants:
//   - turns are never reordered or removed
//   - at most one open (empty-content assistant) turn exists, and it is last
//   - only the open turn's content is ever replaced; closed turns are frozen
//
// The Store is safe for concurrent use; each operation is atomic with respect
// to the others.
type Store struct {
	mu          sync.RWMutex
	turns       []Turn
	initialized bool

	open    bool
	openSeq uint64 // incremented by every BeginTurn
}

// NewStore creates an empty, uninitialized store.
func NewStore() *Store {
	return &Store{turns: make([]Turn, 0, 16)}
}

// Initialize seeds the store with exactly one assistant turn holding the
// greeting. It must run once, before any user interaction.
func (s *Store) Initialize(greeting string) error {
	if greeting == "" {
		return ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return ErrAlreadyInitialized
	}
	s.turns = append(s.turns, Turn{Role: RoleAssistant, Content: greeting})
	s.initialized = true
	return nil
}

// BeginTurn appends the user turn and an empty assistant placeholder, and
// returns a handle to the placeholder. It fails with ErrTurnOpen while a
// previous turn is still open.
func (s *Store) BeginTurn(userText string) (TurnHandle, error) {
	if userText == "" {
		return TurnHandle{}, ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return TurnHandle{}, ErrNotInitialized
	}
	if s.open {
		return TurnHandle{}, ErrTurnOpen
	}

	s.turns = append(s.turns,
		Turn{Role: RoleUser, Content: userText},
		Turn{Role: RoleAssistant},
	)
	s.open = true
	s.openSeq++

	return TurnHandle{index: len(s.turns) - 1, seq: s.openSeq}, nil
}

// UpdateOpenTurn replaces the open turn's content with the cumulative text
// received so far. Each call carries the full value, so replaying the same
// cumulative string leaves the turn unchanged.
func (s *Store) UpdateOpenTurn(h TurnHandle, cumulative string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandleLocked(h); err != nil {
		return err
	}
	s.turns[h.index].Content = cumulative
	return nil
}

// CloseOpenTurn finalizes the open turn with its current content. A turn
// that never received content cannot be closed; fail it instead.
func (s *Store) CloseOpenTurn(h TurnHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandleLocked(h); err != nil {
		return err
	}
	if s.turns[h.index].Content == "" {
		return ErrEmptyContent
	}
	s.open = false
	return nil
}

// FailOpenTurn replaces whatever partial content the open turn had with
// message and closes it. The failure becomes a permanent history entry.
func (s *Store) FailOpenTurn(h TurnHandle, message string) error {
	if message == "" {
		return ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandleLocked(h); err != nil {
		return err
	}
	s.turns[h.index].Content = message
	s.turns[h.index].Failed = true
	s.open = false
	return nil
}

func (s *Store) checkHandleLocked(h TurnHandle) error {
	if !s.open {
		return ErrNoOpenTurn
	}
	if h.seq != s.openSeq || h.index != len(s.turns)-1 {
		return ErrStaleHandle
	}
	return nil
}

// =============================================================================
// VIEWS
// =============================================================================

// Render returns a copy of the turns in display order, leaving out any turn
// whose content is still empty (the open placeholder before its first byte).
func (s *Store) Render() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Turn, 0, len(s.turns))
	for _, t := range s.turns {
		if t.IsPlaceholder() {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Turns returns a copy of every turn, including an empty placeholder.
func (s *Store) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns, including an open placeholder.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// HasOpenTurn reports whether an assistant turn is currently open.
func (s *Store) HasOpenTurn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

// Last returns the most recent turn, or false if the store is empty.
func (s *Store) Last() (Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}
