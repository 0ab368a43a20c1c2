// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the conversation store and its turns.
//
// The Store is the single source of truth for what is displayed. It is an
// ordered, append-only sequence of turns; the only in-place mutation allowed
// is replacing the content of the open assistant turn, which is always the
// last element.
//
// # Key Types
//
//   - Turn: one message, authored by the user or the assistant
//   - Role: user or assistant
//   - Store: the ordered turn sequence plus the open-turn bookkeeping
//   - TurnHandle: reference to the open assistant turn returned by BeginTurn
//
// # Usage
//
//	store := model.NewStore()
//	store.Initialize("Hello! How can I help you today?")
//
//	h, err := store.BeginTurn("Hello")
//	store.UpdateOpenTurn(h, "Hi")
//	store.UpdateOpenTurn(h, "Hi there")
//	store.CloseOpenTurn(h)
//
//	for _, turn := range store.Render() {
//	    fmt.Printf("%s: %s\n", turn.Role.DisplayName(), turn.Content)
//	}
package model
