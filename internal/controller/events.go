// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

// EventKind identifies a conversation change.
type EventKind int

const (
	// EventTurnOpened fires after the user turn and the empty assistant
	// turn were appended.
	EventTurnOpened EventKind = iota

	// EventTurnUpdated fires after each cumulative content write.
	EventTurnUpdated

	// EventTurnClosed fires once a reply finished successfully and the
	// in-flight flag is clear.
	EventTurnClosed

	// EventTurnFailed fires once the failure message replaced the open turn
	// and the in-flight flag is clear.
	EventTurnFailed
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventTurnOpened:
		return "turn_opened"
	case EventTurnUpdated:
		return "turn_updated"
	case EventTurnClosed:
		return "turn_closed"
	case EventTurnFailed:
		return "turn_failed"
	default:
		return "unknown"
	}
}

// Event describes one change to the conversation.
type Event struct {
	Kind    EventKind
	Index   int    // store index of the assistant turn
	Content string // assistant turn content after the change
	Err     error  // EventTurnFailed only
}

// Terminal reports whether the event ends an exchange.
func (e Event) Terminal() bool {
	return e.Kind == EventTurnClosed || e.Kind == EventTurnFailed
}
