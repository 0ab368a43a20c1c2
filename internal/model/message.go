// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Medibot"
	default:
		return string(r)
	}
}

// =============================================================================
// TURN TYPE
// =============================================================================

// Turn is one message in the conversation. Content is empty only for the
// assistant turn that is currently streaming. Failed marks an assistant
// turn whose reply was replaced by the failure message.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Failed  bool   `json:"failed,omitempty"`
}

// IsPlaceholder reports whether the turn has no visible content yet.
func (t Turn) IsPlaceholder() bool {
	return t.Content == ""
}

// TurnHandle references the open assistant turn. It is only valid until the
// turn is closed or failed; after that every mutation through it is rejected.
type TurnHandle struct {
	index int
	seq   uint64
}

// Index returns the position of the referenced turn in the store.
func (h TurnHandle) Index() int {
	return h.index
}
