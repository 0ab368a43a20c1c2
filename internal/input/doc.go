// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package input merges typed text and speech transcripts into one submit
// action.
//
// The Bridge owns the pending input buffer, the speech state machine and
// the ephemeral input notice. Input-side failures (no speech capability, a
// recognition error) only ever set the notice; they never touch the
// conversation.
//
// Speech state machine:
//
//	Idle --toggle--> Listening          (refused while a reply is in flight;
//	                                     no capability: notice, stay Idle)
//	Listening --result(t)--> Idle       submit(t), buffer bypassed
//	Listening --error(r)--> Idle        notice r
//	Listening --ended--> Idle           nothing submitted
//	Listening --toggle--> Idle          session stopped, no notice
//
// Entering Listening clears the typed buffer.
//
// # Key Types
//
//   - Bridge: buffer editing, SubmitBuffer, ToggleListening, Notice
//   - State: Idle or Listening
//   - Conversation: the submission target (implemented by *controller.Controller)
package input
