// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the client-scoped session identity.
//
// A session id is generated exactly once, when the Manager is created, and is
// attached unchanged to every request sent to the chat service. It is never
// regenerated for the lifetime of the client and is not part of the rendered
// conversation.
//
// # Key Types
//
//   - Manager: holds the immutable id plus activity bookkeeping
//   - Status: point-in-time snapshot for status bars
//
// # Usage
//
//	mgr := session.NewManager(session.DefaultConfig())
//	req.SessionID = mgr.SessionID()
//	mgr.RecordExchange()
package session
