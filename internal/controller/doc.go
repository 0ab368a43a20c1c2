// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package controller owns the conversation state for one client lifetime
// and runs the send protocol.
//
// A Controller holds the conversation store, the session identity and the
// in-flight flag. Every submission goes through the same guard: empty or
// whitespace-only text is ignored, and so is anything submitted while a
// previous reply is still streaming. There is no queue.
//
// Transport and decode failures never escape as faults. They replace the
// open assistant turn with the configured failure message, which then stays
// in history like any other reply.
//
// # Key Types
//
//   - Controller: state owner; Submit, Render, InFlight, SessionID
//   - Exchange: an accepted submission whose reply has not been streamed yet
//   - Event: change notification for presentation layers
//   - Opener: the streaming transport (implemented by *stream.Client)
//
// # Usage
//
//	ctrl := controller.New(controller.Options{
//	    Client: stream.NewClient(stream.DefaultConfig()),
//	    Logger: logger,
//	})
//	ctrl.Subscribe(func(ev controller.Event) { redraw(ctrl.Render()) })
//	ctrl.Submit(ctx, "Hello")
package controller
