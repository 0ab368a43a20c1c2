// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream provides the HTTP client for the chat endpoint.
//
// A chat request is a single POST carrying the prompt and the session id.
// The reply body is raw UTF-8 text with no framing; it is delivered as a
// lazy sequence of decoded text chunks. Multi-byte characters that straddle
// a network read are held back until they are complete, so every chunk is
// valid text.
//
// # Key Types
//
//   - Client: opens streaming chat requests
//   - ChatRequest: the JSON request body
//   - Reader: pull-based access to the decoded reply chunks
//   - Decoder: stateful incremental UTF-8 decoder
//   - ClientError: categorized failure (transport, status, decode, stall, cancel)
//
// # Usage
//
//	client := stream.NewClient(stream.DefaultConfig())
//	reader, err := client.Open(ctx, stream.ChatRequest{
//	    Prompt:    "Hello",
//	    SessionID: "session_1234",
//	})
//	if err != nil {
//	    return err
//	}
//	defer reader.Close()
//
//	for chunk, err := range reader.Chunks() {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(chunk)
//	}
//
// # Timeouts
//
// ConnectTimeout bounds the time until response headers arrive. IdleTimeout
// is a stall watchdog reset on every received read; when it fires the
// stream fails with ErrTypeStalled. A zero IdleTimeout disables it.
package stream
