// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "time"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ChatRequest is the body of a chat request.
type ChatRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
}

// =============================================================================
// STREAM STATISTICS
// =============================================================================

// Stats describes a reply stream as observed by the Reader.
type Stats struct {
	Bytes     int64         // raw bytes received
	Reads     int           // network reads that returned data
	Chunks    int           // non-empty text chunks delivered
	FirstByte time.Duration // time from Open to the first received byte
	Elapsed   time.Duration // time from Open to the last received byte
}

// BytesPerSecond returns the receive rate over the stream's lifetime.
func (s Stats) BytesPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Bytes) / s.Elapsed.Seconds()
}
