// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package speech defines the speech-to-text capability consumed by the input
// bridge, plus a recognizer backed by an external command.
//
// A listening session is single-shot: it emits EventStarted and then exactly
// one terminal event (EventResult, EventError or EventEnded) before its
// event channel is closed.
//
// # Key Types
//
//   - Recognizer: capability check and session start
//   - Session: one listening session and its event stream
//   - Event: started, result(transcript), error(reason) or ended
//   - CommandRecognizer: runs a speech-to-text program and reads its stdout
//   - Unsupported: recognizer for systems without the capability
//
// # Usage
//
//	rec := speech.New(speech.Config{Enabled: true, Command: "whisper-listen"})
//	if !rec.Available() {
//	    return speech.ErrUnsupported
//	}
//	sess, err := rec.Start(ctx, speech.DefaultOptions())
//	for ev := range sess.Events() {
//	    if ev.Kind == speech.EventResult {
//	        fmt.Println(ev.Transcript)
//	    }
//	}
package speech
