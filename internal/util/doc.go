// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across medibot.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writing with fsync, used for config files
//   - TruncateRunes: UTF-8 safe truncation with ellipsis, used for log previews
//   - TruncateWidth: display-width truncation for terminal notices
//   - Preview: single-line, bounded preview of user text for logs
//
// # Usage
//
//	// Never log a whole prompt
//	log.Debug().Str("prompt", util.Preview(prompt, 40)).Msg("submit")
//
//	// Write files atomically to prevent data loss
//	err := util.AtomicWriteFile(path, data, 0600)
package util
