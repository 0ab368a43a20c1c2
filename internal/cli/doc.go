// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package cli provides the medibot command-line interface.

# Commands

	medibot                      Same as "medibot chat"
	medibot chat                 Full-screen chat (line mode when not a terminal)
	medibot chat --plain         Line-mode chat with history
	medibot ask "question"       Stream one answer to stdout
	medibot config init          Write a default config file
	medibot config show          Print the effective configuration
	medibot config get KEY       Print one setting, e.g. server.url
	medibot config set KEY VAL   Change one setting in the config file
	medibot version              Print version information

# Global Flags

	--config PATH      Config file (default ~/.medibot/config.toml)
	--log-level LEVEL  debug, info, warn or error
	--debug            Also log to stderr in line modes

# Line-Mode Commands

	/mic    Listen for one spoken message (Ctrl+C stops)
	/quit   Exit
*/
package cli
