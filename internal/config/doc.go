// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for medibot.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, validation and live reload.
//
// # Key Types
//
//   - Config: main configuration structure with all settings
//   - ServerConfig: chat endpoint and timeout policy
//   - ChatConfig: greeting, failure message, session id prefix
//   - SpeechConfig: speech-to-text command and recognition parameters
//   - Duration: time.Duration that reads and writes as "30s"
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (MEDIBOT_*)
//   - --config PATH, or ~/.medibot/config.toml, or ~/.medibot/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Server.URL, cfg.Server.IdleTimeout)
//
// Watch for edits:
//
//	go config.Watch(ctx, path, func(cfg *config.Config) {
//	    logging.SetLevel(cfg.Log.Level)
//	}, nil)
package config
