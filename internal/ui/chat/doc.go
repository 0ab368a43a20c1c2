// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea chat screen.

The screen is a thin view over a controller.Controller and an
input.Bridge. Both notify changes from other goroutines through a
Refresher, which coalesces notifications and caps redraws at the configured
frame rate:

	refresher := chat.NewRefresher(cfg.UI.MaxFPS)
	bridge := input.NewBridge(input.Options{..., OnChange: refresher.Signal})
	m, unsubscribe := chat.New(chat.Options{Controller: ctrl, Bridge: bridge, Refresher: refresher})
	defer unsubscribe()

# Key Bindings

	Enter   send the typed text
	Ctrl+R  start or stop listening
	Esc     dismiss the notice
	PgUp    scroll up
	PgDn    scroll down
	Ctrl+C  quit
*/
package chat
