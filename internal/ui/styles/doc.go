// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling for the medibot chat screen.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. Status colors are always paired with an ASCII indicator from
StatusIndicators.

	theme := styles.NewTheme()
	label := theme.AssistantLabel.Render("Medibot")
*/
package styles
