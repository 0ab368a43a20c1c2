// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/medibot/internal/input"
	"github.com/jeranaias/medibot/internal/model"
	"github.com/jeranaias/medibot/internal/session"
	"github.com/jeranaias/medibot/internal/ui/styles"
	"github.com/jeranaias/medibot/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Starting..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderNotice(),
		m.theme.InputContainer.Width(m.width-2).Render(m.input.View()),
		m.renderStatusBar(),
	)
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("Medibot")
	return m.theme.Header.Width(m.width).Render(title)
}

func (m Model) renderNotice() string {
	notice := m.bridge.Notice()
	if notice == "" {
		return ""
	}
	text := util.TruncateWidth(styles.StatusIndicators.Notice+" "+notice, m.width-1)
	return m.theme.Notice.Render(text)
}

func (m Model) renderStatusBar() string {
	var state string
	switch {
	case m.bridge.State() == input.StateListening:
		state = m.theme.StatusListening.Render(styles.StatusIndicators.Listening + " Listening")
	case m.ctrl.InFlight():
		state = m.theme.StatusWaiting.Render(styles.StatusIndicators.Waiting + " Replying")
	default:
		state = m.theme.StatusReady.Render(styles.StatusIndicators.Ready + " Ready")
	}

	parts := []string{state, m.theme.Muted.Render(session.FormatDuration(m.ctrl.Session().Duration()))}
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		if h.Key == m.keys.Mic.Help().Key && !m.bridge.SpeechAvailable() {
			continue
		}
		parts = append(parts, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}
	return m.theme.StatusBar.Width(m.width).MaxHeight(1).Render(strings.Join(parts, "  "))
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders every visible turn, plus a typing indicator
// while the reply has no text yet.
func (m Model) renderTranscript() string {
	turns := m.ctrl.Render()
	width := m.contentWidth()

	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.renderTurn(i, t, width))
		sb.WriteString("\n")
	}

	if m.ctrl.InFlight() && (len(turns) == 0 || turns[len(turns)-1].Role == model.RoleUser) {
		sb.WriteString("\n")
		sb.WriteString(m.spinner.View() + m.theme.Muted.Render(" Medibot is replying..."))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderTurn(i int, t model.Turn, width int) string {
	if t.Role == model.RoleUser {
		label := m.theme.UserLabel.Render(t.Role.DisplayName())
		return label + "\n" + m.theme.UserBubble.Width(width).Render(t.Content)
	}

	label := m.theme.AssistantLabel.Render(t.Role.DisplayName())
	bubble := m.theme.AssistantBubble
	if t.Failed {
		bubble = m.theme.FailedBubble
	}
	return label + "\n" + bubble.Width(width).Render(m.renderBody(i, t.Content))
}

// renderBody renders assistant text as markdown when enabled. Output is
// cached per turn index until the content changes.
func (m Model) renderBody(i int, content string) string {
	if m.renderer == nil {
		return content
	}
	if c, ok := m.cache[i]; ok && c.content == content {
		return c.out
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	out = strings.Trim(out, "\n")
	m.cache[i] = renderedTurn{content: content, out: out}
	return out
}
