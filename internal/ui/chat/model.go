// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog"

	"github.com/jeranaias/medibot/internal/controller"
	"github.com/jeranaias/medibot/internal/input"
	"github.com/jeranaias/medibot/internal/ui/styles"
)

const (
	placeholderIdle      = "Type a message, or press Ctrl+R to speak"
	placeholderListening = "Listening... press Ctrl+R to stop"

	// header, notice, input box (3) and status bar
	chromeHeight = 6
)

// =============================================================================
// MODEL
// =============================================================================

// Options configures the chat screen.
type Options struct {
	Controller *controller.Controller
	Bridge     *input.Bridge

	// Refresher must be the one whose Signal the bridge's OnChange calls.
	Refresher *Refresher

	Theme    *styles.Theme
	Markdown bool

	// Context bounds every reply and listening session started here.
	Context context.Context
	Logger  zerolog.Logger
}

// Model is the Bubble Tea model for the chat screen. It owns no
// conversation state: every refresh re-reads the controller and bridge.
type Model struct {
	ctx     context.Context
	ctrl    *controller.Controller
	bridge  *input.Bridge
	refresh *Refresher
	theme   *styles.Theme
	keys    KeyMap
	log     zerolog.Logger

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	markdown bool
	renderer *glamour.TermRenderer
	cache    map[int]renderedTurn

	width    int
	height   int
	ready    bool
	spinning bool
	quitting bool
}

type renderedTurn struct {
	content string
	out     string
}

// New creates the chat screen and subscribes it to controller events.
// The returned unsubscribe func should be called once the program exits.
func New(opts Options) (Model, func()) {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme()
	}
	if opts.Refresher == nil {
		opts.Refresher = NewRefresher(DefaultMaxFPS)
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = opts.Theme.InputPrompt
	ti.Placeholder = placeholderIdle
	ti.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(opts.Theme.Spinner),
	)

	m := Model{
		ctx:      opts.Context,
		ctrl:     opts.Controller,
		bridge:   opts.Bridge,
		refresh:  opts.Refresher,
		theme:    opts.Theme,
		keys:     DefaultKeyMap(),
		log:      opts.Logger.With().Str("component", "ui").Logger(),
		input:    ti,
		spinner:  sp,
		markdown: opts.Markdown,
		cache:    make(map[int]renderedTurn),
	}

	// Subscribers run on the streaming goroutine and must not block.
	refresh := opts.Refresher
	unsubscribe := opts.Controller.Subscribe(func(controller.Event) {
		refresh.Signal()
	})
	return m, unsubscribe
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the cursor blink and the refresh loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.refresh.Next())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case RefreshMsg:
		m.sync()
		spin := m.startSpinner()
		return m, tea.Batch(m.refresh.Next(), spin)

	case spinner.TickMsg:
		if !m.spinning || !m.ctrl.InFlight() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.sync()
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

// =============================================================================
// HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	vpHeight := msg.Height - chromeHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}
	m.input.Width = msg.Width - 6

	if m.markdown {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.theme.GlamourStyle()),
			glamour.WithWordWrap(m.contentWidth()),
		)
		if err != nil {
			m.log.Warn().Err(err).Msg("Markdown renderer unavailable, using plain text")
			r = nil
		}
		m.renderer = r
	}
	clear(m.cache)

	m.sync()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.refresh.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit):
		if m.bridge.SubmitBuffer(m.ctx) {
			m.input.SetValue("")
		}
		m.sync()
		spin := m.startSpinner()
		return m, spin

	case key.Matches(msg, m.keys.Mic):
		state := m.bridge.ToggleListening(m.ctx)
		m.log.Debug().Str("state", state.String()).Msg("Microphone toggled")
		m.sync()
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		m.bridge.DismissNotice()
		m.sync()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != m.bridge.Buffer() {
		m.bridge.SetBuffer(v)
	}
	return m, cmd
}

func (m *Model) startSpinner() tea.Cmd {
	if m.spinning || !m.ctrl.InFlight() {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

// sync copies bridge and conversation state into the widgets.
func (m *Model) sync() {
	if buf := m.bridge.Buffer(); buf != m.input.Value() {
		m.input.SetValue(buf)
		m.input.CursorEnd()
	}
	if m.bridge.State() == input.StateListening {
		m.input.Placeholder = placeholderListening
	} else {
		m.input.Placeholder = placeholderIdle
	}

	if !m.ready {
		return
	}
	follow := m.viewport.AtBottom() || m.ctrl.InFlight()
	m.viewport.SetContent(m.renderTranscript())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) contentWidth() int {
	w := m.width - 4
	if w < 10 {
		w = 10
	}
	return w
}
