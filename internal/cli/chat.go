// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/medibot/internal/config"
	"github.com/jeranaias/medibot/internal/ui/chat"
	"github.com/jeranaias/medibot/internal/ui/styles"
)

func newChatCommand(opts *rootOptions) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session.

The full-screen interface is used when stdin and stdout are terminals;
otherwise, or with --plain, a line-mode session with history is started.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), opts, plain)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "use line mode instead of the full-screen interface")
	return cmd
}

func runChat(ctx context.Context, opts *rootOptions, plain bool) error {
	if !plain && !CanRunTUI() {
		plain = true
	}

	a, err := newApp(opts, plain)
	if err != nil {
		return err
	}
	defer a.Close()

	if plain {
		return runPlain(ctx, a, os.Stdout)
	}
	return runTUI(ctx, a)
}

// =============================================================================
// FULL-SCREEN MODE
// =============================================================================

// runTUI runs the chat screen alongside the config watcher. Leaving the
// screen cancels the watcher and any reply still streaming.
func runTUI(ctx context.Context, a *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	refresher := chat.NewRefresher(a.cfg.UI.MaxFPS)
	defer refresher.Close()

	bridge := a.newBridge(refresher.Signal)
	m, unsubscribe := chat.New(chat.Options{
		Controller: a.ctrl,
		Bridge:     bridge,
		Refresher:  refresher,
		Theme:      styles.NewTheme(),
		Markdown:   a.cfg.UI.Markdown,
		Context:    ctx,
		Logger:     a.log,
	})
	defer unsubscribe()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		_, err := p.Run()
		return errors.Wrap(err, "chat screen")
	})
	g.Go(func() error {
		<-gctx.Done()
		p.Quit()
		return nil
	})
	if a.configPath != "" {
		g.Go(func() error {
			err := config.Watch(gctx, a.configPath, a.applyConfig, func(err error) {
				a.log.Warn().Err(err).Msg("Config reload failed")
			})
			if err != nil {
				a.log.Warn().Err(err).Msg("Config watcher stopped")
			}
			return nil
		})
	}

	err := g.Wait()
	bridge.Wait()

	status := a.ctrl.Session().GetStatus()
	a.log.Info().
		Int("exchanges", status.Exchanges).
		Dur("duration", status.Duration).
		Msg("Chat ended")
	return err
}
