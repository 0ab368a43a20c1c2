// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/medibot/internal/controller"
)

// errNoQuestion is returned when ask has nothing to send.
var errNoQuestion = errors.New("no question given")

func newAskCommand(opts *rootOptions) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question",
		Long: `Send one question and stream the answer to stdout.

The question is read from stdin when no arguments are given. The exit
status is 1 when the reply fails.`,
		Example: `  medibot ask "What are common symptoms of the flu?"
  echo "How much water should I drink?" | medibot ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := readQuestion(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := newApp(opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			render := !raw && a.cfg.UI.Markdown && IsStdoutTTY()
			return runAsk(ctx, a, question, cmd.OutOrStdout(), render)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the reply as it streams, without markdown rendering")
	return cmd
}

// readQuestion joins the arguments, or reads piped stdin when there are none.
func readQuestion(args []string, stdin io.Reader) (string, error) {
	question := strings.Join(args, " ")
	if strings.TrimSpace(question) == "" && !IsTTY() {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", errors.Wrap(err, "read question from stdin")
		}
		question = string(data)
	}
	if strings.TrimSpace(question) == "" {
		return "", errNoQuestion
	}
	return question, nil
}

// runAsk sends one question. With render the reply is printed once, as
// markdown; otherwise it streams as it arrives.
func runAsk(ctx context.Context, a *app, question string, w io.Writer, render bool) error {
	var (
		failed error
		final  string
	)
	unsubscribe := a.ctrl.Subscribe(func(ev controller.Event) {
		switch ev.Kind {
		case controller.EventTurnClosed:
			final = ev.Content
		case controller.EventTurnFailed:
			failed = ev.Err
			final = ev.Content
		}
	})
	defer unsubscribe()

	if !render {
		printer := newDeltaPrinter(w, newPalette(w, GetColorProfile()), false)
		unsubscribePrinter := a.ctrl.Subscribe(printer.handle)
		defer unsubscribePrinter()
	}

	// Submit streams on this goroutine, so the subscribers above have run
	// by the time it returns.
	if !a.ctrl.Submit(ctx, question) {
		return errNoQuestion
	}

	if render {
		fmt.Fprint(w, renderMarkdown(final, GetTerminalWidth()))
	}
	if failed != nil {
		return errors.Wrap(failed, "reply failed")
	}
	return nil
}

// renderMarkdown renders content for the terminal, or returns it unchanged
// when rendering fails.
func renderMarkdown(content string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content + "\n"
	}
	out, err := r.Render(content)
	if err != nil {
		return content + "\n"
	}
	return out
}
