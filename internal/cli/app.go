// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jeranaias/medibot/internal/config"
	"github.com/jeranaias/medibot/internal/controller"
	"github.com/jeranaias/medibot/internal/input"
	"github.com/jeranaias/medibot/internal/logging"
	"github.com/jeranaias/medibot/internal/speech"
	"github.com/jeranaias/medibot/internal/stream"
)

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// app holds the components shared by the chat and ask commands.
type app struct {
	cfg        *config.Config
	configPath string // "" when running on built-in defaults
	levelFlag  bool   // --log-level given; file changes must not override it

	log    zerolog.Logger
	closer io.Closer

	client *stream.Client
	ctrl   *controller.Controller
	rec    speech.Recognizer
}

// loadConfig reads the --config file, or the default file when present.
func loadConfig(opts *rootOptions) (*config.Config, string, error) {
	path := opts.configPath
	if path == "" {
		path = config.ResolvePath()
	}

	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, "", err
	}

	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	return cfg, path, nil
}

// newApp loads configuration, sets up logging and builds the controller.
// console adds a stderr log writer when --debug is set.
func newApp(opts *rootOptions, console bool) (*app, error) {
	cfg, path, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logFile := cfg.Log.File
	if logFile == "" {
		if p, err := config.DefaultLogPath(); err == nil {
			logFile = p
		}
	}
	var consoleOut io.Writer
	if console && opts.debug {
		consoleOut = os.Stderr
	}
	logger, closer, err := logging.Setup(logging.Options{
		Level:   cfg.Log.Level,
		File:    logFile,
		Console: consoleOut,
	})
	if err != nil {
		return nil, errors.Wrap(err, "set up logging")
	}

	client := stream.NewClient(clientConfig(cfg))
	a := &app{
		cfg:        cfg,
		configPath: path,
		levelFlag:  opts.logLevel != "",
		log:        logger,
		closer:     closer,
		client:     client,
		ctrl:       controller.New(controllerOptions(cfg, client, logger)),
		rec:        speech.New(speechConfig(cfg, logger)),
	}

	a.log.Info().
		Str("endpoint", client.Endpoint()).
		Str("session_id", a.ctrl.SessionID()).
		Bool("speech", a.rec.Available()).
		Msg("Medibot started")
	return a, nil
}

// newBridge creates the input bridge for this app.
func (a *app) newBridge(onChange func()) *input.Bridge {
	return input.NewBridge(input.Options{
		Conversation: a.ctrl,
		Recognizer:   a.rec,
		Speech:       speechOptions(a.cfg),
		OnChange:     onChange,
		Logger:       a.log,
	})
}

// applyConfig is called when the config file changes on disk. Only the log
// level takes effect without a restart.
func (a *app) applyConfig(cfg *config.Config) {
	if !a.levelFlag {
		if err := logging.SetLevel(cfg.Log.Level); err != nil {
			a.log.Warn().Err(err).Msg("Ignoring log level from reloaded config")
		}
	}
	a.log.Info().Str("path", a.configPath).Msg("Config reloaded")
}

// Close releases network connections and the log file.
func (a *app) Close() error {
	a.client.CloseIdleConnections()
	return a.closer.Close()
}

// -----------------------------------------------------------------------------
// Config mapping
// -----------------------------------------------------------------------------

func clientConfig(cfg *config.Config) *stream.ClientConfig {
	c := stream.DefaultConfig()
	c.BaseURL = cfg.Server.URL
	c.ChatPath = cfg.Server.ChatPath
	c.ConnectTimeout = cfg.Server.ConnectTimeout.D()
	c.IdleTimeout = cfg.Server.IdleTimeout.D()
	c.StrictUTF8 = cfg.Server.StrictUTF8
	return c
}

func controllerOptions(cfg *config.Config, client *stream.Client, logger zerolog.Logger) controller.Options {
	return controller.Options{
		Client:         client,
		Greeting:       cfg.Chat.Greeting,
		FailureMessage: cfg.Chat.FailureMessage,
		SessionPrefix:  cfg.Chat.SessionPrefix,
		Logger:         logger,
	}
}

func speechConfig(cfg *config.Config, logger zerolog.Logger) speech.Config {
	return speech.Config{
		Enabled: cfg.Speech.Enabled,
		Command: cfg.Speech.Command,
		Args:    cfg.Speech.Args,
		Logger:  logger,
	}
}

func speechOptions(cfg *config.Config) speech.Options {
	opts := speech.DefaultOptions()
	if cfg.Speech.Language != "" {
		opts.Language = cfg.Speech.Language
	}
	opts.MaxDuration = cfg.Speech.MaxDuration.D()
	return opts
}
