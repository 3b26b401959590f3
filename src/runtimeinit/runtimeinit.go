// Package runtimeinit is the shared startup of the resident and the CLI.
package runtimeinit

import (
	"context"
	"fmt"
	"io"

	"pkt.systems/pslog"

	"rectcopy/src/clipboard"
	"rectcopy/src/config"
	"rectcopy/src/logutil"
)

type Options struct {
	LoadOptions config.LoadOptions
	Verbose     bool
	// LogWriter is the console log destination, stderr when nil.
	LogWriter io.Writer
	// Clipboard initialises the system clipboard.
	Clipboard bool
}

// Runtime is what Bootstrap prepared. Close releases the log file.
type Runtime struct {
	Config *config.Config
	Logger pslog.Logger
	closer io.Closer
}

func (r *Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Bootstrap loads the configuration, sets up logging and initialises the
// clipboard. The returned context carries the logger.
func Bootstrap(ctx context.Context, opts Options) (context.Context, *Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return ctx, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, closer, err := logutil.Setup(ctx, logutil.Options{
		FileLogging: cfg.EnableFileLogging,
		Path:        cfg.LogFile,
		Verbose:     opts.Verbose,
		Writer:      opts.LogWriter,
	})
	if err != nil {
		return ctx, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	rt := &Runtime{Config: cfg, Logger: pslog.Ctx(ctx), closer: closer}

	if opts.Clipboard {
		if err := clipboard.Init(); err != nil {
			_ = rt.Close()
			return ctx, nil, fmt.Errorf("failed to initialize clipboard: %w", err)
		}
	}
	rt.Logger.Debug("runtime ready",
		"file_logging", cfg.EnableFileLogging,
		"hotkey", cfg.Hotkey,
		"line_break_threshold", cfg.LineBreakThreshold,
		"min_drag", cfg.MinDragSize,
	)
	return ctx, rt, nil
}
