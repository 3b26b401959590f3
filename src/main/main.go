// Command rectcopy is the resident: it opens a browser tab, listens for
// the selection hotkey and mouse, and copies the text under every
// rectangle dragged over the page.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"pkt.systems/psi"
	"pkt.systems/pslog"

	"rectcopy/src/browser"
	"rectcopy/src/clipboard"
	"rectcopy/src/config"
	"rectcopy/src/eventloop"
	"rectcopy/src/input"
	"rectcopy/src/runtimeinit"
	"rectcopy/src/screenshot"
	"rectcopy/src/singleinstance"
	"rectcopy/src/tray"
)

type mainOptions struct {
	url      string
	envPath  string
	headless bool
	verbose  bool
	toggle   bool
	on       bool
	off      bool
	status   bool
}

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	opts := &mainOptions{}
	root := newRootCmd(opts, os.Stdout)
	root.SetArgs(normalizeLegacyArgs(os.Args)[1:])
	if err := root.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("rectcopy failed")
		return 1
	}
	return 0
}

func newRootCmd(opts *mainOptions, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rectcopy",
		Short:         "Copy the text under a rectangle dragged over a web page",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := opts.action()
			if err != nil {
				return err
			}
			if action != "" {
				return delegate(cmd.Context(), singleinstance.NewClient(), action, stdout)
			}
			return runResident(cmd.Context(), *opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.url, "url", "", "Page to open (defaults to START_URL)")
	f.StringVar(&opts.envPath, "env", "", "Path to a .env file")
	f.BoolVar(&opts.headless, "headless", false, "Run Chrome headless")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")
	f.BoolVar(&opts.toggle, "toggle", false, "Toggle selection on the running resident")
	f.BoolVar(&opts.on, "on", false, "Enable selection on the running resident")
	f.BoolVar(&opts.off, "off", false, "Disable selection on the running resident")
	f.BoolVar(&opts.status, "status", false, "Print whether selection is enabled on the running resident")
	cmd.MarkFlagsMutuallyExclusive("toggle", "on", "off", "status")
	return cmd
}

// action returns the resident action requested on the command line, or ""
// to run the resident itself.
func (o mainOptions) action() (singleinstance.Action, error) {
	var actions []singleinstance.Action
	if o.toggle {
		actions = append(actions, singleinstance.ActionToggle)
	}
	if o.on {
		actions = append(actions, singleinstance.ActionOn)
	}
	if o.off {
		actions = append(actions, singleinstance.ActionOff)
	}
	if o.status {
		actions = append(actions, singleinstance.ActionStatus)
	}
	switch len(actions) {
	case 0:
		return "", nil
	case 1:
		return actions[0], nil
	default:
		return "", fmt.Errorf("only one of --toggle, --on, --off, --status may be given")
	}
}

var errNoResident = errors.New("no running rectcopy found")

func delegate(ctx context.Context, client singleinstance.Client, action singleinstance.Action, stdout io.Writer) error {
	delegated, status, err := client.Send(ctx, action)
	if err != nil {
		return fmt.Errorf("%s: %w", strings.ToLower(string(action)), err)
	}
	if !delegated {
		return errNoResident
	}
	pslog.Ctx(ctx).Debug("delegated", "action", string(action), "status", status)
	_, err = fmt.Fprintln(stdout, status)
	return err
}

// normalizeLegacyArgs maps single-dash long flags to their double-dash form.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return []string{"rectcopy"}
	}
	normalized := make([]string, len(args))
	copy(normalized, args)
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"url", "env", "headless", "verbose", "toggle", "on", "off", "status"} {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "-" + arg
			}
		}
	}
	return normalized
}

func runResident(ctx context.Context, opts mainOptions) error {
	enableDPIAwareness(pslog.Ctx(ctx))

	loadOpts := config.LoadOptions{EnvPathOverride: opts.envPath, StartURLOverride: opts.url}
	if opts.headless {
		loadOpts.HeadlessOverride = &opts.headless
	}
	ctx, rt, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions: loadOpts,
		Verbose:     opts.verbose,
		Clipboard:   true,
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logger := rt.Config, rt.Logger
	logMonitorConfiguration(logger)

	if port, running := singleinstance.DetectResidentPort(ctx); running {
		return fmt.Errorf("rectcopy is already running on port %d", port)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess, err := browser.Launch(ctx, browser.Options{
		RemoteURL:      cfg.ChromeRemoteURL,
		Headless:       cfg.Headless,
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := sess.Navigate(ctx, cfg.StartURL); err != nil {
		return err
	}

	hook, err := input.NewHook(cfg.Hotkey, logger)
	if err != nil {
		return err
	}
	var recorder *screenshot.Recorder
	if cfg.DebugCaptureDir != "" {
		recorder = screenshot.NewRecorder(cfg.DebugCaptureDir, logger)
		logger.Info("saving selection captures", "dir", cfg.DebugCaptureDir)
	}

	tr := tray.New(logger)
	events := make(chan input.Event, 64)
	loop, err := eventloop.New(eventloop.Options{
		Config:    cfg,
		Browser:   eventloop.FromSession(sess),
		Events:    events,
		Toggles:   tr.Toggles(),
		Indicator: tr,
		Server:    singleinstance.NewServer(),
		Sink:      clipboard.System{},
		Recorder:  recorder,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	go tr.Run(func() { logger.Debug("tray shown") })
	defer tr.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-tr.Quit():
			cancel()
		case <-gctx.Done():
		}
		return nil
	})
	g.Go(func() error {
		err := hook.Run(gctx, events)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer cancel()
		return loop.Run(gctx)
	})
	logger.Info("rectcopy ready", "url", cfg.StartURL, "hotkey", cfg.Hotkey)
	return g.Wait()
}
