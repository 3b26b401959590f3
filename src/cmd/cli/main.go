// Command rectcopy-cli extracts the text under a rectangle of a saved HTML
// page, or of a live page loaded in headless Chrome, without the resident.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/spf13/cobra"
	"pkt.systems/psi"
	"pkt.systems/pslog"

	"rectcopy/src/browser"
	"rectcopy/src/clipboard"
	"rectcopy/src/config"
	"rectcopy/src/dom"
	"rectcopy/src/extract"
	"rectcopy/src/geom"
	"rectcopy/src/htmllayout"
	"rectcopy/src/runtimeinit"
	"rectcopy/src/session"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
	urlTimeout    = 60 * time.Second
)

type cliOptions struct {
	htmlPath   string
	url        string
	rect       string
	frame      string
	viewport   string
	scroll     string
	threshold  float64
	jsonOutput bool
	clipboard  bool
	verbose    bool
	envPath    string
}

// Result is the --json output.
type Result struct {
	Text      string             `json:"text"`
	Source    string             `json:"source"`
	Frame     string             `json:"frame"`
	Rect      geom.Rect          `json:"rect"`
	Fragments []extract.Fragment `json:"fragments"`
	Timestamp string             `json:"timestamp"`
	Duration  float64            `json:"duration_seconds"`
	CharCount int                `json:"character_count"`
}

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	if err := runWithArgs(ctx, normalizeLegacyArgs(os.Args), os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runWithArgs(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		args = []string{"rectcopy-cli"}
	}
	opts := &cliOptions{}
	cmd := newRootCmd(opts, stdin, stdout, stderr)
	cmd.SetArgs(args[1:])
	return cmd.ExecuteContext(ctx)
}

func newRootCmd(opts *cliOptions, stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rectcopy-cli",
		Short:         "Extract the text inside a rectangle of a web page",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(cmd.Context(), *opts, stdin, stdout, stderr)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.htmlPath, "html", "", "Path to an HTML file (use '-' for stdin)")
	f.StringVar(&opts.url, "url", "", "URL to load in headless Chrome")
	f.StringVar(&opts.rect, "rect", "", "Selection as LEFT,TOP,WIDTH,HEIGHT in frame viewport pixels")
	f.StringVar(&opts.frame, "frame", dom.MainFrameID, "Frame the rectangle belongs to")
	f.StringVar(&opts.viewport, "viewport", "", "Viewport size as WIDTHxHEIGHT")
	f.StringVar(&opts.scroll, "scroll", "", "Main frame scroll offset as X,Y (--html only)")
	f.Float64Var(&opts.threshold, "threshold", 0, "Line break threshold in pixels")
	f.BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	f.BoolVar(&opts.clipboard, "clipboard", false, "Also copy the text to the system clipboard")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	f.StringVar(&opts.envPath, "env", "", "Path to a .env file")
	_ = cmd.MarkFlagRequired("rect")
	cmd.MarkFlagsMutuallyExclusive("html", "url")
	cmd.MarkFlagsOneRequired("html", "url")
	return cmd
}

func runWithOptions(ctx context.Context, opts cliOptions, stdin io.Reader, stdout, stderr io.Writer) error {
	logWriter := io.Discard
	if opts.verbose {
		logWriter = stderr
	}
	ctx, rt, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions: config.LoadOptions{EnvPathOverride: opts.envPath},
		Verbose:     opts.verbose,
		LogWriter:   logWriter,
		Clipboard:   opts.clipboard,
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logger := rt.Config, rt.Logger
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	sel, err := parseRect(opts.rect)
	if err != nil {
		return err
	}
	vw, vh := float64(cfg.ViewportWidth), float64(cfg.ViewportHeight)
	if opts.viewport != "" {
		if vw, vh, err = parseViewport(opts.viewport); err != nil {
			return err
		}
	}
	var scroll geom.Point
	if opts.scroll != "" {
		if opts.htmlPath == "" {
			return errors.New("--scroll only applies to --html")
		}
		if scroll, err = parsePoint(opts.scroll); err != nil {
			return fmt.Errorf("invalid --scroll: %w", err)
		}
	}

	start := time.Now()
	var (
		page   *dom.Page
		source string
	)
	if opts.htmlPath != "" {
		source = opts.htmlPath
		page, err = loadHTML(opts.htmlPath, stdin, htmllayout.Options{
			ViewportWidth:  vw,
			ViewportHeight: vh,
			Scroll:         scroll,
			CharWidth:      cfg.LayoutCharWidth,
			LineHeight:     cfg.LayoutLineHeight,
			Logger:         logger,
		})
	} else {
		source = opts.url
		page, err = loadURL(ctx, opts.url, cfg, int(vw), int(vh), logger)
	}
	if err != nil {
		return err
	}
	frame := page.Frame(opts.frame)
	if frame == nil {
		return fmt.Errorf("frame %q not found (page has %d frames)", opts.frame, len(page.Frames))
	}
	logger.Debug("page loaded", "source", source, "frames", len(page.Frames), "frame", frame.ID, "leaves", len(frame.Doc.Leaves()))

	threshold := cfg.LineBreakThreshold
	if opts.threshold > 0 {
		threshold = opts.threshold
	}
	engine := extract.New(frame.Doc, extract.Options{
		LineBreakThreshold: threshold,
		CaretEpsilon:       cfg.CaretEpsilon,
		Logger:             logger,
	})

	var targets session.Targets
	if !opts.jsonOutput {
		targets = append(targets, session.StdoutTarget{Writer: stdout})
	}
	if opts.clipboard {
		targets = append(targets, session.ClipboardTarget{Sink: clipboard.System{}})
	}
	res, err := session.Execute(ctx, session.Options{
		Select: session.FixedRect(sel),
		Extract: func(_ context.Context, r geom.Rect) (string, error) {
			return engine.Extract(r)
		},
		Target:      targets,
		MinDragSize: cfg.MinDragSize,
	})
	switch {
	case errors.Is(err, session.ErrNoText) && opts.jsonOutput:
		// an empty area is a result, not a failure
		res = session.Result{Rect: sel}
	case err != nil:
		return err
	case !opts.jsonOutput:
		return nil
	}
	return writeJSON(stdout, Result{
		Text:      res.Text,
		Source:    source,
		Frame:     frame.ID,
		Rect:      res.Rect,
		Fragments: engine.Fragments(res.Rect),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  time.Since(start).Seconds(),
		CharCount: len([]rune(res.Text)),
	})
}

func writeJSON(w io.Writer, result Result) error {
	if err := json.MarshalWrite(w, result, jsontext.WithIndent("  ")); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func loadHTML(path string, stdin io.Reader, opts htmllayout.Options) (*dom.Page, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(io.LimitReader(stdin, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		info, statErr := os.Stat(path)
		if statErr != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, statErr)
		}
		if info.Size() > maxFileSize {
			return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
		}
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, err)
		}
	}
	if len(data) == 0 {
		return nil, errors.New("input file is empty")
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	return htmllayout.ParseString(string(data), opts)
}

func loadURL(ctx context.Context, url string, cfg *config.Config, width, height int, logger pslog.Logger) (*dom.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, urlTimeout)
	defer cancel()
	sess, err := browser.Launch(ctx, browser.Options{
		RemoteURL:      cfg.ChromeRemoteURL,
		Headless:       true,
		ViewportWidth:  width,
		ViewportHeight: height,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	if err := sess.Navigate(ctx, url); err != nil {
		return nil, err
	}
	return sess.Snapshot(ctx)
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma separated numbers, got %q", n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", p)
		}
		out[i] = v
	}
	return out, nil
}

// parseRect parses LEFT,TOP,WIDTH,HEIGHT.
func parseRect(s string) (geom.Rect, error) {
	v, err := parseFloats(s, 4)
	if err != nil {
		return geom.Rect{}, fmt.Errorf("invalid --rect: %w", err)
	}
	if v[2] < 0 || v[3] < 0 {
		return geom.Rect{}, fmt.Errorf("invalid --rect: negative size in %q", s)
	}
	return geom.FromXYWH(v[0], v[1], v[2], v[3]), nil
}

func parsePoint(s string) (geom.Point, error) {
	v, err := parseFloats(s, 2)
	if err != nil {
		return geom.Point{}, err
	}
	return geom.Point{X: v[0], Y: v[1]}, nil
}

// parseViewport parses WIDTHxHEIGHT.
func parseViewport(s string) (float64, float64, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid --viewport %q: expected WIDTHxHEIGHT", s)
	}
	width, err1 := strconv.Atoi(strings.TrimSpace(w))
	height, err2 := strconv.Atoi(strings.TrimSpace(h))
	if err1 != nil || err2 != nil || width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("invalid --viewport %q: expected positive WIDTHxHEIGHT", s)
	}
	return float64(width), float64(height), nil
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	normalized := make([]string, len(args))
	copy(normalized, args)
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"html", "url", "rect", "frame", "viewport", "scroll", "threshold", "json", "clipboard", "verbose", "env"} {
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
