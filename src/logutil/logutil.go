// Package logutil builds the process logger: a console logger on stderr, or
// a structured log in a size-rotated file when file logging is enabled.
package logutil

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"pkt.systems/pslog"
)

const (
	DefaultLogFile = "rectcopy_debug.log"
	maxSizeBytes   = 10 * 1024 * 1024 // 10 MB
	maxArchives    = 3
)

// Options selects the log destination.
type Options struct {
	FileLogging bool
	Path        string // defaults to DefaultLogFile
	Verbose     bool
	Writer      io.Writer // console destination, defaults to os.Stderr
}

// New returns a logger for opts. The closer releases the log file, if any.
func New(opts Options) (pslog.Logger, io.Closer, error) {
	level := pslog.InfoLevel
	if opts.Verbose {
		level = pslog.DebugLevel
	}
	if !opts.FileLogging {
		w := opts.Writer
		if w == nil {
			w = os.Stderr
		}
		logger := pslog.LoggerFromEnv(
			pslog.WithEnvWriter(w),
			pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole, MinLevel: level}),
		)
		return logger, nopCloser{}, nil
	}

	path := opts.Path
	if path == "" {
		path = DefaultLogFile
	}
	w, err := openRotating(path, maxSizeBytes)
	if err != nil {
		return nil, nil, err
	}
	logger := pslog.NewWithOptions(w, pslog.Options{
		Mode:     pslog.ModeStructured,
		NoColor:  true,
		MinLevel: level,
	})
	return logger, w, nil
}

// Setup stores the logger in ctx and routes the standard library logger
// through it.
func Setup(ctx context.Context, opts Options) (context.Context, io.Closer, error) {
	logger, closer, err := New(opts)
	if err != nil {
		return ctx, nil, err
	}
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)
	return pslog.ContextWithLogger(ctx, logger), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// rotatingWriter appends to path and rotates it to path.1 .. path.3 once it
// would grow past max bytes.
type rotatingWriter struct {
	mu   sync.Mutex
	path string
	max  int64
	f    *os.File
}

func openRotating(path string, max int64) (*rotatingWriter, error) {
	w := &rotatingWriter{path: path, max: max}
	w.rotateIfNeeded(0)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	w.f = f
	return w, nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return 0, os.ErrClosed
	}
	// naive rotation check per write
	if st, err := w.f.Stat(); err == nil && st.Size() > 0 && st.Size()+int64(len(p)) > w.max {
		_ = w.f.Close()
		w.rotateIfNeeded(int64(len(p)))
		nf, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			w.f = nil
			return 0, err
		}
		w.f = nf
	}
	return w.f.Write(p)
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func (w *rotatingWriter) rotateIfNeeded(incoming int64) {
	// If base would exceed max size, rotate: .1, .2, .3 (oldest discarded)
	st, err := os.Stat(w.path)
	if err != nil || st.Size()+incoming <= w.max {
		return
	}
	_ = os.Remove(archiveName(w.path, maxArchives))
	for i := maxArchives - 1; i >= 1; i-- {
		_ = os.Rename(archiveName(w.path, i), archiveName(w.path, i+1))
	}
	_ = os.Rename(w.path, archiveName(w.path, 1))
}

func archiveName(path string, n int) string { return fmt.Sprintf("%s.%d", path, n) }

// Sanitize makes user text safe for a single log field: control characters
// are escaped and the result is cut to maxRunes runes.
func Sanitize(s string, maxRunes int) string {
	truncated := false
	if maxRunes > 0 && utf8.RuneCountInString(s) > maxRunes {
		s = string([]rune(s)[:maxRunes])
		truncated = true
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\x%02x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	if truncated {
		b.WriteString("...")
	}
	return b.String()
}
