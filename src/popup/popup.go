// Package popup shows short status messages to the user.
package popup

import (
	"context"
	"time"

	"pkt.systems/pslog"

	"rectcopy/src/logutil"
)

// Notifier displays a temporary message. isError selects error styling.
type Notifier interface {
	Show(text string, d time.Duration, isError bool)
}

// Log is a Notifier for headless runs: it writes the message to the log.
type Log struct {
	Logger pslog.Logger
}

func (l Log) Show(text string, d time.Duration, isError bool) {
	logger := l.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if isError {
		logger.Warn("status", "text", logutil.Sanitize(text, 80), "duration", d.String())
		return
	}
	logger.Info("status", "text", logutil.Sanitize(text, 80), "duration", d.String())
}

// Multi shows every message on each of its notifiers.
type Multi []Notifier

func (m Multi) Show(text string, d time.Duration, isError bool) {
	for _, n := range m {
		if n != nil {
			n.Show(text, d, isError)
		}
	}
}
