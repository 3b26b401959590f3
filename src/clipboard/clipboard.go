// Package clipboard delivers extracted text.
package clipboard

import (
	"fmt"
	"sync"

	"golang.design/x/clipboard"
)

// Sink receives the text of a finished selection.
type Sink interface {
	Write(text string) error
}

var (
	writeMu  sync.Mutex
	initOnce sync.Once
	initErr  error
)

// Init prepares the system clipboard. It is safe to call more than once.
func Init() error {
	initOnce.Do(func() { initErr = clipboard.Init() })
	return initErr
}

// System writes to the OS clipboard.
type System struct{}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func (System) Write(text string) error {
	if err := Init(); err != nil {
		return fmt.Errorf("clipboard unavailable: %w", err)
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// Read returns the current text content of the system clipboard.
func (System) Read() (string, error) {
	if err := Init(); err != nil {
		return "", fmt.Errorf("clipboard unavailable: %w", err)
	}
	return string(clipboard.Read(clipboard.FmtText)), nil
}

// Write writes text to the system clipboard.
func Write(text string) error { return System{}.Write(text) }

// Memory keeps every write in process. Err, when set, is returned instead.
type Memory struct {
	mu    sync.Mutex
	texts []string
	Err   error
}

func (m *Memory) Write(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.texts = append(m.texts, text)
	return nil
}

// Texts returns the writes so far.
func (m *Memory) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// Last returns the most recent write.
func (m *Memory) Last() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.texts) == 0 {
		return "", false
	}
	return m.texts[len(m.texts)-1], true
}
