package clipboard

import (
	"errors"
	"testing"
)

func TestMemory(t *testing.T) {
	var m Memory
	if _, ok := m.Last(); ok {
		t.Fatal("Expected an empty sink")
	}
	for _, s := range []string{"one", "two"} {
		if err := m.Write(s); err != nil {
			t.Fatalf("Expected write to succeed, got %v", err)
		}
	}
	if last, _ := m.Last(); last != "two" {
		t.Fatalf("Expected last write %q, got %q", "two", last)
	}
	if got := m.Texts(); len(got) != 2 {
		t.Fatalf("Expected two writes, got %v", got)
	}

	m.Err = errors.New("denied")
	if err := m.Write("three"); !errors.Is(err, m.Err) {
		t.Fatalf("Expected configured error, got %v", err)
	}
}

func TestSystemWrite(t *testing.T) {
	if testing.Short() {
		t.Skip("system clipboard test skipped in short mode")
	}
	// Headless machines have no clipboard; only a successful init is checked.
	if err := Init(); err != nil {
		t.Skipf("clipboard unavailable: %v", err)
	}
	var s Sink = System{}
	if err := s.Write("rectcopy test text"); err != nil {
		t.Fatalf("Expected write to succeed, got %v", err)
	}
	if got, err := (System{}).Read(); err != nil || got != "rectcopy test text" {
		t.Logf("Clipboard read back %q (err %v)", got, err)
	}
}
