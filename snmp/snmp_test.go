package snmp

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeSource struct{}

func (fakeSource) Header() []string { return []string{"PASSED", "DROPPED"} }
func (fakeSource) Row() []string    { return []string{"3", "1"} }

func TestWriteSnapshotCreatesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snmp.csv")

	writeSnapshot(path, fakeSource{})
	writeSnapshot(path, fakeSource{})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	content := string(data)
	if want := "Unix,PASSED,DROPPED\n"; content[:len(want)] != want {
		t.Fatalf("expected header %q, got %q", want, content[:len(want)])
	}

	lines := 0
	for _, c := range content {
		if c == '\n' {
			lines++
		}
	}
	if lines != 3 {
		t.Fatalf("expected 1 header + 2 data rows, got %d lines", lines)
	}
}

func TestLoggerNoopOnEmptyPath(t *testing.T) {
	done := make(chan struct{})
	go func() {
		Logger("", time.Millisecond, fakeSource{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Logger to return immediately on empty path")
	}
}
