package file

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/vshulcz/Migrascope/internal/services/audit"
)

func TestWriter_Notify_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	w := New(path)
	t.Cleanup(func() { _ = w.Close() })

	pct := int64(40)
	events := []audit.Event{
		{Timestamp: 1, Command: audit.CommandSetMigration, Percentage: &pct, Success: true, IPAddress: "127.0.0.1"},
		{Timestamp: 2, Command: audit.CommandReset, Error: "Network Error"},
	}
	for _, evt := range events {
		if err := w.Notify(context.Background(), evt); err != nil {
			t.Fatalf("Notify error: %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()

	var got []audit.Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var evt audit.Event
		if err := json.Unmarshal(sc.Bytes(), &evt); err != nil {
			t.Fatalf("unmarshal %q: %v", sc.Text(), err)
		}
		got = append(got, evt)
	}
	if len(got) != 2 {
		t.Fatalf("lines=%d want 2", len(got))
	}
	if got[0].Command != audit.CommandSetMigration || got[0].Percentage == nil || *got[0].Percentage != 40 {
		t.Fatalf("first event mismatch: %+v", got[0])
	}
	if got[1].Success || got[1].Error != "Network Error" {
		t.Fatalf("second event mismatch: %+v", got[1])
	}
}

func TestWriter_NilIsNoop(t *testing.T) {
	w := New("")
	if w != nil {
		t.Fatal("empty path must return nil writer")
	}
	if err := w.Notify(context.Background(), audit.Event{}); err != nil {
		t.Fatalf("Notify on nil: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close on nil: %v", err)
	}
}
