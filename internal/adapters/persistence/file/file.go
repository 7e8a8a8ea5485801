// Package file snapshots the sample history to a JSON file so it survives restarts.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/vshulcz/Migrascope/internal/domain"
	"github.com/vshulcz/Migrascope/internal/ports"
)

// Persister writes samples oldest first and restores them in the same order.
type Persister struct {
	path string
}

var _ ports.Persister = (*Persister)(nil)

// New returns nil when path is empty, disabling persistence.
func New(path string) *Persister {
	if path == "" {
		return nil
	}
	return &Persister{path: path}
}

// Save replaces the file atomically with items.
func (p *Persister) Save(_ context.Context, items []domain.Sample) error {
	if p == nil {
		return nil
	}
	ordered := slices.Clone(items)
	slices.SortStableFunc(ordered, func(a, b domain.Sample) int {
		if c := a.TakenAt.Compare(b.TakenAt); c != 0 {
			return c
		}
		switch {
		case a.Sequence < b.Sequence:
			return -1
		case a.Sequence > b.Sequence:
			return 1
		}
		return 0
	})
	return writeJSONAtomic(p.path, ordered)
}

// Restore appends the saved samples to repo. A missing file is not an error.
func (p *Persister) Restore(ctx context.Context, repo ports.SampleRepo) (retErr error) {
	if p == nil {
		return nil
	}
	f, err := os.Open(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close: %w", cerr)
		}
	}()

	var items []domain.Sample
	if err := json.NewDecoder(f).Decode(&items); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return repo.AppendMany(ctx, items)
}

func writeJSONAtomic(path string, items []domain.Sample) (retErr error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(dir, ".samples-*")
	if err != nil {
		return fmt.Errorf("create tmp: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if committed {
			return
		}
		_ = tmp.Close()
		if err := os.Remove(tmpName); err != nil && retErr == nil {
			retErr = fmt.Errorf("remove tmp: %w", err)
		}
	}()

	if items == nil {
		items = []domain.Sample{}
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close tmp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	committed = true
	return nil
}
