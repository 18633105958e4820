package chromem

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
)

// ledger records document ids in insertion order. chromem-go keeps
// documents in a map, so List enumerates through the ledger instead.
type ledger struct {
	path string

	mu  sync.Mutex
	ids []string
}

func openLedger(path string) (*ledger, error) {
	l := &ledger{path: path}

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chromem: read ledger: %w", err)
	}
	if err := json.Unmarshal(b, &l.ids); err != nil {
		return nil, fmt.Errorf("chromem: parse ledger %s: %w", path, err)
	}
	return l, nil
}

func (l *ledger) append(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := append(slices.Clip(l.ids), id)
	if err := l.write(next); err != nil {
		return err
	}
	l.ids = next
	return nil
}

func (l *ledger) remove(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := slices.Index(l.ids, id)
	if i < 0 {
		return nil
	}
	next := slices.Delete(slices.Clone(l.ids), i, i+1)
	if err := l.write(next); err != nil {
		return err
	}
	l.ids = next
	return nil
}

func (l *ledger) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.ids)
}

func (l *ledger) write(ids []string) error {
	b, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("chromem: encode ledger: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("chromem: write ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("chromem: rename ledger %s: %w", l.path, err)
	}
	return nil
}
