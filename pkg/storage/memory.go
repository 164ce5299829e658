package storage

import (
	"strings"
	"sync"
)

// MemoryDriver keeps the token table in a process-local map. It backs tests
// and throwaway runs; nothing survives the process.
type MemoryDriver struct {
	mu   sync.RWMutex
	rows map[string]TokenCounts
}

// NewMemoryDriver creates an empty in-memory token store
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		rows: make(map[string]TokenCounts),
	}
}

func (d *MemoryDriver) IsInitialized() (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.rows[KeyVersion]
	return ok, nil
}

func (d *MemoryDriver) IsUpToDate() (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	version, ok := d.rows[KeyVersion]
	return ok && version.Ham == SchemaVersion, nil
}

func (d *MemoryDriver) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.rows[KeyVersion] = TokenCounts{Ham: SchemaVersion}
	if _, ok := d.rows[KeyTexts]; !ok {
		d.rows[KeyTexts] = TokenCounts{}
	}
	return nil
}

func (d *MemoryDriver) FetchTokenData(tokens []string) (map[string]TokenCounts, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	found := make(map[string]TokenCounts)
	for _, token := range tokens {
		if counts, ok := d.rows[token]; ok {
			found[token] = counts
		}
	}
	return found, nil
}

func (d *MemoryDriver) AddToken(token string, counts TokenCounts) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.rows[token] = counts
	return nil
}

func (d *MemoryDriver) UpdateToken(token string, counts TokenCounts) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.rows[token] = counts
	return nil
}

func (d *MemoryDriver) DeleteToken(token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.rows, token)
	return nil
}

func (d *MemoryDriver) DeletePrefix(prefix string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for token := range d.rows {
		if strings.HasPrefix(token, prefix) {
			delete(d.rows, token)
		}
	}
	return nil
}

// StartTransaction is a no-op: every map mutation is already atomic under
// the driver mutex and there are no partial-write failure modes.
func (d *MemoryDriver) StartTransaction() error { return nil }

func (d *MemoryDriver) FinishTransaction() error { return nil }

func (d *MemoryDriver) Close() error { return nil }
