package devtools

import "sync"

// CaptureMirror records entries for assertions in tests.
type CaptureMirror struct {
	Entries []Entry
	Err     error
	mu      sync.Mutex
}

// Record stores the entry and returns any configured error.
func (m *CaptureMirror) Record(entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, entry)
	return m.Err
}

// Recorded returns a copy of the entries recorded so far.
func (m *CaptureMirror) Recorded() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.Entries))
	copy(out, m.Entries)
	return out
}
