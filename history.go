package hsmx

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comalice/hsmx/internal/ring"
)

// HistoryEntry is an immutable snapshot of one applied transition. The
// context is deep-cloned at record time, so an entry can never observe
// later mutation.
type HistoryEntry struct {
	ID        string
	Timestamp time.Time
	FromState string
	ToState   string
	Context   Context
	Trigger   string // event name, TriggerStart, or TriggerRollback

	// Metadata.
	SizeBytes     int    // rough serialized size of the context snapshot
	Rollback      bool   // entry produced by a rollback
	TargetEntryID string // for rollback entries, the restored entry's ID
}

// Trigger values for engine-originated history entries.
const (
	TriggerStart    = "start"
	TriggerRollback = "rollback"
)

// History is the bounded transition log of an Instance: a fixed-capacity
// ring with oldest-first eviction plus an id index kept in sync by Add's
// eviction result. Safe for concurrent use.
type History struct {
	mu   sync.RWMutex
	buf  *ring.Buffer[*HistoryEntry]
	byID map[string]*HistoryEntry
}

func newHistory(maxSize int) *History {
	return &History{
		buf:  ring.New[*HistoryEntry](maxSize),
		byID: make(map[string]*HistoryEntry),
	}
}

func newHistoryEntry(from, to string, ctx Context, trigger string) *HistoryEntry {
	snapshot := cloneCtx(ctx)
	return &HistoryEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		FromState: from,
		ToState:   to,
		Context:   snapshot,
		Trigger:   trigger,
		SizeBytes: contextSize(snapshot),
	}
}

// contextSize estimates the byte size of a context snapshot. Unencodable
// values count as zero; the estimate is advisory metadata only.
func contextSize(ctx Context) int {
	data, err := json.Marshal(ctx)
	if err != nil {
		return 0
	}
	return len(data)
}

func (h *History) add(e *HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, evicted := h.buf.Add(e); evicted {
		delete(h.byID, old.ID)
	}
	h.byID[e.ID] = e
}

// Entries returns the retained entries, oldest first.
func (h *History) Entries() []*HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.buf.Slice()
}

// Size returns the number of retained entries.
func (h *History) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.buf.Len()
}

// MaxSize returns the fixed capacity.
func (h *History) MaxSize() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.buf.Cap()
}

// Current returns the most recent entry, nil when empty.
func (h *History) Current() *HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, _ := h.buf.Get(h.buf.Len() - 1)
	return e
}

// GetByIndex returns the entry at position i, oldest first.
func (h *History) GetByIndex(i int) (*HistoryEntry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.buf.Get(i)
}

// GetByID returns the entry with the given id, if retained.
func (h *History) GetByID(id string) (*HistoryEntry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.byID[id]
	return e, ok
}

// Range returns entries in [from, to) by position, clamped to the retained
// window.
func (h *History) Range(from, to int) []*HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if from < 0 {
		from = 0
	}
	if to > h.buf.Len() {
		to = h.buf.Len()
	}
	if from >= to {
		return nil
	}
	out := make([]*HistoryEntry, 0, to-from)
	for i := from; i < to; i++ {
		e, _ := h.buf.Get(i)
		out = append(out, e)
	}
	return out
}

// Find returns the first entry satisfying pred, oldest first.
func (h *History) Find(pred func(*HistoryEntry) bool) (*HistoryEntry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := 0; i < h.buf.Len(); i++ {
		e, _ := h.buf.Get(i)
		if pred(e) {
			return e, true
		}
	}
	return nil, false
}

// Filter returns every entry satisfying pred, oldest first.
func (h *History) Filter(pred func(*HistoryEntry) bool) []*HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*HistoryEntry
	for i := 0; i < h.buf.Len(); i++ {
		e, _ := h.buf.Get(i)
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// CanRollback reports whether e is still retained. Evicted entries can no
// longer be rolled back to.
func (h *History) CanRollback(e *HistoryEntry) bool {
	if e == nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	cur, ok := h.byID[e.ID]
	return ok && cur == e
}

// StepsBack returns the index distance from the current entry to e.
func (h *History) StepsBack(e *HistoryEntry) (int, bool) {
	if e == nil {
		return 0, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := h.buf.Len() - 1; i >= 0; i-- {
		cur, _ := h.buf.Get(i)
		if cur.ID == e.ID {
			return h.buf.Len() - 1 - i, true
		}
	}
	return 0, false
}
