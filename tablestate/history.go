package tablestate

import "time"

// History actions
const (
	ActionAdded     = "added"
	ActionDecreased = "decreased"
	ActionRemoved   = "removed"
	ActionServed    = "served"
	ActionCleared   = "cleared"
	ActionSold      = "sold"
	ActionRestored  = "restored"
)

type HistoryEntry struct {
	At          time.Time `json:"at"`
	Actor       string    `json:"actor"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
}

// history is a fixed capacity ring that keeps the newest entries.
type history struct {
	entries []HistoryEntry
	next    int
	size    int
}

func newHistory(capacity int) *history {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &history{entries: make([]HistoryEntry, capacity)}
}

func (h *history) add(e HistoryEntry) {
	h.entries[h.next] = e
	h.next = (h.next + 1) % len(h.entries)
	if h.size < len(h.entries) {
		h.size++
	}
}

// newestFirst returns a copy of the entries, newest first.
func (h *history) newestFirst() []HistoryEntry {
	out := make([]HistoryEntry, 0, h.size)
	for i := 1; i <= h.size; i++ {
		idx := (h.next - i + len(h.entries)) % len(h.entries)
		out = append(out, h.entries[idx])
	}
	return out
}
