package engine

// HistoryRecord is a per-turn snapshot of per-class population totals.
type HistoryRecord struct {
	Turn        int            `json:"turn"`
	ClassTotals map[string]int `json:"class_totals"`
	Total       int            `json:"total"`
	Interferon  float64        `json:"interferon"`
}

// History is a fixed-capacity ring buffer of turn records. Once full, each
// push drops the oldest record.
type History struct {
	records []HistoryRecord
	start   int
	count   int
}

// NewHistory creates a history bounded to limit records.
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = 1
	}
	return &History{records: make([]HistoryRecord, limit)}
}

// Push appends a record, evicting the oldest when at capacity.
func (h *History) Push(rec HistoryRecord) {
	if h.count < len(h.records) {
		h.records[(h.start+h.count)%len(h.records)] = rec
		h.count++
		return
	}
	h.records[h.start] = rec
	h.start = (h.start + 1) % len(h.records)
}

// Len returns the number of records held.
func (h *History) Len() int {
	return h.count
}

// Records returns the held records oldest-first.
func (h *History) Records() []HistoryRecord {
	out := make([]HistoryRecord, 0, h.count)
	for i := 0; i < h.count; i++ {
		out = append(out, h.records[(h.start+i)%len(h.records)])
	}
	return out
}
