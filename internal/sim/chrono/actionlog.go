package chrono

import "fmt"

// Record is one logged turn: the chosen action plus the world fingerprint it
// was chosen under.
type Record struct {
	Action      Action      `json:"action"`
	Fingerprint Fingerprint `json:"fingerprint"`
}

// ActionLog is the append-only per-turn record for one timeline. Turn
// numbers are strictly increasing and contiguous from t0; appends are
// accepted only at Len(). No deletion or mutation API exists.
type ActionLog struct {
	t0   uint64
	recs []Record
}

func NewActionLog(t0 uint64) *ActionLog {
	return &ActionLog{t0: t0}
}

func (l *ActionLog) Len() int   { return len(l.recs) }
func (l *ActionLog) T0() uint64 { return l.t0 }

// Append accepts rec only if its action's turn is exactly the next
// contiguous turn (t0 + Len). Returns the turn number assigned.
func (l *ActionLog) Append(rec Record) (uint64, error) {
	want := l.t0 + uint64(len(l.recs))
	if rec.Action.Turn != want {
		return 0, fmt.Errorf("append at turn %d, want %d: %w", rec.Action.Turn, want, ErrInvalidTurnOrder)
	}
	l.recs = append(l.recs, rec)
	return want, nil
}

// Get returns the record for an absolute turn number.
func (l *ActionLog) Get(turn uint64) (Record, error) {
	if turn < l.t0 || turn >= l.t0+uint64(len(l.recs)) {
		return Record{}, fmt.Errorf("turn %d: %w", turn, ErrNotFound)
	}
	rec := l.recs[turn-l.t0]
	if rec.Action.Turn != turn {
		// Contiguity broken; never proceed on a corrupted log.
		return Record{}, fmt.Errorf("log turn %d holds action turn %d: %w", turn, rec.Action.Turn, ErrStateCorrupt)
	}
	return rec, nil
}

// At returns the record at a zero-based offset from t0.
func (l *ActionLog) At(offset int) (Record, error) {
	if offset < 0 || offset >= len(l.recs) {
		return Record{}, fmt.Errorf("offset %d of %d: %w", offset, len(l.recs), ErrTimelineExhausted)
	}
	return l.recs[offset], nil
}
