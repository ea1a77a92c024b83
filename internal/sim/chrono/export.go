package chrono

import "fmt"

// StateExport is the engine's full serializable state: timelines with their
// logs and fingerprints, the ledger, live echoes, paradox history, and
// counters. On-disk framing belongs to the save/load collaborator; this is
// the opaque blob it embeds.
type StateExport struct {
	Turn      uint64     `json:"turn"`
	Recording TimelineID `json:"recording,omitempty"`

	EnergyBalance int `json:"energy_balance"`
	EnergyMax     int `json:"energy_max"`

	NextTimeline uint64 `json:"next_timeline"`
	NextEcho     uint64 `json:"next_echo"`
	EventSeq     uint64 `json:"event_seq"`

	Timelines []TimelineExport `json:"timelines"`
	Echoes    []Echo           `json:"echoes"`
	Events    []ParadoxEvent   `json:"events"`
}

type TimelineExport struct {
	ID       TimelineID `json:"id"`
	T0       uint64     `json:"t0"`
	Archived bool       `json:"archived"`
	Records  []Record   `json:"records"`
}

func (e *Engine) ExportState() *StateExport {
	ex := &StateExport{
		Turn:          e.turn,
		Recording:     e.recording,
		EnergyBalance: e.ledger.Balance(),
		EnergyMax:     e.ledger.Max(),
		NextTimeline:  e.store.nextNum,
		NextEcho:      e.nextEcho,
		EventSeq:      e.eventSeq,
		Events:        append([]ParadoxEvent(nil), e.events...),
	}
	for _, tl := range e.store.Timelines() {
		ex.Timelines = append(ex.Timelines, TimelineExport{
			ID:       tl.ID,
			T0:       tl.Log.T0(),
			Archived: tl.Archived,
			Records:  append([]Record(nil), tl.Log.recs...),
		})
	}
	for _, ec := range e.scheduleOrder() {
		ex.Echoes = append(ex.Echoes, *ec)
	}
	return ex
}

// ImportState replaces the engine's state wholesale. Echo mirror entities
// must already exist in the world (the snapshot's world section restores
// them before the engine section is imported).
func (e *Engine) ImportState(ex *StateExport) error {
	if ex == nil {
		return fmt.Errorf("nil state export: %w", ErrNotFound)
	}
	if ex.EnergyBalance < 0 {
		return fmt.Errorf("imported balance %d: %w", ex.EnergyBalance, ErrStateCorrupt)
	}
	store := NewTimelineStore()
	store.nextNum = ex.NextTimeline
	for _, te := range ex.Timelines {
		log := NewActionLog(te.T0)
		for _, rec := range te.Records {
			if _, err := log.Append(rec); err != nil {
				return fmt.Errorf("timeline %s: %v: %w", te.ID, err, ErrStateCorrupt)
			}
		}
		store.timelines[te.ID] = &Timeline{ID: te.ID, Log: log, Archived: te.Archived}
	}
	if ex.Recording != "" {
		if _, ok := store.get(ex.Recording); !ok {
			return fmt.Errorf("recording %s: %w", ex.Recording, ErrStateCorrupt)
		}
	}
	echoes := make(map[string]*Echo, len(ex.Echoes))
	for i := range ex.Echoes {
		ec := ex.Echoes[i]
		if _, ok := store.get(ec.TimelineID); !ok {
			return fmt.Errorf("echo %s timeline %s: %w", ec.ID, ec.TimelineID, ErrStateCorrupt)
		}
		echoes[ec.ID] = &ec
	}

	e.turn = ex.Turn
	e.recording = ex.Recording
	e.store = store
	e.ledger = &EnergyLedger{balance: ex.EnergyBalance, max: ex.EnergyMax}
	e.nextEcho = ex.NextEcho
	e.eventSeq = ex.EventSeq
	e.echoes = echoes
	e.events = append([]ParadoxEvent(nil), ex.Events...)
	e.turnEvents = nil
	clear(e.collapses)
	e.corrupt = nil
	return nil
}
