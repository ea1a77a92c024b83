package chrono

// Resolution tags as they appear in the audit trail, the paradox log, and
// the sqlite index.
const (
	ResolutionBenign   = "benign"
	ResolutionSoftWait = "soft:wait"
	ResolutionFatal    = "fatal"
)

// ParadoxEvent is one entry in the append-only paradox audit trail. Never
// mutated after creation. Benign divergences are logged too, uniformly, so
// the trail accounts for every replayed action whose outcome differed from
// its recorded fingerprint.
type ParadoxEvent struct {
	Seq        uint64     `json:"seq"`
	Turn       uint64     `json:"turn"`
	EchoID     string     `json:"echo_id"`
	TimelineID TimelineID `json:"timeline_id"`
	Action     Action     `json:"action"`
	Reason     string     `json:"reason"`
	Resolution string     `json:"resolution"`
	// Executed is the effective action kind actually applied; empty on
	// fatal collapse, where nothing is applied.
	Executed ActionKind `json:"executed,omitempty"`
}

func (e *Engine) recordParadox(ec *Echo, rec Record, reason, resolution string, executed ActionKind) {
	e.eventSeq++
	ev := ParadoxEvent{
		Seq:        e.eventSeq,
		Turn:       e.turn,
		EchoID:     ec.ID,
		TimelineID: ec.TimelineID,
		Action:     rec.Action,
		Reason:     reason,
		Resolution: resolution,
		Executed:   executed,
	}
	e.events = append(e.events, ev)
	e.turnEvents = append(e.turnEvents, ev)
}
