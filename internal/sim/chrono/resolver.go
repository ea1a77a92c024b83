package chrono

import "fmt"

type Verdict uint8

const (
	VerdictConsistent Verdict = iota + 1
	VerdictBenign
	VerdictSoft
	VerdictFatal
)

func (v Verdict) String() string {
	switch v {
	case VerdictConsistent:
		return "CONSISTENT"
	case VerdictBenign:
		return "BENIGN"
	case VerdictSoft:
		return "SOFT"
	case VerdictFatal:
		return "FATAL"
	}
	return "?"
}

type resolution struct {
	verdict   Verdict
	effective Action
	reason    string
}

// resolve classifies one replayed step against the current world. Evaluation
// order per the engine's contract: superposition collapse first, then fatal
// checks, then soft fallbacks, then consistent-vs-benign comparison of the
// recorded fingerprint against the fingerprint now.
func (e *Engine) resolve(ec *Echo, rec Record) resolution {
	act := rec.Action
	act.Actor = ec.EntityID
	act.Turn = e.turn

	actorPos := e.view.EntityProbeOf(ec.EntityID).Pos
	e.collapseInvolved(act, actorPos)
	now := e.captureFingerprint(act, actorPos)

	// The echo's own footing going away has no fallback for any kind.
	if now.Actor.Destroyed {
		return resolution{verdict: VerdictFatal, reason: "actor cell destroyed"}
	}

	switch act.Kind {
	case ActMove:
		dest := *now.Target
		if dest.Destroyed {
			return resolution{verdict: VerdictFatal, reason: "destination destroyed"}
		}
		if !dest.Walkable {
			return e.softWait(ec, "destination unwalkable")
		}
		if dest.OccupantID != "" && dest.OccupantID != ec.EntityID {
			return e.softWait(ec, fmt.Sprintf("destination occupied by %s", dest.OccupantID))
		}
	case ActAttack:
		ent := *now.Entity
		if !ent.Exists {
			return e.softWait(ec, "target missing")
		}
		if !ent.Alive {
			return e.softWait(ec, "target already dead")
		}
		if Manhattan(actorPos, ent.Pos) > 1 {
			return e.softWait(ec, "target out of range")
		}
	case ActUseItem:
		if now.Target.Destroyed {
			return e.softWait(ec, "target cell destroyed")
		}
	case ActWait:
	}

	if rec.Fingerprint.equalNormalized(now, rec.Action.Actor, ec.EntityID) {
		return resolution{verdict: VerdictConsistent, effective: act}
	}
	return resolution{verdict: VerdictBenign, effective: act, reason: "non-dependent field drift"}
}

func (e *Engine) softWait(ec *Echo, reason string) resolution {
	return resolution{
		verdict:   VerdictSoft,
		effective: WaitAction(ec.EntityID, e.turn),
		reason:    reason,
	}
}
