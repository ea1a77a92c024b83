package chrono

import (
	"errors"
	"fmt"
)

// AdvanceEchoes drives every live echo exactly one replay step, in the fixed
// (creation turn, id) order. Runs after RecordPlayerAction so an echo
// trailing the live recording always finds this turn's record already
// appended.
func (e *Engine) AdvanceEchoes() error {
	if e.corrupt != nil {
		return e.corrupt
	}
	for _, ec := range e.scheduleOrder() {
		if !ec.alive() {
			continue
		}
		if err := e.stepEcho(ec); err != nil {
			e.corrupt = err
			return err
		}
	}
	return nil
}

func (e *Engine) stepEcho(ec *Echo) error {
	if e.cfg.EchoMaxLifetimeTurns > 0 && e.turn-ec.CreatedTurn > uint64(e.cfg.EchoMaxLifetimeTurns) {
		e.expire(ec, ExpireNormal)
		return nil
	}

	n, err := e.store.Len(ec.TimelineID)
	if err != nil {
		// A live echo bound to a vanished timeline means the arena was
		// mutated out from under us.
		return fmt.Errorf("echo %s: %v: %w", ec.ID, err, ErrStateCorrupt)
	}
	// Expire before ever attempting a read past the log.
	if ec.Cursor >= n {
		e.expire(ec, ExpireNormal)
		return nil
	}

	rec, err := e.store.Read(ec.TimelineID, ec.Cursor)
	if err != nil {
		if errors.Is(err, ErrTimelineExhausted) {
			e.expire(ec, ExpireNormal)
			return nil
		}
		return fmt.Errorf("echo %s read: %v: %w", ec.ID, err, ErrStateCorrupt)
	}

	res := e.resolve(ec, rec)
	switch res.verdict {
	case VerdictFatal:
		e.recordParadox(ec, rec, res.reason, ResolutionFatal, "")
		e.expire(ec, ExpireFatal)
		return nil
	case VerdictSoft:
		e.recordParadox(ec, rec, res.reason, ResolutionSoftWait, res.effective.Kind)
	case VerdictBenign:
		e.recordParadox(ec, rec, res.reason, ResolutionBenign, res.effective.Kind)
	}

	e.mut.Apply(res.effective)
	ec.Cursor++

	if e.cfg.EchoUpkeepCost > 0 {
		if err := e.ledger.TrySpend(e.cfg.EchoUpkeepCost); err != nil {
			e.expire(ec, ExpireEnergy)
		}
	}
	return nil
}
