package chrono

import (
	"encoding/binary"
	"io"
)

// DigestInto writes the engine's canonical state into h (little-endian field
// writes, fixed traversal order). Combined with the world digest it forms
// the per-turn run digest that the replay verifier compares.
func (e *Engine) DigestInto(h io.Writer) {
	var tmp [8]byte

	writeU64(h, &tmp, e.turn)
	writeI64(h, &tmp, int64(e.ledger.Balance()))
	writeStr(h, &tmp, string(e.recording))
	writeU64(h, &tmp, e.eventSeq)

	tls := e.store.Timelines()
	writeU64(h, &tmp, uint64(len(tls)))
	for _, tl := range tls {
		writeStr(h, &tmp, string(tl.ID))
		writeU64(h, &tmp, tl.Log.T0())
		h.Write([]byte{boolByte(tl.Archived)})
		writeU64(h, &tmp, uint64(tl.Log.Len()))
		for _, rec := range tl.Log.recs {
			digestAction(h, &tmp, rec.Action)
			digestFingerprint(h, &tmp, rec.Fingerprint)
		}
	}

	ecs := e.scheduleOrder()
	writeU64(h, &tmp, uint64(len(ecs)))
	for _, ec := range ecs {
		writeStr(h, &tmp, ec.ID)
		writeStr(h, &tmp, string(ec.TimelineID))
		writeU64(h, &tmp, uint64(ec.Cursor))
		writeU64(h, &tmp, ec.CreatedTurn)
		h.Write([]byte{byte(ec.State)})
		writeStr(h, &tmp, string(ec.Reason))
		writeStr(h, &tmp, ec.EntityID)
	}

	writeU64(h, &tmp, uint64(len(e.events)))
	for _, ev := range e.events {
		writeU64(h, &tmp, ev.Seq)
		writeU64(h, &tmp, ev.Turn)
		writeStr(h, &tmp, ev.EchoID)
		writeStr(h, &tmp, string(ev.TimelineID))
		digestAction(h, &tmp, ev.Action)
		writeStr(h, &tmp, ev.Reason)
		writeStr(h, &tmp, ev.Resolution)
		writeStr(h, &tmp, string(ev.Executed))
	}
}

func digestAction(h io.Writer, tmp *[8]byte, a Action) {
	writeStr(h, tmp, string(a.Kind))
	writeStr(h, tmp, a.Actor)
	writeU64(h, tmp, a.Turn)
	switch a.Kind {
	case ActMove:
		writeI64(h, tmp, int64(a.Move.DX))
		writeI64(h, tmp, int64(a.Move.DY))
	case ActAttack:
		writeStr(h, tmp, a.Attack.TargetID)
	case ActUseItem:
		writeStr(h, tmp, a.Use.Item)
		writeI64(h, tmp, int64(a.Use.Target.X))
		writeI64(h, tmp, int64(a.Use.Target.Y))
	}
}

func digestFingerprint(h io.Writer, tmp *[8]byte, fp Fingerprint) {
	digestCellProbe(h, tmp, fp.Actor)
	h.Write([]byte{boolByte(fp.Target != nil)})
	if fp.Target != nil {
		digestCellProbe(h, tmp, *fp.Target)
	}
	h.Write([]byte{boolByte(fp.Entity != nil)})
	if fp.Entity != nil {
		ep := *fp.Entity
		writeStr(h, tmp, ep.ID)
		h.Write([]byte{boolByte(ep.Exists), boolByte(ep.Alive), boolByte(ep.Hostile)})
		writeI64(h, tmp, int64(ep.Pos.X))
		writeI64(h, tmp, int64(ep.Pos.Y))
	}
}

func digestCellProbe(h io.Writer, tmp *[8]byte, p CellProbe) {
	writeI64(h, tmp, int64(p.Pos.X))
	writeI64(h, tmp, int64(p.Pos.Y))
	h.Write([]byte{boolByte(p.Walkable), boolByte(p.Destroyed), boolByte(p.OccupantHostile), boolByte(p.Superposed)})
	writeStr(h, tmp, p.OccupantID)
}

func writeU64(h io.Writer, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func writeI64(h io.Writer, tmp *[8]byte, v int64) {
	writeU64(h, tmp, uint64(v))
}

func writeStr(h io.Writer, tmp *[8]byte, s string) {
	writeU64(h, tmp, uint64(len(s)))
	io.WriteString(h, s)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
