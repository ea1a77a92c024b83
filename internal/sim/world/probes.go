package world

import "quantumrogue.dev/internal/sim/chrono"

// chrono.WorldView implementation.

func (w *World) CellProbeAt(c chrono.Cell) chrono.CellProbe {
	p := chrono.CellProbe{Pos: c}
	if !w.InBounds(c) {
		return p
	}
	k := w.TileAt(c)
	p.Walkable = k.Walkable()
	p.Destroyed = k == TileVoid
	if id, ok := w.occupancy[c]; ok {
		p.OccupantID = id
		if ent := w.entities[id]; ent != nil {
			p.OccupantHostile = ent.Hostile
		}
	}
	_, p.Superposed = w.superposed[chrono.CellRef(c)]
	return p
}

func (w *World) EntityProbeOf(id string) chrono.EntityProbe {
	ent, ok := w.entities[id]
	if !ok {
		return chrono.EntityProbe{ID: id}
	}
	return chrono.EntityProbe{
		ID:      id,
		Exists:  true,
		Alive:   ent.Alive(),
		Pos:     ent.Pos,
		Hostile: ent.Hostile,
	}
}

func (w *World) IsSuperposed(ref chrono.Ref) bool {
	_, ok := w.superposed[ref]
	return ok
}

func (w *World) CollapseProbability(ref chrono.Ref) float64 {
	return w.superposed[ref]
}

func (w *World) EntangledPartner(ref chrono.Ref) (chrono.Ref, bool) {
	p, ok := w.entangled[ref]
	return p, ok
}
