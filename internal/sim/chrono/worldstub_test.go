package chrono

import "sort"

// stubWorld is a minimal deterministic world for engine tests: sparse tile
// map (absent = plain floor), entity roster, occupancy derived by scanning
// entities in id order.
type stubWorld struct {
	tiles      map[Cell]*stubTile
	entities   map[string]*stubEntity
	superposed map[Ref]float64
	entangled  map[Ref]Ref

	applied []Action
	fixes   []stubFix
}

type stubTile struct {
	destroyed  bool
	unwalkable bool
}

type stubEntity struct {
	pos     Cell
	alive   bool
	hostile bool
}

type stubFix struct {
	ref Ref
	out CollapseOutcome
}

func newStubWorld() *stubWorld {
	return &stubWorld{
		tiles:      make(map[Cell]*stubTile),
		entities:   make(map[string]*stubEntity),
		superposed: make(map[Ref]float64),
		entangled:  make(map[Ref]Ref),
	}
}

func (w *stubWorld) tile(c Cell) *stubTile {
	t, ok := w.tiles[c]
	if !ok {
		t = &stubTile{}
		w.tiles[c] = t
	}
	return t
}

func (w *stubWorld) occupant(c Cell) (string, bool) {
	ids := make([]string, 0, len(w.entities))
	for id, ent := range w.entities {
		if ent.alive && ent.pos == c {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "", false
	}
	sort.Strings(ids)
	return ids[0], w.entities[ids[0]].hostile
}

func (w *stubWorld) CellProbeAt(c Cell) CellProbe {
	t := w.tiles[c]
	p := CellProbe{Pos: c, Walkable: true}
	if t != nil {
		p.Walkable = !t.destroyed && !t.unwalkable
		p.Destroyed = t.destroyed
	}
	p.OccupantID, p.OccupantHostile = w.occupant(c)
	_, p.Superposed = w.superposed[CellRef(c)]
	return p
}

func (w *stubWorld) EntityProbeOf(id string) EntityProbe {
	ent, ok := w.entities[id]
	if !ok {
		return EntityProbe{ID: id}
	}
	return EntityProbe{ID: id, Exists: true, Alive: ent.alive, Pos: ent.pos, Hostile: ent.hostile}
}

func (w *stubWorld) IsSuperposed(ref Ref) bool {
	_, ok := w.superposed[ref]
	return ok
}

func (w *stubWorld) CollapseProbability(ref Ref) float64 {
	return w.superposed[ref]
}

func (w *stubWorld) EntangledPartner(ref Ref) (Ref, bool) {
	p, ok := w.entangled[ref]
	return p, ok
}

func (w *stubWorld) Apply(a Action) ApplyResult {
	w.applied = append(w.applied, a)
	switch a.Kind {
	case ActMove:
		if ent := w.entities[a.Actor]; ent != nil {
			ent.pos = ent.pos.Add(a.Move.DX, a.Move.DY)
		}
	case ActAttack:
		if t := w.entities[a.Attack.TargetID]; t != nil {
			t.alive = false
		}
	}
	return ApplyResult{Success: true}
}

func (w *stubWorld) FixCollapse(ref Ref, outcome CollapseOutcome) {
	w.fixes = append(w.fixes, stubFix{ref: ref, out: outcome})
	if outcome != CollapseVoid {
		return
	}
	switch ref.Kind {
	case RefCell:
		w.tile(ref.Cell).destroyed = true
		delete(w.superposed, ref)
	case RefEntity:
		delete(w.entities, ref.EntityID)
		delete(w.superposed, ref)
	}
}

func (w *stubWorld) SpawnEchoEntity(echoID string, at Cell) (string, bool) {
	p := w.CellProbeAt(at)
	if p.Destroyed || !p.Walkable || p.OccupantID != "" {
		return "", false
	}
	id := "G_" + echoID
	w.entities[id] = &stubEntity{pos: at, alive: true}
	return id, true
}

func (w *stubWorld) RemoveEchoEntity(entityID string) {
	delete(w.entities, entityID)
}

// fixedRoller always returns the same draw; handy for forcing collapse
// outcomes without seed hunting.
type fixedRoller float64

func (r fixedRoller) Roll(turn uint64, ref Ref) float64 { return float64(r) }
