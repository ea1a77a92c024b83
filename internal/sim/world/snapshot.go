package world

import (
	"fmt"

	"quantumrogue.dev/internal/persistence/snapshot"
	"quantumrogue.dev/internal/sim/chrono"
)

// ExportSection dumps the world into its snapshot section.
func (w *World) ExportSection() snapshot.WorldV1 {
	wv := snapshot.WorldV1{
		Width:  w.width,
		Height: w.height,
		Tiles:  make([]uint8, len(w.tiles)),
	}
	for i, k := range w.tiles {
		wv.Tiles[i] = uint8(k)
	}
	for _, e := range w.Entities() {
		wv.Entities = append(wv.Entities, snapshot.EntityV1{
			ID:      e.ID,
			Kind:    e.Kind,
			Pos:     [2]int{e.Pos.X, e.Pos.Y},
			HP:      e.HP,
			MaxHP:   e.MaxHP,
			Hostile: e.Hostile,
		})
	}
	sup := make([]chrono.Ref, 0, len(w.superposed))
	for ref := range w.superposed {
		sup = append(sup, ref)
	}
	sortRefs(sup)
	for _, ref := range sup {
		wv.Superposed = append(wv.Superposed, snapshot.SuperposedRefV1{
			Ref:  refV1(ref),
			Prob: w.superposed[ref],
		})
	}
	ent := make([]chrono.Ref, 0, len(w.entangled))
	for ref := range w.entangled {
		ent = append(ent, ref)
	}
	sortRefs(ent)
	seen := make(map[chrono.Ref]bool)
	for _, a := range ent {
		if seen[a] {
			continue
		}
		b := w.entangled[a]
		seen[a], seen[b] = true, true
		wv.Entangled = append(wv.Entangled, snapshot.EntangledRefV1{A: refV1(a), B: refV1(b)})
	}
	return wv
}

// FromSnapshot rebuilds a world from its snapshot section.
func FromSnapshot(wv snapshot.WorldV1, cfg Config) (*World, error) {
	w, err := New(wv.Width, wv.Height, cfg)
	if err != nil {
		return nil, err
	}
	if len(wv.Tiles) != wv.Width*wv.Height {
		return nil, fmt.Errorf("snapshot tiles %d, want %d", len(wv.Tiles), wv.Width*wv.Height)
	}
	for i, k := range wv.Tiles {
		w.tiles[i] = TileKind(k)
	}
	for _, ev := range wv.Entities {
		ent := Entity{
			ID:      ev.ID,
			Kind:    ev.Kind,
			Pos:     chrono.Cell{X: ev.Pos[0], Y: ev.Pos[1]},
			HP:      ev.HP,
			MaxHP:   ev.MaxHP,
			Hostile: ev.Hostile,
		}
		// Placed directly, not via AddEntity: a snapshot may legally hold
		// an entity on a since-destroyed tile, and corpses do not occupy.
		if _, dup := w.entities[ent.ID]; dup {
			return nil, fmt.Errorf("snapshot entity %s duplicated", ent.ID)
		}
		w.entities[ent.ID] = &ent
		if ent.Alive() {
			if occ, busy := w.occupancy[ent.Pos]; busy {
				return nil, fmt.Errorf("snapshot entities %s and %s share %v", occ, ent.ID, ent.Pos)
			}
			w.occupancy[ent.Pos] = ent.ID
		}
	}
	for _, s := range wv.Superposed {
		w.superposed[refFromV1(s.Ref)] = s.Prob
	}
	for _, p := range wv.Entangled {
		w.Entangle(refFromV1(p.A), refFromV1(p.B))
	}
	return w, nil
}

func refV1(ref chrono.Ref) snapshot.RefV1 {
	return snapshot.RefV1{
		Kind:     uint8(ref.Kind),
		Pos:      [2]int{ref.Cell.X, ref.Cell.Y},
		EntityID: ref.EntityID,
	}
}

func refFromV1(v snapshot.RefV1) chrono.Ref {
	return chrono.Ref{
		Kind:     chrono.RefKind(v.Kind),
		Cell:     chrono.Cell{X: v.Pos[0], Y: v.Pos[1]},
		EntityID: v.EntityID,
	}
}
