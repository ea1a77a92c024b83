package world

import (
	"fmt"

	"quantumrogue.dev/internal/sim/chrono"
	"quantumrogue.dev/internal/sim/levels"
)

const PlayerHP = 10

// FromLevel materializes a level template: tiles, the player entity under
// playerID, creatures, and quantum flags.
func FromLevel(lv *levels.Level, cfg Config, playerID string) (*World, error) {
	if err := lv.Validate(); err != nil {
		return nil, err
	}
	w, err := New(len(lv.Rows[0]), len(lv.Rows), cfg)
	if err != nil {
		return nil, err
	}

	monsterHP := lv.MonsterHP
	if monsterHP <= 0 {
		monsterHP = 3
	}
	monsters := 0
	for y, row := range lv.Rows {
		for x, r := range row {
			c := chrono.Cell{X: x, Y: y}
			switch r {
			case '#':
				w.SetTile(c, TileWall)
			case '+':
				w.SetTile(c, TileDoor)
			case ' ':
				w.SetTile(c, TileVoid)
			case '.':
				w.SetTile(c, TileFloor)
			case '@':
				w.SetTile(c, TileFloor)
				if err := w.AddEntity(Entity{ID: playerID, Kind: EntityPlayer, Pos: c, HP: PlayerHP, MaxHP: PlayerHP}); err != nil {
					return nil, err
				}
			case 'M':
				w.SetTile(c, TileFloor)
				monsters++
				id := fmt.Sprintf("M%02d", monsters)
				if err := w.AddEntity(Entity{ID: id, Kind: EntityCreature, Pos: c, HP: monsterHP, MaxHP: monsterHP, Hostile: true}); err != nil {
					return nil, err
				}
			}
		}
	}

	for _, s := range lv.Superposed {
		w.MarkSuperposed(chrono.CellRef(chrono.Cell{X: s.X, Y: s.Y}), s.Prob)
	}
	for _, s := range lv.SuperposedEntities {
		if _, ok := w.Entity(s.ID); !ok {
			return nil, fmt.Errorf("level %s: superposed entity %s not on map", lv.ID, s.ID)
		}
		w.MarkSuperposed(chrono.EntityRef(s.ID), s.Prob)
	}
	for _, p := range lv.Entangled {
		a := chrono.CellRef(chrono.Cell{X: p.A[0], Y: p.A[1]})
		b := chrono.CellRef(chrono.Cell{X: p.B[0], Y: p.B[1]})
		w.Entangle(a, b)
	}
	return w, nil
}
