package world

import (
	"fmt"
	"sort"

	"quantumrogue.dev/internal/sim/chrono"
)

type TileKind uint8

const (
	TileFloor TileKind = iota
	TileWall
	TileDoor
	// TileVoid is a destroyed cell: no floor, nothing can stand there.
	TileVoid
)

func (k TileKind) Walkable() bool { return k == TileFloor || k == TileDoor }

func (k TileKind) Rune() rune {
	switch k {
	case TileFloor:
		return '.'
	case TileWall:
		return '#'
	case TileDoor:
		return '+'
	case TileVoid:
		return ' '
	}
	return '?'
}

const (
	EntityPlayer   = "player"
	EntityEcho     = "echo"
	EntityCreature = "creature"
)

type Entity struct {
	ID      string      `json:"id"`
	Kind    string      `json:"kind"`
	Pos     chrono.Cell `json:"pos"`
	HP      int         `json:"hp"`
	MaxHP   int         `json:"max_hp"`
	Hostile bool        `json:"hostile,omitempty"`
}

func (e *Entity) Alive() bool { return e.HP > 0 }

type Config struct {
	AttackDamage        int
	DefaultCollapseProb float64
}

// World is the grid collaborator behind the engine's query and mutation
// interfaces. Like the engine it is touched only from its run's goroutine;
// ordering, not locking, is the discipline.
type World struct {
	width  int
	height int
	tiles  []TileKind

	cfg Config

	entities  map[string]*Entity
	occupancy map[chrono.Cell]string

	superposed map[chrono.Ref]float64
	entangled  map[chrono.Ref]chrono.Ref
}

func New(width, height int, cfg Config) (*World, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("world size %dx%d", width, height)
	}
	return &World{
		width:      width,
		height:     height,
		tiles:      make([]TileKind, width*height),
		cfg:        cfg,
		entities:   make(map[string]*Entity),
		occupancy:  make(map[chrono.Cell]string),
		superposed: make(map[chrono.Ref]float64),
		entangled:  make(map[chrono.Ref]chrono.Ref),
	}, nil
}

func (w *World) Width() int  { return w.width }
func (w *World) Height() int { return w.height }

func (w *World) InBounds(c chrono.Cell) bool {
	return c.X >= 0 && c.X < w.width && c.Y >= 0 && c.Y < w.height
}

func (w *World) TileAt(c chrono.Cell) TileKind {
	if !w.InBounds(c) {
		return TileWall
	}
	return w.tiles[c.Y*w.width+c.X]
}

func (w *World) SetTile(c chrono.Cell, k TileKind) {
	if w.InBounds(c) {
		w.tiles[c.Y*w.width+c.X] = k
	}
}

// DestroyTile turns a cell into void permanently and drops any quantum
// flags it carried.
func (w *World) DestroyTile(c chrono.Cell) {
	if !w.InBounds(c) {
		return
	}
	w.SetTile(c, TileVoid)
	w.clearQuantum(chrono.CellRef(c))
}

func (w *World) clearQuantum(ref chrono.Ref) {
	delete(w.superposed, ref)
	if partner, ok := w.entangled[ref]; ok {
		delete(w.entangled, partner)
		delete(w.entangled, ref)
	}
}

func (w *World) AddEntity(e Entity) error {
	if _, ok := w.entities[e.ID]; ok {
		return fmt.Errorf("entity %s exists", e.ID)
	}
	if !w.TileAt(e.Pos).Walkable() {
		return fmt.Errorf("entity %s on unwalkable %v", e.ID, e.Pos)
	}
	if occ, ok := w.occupancy[e.Pos]; ok {
		return fmt.Errorf("entity %s cell %v occupied by %s", e.ID, e.Pos, occ)
	}
	ent := e
	w.entities[e.ID] = &ent
	w.occupancy[e.Pos] = e.ID
	return nil
}

func (w *World) RemoveEntity(id string) {
	ent, ok := w.entities[id]
	if !ok {
		return
	}
	if w.occupancy[ent.Pos] == id {
		delete(w.occupancy, ent.Pos)
	}
	delete(w.entities, id)
}

func (w *World) Entity(id string) (*Entity, bool) {
	e, ok := w.entities[id]
	return e, ok
}

// Entities returns the roster sorted by id.
func (w *World) Entities() []*Entity {
	out := make([]*Entity, 0, len(w.entities))
	for _, e := range w.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MarkSuperposed flags a cell or entity with a collapse probability.
// Probability 0 falls back to the configured default.
func (w *World) MarkSuperposed(ref chrono.Ref, prob float64) {
	if prob <= 0 {
		prob = w.cfg.DefaultCollapseProb
	}
	if prob > 1 {
		prob = 1
	}
	w.superposed[ref] = prob
}

// Entangle links two refs as a complementary pair, both directions.
func (w *World) Entangle(a, b chrono.Ref) {
	w.entangled[a] = b
	w.entangled[b] = a
}

// Rows renders the tile grid as string art, one string per row. Entities are
// not drawn; the view layer overlays them.
func (w *World) Rows() []string {
	rows := make([]string, w.height)
	for y := 0; y < w.height; y++ {
		buf := make([]rune, w.width)
		for x := 0; x < w.width; x++ {
			buf[x] = w.tiles[y*w.width+x].Rune()
		}
		rows[y] = string(buf)
	}
	return rows
}
