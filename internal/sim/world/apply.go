package world

import (
	"fmt"

	"quantumrogue.dev/internal/protocol"
	"quantumrogue.dev/internal/sim/chrono"
)

// Item ids with mechanical effects. Anything else applies as a no-op.
const (
	ItemFractureCharge = "fracture_charge"
	ItemBlinkCharge    = "blink_charge"
)

// chrono.WorldMutator implementation.

func (w *World) Apply(a chrono.Action) chrono.ApplyResult {
	switch a.Kind {
	case chrono.ActMove:
		return w.applyMove(a)
	case chrono.ActAttack:
		return w.applyAttack(a)
	case chrono.ActUseItem:
		return w.applyUse(a)
	default:
		return chrono.ApplyResult{Success: true}
	}
}

func (w *World) applyMove(a chrono.Action) chrono.ApplyResult {
	ent, ok := w.entities[a.Actor]
	if !ok || !ent.Alive() {
		return chrono.ApplyResult{SideEffects: []string{"no_actor"}}
	}
	dest := ent.Pos.Add(a.Move.DX, a.Move.DY)
	if !w.TileAt(dest).Walkable() {
		return chrono.ApplyResult{SideEffects: []string{"blocked"}}
	}
	if occ, busy := w.occupancy[dest]; busy && occ != a.Actor {
		return chrono.ApplyResult{SideEffects: []string{"blocked:" + occ}}
	}
	delete(w.occupancy, ent.Pos)
	ent.Pos = dest
	w.occupancy[dest] = ent.ID
	return chrono.ApplyResult{Success: true, SideEffects: []string{"moved"}}
}

func (w *World) applyAttack(a chrono.Action) chrono.ApplyResult {
	actor, ok := w.entities[a.Actor]
	if !ok || !actor.Alive() {
		return chrono.ApplyResult{SideEffects: []string{"no_actor"}}
	}
	target, ok := w.entities[a.Attack.TargetID]
	if !ok || !target.Alive() {
		return chrono.ApplyResult{SideEffects: []string{"no_target"}}
	}
	if chrono.Manhattan(actor.Pos, target.Pos) > 1 {
		return chrono.ApplyResult{SideEffects: []string{"out_of_range"}}
	}
	target.HP -= w.cfg.AttackDamage
	effects := []string{fmt.Sprintf("damage:%s:%d", target.ID, w.cfg.AttackDamage)}
	if !target.Alive() {
		// Corpses stay in the roster (resolver needs "exists but dead")
		// but stop occupying their cell.
		if w.occupancy[target.Pos] == target.ID {
			delete(w.occupancy, target.Pos)
		}
		effects = append(effects, "killed:"+target.ID)
	}
	return chrono.ApplyResult{Success: true, SideEffects: effects}
}

func (w *World) applyUse(a chrono.Action) chrono.ApplyResult {
	actor, ok := w.entities[a.Actor]
	if !ok || !actor.Alive() {
		return chrono.ApplyResult{SideEffects: []string{"no_actor"}}
	}
	target := a.Use.Target
	switch a.Use.Item {
	case ItemFractureCharge:
		if !w.InBounds(target) || w.TileAt(target) == TileVoid {
			return chrono.ApplyResult{SideEffects: []string{"fizzle"}}
		}
		if occ, busy := w.occupancy[target]; busy {
			return chrono.ApplyResult{SideEffects: []string{"blocked:" + occ}}
		}
		w.DestroyTile(target)
		return chrono.ApplyResult{Success: true, SideEffects: []string{fmt.Sprintf("tile_destroyed:%d,%d", target.X, target.Y)}}
	case ItemBlinkCharge:
		if !w.TileAt(target).Walkable() {
			return chrono.ApplyResult{SideEffects: []string{"fizzle"}}
		}
		if occ, busy := w.occupancy[target]; busy && occ != a.Actor {
			return chrono.ApplyResult{SideEffects: []string{"blocked:" + occ}}
		}
		delete(w.occupancy, actor.Pos)
		actor.Pos = target
		w.occupancy[target] = actor.ID
		return chrono.ApplyResult{Success: true, SideEffects: []string{"blinked"}}
	default:
		return chrono.ApplyResult{Success: true, SideEffects: []string{"no_effect"}}
	}
}

func (w *World) FixCollapse(ref chrono.Ref, outcome chrono.CollapseOutcome) {
	if outcome != chrono.CollapseVoid {
		// STABLE keeps the superposed flag: the engine's memo prevents a
		// re-roll this turn, next turn it may collapse again.
		return
	}
	switch ref.Kind {
	case chrono.RefCell:
		w.DestroyTile(ref.Cell)
	case chrono.RefEntity:
		w.clearQuantum(ref)
		w.RemoveEntity(ref.EntityID)
	}
}

func (w *World) SpawnEchoEntity(echoID string, at chrono.Cell) (string, bool) {
	id := "G_" + echoID
	err := w.AddEntity(Entity{ID: id, Kind: EntityEcho, Pos: at, HP: 1, MaxHP: 1})
	if err != nil {
		return "", false
	}
	return id, true
}

func (w *World) RemoveEchoEntity(entityID string) {
	w.RemoveEntity(entityID)
}

// CanApply pre-validates a live player action the way the turn loop expects:
// an illegal command is rejected without consuming a turn, so every record
// in a timeline was legal when chosen. Returns a protocol error code, empty
// when legal.
func (w *World) CanApply(a chrono.Action) string {
	actor, ok := w.entities[a.Actor]
	if !ok || !actor.Alive() {
		return protocol.ErrNotFound
	}
	switch a.Kind {
	case chrono.ActMove:
		dest := actor.Pos.Add(a.Move.DX, a.Move.DY)
		if !w.TileAt(dest).Walkable() {
			return protocol.ErrBlocked
		}
		if occ, busy := w.occupancy[dest]; busy && occ != a.Actor {
			return protocol.ErrBlocked
		}
	case chrono.ActAttack:
		target, ok := w.entities[a.Attack.TargetID]
		if !ok {
			return protocol.ErrNotFound
		}
		if !target.Alive() {
			return protocol.ErrInvalidTarget
		}
		if chrono.Manhattan(actor.Pos, target.Pos) > 1 {
			return protocol.ErrInvalidTarget
		}
	case chrono.ActUseItem:
		if !w.InBounds(a.Use.Target) {
			return protocol.ErrInvalidTarget
		}
	}
	return ""
}
