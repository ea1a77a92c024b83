package run

import (
	"quantumrogue.dev/internal/protocol"
	"quantumrogue.dev/internal/sim/chrono"
	"quantumrogue.dev/internal/sim/world"
)

// StateMsg builds the post-turn STATE frame. events may be nil for a plain
// state refresh (e.g. right after WELCOME).
func (r *Run) StateMsg(events []chrono.ParadoxEvent) protocol.StateMsg {
	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Turn:            r.Engine.Turn(),
		Digest:          r.DigestHex(),
		Energy:          r.Engine.Energy(),
		EnergyMax:       r.Tun.Energy.Max,
		Tiles:           r.World.Rows(),
	}
	for _, e := range r.World.Entities() {
		v := entityView(e)
		if e.ID == PlayerID {
			msg.Player = v
			continue
		}
		msg.Entities = append(msg.Entities, v)
	}
	for _, ec := range r.Engine.ActiveEchoes() {
		msg.Echoes = append(msg.Echoes, protocol.EchoView{
			ID:         ec.ID,
			TimelineID: string(ec.TimelineID),
			Cursor:     ec.Cursor,
			LogLen:     ec.LogLen,
			State:      ec.State,
			EntityID:   ec.EntityID,
		})
	}
	for _, ev := range events {
		msg.Events = append(msg.Events, protocol.ParadoxView{
			Seq:        ev.Seq,
			Turn:       ev.Turn,
			EchoID:     ev.EchoID,
			TimelineID: string(ev.TimelineID),
			Reason:     ev.Reason,
			Resolution: ev.Resolution,
			Executed:   string(ev.Executed),
		})
	}
	return msg
}

func entityView(e *world.Entity) protocol.EntityView {
	return protocol.EntityView{
		ID:      e.ID,
		Kind:    e.Kind,
		X:       e.Pos.X,
		Y:       e.Pos.Y,
		HP:      e.HP,
		MaxHP:   e.MaxHP,
		Hostile: e.Hostile,
	}
}
