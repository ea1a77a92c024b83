package world

import (
	"encoding/binary"
	"io"
	"sort"

	"quantumrogue.dev/internal/sim/chrono"
)

// DigestInto writes the world's canonical state into h: little-endian field
// writes, fixed traversal order, maps only walked after sorting.
func (w *World) DigestInto(h io.Writer) {
	var tmp [8]byte

	writeU64(h, &tmp, uint64(w.width))
	writeU64(h, &tmp, uint64(w.height))
	tiles := make([]byte, len(w.tiles))
	for i, k := range w.tiles {
		tiles[i] = byte(k)
	}
	h.Write(tiles)

	ents := w.Entities()
	writeU64(h, &tmp, uint64(len(ents)))
	for _, e := range ents {
		writeStr(h, &tmp, e.ID)
		writeStr(h, &tmp, e.Kind)
		writeI64(h, &tmp, int64(e.Pos.X))
		writeI64(h, &tmp, int64(e.Pos.Y))
		writeI64(h, &tmp, int64(e.HP))
		writeI64(h, &tmp, int64(e.MaxHP))
		h.Write([]byte{boolByte(e.Hostile)})
	}

	sup := make([]chrono.Ref, 0, len(w.superposed))
	for ref := range w.superposed {
		sup = append(sup, ref)
	}
	sortRefs(sup)
	writeU64(h, &tmp, uint64(len(sup)))
	for _, ref := range sup {
		digestRef(h, &tmp, ref)
		// Probabilities are tuning/level inputs with short decimal forms;
		// scale to permille for a stable integer encoding.
		writeU64(h, &tmp, uint64(w.superposed[ref]*1000))
	}

	ent := make([]chrono.Ref, 0, len(w.entangled))
	for ref := range w.entangled {
		ent = append(ent, ref)
	}
	sortRefs(ent)
	writeU64(h, &tmp, uint64(len(ent)))
	for _, ref := range ent {
		digestRef(h, &tmp, ref)
		digestRef(h, &tmp, w.entangled[ref])
	}
}

func digestRef(h io.Writer, tmp *[8]byte, ref chrono.Ref) {
	h.Write([]byte{byte(ref.Kind)})
	writeI64(h, tmp, int64(ref.Cell.X))
	writeI64(h, tmp, int64(ref.Cell.Y))
	writeStr(h, tmp, ref.EntityID)
}

func sortRefs(refs []chrono.Ref) {
	sort.Slice(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Cell.X != b.Cell.X {
			return a.Cell.X < b.Cell.X
		}
		if a.Cell.Y != b.Cell.Y {
			return a.Cell.Y < b.Cell.Y
		}
		return a.EntityID < b.EntityID
	})
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
