package chrono

// CollapseOutcome is the concrete state a superposed cell or entity resolves
// to. STABLE keeps the observed state; VOID resolves to absent (tile gone,
// entity never there).
type CollapseOutcome string

const (
	CollapseStable CollapseOutcome = "STABLE"
	CollapseVoid   CollapseOutcome = "VOID"
)

func (o CollapseOutcome) complement() CollapseOutcome {
	if o == CollapseVoid {
		return CollapseStable
	}
	return CollapseVoid
}

// Roller is the injectable randomness source for collapse rolls. It must be
// a pure function of (seed, turn, ref) so two runs with the same seed draw
// identical values.
type Roller interface {
	Roll(turn uint64, ref Ref) float64
}

// SplitMixRoller derives a uniform draw in [0,1) by hashing seed, turn and
// the ref coordinates through a splitmix-style finalizer. No shared state,
// no math/rand.
type SplitMixRoller struct {
	Seed int64
}

func (r SplitMixRoller) Roll(turn uint64, ref Ref) float64 {
	v := uint64(r.Seed) ^ (turn * 0x9e3779b97f4a7c15)
	switch ref.Kind {
	case RefCell:
		v ^= uint64(uint32(int32(ref.Cell.X))) * 0xc2b2ae3d27d4eb4f
		v ^= uint64(uint32(int32(ref.Cell.Y))) * 0xbf58476d1ce4e5b9
	case RefEntity:
		for _, b := range []byte(ref.EntityID) {
			v = (v ^ uint64(b)) * 0x100000001b3
		}
	}
	return float64(mix64(v)>>11) / float64(1<<53)
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

type collapseKey struct {
	turn uint64
	ref  Ref
}

// collapseRef resolves a possibly-superposed ref to a concrete outcome for
// the rest of the turn. The first roll within a turn is committed to the
// world via FixCollapse and memoized; repeated calls in the same turn return
// the memoized outcome without re-rolling. An entangled partner is fixed to
// the complementary outcome synchronously, inside the same call, before any
// caller can observe an inconsistent intermediate state.
func (e *Engine) collapseRef(ref Ref) (CollapseOutcome, bool) {
	key := collapseKey{turn: e.turn, ref: ref}
	if out, ok := e.collapses[key]; ok {
		return out, true
	}
	if !e.view.IsSuperposed(ref) {
		return "", false
	}
	p := e.view.CollapseProbability(ref)
	out := CollapseStable
	if e.roller.Roll(e.turn, ref) < p {
		out = CollapseVoid
	}
	e.collapses[key] = out
	e.mut.FixCollapse(ref, out)
	if partner, ok := e.view.EntangledPartner(ref); ok {
		pk := collapseKey{turn: e.turn, ref: partner}
		if _, done := e.collapses[pk]; !done {
			co := out.complement()
			e.collapses[pk] = co
			e.mut.FixCollapse(partner, co)
		}
	}
	return out, true
}
