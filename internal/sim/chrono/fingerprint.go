package chrono

// RefKind distinguishes the two addressable world slices.
type RefKind uint8

const (
	RefCell RefKind = iota + 1
	RefEntity
)

// Ref addresses one cell or one entity for superposition queries and
// collapse commits.
type Ref struct {
	Kind     RefKind `json:"kind"`
	Cell     Cell    `json:"cell,omitempty"`
	EntityID string  `json:"entity_id,omitempty"`
}

func CellRef(c Cell) Ref      { return Ref{Kind: RefCell, Cell: c} }
func EntityRef(id string) Ref { return Ref{Kind: RefEntity, EntityID: id} }

// CellProbe is the observable slice of one cell at probe time.
type CellProbe struct {
	Pos             Cell   `json:"pos"`
	Walkable        bool   `json:"walkable"`
	Destroyed       bool   `json:"destroyed"`
	OccupantID      string `json:"occupant_id,omitempty"`
	OccupantHostile bool   `json:"occupant_hostile,omitempty"`
	Superposed      bool   `json:"superposed,omitempty"`
}

// EntityProbe is the observable slice of one entity at probe time.
type EntityProbe struct {
	ID      string `json:"id"`
	Exists  bool   `json:"exists"`
	Alive   bool   `json:"alive"`
	Pos     Cell   `json:"pos"`
	Hostile bool   `json:"hostile,omitempty"`
}

// Fingerprint captures the preconditions an action depended on when it was
// chosen: the actor's own cell, plus the target cell and/or target entity for
// kinds that have one. Stored alongside every logged action so the resolver
// can detect divergence without the full historical world.
type Fingerprint struct {
	Actor  CellProbe    `json:"actor"`
	Target *CellProbe   `json:"target,omitempty"`
	Entity *EntityProbe `json:"entity,omitempty"`
}

// equalNormalized compares two fingerprints field by field, treating
// occupant id `was` as equal to `is`. A replaying echo stands where the
// recording agent stood, so the recorded occupant id must be mapped to the
// echo's own entity id before comparison or every step would diverge.
func (f Fingerprint) equalNormalized(now Fingerprint, was, is string) bool {
	if !cellProbeEqual(f.Actor, now.Actor, was, is) {
		return false
	}
	if (f.Target == nil) != (now.Target == nil) {
		return false
	}
	if f.Target != nil && !cellProbeEqual(*f.Target, *now.Target, was, is) {
		return false
	}
	if (f.Entity == nil) != (now.Entity == nil) {
		return false
	}
	if f.Entity != nil && *f.Entity != *now.Entity {
		return false
	}
	return true
}

func cellProbeEqual(a, b CellProbe, was, is string) bool {
	ao, bo := a.OccupantID, b.OccupantID
	if ao == was {
		ao = is
	}
	if bo == was {
		bo = is
	}
	a.OccupantID, b.OccupantID = "", ""
	return a == b && ao == bo
}
