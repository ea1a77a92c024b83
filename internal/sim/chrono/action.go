package chrono

import "fmt"

type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Cell) Add(dx, dy int) Cell { return Cell{X: c.X + dx, Y: c.Y + dy} }

func Manhattan(a, b Cell) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y)
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

type ActionKind string

const (
	ActMove    ActionKind = "MOVE"
	ActAttack  ActionKind = "ATTACK"
	ActUseItem ActionKind = "USE_ITEM"
	ActWait    ActionKind = "WAIT"
)

// Action is a closed tagged variant: exactly the payload matching Kind is
// set. Immutable once logged; corrections are new compensating actions.
type Action struct {
	Kind  ActionKind `json:"kind"`
	Actor string     `json:"actor"`
	Turn  uint64     `json:"turn"`

	Move   *MovePayload   `json:"move,omitempty"`
	Attack *AttackPayload `json:"attack,omitempty"`
	Use    *UsePayload    `json:"use,omitempty"`
}

type MovePayload struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

type AttackPayload struct {
	TargetID string `json:"target_id"`
}

type UsePayload struct {
	Item   string `json:"item"`
	Target Cell   `json:"target"`
}

func (a Action) Validate() error {
	switch a.Kind {
	case ActMove:
		if a.Move == nil {
			return fmt.Errorf("MOVE without payload")
		}
		if absInt(a.Move.DX) > 1 || absInt(a.Move.DY) > 1 || (a.Move.DX == 0 && a.Move.DY == 0) {
			return fmt.Errorf("MOVE delta out of range: %d,%d", a.Move.DX, a.Move.DY)
		}
	case ActAttack:
		if a.Attack == nil || a.Attack.TargetID == "" {
			return fmt.Errorf("ATTACK without target")
		}
	case ActUseItem:
		if a.Use == nil || a.Use.Item == "" {
			return fmt.Errorf("USE_ITEM without item")
		}
	case ActWait:
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return nil
}

// WaitAction is the universal soft-paradox fallback.
func WaitAction(actor string, turn uint64) Action {
	return Action{Kind: ActWait, Actor: actor, Turn: turn}
}
