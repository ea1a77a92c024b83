package chrono

type EchoState uint8

const (
	EchoActive EchoState = iota + 1
	EchoExpired
)

func (s EchoState) String() string {
	switch s {
	case EchoActive:
		return "ACTIVE"
	case EchoExpired:
		return "EXPIRED"
	}
	return "?"
}

// ExpireReason records why an echo left the world. Terminal states are
// absorbing; there is no resurrection path.
type ExpireReason string

const (
	ExpireNone      ExpireReason = ""
	ExpireNormal    ExpireReason = "normal"
	ExpireFatal     ExpireReason = "fatal"
	ExpireEnergy    ExpireReason = "energy"
	ExpireDismissed ExpireReason = "dismissed"
)

// Echo is a live agent replaying one timeline. It holds the timeline id only
// (weak reference into the store arena) plus a cursor, so timelines can be
// archived independently of echo lifetime.
type Echo struct {
	ID          string       `json:"id"`
	TimelineID  TimelineID   `json:"timeline_id"`
	Cursor      int          `json:"cursor"`
	CreatedTurn uint64       `json:"created_turn"`
	State       EchoState    `json:"state"`
	Reason      ExpireReason `json:"reason,omitempty"`

	// EntityID is the mirrored agent in the shared world.
	EntityID string `json:"entity_id"`
}

func (e *Echo) alive() bool { return e.State == EchoActive }

// EchoSummary is the read-only view handed to UI/ability systems.
type EchoSummary struct {
	ID          string     `json:"id"`
	TimelineID  TimelineID `json:"timeline_id"`
	Cursor      int        `json:"cursor"`
	LogLen      int        `json:"log_len"`
	CreatedTurn uint64     `json:"created_turn"`
	State       string     `json:"state"`
	Reason      string     `json:"reason,omitempty"`
	EntityID    string     `json:"entity_id"`
}
