package protocol

// HELLO (client -> server): start a fresh run or resume one by token.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerName      string `json:"player_name"`
	LevelID         string `json:"level_id,omitempty"`
	Seed            int64  `json:"seed,omitempty"`
	ResumeToken     string `json:"resume_token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	ResumeToken     string `json:"resume_token"`
	PlayerID        string `json:"player_id"`
	LevelID         string `json:"level_id"`
	LevelsDigest    string `json:"levels_digest"`
	Seed            int64  `json:"seed"`
	Turn            uint64 `json:"turn"`
	Energy          int    `json:"energy"`
	EnergyMax       int    `json:"energy_max"`
}

// Command kinds accepted in CMD.
const (
	CmdMove    = "MOVE"
	CmdAttack  = "ATTACK"
	CmdUse     = "USE"
	CmdWait    = "WAIT"
	CmdRewind  = "REWIND"
	CmdDismiss = "DISMISS"
)

// CMD (client -> server): one command = one turn.
type CmdMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Cmd             string `json:"cmd"`

	DX int `json:"dx,omitempty"`
	DY int `json:"dy,omitempty"`

	TargetID string `json:"target_id,omitempty"`

	Item   string `json:"item,omitempty"`
	Target [2]int `json:"target,omitempty"`

	TimelineID string `json:"timeline_id,omitempty"`
	Offset     int    `json:"offset,omitempty"`

	EchoID string `json:"echo_id,omitempty"`
}

// STATE (server -> client): the post-turn view.
type StateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	Turn      uint64 `json:"turn"`
	Digest    string `json:"digest"`
	Energy    int    `json:"energy"`
	EnergyMax int    `json:"energy_max"`

	Tiles    []string      `json:"tiles"`
	Player   EntityView    `json:"player"`
	Entities []EntityView  `json:"entities"`
	Echoes   []EchoView    `json:"echoes"`
	Events   []ParadoxView `json:"events,omitempty"`
}

type EntityView struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	HP      int    `json:"hp"`
	MaxHP   int    `json:"max_hp"`
	Hostile bool   `json:"hostile,omitempty"`
}

type EchoView struct {
	ID         string `json:"id"`
	TimelineID string `json:"timeline_id"`
	Cursor     int    `json:"cursor"`
	LogLen     int    `json:"log_len"`
	State      string `json:"state"`
	EntityID   string `json:"entity_id"`
}

type ParadoxView struct {
	Seq        uint64 `json:"seq"`
	Turn       uint64 `json:"turn"`
	EchoID     string `json:"echo_id"`
	TimelineID string `json:"timeline_id"`
	Reason     string `json:"reason"`
	Resolution string `json:"resolution"`
	Executed   string `json:"executed,omitempty"`
}

// ERROR (server -> client): command rejected, no turn consumed.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}
