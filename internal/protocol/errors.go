package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Run routing/state.
	ErrRunNotFound = "E_RUN_NOT_FOUND"
	ErrRunDead     = "E_RUN_DEAD"

	// Command layer.
	ErrBadRequest         = "E_BAD_REQUEST"
	ErrBlocked            = "E_BLOCKED"
	ErrInvalidTarget      = "E_INVALID_TARGET"
	ErrNotFound           = "E_NOT_FOUND"
	ErrInsufficientEnergy = "E_INSUFFICIENT_ENERGY"
	ErrUnknownTimeline    = "E_UNKNOWN_TIMELINE"
	ErrTimelineExhausted  = "E_TIMELINE_EXHAUSTED"
	ErrEchoLimit          = "E_ECHO_LIMIT"
	ErrSpawnBlocked       = "E_SPAWN_BLOCKED"
	ErrInternal           = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:    {},
	ErrRunNotFound:        {},
	ErrRunDead:            {},
	ErrBadRequest:         {},
	ErrBlocked:            {},
	ErrInvalidTarget:      {},
	ErrNotFound:           {},
	ErrInsufficientEnergy: {},
	ErrUnknownTimeline:    {},
	ErrTimelineExhausted:  {},
	ErrEchoLimit:          {},
	ErrSpawnBlocked:       {},
	ErrInternal:           {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
