package chrono

import "errors"

// Recoverable engine failures, surfaced to the caller and checked with
// errors.Is. ErrTimelineExhausted during scheduled replay is not an error to
// the player; the scheduler consumes it as the normal expiry signal.
var (
	ErrInvalidTurnOrder   = errors.New("invalid turn order")
	ErrUnknownTimeline    = errors.New("unknown timeline")
	ErrTimelineArchived   = errors.New("timeline archived")
	ErrTimelineExhausted  = errors.New("timeline exhausted")
	ErrInsufficientEnergy = errors.New("insufficient energy")
	ErrNotFound           = errors.New("not found")
	ErrEchoLimit          = errors.New("active echo limit reached")
	ErrSpawnBlocked       = errors.New("echo spawn cell blocked")
)

// ErrStateCorrupt marks a broken invariant (negative ledger balance, a
// non-contiguous log read). The turn aborts; the run must not proceed on
// corrupted state.
var ErrStateCorrupt = errors.New("engine state corrupt")
