package run

import (
	"errors"

	"quantumrogue.dev/internal/protocol"
	"quantumrogue.dev/internal/sim/chrono"
)

// CodeError pairs a wire error code with a human message. Transport sends it
// back verbatim as an ERROR frame.
type CodeError struct {
	Code string
	Msg  string
}

func (e *CodeError) Error() string { return e.Code + ": " + e.Msg }

// CodeForError maps engine sentinels onto wire codes. Anything unrecognized
// is E_INTERNAL; the transport must never invent codes of its own.
func CodeForError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, chrono.ErrInsufficientEnergy):
		return protocol.ErrInsufficientEnergy
	case errors.Is(err, chrono.ErrUnknownTimeline):
		return protocol.ErrUnknownTimeline
	case errors.Is(err, chrono.ErrTimelineArchived):
		return protocol.ErrUnknownTimeline
	case errors.Is(err, chrono.ErrTimelineExhausted):
		return protocol.ErrTimelineExhausted
	case errors.Is(err, chrono.ErrEchoLimit):
		return protocol.ErrEchoLimit
	case errors.Is(err, chrono.ErrSpawnBlocked):
		return protocol.ErrSpawnBlocked
	case errors.Is(err, chrono.ErrNotFound):
		return protocol.ErrNotFound
	default:
		return protocol.ErrInternal
	}
}
