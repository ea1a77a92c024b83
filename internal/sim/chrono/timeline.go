package chrono

import (
	"fmt"
	"sort"
)

type TimelineID string

// Timeline pairs an action log with its creation turn and archived flag.
// Owned exclusively by the TimelineStore arena; echoes hold only the id.
type Timeline struct {
	ID       TimelineID
	Log      *ActionLog
	Archived bool
}

// TimelineStore is the arena of timelines, keyed by id. Only the live
// recording appends; echoes only read.
type TimelineStore struct {
	timelines map[TimelineID]*Timeline
	nextNum   uint64
}

func NewTimelineStore() *TimelineStore {
	return &TimelineStore{timelines: make(map[TimelineID]*Timeline)}
}

func (s *TimelineStore) Create(startTurn uint64) TimelineID {
	s.nextNum++
	id := TimelineID(fmt.Sprintf("T%03d", s.nextNum))
	s.timelines[id] = &Timeline{ID: id, Log: NewActionLog(startTurn)}
	return id
}

func (s *TimelineStore) Record(id TimelineID, action Action, fp Fingerprint) error {
	tl, ok := s.timelines[id]
	if !ok {
		return fmt.Errorf("record %s: %w", id, ErrUnknownTimeline)
	}
	if tl.Archived {
		return fmt.Errorf("record %s: %w", id, ErrTimelineArchived)
	}
	_, err := tl.Log.Append(Record{Action: action, Fingerprint: fp})
	return err
}

// Read returns the record at turn offset from the timeline's t0. Reads keep
// working after archival so cross-run echoes can replay archived history.
func (s *TimelineStore) Read(id TimelineID, offset int) (Record, error) {
	tl, ok := s.timelines[id]
	if !ok {
		return Record{}, fmt.Errorf("read %s: %w", id, ErrUnknownTimeline)
	}
	return tl.Log.At(offset)
}

func (s *TimelineStore) Len(id TimelineID) (int, error) {
	tl, ok := s.timelines[id]
	if !ok {
		return 0, fmt.Errorf("len %s: %w", id, ErrUnknownTimeline)
	}
	return tl.Log.Len(), nil
}

// Archive marks a timeline read-only. Further Record calls fail; Read keeps
// working.
func (s *TimelineStore) Archive(id TimelineID) error {
	tl, ok := s.timelines[id]
	if !ok {
		return fmt.Errorf("archive %s: %w", id, ErrUnknownTimeline)
	}
	tl.Archived = true
	return nil
}

// Timelines returns all timelines sorted by id; the only sanctioned way to
// iterate the arena (map order never leaks into step or digest paths).
func (s *TimelineStore) Timelines() []*Timeline {
	out := make([]*Timeline, 0, len(s.timelines))
	for _, tl := range s.timelines {
		out = append(out, tl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *TimelineStore) get(id TimelineID) (*Timeline, bool) {
	tl, ok := s.timelines[id]
	return tl, ok
}
