// Package run drives one game run: it owns the world and the engine, turns
// player commands into turns, and feeds the persistence sinks. Everything
// here executes on the run's own goroutine; see Registry.
package run

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"quantumrogue.dev/internal/persistence/indexdb"
	"quantumrogue.dev/internal/persistence/snapshot"
	"quantumrogue.dev/internal/protocol"
	"quantumrogue.dev/internal/sim/chrono"
	"quantumrogue.dev/internal/sim/levels"
	"quantumrogue.dev/internal/sim/tuning"
	"quantumrogue.dev/internal/sim/world"
)

const PlayerID = "P1"

// Command is the transport-independent form of one player command. One
// accepted command is exactly one turn; a rejected command is zero turns.
type Command struct {
	Kind string `json:"kind"`

	DX int `json:"dx,omitempty"`
	DY int `json:"dy,omitempty"`

	TargetID string `json:"target_id,omitempty"`

	Item   string      `json:"item,omitempty"`
	Target chrono.Cell `json:"target,omitempty"`

	TimelineID string `json:"timeline_id,omitempty"`
	Offset     int    `json:"offset,omitempty"`

	EchoID string `json:"echo_id,omitempty"`
}

// CommandFromMsg lifts a wire CMD into a Command.
func CommandFromMsg(m protocol.CmdMsg) Command {
	return Command{
		Kind:       m.Cmd,
		DX:         m.DX,
		DY:         m.DY,
		TargetID:   m.TargetID,
		Item:       m.Item,
		Target:     chrono.Cell{X: m.Target[0], Y: m.Target[1]},
		TimelineID: m.TimelineID,
		Offset:     m.Offset,
		EchoID:     m.EchoID,
	}
}

// Sinks are the persistence attachments of a run. Any of them may be nil
// (tests run sinkless); write failures are reported but never fail a turn.
type Sinks struct {
	Turns   func(v any) error
	Paradox func(v any) error
	Index   *indexdb.SQLiteIndex

	SnapshotDir string
}

// TurnLogEntry is one JSONL line of the per-run turn log.
type TurnLogEntry struct {
	RunID       string   `json:"run_id"`
	Turn        uint64   `json:"turn"`
	Cmd         Command  `json:"cmd"`
	Digest      string   `json:"digest"`
	Energy      int      `json:"energy"`
	Paradoxes   int      `json:"paradoxes"`
	SideEffects []string `json:"side_effects,omitempty"`
	LoggedAt    string   `json:"logged_at,omitempty"`
}

type Run struct {
	ID      string
	Seed    int64
	LevelID string

	Tun    tuning.Tuning
	World  *world.World
	Engine *chrono.Engine

	sinks Sinks

	lastSinkErr error
}

func worldConfig(t tuning.Tuning) world.Config {
	return world.Config{
		AttackDamage:        t.Combat.AttackDamage,
		DefaultCollapseProb: t.Quantum.DefaultCollapseProb,
	}
}

// New starts a fresh run on a level template and opens the live recording.
func New(id string, seed int64, lv *levels.Level, tun tuning.Tuning, sinks Sinks) (*Run, error) {
	w, err := world.FromLevel(lv, worldConfig(tun), PlayerID)
	if err != nil {
		return nil, err
	}
	eng := chrono.NewEngine(tun.EngineConfig(), w, w, chrono.SplitMixRoller{Seed: seed})
	eng.StartRecording()

	r := &Run{
		ID:      id,
		Seed:    seed,
		LevelID: lv.ID,
		Tun:     tun,
		World:   w,
		Engine:  eng,
		sinks:   sinks,
	}
	if sinks.Index != nil {
		sinks.Index.PutRun(indexdb.RunRow{RunID: id, LevelID: lv.ID, Seed: seed})
	}
	return r, nil
}

// Restore rebuilds a run from its snapshot: world section first, then the
// engine blob (whose echo entities the world section already carries).
func Restore(snap snapshot.RunSnapshotV1, sinks Sinks) (*Run, error) {
	w, err := world.FromSnapshot(snap.World, worldConfig(snap.Tuning))
	if err != nil {
		return nil, err
	}
	eng := chrono.NewEngine(snap.Tuning.EngineConfig(), w, w, chrono.SplitMixRoller{Seed: snap.Seed})
	if err := eng.ImportState(snap.Engine); err != nil {
		return nil, err
	}
	return &Run{
		ID:      snap.Header.RunID,
		Seed:    snap.Seed,
		LevelID: snap.LevelID,
		Tun:     snap.Tuning,
		World:   w,
		Engine:  eng,
		sinks:   sinks,
	}, nil
}

// StepResult is what one accepted turn produced.
type StepResult struct {
	Turn   uint64
	Digest string
	Apply  chrono.ApplyResult
	Events []chrono.ParadoxEvent
}

// Step executes one command as one full turn. A *CodeError return means the
// command was rejected before the turn opened and no state changed.
func (r *Run) Step(cmd Command) (StepResult, error) {
	player, ok := r.World.Entity(PlayerID)
	if !ok || !player.Alive() {
		return StepResult{}, &CodeError{Code: protocol.ErrRunDead, Msg: "player is dead"}
	}

	switch cmd.Kind {
	case protocol.CmdMove, protocol.CmdAttack, protocol.CmdUse, protocol.CmdWait:
		return r.stepAction(cmd)
	case protocol.CmdRewind:
		return r.stepRewind(cmd)
	case protocol.CmdDismiss:
		return r.stepDismiss(cmd)
	default:
		return StepResult{}, &CodeError{Code: protocol.ErrBadRequest, Msg: fmt.Sprintf("unknown command %q", cmd.Kind)}
	}
}

func (r *Run) stepAction(cmd Command) (StepResult, error) {
	a, err := actionFor(cmd)
	if err != nil {
		return StepResult{}, &CodeError{Code: protocol.ErrBadRequest, Msg: err.Error()}
	}
	// Rejections must not consume the turn, so legality and affordability are
	// checked before BeginTurn. Once the turn opens the action is committed.
	if code := r.World.CanApply(a); code != "" {
		return StepResult{}, &CodeError{Code: code, Msg: "command not applicable"}
	}
	if r.Engine.Energy() < r.Tun.Energy.RecordCost {
		return StepResult{}, &CodeError{Code: protocol.ErrInsufficientEnergy, Msg: "cannot afford recording"}
	}

	r.Engine.BeginTurn()
	res, err := r.Engine.RecordPlayerAction(a)
	if err != nil {
		return StepResult{}, r.fail(err)
	}
	return r.finishTurn(cmd, res)
}

func (r *Run) stepRewind(cmd Command) (StepResult, error) {
	id := chrono.TimelineID(cmd.TimelineID)
	n, err := r.Engine.Store().Len(id)
	if err != nil {
		return StepResult{}, &CodeError{Code: protocol.ErrUnknownTimeline, Msg: err.Error()}
	}
	if cmd.Offset < 0 || cmd.Offset >= n {
		return StepResult{}, &CodeError{Code: protocol.ErrNotFound, Msg: fmt.Sprintf("offset %d of %d", cmd.Offset, n)}
	}
	if max := r.Tun.Echo.MaxActive; max > 0 && len(r.Engine.ActiveEchoes()) >= max {
		return StepResult{}, &CodeError{Code: protocol.ErrEchoLimit, Msg: "echo limit reached"}
	}
	if r.Engine.Energy() < r.Tun.Echo.SpawnCost+r.Tun.Energy.RecordCost {
		return StepResult{}, &CodeError{Code: protocol.ErrInsufficientEnergy, Msg: "cannot afford echo"}
	}
	rec, err := r.Engine.Store().Read(id, cmd.Offset)
	if err != nil {
		return StepResult{}, r.fail(err)
	}
	if p := r.World.CellProbeAt(rec.Fingerprint.Actor.Pos); !p.Walkable || p.OccupantID != "" {
		return StepResult{}, &CodeError{Code: protocol.ErrSpawnBlocked, Msg: "anchor cell blocked"}
	}

	// Spawning an echo costs the turn: the live player records a WAIT so the
	// timeline stays contiguous, then the echo joins this turn's schedule.
	r.Engine.BeginTurn()
	res, err := r.Engine.RecordPlayerAction(chrono.WaitAction(PlayerID, 0))
	if err != nil {
		return StepResult{}, r.fail(err)
	}
	if _, err := r.Engine.SpawnEcho(id, cmd.Offset); err != nil {
		// The anchor probe above makes this a same-turn collapse race; the
		// turn is already committed, so report and carry on.
		step, ferr := r.finishTurn(cmd, res)
		if ferr != nil {
			return step, ferr
		}
		return step, &CodeError{Code: CodeForError(err), Msg: err.Error()}
	}
	return r.finishTurn(cmd, res)
}

func (r *Run) stepDismiss(cmd Command) (StepResult, error) {
	found := false
	for _, ec := range r.Engine.ActiveEchoes() {
		if ec.ID == cmd.EchoID {
			found = true
			break
		}
	}
	if !found {
		return StepResult{}, &CodeError{Code: protocol.ErrNotFound, Msg: fmt.Sprintf("echo %s not active", cmd.EchoID)}
	}
	if r.Engine.Energy() < r.Tun.Energy.RecordCost {
		return StepResult{}, &CodeError{Code: protocol.ErrInsufficientEnergy, Msg: "cannot afford recording"}
	}

	r.Engine.BeginTurn()
	res, err := r.Engine.RecordPlayerAction(chrono.WaitAction(PlayerID, 0))
	if err != nil {
		return StepResult{}, r.fail(err)
	}
	if err := r.Engine.DismissEcho(cmd.EchoID); err != nil {
		return StepResult{}, r.fail(err)
	}
	return r.finishTurn(cmd, res)
}

func (r *Run) finishTurn(cmd Command, res chrono.ApplyResult) (StepResult, error) {
	if err := r.Engine.AdvanceEchoes(); err != nil {
		return StepResult{}, r.fail(err)
	}
	events, err := r.Engine.EndTurn()
	if err != nil {
		return StepResult{}, r.fail(err)
	}

	step := StepResult{
		Turn:   r.Engine.Turn(),
		Digest: r.DigestHex(),
		Apply:  res,
		Events: events,
	}
	r.persistTurn(cmd, step)
	return step, nil
}

func (r *Run) fail(err error) error {
	return &CodeError{Code: CodeForError(err), Msg: err.Error()}
}

// DigestHex is the canonical per-turn digest: world section then engine
// section through one sha256.
func (r *Run) DigestHex() string {
	h := sha256.New()
	r.World.DigestInto(h)
	r.Engine.DigestInto(h)
	return hex.EncodeToString(h.Sum(nil))
}

func (r *Run) persistTurn(cmd Command, step StepResult) {
	if r.sinks.Turns != nil {
		entry := TurnLogEntry{
			RunID:       r.ID,
			Turn:        step.Turn,
			Cmd:         cmd,
			Digest:      step.Digest,
			Energy:      r.Engine.Energy(),
			Paradoxes:   len(step.Events),
			SideEffects: step.Apply.SideEffects,
			LoggedAt:    time.Now().UTC().Format(time.RFC3339),
		}
		if err := r.sinks.Turns(entry); err != nil {
			r.lastSinkErr = err
		}
	}
	if r.sinks.Paradox != nil {
		for _, ev := range step.Events {
			if err := r.sinks.Paradox(ev); err != nil {
				r.lastSinkErr = err
			}
		}
	}
	if r.sinks.Index != nil {
		cb, _ := json.Marshal(cmd)
		r.sinks.Index.PutTurn(indexdb.TurnRow{
			RunID:     r.ID,
			Turn:      step.Turn,
			CmdJSON:   string(cb),
			Digest:    step.Digest,
			Paradoxes: len(step.Events),
		})
		for _, ev := range step.Events {
			r.sinks.Index.PutParadox(r.ID, ev)
		}
		for _, tl := range r.Engine.Store().Timelines() {
			r.sinks.Index.PutTimeline(indexdb.TimelineRow{
				RunID:      r.ID,
				TimelineID: string(tl.ID),
				T0:         tl.Log.T0(),
				Archived:   tl.Archived,
				Length:     tl.Log.Len(),
			})
		}
	}

	if every := r.Tun.SnapshotEveryTurns; every > 0 && r.sinks.SnapshotDir != "" && step.Turn%uint64(every) == 0 {
		if path, err := r.WriteSnapshot(r.sinks.SnapshotDir); err != nil {
			r.lastSinkErr = err
		} else if r.sinks.Index != nil {
			r.sinks.Index.PutSnapshot(indexdb.SnapshotRow{RunID: r.ID, Turn: step.Turn, Path: path})
		}
	}
}

// WriteSnapshot writes the run's full state under dir and returns the path.
func (r *Run) WriteSnapshot(dir string) (string, error) {
	turn := r.Engine.Turn()
	snap := snapshot.RunSnapshotV1{
		Header:     snapshot.Header{Version: snapshot.Version, RunID: r.ID, Turn: turn},
		Seed:       r.Seed,
		LevelID:    r.LevelID,
		Tuning:     r.Tun,
		World:      r.World.ExportSection(),
		Engine:     r.Engine.ExportState(),
		RecordedAt: time.Now().UTC().Format(time.RFC3339),
	}
	path := snapshot.Path(dir, turn)
	if err := snapshot.Write(path, snap); err != nil {
		return "", err
	}
	return path, nil
}

// LastSinkError reports the most recent persistence failure, nil when clean.
// Sink failures never fail turns; callers poll this for health reporting.
func (r *Run) LastSinkError() error { return r.lastSinkErr }

func actionFor(cmd Command) (chrono.Action, error) {
	a := chrono.Action{Actor: PlayerID}
	switch cmd.Kind {
	case protocol.CmdMove:
		a.Kind = chrono.ActMove
		a.Move = &chrono.MovePayload{DX: cmd.DX, DY: cmd.DY}
	case protocol.CmdAttack:
		a.Kind = chrono.ActAttack
		a.Attack = &chrono.AttackPayload{TargetID: cmd.TargetID}
	case protocol.CmdUse:
		a.Kind = chrono.ActUseItem
		a.Use = &chrono.UsePayload{Item: cmd.Item, Target: cmd.Target}
	case protocol.CmdWait:
		a.Kind = chrono.ActWait
	default:
		return a, fmt.Errorf("unknown command %q", cmd.Kind)
	}
	if err := a.Validate(); err != nil {
		return a, err
	}
	return a, nil
}
