package run

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"quantumrogue.dev/internal/logging"
	"quantumrogue.dev/internal/persistence/indexdb"
	runlog "quantumrogue.dev/internal/persistence/log"
	"quantumrogue.dev/internal/persistence/snapshot"
	"quantumrogue.dev/internal/protocol"
	"quantumrogue.dev/internal/sim/levels"
	"quantumrogue.dev/internal/sim/tuning"
)

// Instance is a hosted run: the Run plus its inbox goroutine and its log
// writers. All sim access goes through Do; the goroutine serializes it.
type Instance struct {
	Run         *Run
	ResumeToken string

	inbox chan job
	done  chan struct{}

	turns   *runlog.TurnLogger
	paradox *runlog.ParadoxLogger
}

type job struct {
	fn    func(*Run)
	reply chan struct{}
}

// Do runs fn on the instance's goroutine and waits for it. Returns false if
// the instance already shut down.
func (in *Instance) Do(ctx context.Context, fn func(*Run)) bool {
	j := job{fn: fn, reply: make(chan struct{})}
	select {
	case in.inbox <- j:
	case <-in.done:
		return false
	case <-ctx.Done():
		return false
	}
	select {
	case <-j.reply:
		return true
	case <-in.done:
		return false
	}
}

func (in *Instance) loop() {
	for {
		select {
		case j := <-in.inbox:
			j.fn(in.Run)
			close(j.reply)
		case <-in.done:
			return
		}
	}
}

// RegistryConfig wires the registry's persistence roots.
type RegistryConfig struct {
	DataDir string
	Index   *indexdb.SQLiteIndex

	Levels *levels.Catalog
	Tuning tuning.Tuning
}

// Registry hosts every live run in the process. Creation, resume-by-token
// and shutdown are serialized by its mutex; per-run sim work is serialized
// by each instance's goroutine.
type Registry struct {
	cfg RegistryConfig

	mu      sync.Mutex
	byID    map[string]*Instance
	byToken map[string]*Instance
}

func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		cfg:     cfg,
		byID:    make(map[string]*Instance),
		byToken: make(map[string]*Instance),
	}
}

func (g *Registry) runDir(id string) string {
	return filepath.Join(g.cfg.DataDir, "runs", id)
}

// Create starts a fresh run on levelID with the given seed and hosts it.
func (g *Registry) Create(levelID string, seed int64) (*Instance, error) {
	lv, ok := g.cfg.Levels.Get(levelID)
	if !ok {
		return nil, &CodeError{Code: protocol.ErrNotFound, Msg: fmt.Sprintf("level %q", levelID)}
	}

	id := uuid.NewString()
	dir := g.runDir(id)
	turns := runlog.NewTurnLogger(dir)
	paradox := runlog.NewParadoxLogger(dir)

	r, err := New(id, seed, lv, g.cfg.Tuning, Sinks{
		Turns:       turns.Write,
		Paradox:     paradox.Write,
		Index:       g.cfg.Index,
		SnapshotDir: filepath.Join(dir, "snapshots"),
	})
	if err != nil {
		_ = turns.Close()
		_ = paradox.Close()
		return nil, err
	}
	return g.host(r, turns, paradox), nil
}

// Resume reattaches to a live run by its resume token.
func (g *Registry) Resume(token string) (*Instance, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.byToken[token]
	return in, ok
}

// IDs returns the ids of every hosted run, sorted.
func (g *Registry) IDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.byID))
	for id := range g.byID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Get looks a hosted run up by id.
func (g *Registry) Get(id string) (*Instance, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.byID[id]
	return in, ok
}

// Revive loads the newest snapshot of a previously hosted run from disk and
// hosts it again. Turns played after that snapshot are gone; the snapshot
// cadence bounds the loss.
func (g *Registry) Revive(id string) (*Instance, error) {
	dir := g.runDir(id)
	path, err := snapshot.Latest(filepath.Join(dir, "snapshots"))
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, &CodeError{Code: protocol.ErrRunNotFound, Msg: fmt.Sprintf("run %q has no snapshot", id)}
	}
	snap, err := snapshot.Read(path)
	if err != nil {
		return nil, err
	}

	turns := runlog.NewTurnLogger(dir)
	paradox := runlog.NewParadoxLogger(dir)
	r, err := Restore(snap, Sinks{
		Turns:       turns.Write,
		Paradox:     paradox.Write,
		Index:       g.cfg.Index,
		SnapshotDir: filepath.Join(dir, "snapshots"),
	})
	if err != nil {
		_ = turns.Close()
		_ = paradox.Close()
		return nil, err
	}
	logging.Log.WithField("run_id", id).WithField("turn", r.Engine.Turn()).Info("run revived from snapshot")
	return g.host(r, turns, paradox), nil
}

func (g *Registry) host(r *Run, turns *runlog.TurnLogger, paradox *runlog.ParadoxLogger) *Instance {
	in := &Instance{
		Run:         r,
		ResumeToken: uuid.NewString(),
		inbox:       make(chan job),
		done:        make(chan struct{}),
		turns:       turns,
		paradox:     paradox,
	}
	g.mu.Lock()
	g.byID[r.ID] = in
	g.byToken[in.ResumeToken] = in
	g.mu.Unlock()
	go in.loop()
	logging.Log.WithField("run_id", r.ID).WithField("level_id", r.LevelID).Info("run hosted")
	return in
}

// Shutdown stops every hosted run, snapshotting each so Revive can pick it
// back up.
func (g *Registry) Shutdown() {
	g.mu.Lock()
	instances := make([]*Instance, 0, len(g.byID))
	for _, in := range g.byID {
		instances = append(instances, in)
	}
	g.byID = make(map[string]*Instance)
	g.byToken = make(map[string]*Instance)
	g.mu.Unlock()

	for _, in := range instances {
		ok := in.Do(context.Background(), func(r *Run) {
			if dir := r.sinks.SnapshotDir; dir != "" {
				if _, err := r.WriteSnapshot(dir); err != nil {
					logging.Log.WithError(err).WithField("run_id", r.ID).Warn("shutdown snapshot failed")
				}
			}
		})
		if ok {
			close(in.done)
		}
		_ = in.turns.Close()
		_ = in.paradox.Close()
	}
}
