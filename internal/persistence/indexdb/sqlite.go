// Package indexdb maintains a sqlite read-model index of runs, turns,
// paradox events, timelines and snapshots. Writes flow through a single
// writer goroutine so the sim loop never blocks on the database.
package indexdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"quantumrogue.dev/internal/logging"
	"quantumrogue.dev/internal/sim/chrono"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqTurn
	reqParadox
	reqTimeline
	reqSnapshot
	reqFlush
)

type req struct {
	kind reqKind

	run      RunRow
	turn     TurnRow
	paradox  paradoxRow
	timeline TimelineRow
	snapshot SnapshotRow

	flush chan struct{}
}

type RunRow struct {
	RunID     string
	LevelID   string
	Seed      int64
	CreatedAt string
}

type TurnRow struct {
	RunID     string
	Turn      uint64
	CmdJSON   string
	Digest    string
	Paradoxes int
}

type paradoxRow struct {
	RunID string
	Event chrono.ParadoxEvent
}

type TimelineRow struct {
	RunID      string
	TimelineID string
	T0         uint64
	Archived   bool
	Length     int
}

type SnapshotRow struct {
	RunID      string
	Turn       uint64
	Path       string
	RecordedAt string
}

// ParadoxEventRow is the flattened read-side shape of one audit entry.
type ParadoxEventRow struct {
	RunID      string
	Seq        uint64
	Turn       uint64
	EchoID     string
	TimelineID string
	Reason     string
	Resolution string
	ActionJSON string
}

func Open(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Buffered high enough that a paradox-heavy turn never stalls the
		// run loop.
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-style workload; NORMAL is enough durability for
	// a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			level_id TEXT NOT NULL,
			seed INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS turns (
			run_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			cmd_json TEXT NOT NULL,
			digest TEXT NOT NULL,
			paradoxes INTEGER NOT NULL,
			PRIMARY KEY (run_id, turn)
		);`,
		`CREATE TABLE IF NOT EXISTS paradox_events (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			turn INTEGER NOT NULL,
			echo_id TEXT NOT NULL,
			timeline_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			resolution TEXT NOT NULL,
			action_json TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_paradox_run_turn ON paradox_events(run_id, turn);`,
		`CREATE TABLE IF NOT EXISTS timelines (
			run_id TEXT NOT NULL,
			timeline_id TEXT NOT NULL,
			t0 INTEGER NOT NULL,
			archived INTEGER NOT NULL,
			length INTEGER NOT NULL,
			PRIMARY KEY (run_id, timeline_id)
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			run_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			path TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (run_id, turn)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) loop() {
	for r := range s.ch {
		var err error
		switch r.kind {
		case reqRun:
			_, err = s.db.Exec(
				`INSERT OR REPLACE INTO runs(run_id, level_id, seed, created_at) VALUES(?,?,?,?)`,
				r.run.RunID, r.run.LevelID, r.run.Seed, time.Now().UTC().Format(time.RFC3339),
			)
		case reqTurn:
			_, err = s.db.Exec(
				`INSERT OR REPLACE INTO turns(run_id, turn, cmd_json, digest, paradoxes) VALUES(?,?,?,?,?)`,
				r.turn.RunID, r.turn.Turn, r.turn.CmdJSON, r.turn.Digest, r.turn.Paradoxes,
			)
		case reqParadox:
			var actJSON []byte
			actJSON, err = json.Marshal(r.paradox.Event.Action)
			if err == nil {
				_, err = s.db.Exec(
					`INSERT OR REPLACE INTO paradox_events(run_id, seq, turn, echo_id, timeline_id, reason, resolution, action_json)
					 VALUES(?,?,?,?,?,?,?,?)`,
					r.paradox.RunID, r.paradox.Event.Seq, r.paradox.Event.Turn,
					r.paradox.Event.EchoID, string(r.paradox.Event.TimelineID),
					r.paradox.Event.Reason, r.paradox.Event.Resolution, string(actJSON),
				)
			}
		case reqTimeline:
			_, err = s.db.Exec(
				`INSERT OR REPLACE INTO timelines(run_id, timeline_id, t0, archived, length) VALUES(?,?,?,?,?)`,
				r.timeline.RunID, r.timeline.TimelineID, r.timeline.T0, boolInt(r.timeline.Archived), r.timeline.Length,
			)
		case reqSnapshot:
			_, err = s.db.Exec(
				`INSERT OR REPLACE INTO snapshots(run_id, turn, path, recorded_at) VALUES(?,?,?,?)`,
				r.snapshot.RunID, r.snapshot.Turn, r.snapshot.Path, time.Now().UTC().Format(time.RFC3339),
			)
		case reqFlush:
			close(r.flush)
		}
		if err != nil {
			logging.Log.WithError(err).Warn("indexdb write failed")
		}
	}
}

func (s *SQLiteIndex) enqueue(r req) {
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		logging.Log.Warn("indexdb queue full, dropping row")
	}
}

func (s *SQLiteIndex) PutRun(row RunRow)           { s.enqueue(req{kind: reqRun, run: row}) }
func (s *SQLiteIndex) PutTurn(row TurnRow)         { s.enqueue(req{kind: reqTurn, turn: row}) }
func (s *SQLiteIndex) PutTimeline(row TimelineRow) { s.enqueue(req{kind: reqTimeline, timeline: row}) }
func (s *SQLiteIndex) PutSnapshot(row SnapshotRow) { s.enqueue(req{kind: reqSnapshot, snapshot: row}) }

func (s *SQLiteIndex) PutParadox(runID string, ev chrono.ParadoxEvent) {
	s.enqueue(req{kind: reqParadox, paradox: paradoxRow{RunID: runID, Event: ev}})
}

// Flush blocks until every enqueued write has been applied. Reads issued
// after Flush observe all prior Puts.
func (s *SQLiteIndex) Flush() {
	if s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{kind: reqFlush, flush: done}
	<-done
}

// Runs lists indexed runs, newest first.
func (s *SQLiteIndex) Runs(limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT run_id,level_id,seed,created_at FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.RunID, &r.LevelID, &r.Seed, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ParadoxEvents returns a run's audit trail in sequence order.
func (s *SQLiteIndex) ParadoxEvents(runID string) ([]ParadoxEventRow, error) {
	rows, err := s.db.Query(
		`SELECT run_id,seq,turn,echo_id,timeline_id,reason,resolution,action_json
		 FROM paradox_events WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ParadoxEventRow
	for rows.Next() {
		var r ParadoxEventRow
		if err := rows.Scan(&r.RunID, &r.Seq, &r.Turn, &r.EchoID, &r.TimelineID, &r.Reason, &r.Resolution, &r.ActionJSON); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Timelines returns a run's timelines sorted by id.
func (s *SQLiteIndex) Timelines(runID string) ([]TimelineRow, error) {
	rows, err := s.db.Query(
		`SELECT run_id,timeline_id,t0,archived,length FROM timelines WHERE run_id=? ORDER BY timeline_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TimelineRow
	for rows.Next() {
		var r TimelineRow
		var archived int
		if err := rows.Scan(&r.RunID, &r.TimelineID, &r.T0, &archived, &r.Length); err != nil {
			return nil, err
		}
		r.Archived = archived != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the newest indexed snapshot of a run, false when
// none exist.
func (s *SQLiteIndex) LatestSnapshot(runID string) (SnapshotRow, bool, error) {
	var r SnapshotRow
	row := s.db.QueryRow(
		`SELECT run_id,turn,path,recorded_at FROM snapshots WHERE run_id=? ORDER BY turn DESC LIMIT 1`, runID)
	if err := row.Scan(&r.RunID, &r.Turn, &r.Path, &r.RecordedAt); err != nil {
		if err == sql.ErrNoRows {
			return r, false, nil
		}
		return r, false, err
	}
	return r, true, nil
}

// Close drains pending writes and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
