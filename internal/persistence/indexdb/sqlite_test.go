package indexdb

import (
	"path/filepath"
	"testing"

	"quantumrogue.dev/internal/sim/chrono"
)

func openTest(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestRuns_WriteRead(t *testing.T) {
	idx := openTest(t)
	idx.PutRun(RunRow{RunID: "R1", LevelID: "anomaly_halls", Seed: 1337})
	idx.PutRun(RunRow{RunID: "R2", LevelID: "first_fracture", Seed: 7})
	idx.Flush()

	runs, err := idx.Runs(10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	byID := map[string]RunRow{}
	for _, r := range runs {
		byID[r.RunID] = r
	}
	if byID["R1"].LevelID != "anomaly_halls" || byID["R1"].Seed != 1337 {
		t.Fatalf("R1 = %+v", byID["R1"])
	}
	if byID["R1"].CreatedAt == "" {
		t.Fatal("created_at not stamped")
	}
}

func TestParadoxEvents_OrderedBySeq(t *testing.T) {
	idx := openTest(t)
	for _, seq := range []uint64{2, 1, 3} {
		idx.PutParadox("R1", chrono.ParadoxEvent{
			Seq:        seq,
			Turn:       10 + seq,
			EchoID:     "E001",
			TimelineID: "T001",
			Action:     chrono.WaitAction("G_E001", 10+seq),
			Reason:     "occupant mismatch",
			Resolution: chrono.ResolutionBenign,
			Executed:   chrono.ActWait,
		})
	}
	idx.Flush()

	evs, err := idx.ParadoxEvents("R1")
	if err != nil {
		t.Fatalf("ParadoxEvents: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("events = %d, want 3", len(evs))
	}
	for i, ev := range evs {
		if ev.Seq != uint64(i+1) {
			t.Fatalf("event %d seq = %d", i, ev.Seq)
		}
		if ev.ActionJSON == "" {
			t.Fatal("action not serialized")
		}
	}
	if other, _ := idx.ParadoxEvents("R2"); len(other) != 0 {
		t.Fatalf("cross-run leak: %d events", len(other))
	}
}

func TestTimelines_UpsertKeepsLatest(t *testing.T) {
	idx := openTest(t)
	idx.PutTimeline(TimelineRow{RunID: "R1", TimelineID: "T001", T0: 1, Length: 3})
	idx.PutTimeline(TimelineRow{RunID: "R1", TimelineID: "T001", T0: 1, Length: 9, Archived: true})
	idx.PutTimeline(TimelineRow{RunID: "R1", TimelineID: "T002", T0: 5, Length: 1})
	idx.Flush()

	tls, err := idx.Timelines("R1")
	if err != nil {
		t.Fatalf("Timelines: %v", err)
	}
	if len(tls) != 2 {
		t.Fatalf("timelines = %d, want 2", len(tls))
	}
	if tls[0].TimelineID != "T001" || tls[0].Length != 9 || !tls[0].Archived {
		t.Fatalf("T001 = %+v", tls[0])
	}
}

func TestLatestSnapshot(t *testing.T) {
	idx := openTest(t)

	if _, ok, err := idx.LatestSnapshot("R1"); err != nil || ok {
		t.Fatalf("empty: ok=%v err=%v", ok, err)
	}

	idx.PutSnapshot(SnapshotRow{RunID: "R1", Turn: 50, Path: "a"})
	idx.PutSnapshot(SnapshotRow{RunID: "R1", Turn: 100, Path: "b"})
	idx.PutSnapshot(SnapshotRow{RunID: "R2", Turn: 999, Path: "c"})
	idx.Flush()

	row, ok, err := idx.LatestSnapshot("R1")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if row.Turn != 100 || row.Path != "b" {
		t.Fatalf("row = %+v", row)
	}
}

func TestClose_Idempotent(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	idx.PutRun(RunRow{RunID: "R1", LevelID: "l", Seed: 1})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	// Puts after close are dropped, not panics.
	idx.PutRun(RunRow{RunID: "R2", LevelID: "l", Seed: 2})
	idx.Flush()
}
