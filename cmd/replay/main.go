// The replay binary verifies a run's determinism offline: it restores the
// run from a snapshot, re-executes the recorded turn log, and compares the
// per-turn digests against the ones recorded live.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"quantumrogue.dev/internal/persistence/snapshot"
	"quantumrogue.dev/internal/sim/run"
)

func main() {
	var (
		runDir   = flag.String("run", "", "run data directory (contains snapshots/ and turns/)")
		snapPath = flag.String("snapshot", "", "snapshot to start from (default: latest under <run>/snapshots)")
		fromTurn = flag.Uint64("from_turn", 0, "start verifying from turn (inclusive, optional)")
		toTurn   = flag.Uint64("to_turn", 0, "stop at turn (inclusive, optional)")
	)
	flag.Parse()

	if *runDir == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}

	sp := strings.TrimSpace(*snapPath)
	if sp == "" {
		var err error
		sp, err = snapshot.Latest(filepath.Join(*runDir, "snapshots"))
		if err != nil || sp == "" {
			fmt.Fprintln(os.Stderr, "no snapshot found under", filepath.Join(*runDir, "snapshots"))
			os.Exit(1)
		}
	}
	snap, err := snapshot.Read(sp)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot v%d run=%s turn=%d seed=%d level=%s timelines=%d echoes=%d\n",
		snap.Header.Version, snap.Header.RunID, snap.Header.Turn, snap.Seed, snap.LevelID,
		len(snap.Engine.Timelines), len(snap.Engine.Echoes))

	r, err := run.Restore(snap, run.Sinks{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "restore:", err)
		os.Exit(1)
	}

	startTurn := r.Engine.Turn()
	verifyFrom := *fromTurn
	if verifyFrom == 0 {
		verifyFrom = startTurn + 1
	}

	files, err := listTurnFiles(filepath.Join(*runDir, "turns"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "list turns:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no turn logs found under", filepath.Join(*runDir, "turns"))
		os.Exit(1)
	}

	var checked uint64
	for _, path := range files {
		if err := replayFile(r, path, startTurn, verifyFrom, *toTurn, &checked); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		if *toTurn != 0 && r.Engine.Turn() >= *toTurn {
			break
		}
	}
	fmt.Printf("replay ok: checked=%d turns (from snapshot turn=%d)\n", checked, snap.Header.Turn)
}

func listTurnFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "turns-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func replayFile(r *run.Run, path string, startTurn, verifyFrom, toTurn uint64, checked *uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for sc.Scan() {
		var entry run.TurnLogEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if entry.Turn <= startTurn {
			continue
		}
		if toTurn != 0 && entry.Turn > toTurn {
			return nil
		}
		if want := r.Engine.Turn() + 1; entry.Turn != want {
			return fmt.Errorf("turn mismatch: want=%d got=%d (file=%s)", want, entry.Turn, filepath.Base(path))
		}

		res, err := r.Step(entry.Cmd)
		if err != nil {
			// A committed-then-failed turn (e.g. a collapse blocking an echo
			// spawn) replays the same way; anything that left the turn
			// unconsumed is a real divergence.
			if r.Engine.Turn() != entry.Turn {
				return fmt.Errorf("turn %d: step: %w", entry.Turn, err)
			}
			res.Turn = entry.Turn
			res.Digest = r.DigestHex()
		}
		if res.Turn >= verifyFrom {
			*checked++
			if res.Digest != entry.Digest {
				return fmt.Errorf("digest mismatch at turn %d: got=%s want=%s", res.Turn, res.Digest, entry.Digest)
			}
		}
	}
	return sc.Err()
}
