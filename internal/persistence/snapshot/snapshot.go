package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"quantumrogue.dev/internal/sim/chrono"
	"quantumrogue.dev/internal/sim/tuning"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	Turn    uint64 `json:"turn"`
}

// RunSnapshotV1 is the full state of one run: seed, effective tuning, world
// section, and the engine's exported blob. Written as a JSON header line
// followed by a gob body, zstd-compressed.
type RunSnapshotV1 struct {
	Header Header `json:"header"`

	Seed    int64  `json:"seed"`
	LevelID string `json:"level_id"`

	Tuning tuning.Tuning `json:"tuning"`

	World  WorldV1             `json:"world"`
	Engine *chrono.StateExport `json:"engine"`

	RecordedAt string `json:"recorded_at"`
}

type WorldV1 struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Tiles  []uint8 `json:"tiles"`

	Entities   []EntityV1        `json:"entities"`
	Superposed []SuperposedRefV1 `json:"superposed,omitempty"`
	Entangled  []EntangledRefV1  `json:"entangled,omitempty"`
}

type EntityV1 struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Pos     [2]int `json:"pos"`
	HP      int    `json:"hp"`
	MaxHP   int    `json:"max_hp"`
	Hostile bool   `json:"hostile,omitempty"`
}

type RefV1 struct {
	Kind     uint8  `json:"kind"`
	Pos      [2]int `json:"pos"`
	EntityID string `json:"entity_id,omitempty"`
}

type SuperposedRefV1 struct {
	Ref  RefV1   `json:"ref"`
	Prob float64 `json:"prob"`
}

type EntangledRefV1 struct {
	A RefV1 `json:"a"`
	B RefV1 `json:"b"`
}

func Path(dir string, turn uint64) string {
	return filepath.Join(dir, fmt.Sprintf("turn-%010d.snap.zst", turn))
}

func Write(path string, snap RunSnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func Read(path string) (RunSnapshotV1, error) {
	var snap RunSnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is advisory; the gob body carries it too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("snapshot version %d, want %d", snap.Header.Version, Version)
	}
	return snap, nil
}

// Latest returns the path of the newest snapshot in dir, "" when none exist.
func Latest(dir string) (string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "turn-") && strings.HasSuffix(e.Name(), ".snap.zst") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}
