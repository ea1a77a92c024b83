// roguectl is the operator CLI: it queries the server's sqlite read-model
// index (runs, paradox events, timelines, snapshots) and inspects snapshot
// files directly. It never touches live sim state.
package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"quantumrogue.dev/internal/persistence/snapshot"
)

var (
	flagData string
	flagDB   string
)

func main() {
	root := &cobra.Command{
		Use:           "roguectl",
		Short:         "query run indexes and snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagData, "data", "./data", "runtime data directory")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "sqlite index path (default: <data>/index.db)")

	root.AddCommand(runsCmd(), paradoxesCmd(), timelinesCmd(), snapshotsCmd(), snapshotInfoCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "roguectl:", err)
		os.Exit(1)
	}
}

func openDB() (*sql.DB, error) {
	path := flagDB
	if path == "" {
		path = filepath.Join(flagData, "index.db")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("index db %s: %w", path, err)
	}
	return sql.Open("sqlite", path)
}

func runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "list indexed runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			rows, err := db.Query(`SELECT run_id,level_id,seed,created_at FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
			if err != nil {
				return err
			}
			defer rows.Close()
			for rows.Next() {
				var r struct {
					RunID     string `json:"run_id"`
					LevelID   string `json:"level_id"`
					Seed      int64  `json:"seed"`
					CreatedAt string `json:"created_at"`
				}
				if err := rows.Scan(&r.RunID, &r.LevelID, &r.Seed, &r.CreatedAt); err != nil {
					return err
				}
				printJSON(r)
			}
			return rows.Err()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "result limit")
	return cmd
}

func paradoxesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "paradoxes <run_id>",
		Short: "list a run's paradox audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			rows, err := db.Query(
				`SELECT seq,turn,echo_id,timeline_id,reason,resolution,action_json
				 FROM paradox_events WHERE run_id=? ORDER BY seq LIMIT ?`, args[0], limit)
			if err != nil {
				return err
			}
			defer rows.Close()
			for rows.Next() {
				var r struct {
					Seq        uint64          `json:"seq"`
					Turn       uint64          `json:"turn"`
					EchoID     string          `json:"echo_id"`
					TimelineID string          `json:"timeline_id"`
					Reason     string          `json:"reason"`
					Resolution string          `json:"resolution"`
					Action     json.RawMessage `json:"action"`
				}
				var actJSON string
				if err := rows.Scan(&r.Seq, &r.Turn, &r.EchoID, &r.TimelineID, &r.Reason, &r.Resolution, &actJSON); err != nil {
					return err
				}
				r.Action = json.RawMessage(actJSON)
				printJSON(r)
			}
			return rows.Err()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "result limit")
	return cmd
}

func timelinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timelines <run_id>",
		Short: "list a run's recorded timelines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			rows, err := db.Query(
				`SELECT timeline_id,t0,archived,length FROM timelines WHERE run_id=? ORDER BY timeline_id`, args[0])
			if err != nil {
				return err
			}
			defer rows.Close()
			for rows.Next() {
				var r struct {
					TimelineID string `json:"timeline_id"`
					T0         uint64 `json:"t0"`
					Archived   bool   `json:"archived"`
					Length     int    `json:"length"`
				}
				var archived int
				if err := rows.Scan(&r.TimelineID, &r.T0, &archived, &r.Length); err != nil {
					return err
				}
				r.Archived = archived != 0
				printJSON(r)
			}
			return rows.Err()
		},
	}
}

func snapshotsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "snapshots <run_id>",
		Short: "list a run's indexed snapshots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			rows, err := db.Query(
				`SELECT turn,path,recorded_at FROM snapshots WHERE run_id=? ORDER BY turn DESC LIMIT ?`, args[0], limit)
			if err != nil {
				return err
			}
			defer rows.Close()
			for rows.Next() {
				var r struct {
					Turn       uint64 `json:"turn"`
					Path       string `json:"path"`
					RecordedAt string `json:"recorded_at"`
				}
				if err := rows.Scan(&r.Turn, &r.Path, &r.RecordedAt); err != nil {
					return err
				}
				printJSON(r)
			}
			return rows.Err()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "result limit")
	return cmd
}

func snapshotInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot-info <path>",
		Short: "summarize a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := snapshot.Read(args[0])
			if err != nil {
				return err
			}
			printJSON(struct {
				Version    int    `json:"version"`
				RunID      string `json:"run_id"`
				Turn       uint64 `json:"turn"`
				Seed       int64  `json:"seed"`
				LevelID    string `json:"level_id"`
				Energy     int    `json:"energy"`
				Timelines  int    `json:"timelines"`
				Echoes     int    `json:"echoes"`
				Events     int    `json:"events"`
				Entities   int    `json:"entities"`
				RecordedAt string `json:"recorded_at"`
			}{
				Version:    snap.Header.Version,
				RunID:      snap.Header.RunID,
				Turn:       snap.Header.Turn,
				Seed:       snap.Seed,
				LevelID:    snap.LevelID,
				Energy:     snap.Engine.EnergyBalance,
				Timelines:  len(snap.Engine.Timelines),
				Echoes:     len(snap.Engine.Echoes),
				Events:     len(snap.Engine.Events),
				Entities:   len(snap.World.Entities),
				RecordedAt: snap.RecordedAt,
			})
			return nil
		},
	}
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}
