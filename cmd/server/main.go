// The server binary hosts runs over websocket: HELLO/WELCOME handshake on
// /v1/ws, loopback inspection endpoints, health and a minimal metrics page.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"quantumrogue.dev/internal/logging"
	"quantumrogue.dev/internal/persistence/indexdb"
	"quantumrogue.dev/internal/sim/levels"
	"quantumrogue.dev/internal/sim/run"
	"quantumrogue.dev/internal/sim/tuning"
	"quantumrogue.dev/internal/transport/observer"
	"quantumrogue.dev/internal/transport/ws"
)

type envConfig struct {
	Addr      string `env:"QR_ADDR"`
	ConfigDir string `env:"QR_CONFIG_DIR"`
	DataDir   string `env:"QR_DATA_DIR"`
	DisableDB bool   `env:"QR_DISABLE_DB"`
	Pprof     bool   `env:"QR_ENABLE_PPROF"`
	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`
}

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read-model index")
		pprofHTTP  = flag.Bool("pprof", false, "expose /debug/pprof")
	)
	flag.Parse()

	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		fmt.Fprintln(os.Stderr, "env:", err)
		os.Exit(2)
	}
	if ec.Addr != "" {
		*addr = ec.Addr
	}
	if ec.ConfigDir != "" {
		*configDir = ec.ConfigDir
	}
	if ec.DataDir != "" {
		*dataDir = ec.DataDir
	}
	if ec.DisableDB {
		*disableDB = true
	}
	if ec.Pprof {
		*pprofHTTP = true
	}

	logging.Init(ec.LogLevel, ec.LogFormat)
	log := logging.Log

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", tp).Info("tuning not found, using defaults")
			tune = tuning.Defaults()
		} else {
			log.WithError(err).Fatal("load tuning")
		}
	}

	cat, err := levels.Load(filepath.Join(*configDir, "levels"))
	if err != nil {
		log.WithError(err).Fatal("load levels")
	}
	log.WithField("levels", len(cat.ByID)).WithField("digest", cat.Digest[:12]).Info("levels loaded")

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.Open(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			log.WithError(err).Fatal("open index db")
		}
		defer idx.Close()
	}

	registry := run.NewRegistry(run.RegistryConfig{
		DataDir: *dataDir,
		Index:   idx,
		Levels:  cat,
		Tuning:  tune,
	})

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		ids := registry.IDs()
		fmt.Fprintf(rw, "# HELP quantumrogue_runs_hosted Currently hosted runs.\n")
		fmt.Fprintf(rw, "# TYPE quantumrogue_runs_hosted gauge\n")
		fmt.Fprintf(rw, "quantumrogue_runs_hosted %d\n", len(ids))
	})

	obsSrv := observer.NewServer(registry)
	mux.HandleFunc("/admin/v1/runs", obsSrv.RunsHandler())
	mux.HandleFunc("/admin/v1/state", obsSrv.StateHandler())
	mux.HandleFunc("/admin/v1/echoes", obsSrv.EchoesHandler())

	if *pprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	mux.HandleFunc("/v1/ws", ws.NewServer(registry, cat).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
		registry.Shutdown()
	}()

	log.WithField("addr", *addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("ListenAndServe")
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
