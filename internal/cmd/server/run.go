package serverrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	cfgpkg "github.com/ballothq/ballot/internal/config"
	"github.com/ballothq/ballot/internal/runtime"
	httpserver "github.com/ballothq/ballot/internal/server/http"
	proposalsvc "github.com/ballothq/ballot/internal/services/proposals"
	pebblestore "github.com/ballothq/ballot/internal/storage/pebble"
	logpkg "github.com/ballothq/ballot/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// small wrapper to allow testing
var getenv = func(key string) string { return os.Getenv(key) }

type Options struct {
	DataDir       string
	HTTPAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context over the provided one so shutdown is
	// observed even when callers pass a plain context.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	storeDir := filepath.Join(opts.DataDir, "store")

	rt, err := runtime.Open(runtime.Options{
		DataDir:       storeDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Config:        opts.Config,
	})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	// Process-wide logger from env; defaults: level=info, format=text.
	cfg := &logpkg.Config{
		Level:  getenvDefault("BALLOT_LOG_LEVEL", "info"),
		Format: getenvDefault("BALLOT_LOG_FORMAT", "text"),
	}
	procLogger, err := logpkg.ApplyConfig(cfg)
	if err != nil {
		procLogger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}

	// Redirect stdlib logs (e.g. Pebble) to our logger.
	logpkg.RedirectStdLog(procLogger)

	procLogger.Info("starting ballot server",
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("data_dir", opts.DataDir),
		logpkg.Str("level", cfg.Level),
		logpkg.Str("format", cfg.Format),
		logpkg.Uint64("proposals", rt.Registry().Count()),
	)

	svc := proposalsvc.NewWithLogger(rt, procLogger.With(logpkg.Component("proposals")))
	hsrv := httpserver.NewWithService(rt, svc, procLogger)

	errCh := make(chan error, 1)
	go func() { errCh <- hsrv.ListenAndServe(sctx, opts.HTTPAddr) }()

	select {
	case <-sctx.Done():
		hsrv.Close()
		<-errCh
		return nil
	case err := <-errCh:
		hsrv.Close()
		return err
	}
}
