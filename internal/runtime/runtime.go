package runtime

import (
	"context"
	"errors"
	"time"

	cfgpkg "github.com/ballothq/ballot/internal/config"
	"github.com/ballothq/ballot/internal/proposal"
	pebblestore "github.com/ballothq/ballot/internal/storage/pebble"
)

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// Runtime owns the store and registry for a single-node instance.
type Runtime struct {
	db       *pebblestore.DB
	registry *proposal.Registry
	config   cfgpkg.Config
}

// Open initializes the underlying storage and registry.
func Open(opts Options) (*Runtime, error) {
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
	})
	if err != nil {
		return nil, err
	}
	reg, err := proposal.OpenRegistry(db, opts.Config.MaxRecordBytes)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Runtime{db: db, registry: reg, config: opts.Config}, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple store liveness check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Registry returns the proposal registry.
func (r *Runtime) Registry() *proposal.Registry { return r.registry }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
