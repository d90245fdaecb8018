package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"soma/internal/engine"
	"soma/internal/foreign"
	"soma/internal/object"
	"soma/internal/parser"
	"soma/internal/persist"
	"soma/internal/util"
	"sync"
)

// ErrNoStoreDB is returned by SaveStore and LoadStore when no database is
// configured.
var ErrNoStoreDB = errors.New("no store database configured")

// Runtime owns one Store and everything that shares it: the extension
// library, the scheduler and the optional persistence database.
type Runtime struct {
	Config    util.Configuration
	Store     *object.Graph
	Library   *foreign.Library
	Scheduler *Scheduler
	Options   engine.Options

	ctx    context.Context
	cancel context.CancelFunc

	dbOnce sync.Once
	db     *persist.DB
	dbErr  error
}

// NewRuntime builds a populated Store. The prelude is defined unless
// config.NoPrelude is set.
func NewRuntime(config util.Configuration, opts engine.Options) (*Runtime, error) {
	if opts.MaxDepth == 0 {
		opts.MaxDepth = config.MaxDepth
	}
	ctx, cancel := context.WithCancel(context.Background())
	store := object.NewStore()
	r := &Runtime{
		Config:    config,
		Store:     store,
		Library:   foreign.NewLibrary(config),
		Scheduler: NewScheduler(store, opts),
		Options:   opts,
		ctx:       ctx,
		cancel:    cancel,
	}
	r.Scheduler.SetLimit(int64(config.MaxThreads))
	r.Library.Extend(threadExtension(r))
	r.Library.Extend(storeExtension(r))

	if err := r.Library.Install(store); err != nil {
		cancel()
		return nil, err
	}
	if !config.NoPrelude {
		if err := foreign.LoadPrelude(ctx, store, opts); err != nil {
			cancel()
			return nil, err
		}
	}
	slog.Debug("runtime ready",
		slog.Bool("prelude", !config.NoPrelude),
		slog.Any("extensions", r.Library.Extensions()))
	return r, nil
}

// Parse turns source into a Block. name is used for logging only.
func (r *Runtime) Parse(name, src string) (*object.Block, error) {
	program, err := parser.Parse(src)
	if err != nil {
		slog.Warn("Error parsing program",
			slog.String("name", name),
			slog.Any("error", err),
		)
		return nil, err
	}
	slog.Debug("program parsed",
		slog.String("name", name),
		slog.Int("instructions", len(program.Instrs)))
	return program, nil
}

// Run executes block on a new thread over al. The AL is left as the block
// left it, also when the thread halts.
func (r *Runtime) Run(ctx context.Context, block *object.Block, al *engine.AL) error {
	th := engine.NewThread(ctx, al, r.Store, r.Options)
	return th.Run(block)
}

// RunSource parses and runs src with a fresh AL.
func (r *Runtime) RunSource(ctx context.Context, name, src string) (*engine.AL, error) {
	block, err := r.Parse(name, src)
	if err != nil {
		return nil, err
	}
	al := engine.NewAL()
	err = r.Run(ctx, block, al)
	return al, err
}

// RunFile runs the program at path and returns the source it ran, for error
// reports. RootPath defaults to the file's directory so extension files next
// to the script are found first.
func (r *Runtime) RunFile(ctx context.Context, path string) (*engine.AL, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("could not read %s: %w", path, err)
	}
	if r.Config.RootPath == "" {
		r.Config.RootPath = filepath.Dir(path)
		r.Library.Config.RootPath = r.Config.RootPath
	}
	slog.Info("running program", slog.String("path", path))
	src := string(data)
	al, err := r.RunSource(ctx, path, src)
	return al, src, err
}

func (r *Runtime) storeDB(ctx context.Context) (*persist.DB, error) {
	if r.Config.StoreDSN == "" {
		return nil, ErrNoStoreDB
	}
	r.dbOnce.Do(func() {
		driver := r.Config.StoreDriver
		if driver == "" {
			driver = "sqlite3"
		}
		r.db, r.dbErr = persist.Open(ctx, driver, r.Config.StoreDSN)
		if r.dbErr != nil {
			slog.Warn("store database unavailable",
				slog.String("driver", driver),
				slog.Any("error", r.dbErr))
		}
	})
	return r.db, r.dbErr
}

// SaveStore snapshots the Store into the configured database.
func (r *Runtime) SaveStore(ctx context.Context) error {
	db, err := r.storeDB(ctx)
	if err != nil {
		return err
	}
	return db.Save(ctx, r.Store)
}

// LoadStore restores the last snapshot on top of the current Store.
func (r *Runtime) LoadStore(ctx context.Context) error {
	db, err := r.storeDB(ctx)
	if err != nil {
		return err
	}
	return db.Load(ctx, r.Store)
}

// Wait blocks until every spawned thread has finished.
func (r *Runtime) Wait() []Result {
	return r.Scheduler.Wait()
}

// Close cancels spawned threads, waits for them and closes the database.
func (r *Runtime) Close() error {
	r.cancel()
	r.Scheduler.Wait()
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
