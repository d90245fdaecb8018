package runtime

import (
	"context"
	"log/slog"
	"soma/internal/engine"
	"soma/internal/object"
	"soma/internal/util/future"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Result is what a finished thread leaves behind. Err is the fatal error that
// halted it, if any; the AL is reported either way.
type Result struct {
	ID  int64
	AL  []object.Value
	Err error
}

// Handle identifies a started thread.
type Handle struct {
	ID int64
	*future.Future[Result]
}

// Scheduler starts threads that share one Store. Each thread has its own AL
// and Registers; a thread that halts never affects the others.
type Scheduler struct {
	store *object.Graph
	opts  engine.Options
	sem   *semaphore.Weighted

	nextID  atomic.Int64
	mu      sync.Mutex
	threads map[int64]*Handle
	order   []int64
}

// slot is the run slot a limited thread holds. Only the owning thread touches
// it.
type slot struct {
	sem  *semaphore.Weighted
	held bool
}

type slotKey struct{}

func NewScheduler(store *object.Graph, opts engine.Options) *Scheduler {
	return &Scheduler{store: store, opts: opts, threads: make(map[int64]*Handle)}
}

// SetLimit caps how many threads run at once; n <= 0 removes the cap. It
// must be called before the first Go.
func (s *Scheduler) SetLimit(n int64) {
	if n <= 0 {
		s.sem = nil
		return
	}
	s.sem = semaphore.NewWeighted(n)
}

// Go runs v on a new thread whose AL starts with seed. v must be a Block or
// a native Block.
func (s *Scheduler) Go(ctx context.Context, v object.Value, seed ...object.Value) *Handle {
	id := s.nextID.Add(1)
	var block *object.Block
	switch x := v.(type) {
	case *object.Block:
		block = x
	case *object.Native:
		block = object.NewBlock(object.Primitive(x))
	default:
		err := engine.Fatal(engine.ExecuteNonBlock, "spawn", "cannot run %s on a thread", v.Type())
		h := &Handle{ID: id, Future: future.New(func() (Result, error) {
			return Result{ID: id, Err: err}, err
		})}
		s.track(h)
		return h
	}

	al := engine.NewAL(seed...)
	h := &Handle{ID: id, Future: future.New(func() (Result, error) {
		runCtx := ctx
		if s.sem != nil {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				return Result{ID: id, AL: al.Values(), Err: err}, err
			}
			sl := &slot{sem: s.sem, held: true}
			defer func() {
				if sl.held {
					sl.sem.Release(1)
				}
			}()
			runCtx = context.WithValue(ctx, slotKey{}, sl)
		}
		slog.Debug("thread started", slog.Int64("thread", id))
		th := engine.NewThread(runCtx, al, s.store, s.opts)
		err := th.Run(block)
		if err != nil {
			slog.Warn("thread halted",
				slog.Int64("thread", id),
				slog.Any("error", err))
		} else {
			slog.Debug("thread finished", slog.Int64("thread", id))
		}
		return Result{ID: id, AL: al.Values(), Err: err}, err
	})}
	s.track(h)
	return h
}

// blocking runs fn, which waits on other threads, without holding the run
// slot of the thread that ctx belongs to. The slot is taken back afterwards;
// the error is ctx's if that fails.
func blocking(ctx context.Context, fn func()) error {
	sl, _ := ctx.Value(slotKey{}).(*slot)
	if sl == nil || !sl.held {
		fn()
		return nil
	}
	sl.sem.Release(1)
	sl.held = false
	fn()
	if err := sl.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	sl.held = true
	return nil
}

func (s *Scheduler) track(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[h.ID] = h
	s.order = append(s.order, h.ID)
}

// Lookup returns the handle of a thread started by this scheduler.
func (s *Scheduler) Lookup(id int64) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.threads[id]
	return h, ok
}

// Wait blocks until every thread started so far has finished and returns
// their results in start order. Threads started while waiting are waited
// for as well.
func (s *Scheduler) Wait() []Result {
	var results []Result
	seen := 0
	for {
		s.mu.Lock()
		pending := make([]*future.Future[Result], 0, len(s.order)-seen)
		for _, id := range s.order[seen:] {
			pending = append(pending, s.threads[id].Future)
		}
		seen = len(s.order)
		s.mu.Unlock()

		if len(pending) == 0 {
			return results
		}
		batch, _ := future.All(pending...)
		results = append(results, batch...)
	}
}
