package runtime

import (
	"log/slog"
	"soma/internal/engine"
	"soma/internal/foreign"
	"soma/internal/object"
)

// threadExtension exposes the Scheduler as use.thread.spawn and
// use.thread.join.
func threadExtension(r *Runtime) *foreign.Extension {
	return &foreign.Extension{
		Name: "thread",
		Natives: map[string]object.NativeFunc{
			"spawn": fnThreadSpawn(r),
			"join":  fnThreadJoin(r),
		},
	}
}

// fnThreadSpawn pops a Block, runs it on a new thread with an empty AL and
// pushes the thread id.
func fnThreadSpawn(r *Runtime) object.NativeFunc {
	return func(m object.Machine) error {
		v, err := m.Pop("use.thread.spawn")
		if err != nil {
			return err
		}
		if !object.IsExecutable(v) {
			return engine.Fatal(engine.TypeMismatch, "use.thread.spawn",
				"use.thread.spawn expects a Block, got %s", v.Type())
		}
		h := r.Scheduler.Go(r.ctx, v)
		m.Push(&object.Integer{Value: h.ID})
		return nil
	}
}

// fnThreadJoin pops a thread id, waits for the thread and pushes the top of
// its final AL. A thread that halted, or left an empty AL, yields Nil. The
// joining thread gives up its run slot while it waits.
func fnThreadJoin(r *Runtime) object.NativeFunc {
	return func(m object.Machine) error {
		v, err := m.Pop("use.thread.join")
		if err != nil {
			return err
		}
		id, ok := v.(*object.Integer)
		if !ok {
			return engine.Fatal(engine.TypeMismatch, "use.thread.join",
				"use.thread.join expects a thread id, got %s", v.Type())
		}
		h, ok := r.Scheduler.Lookup(id.Value)
		if !ok {
			return engine.Fatal(engine.HostFailure, "use.thread.join", "unknown thread %d", id.Value)
		}
		var res Result
		var awaitErr error
		if err := blocking(m.Context(), func() {
			res, awaitErr = h.AwaitContext(m.Context())
		}); err != nil {
			return err
		}
		if awaitErr != nil && m.Context().Err() != nil {
			return awaitErr
		}
		if res.Err != nil || len(res.AL) == 0 {
			if res.Err != nil {
				slog.Debug("joined halted thread",
					slog.Int64("thread", id.Value),
					slog.Any("error", res.Err))
			}
			m.Push(object.NIL)
			return nil
		}
		m.Push(res.AL[len(res.AL)-1])
		return nil
	}
}
