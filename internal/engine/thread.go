package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"soma/internal/object"
)

// DefaultMaxDepth bounds nested Block executions when Options leaves it zero.
const DefaultMaxDepth = 10000

type Options struct {
	// MaxDepth is the deepest chain of nested >path executions allowed
	// before the thread halts with DepthExceeded.
	MaxDepth int
	Stdout   io.Writer
	Stdin    io.Reader
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	return o
}

// Thread is one sequential executor. It owns its AL and the Registers of the
// Blocks it is running; only the Store is shared with other threads.
type Thread struct {
	ctx      context.Context
	al       *AL
	store    *object.Graph
	opts     Options
	stdin    *bufio.Reader
	current  *object.Block
	register *object.Graph
	depth    int
}

func NewThread(ctx context.Context, al *AL, store *object.Graph, opts Options) *Thread {
	if al == nil {
		al = NewAL()
	}
	opts = opts.withDefaults()
	stdin, ok := opts.Stdin.(*bufio.Reader)
	if !ok {
		stdin = bufio.NewReader(opts.Stdin)
	}
	return &Thread{ctx: ctx, al: al, store: store, opts: opts, stdin: stdin}
}

// Run executes the program Block to completion or to the first fatal halt.
// The AL keeps whatever the program left on it in both cases.
func Run(ctx context.Context, block *object.Block, al *AL, store *object.Graph) (*AL, error) {
	t := NewThread(ctx, al, store, Options{})
	return t.al, t.Run(block)
}

func (t *Thread) Run(block *object.Block) error {
	err := t.execBlock(block)
	if err != nil {
		if fe, ok := err.(*FatalError); ok {
			slog.Debug("thread halted",
				slog.String("kind", fe.Kind.String()),
				slog.String("op", fe.Op),
				slog.String("path", fe.Path),
				slog.Int("al-size", t.al.Len()))
		}
		return err
	}
	return nil
}

func (t *Thread) AL() *AL { return t.al }

func (t *Thread) execBlock(b *object.Block) error {
	if t.depth >= t.opts.MaxDepth {
		return Fatal(DepthExceeded, "execute", "nested execution exceeded maximum depth %d", t.opts.MaxDepth)
	}
	if err := t.ctx.Err(); err != nil {
		return fmt.Errorf("execution cancelled: %w", err)
	}

	reg := object.NewRegister()
	prevBlock, prevReg := t.current, t.register
	t.current, t.register = b, reg
	t.depth++
	defer func() {
		reg.Release()
		t.current, t.register = prevBlock, prevReg
		t.depth--
	}()

	for i := range b.Instrs {
		in := &b.Instrs[i]
		if err := t.step(in); err != nil {
			if fe, ok := err.(*FatalError); ok {
				fe.addFrame(Frame{Block: b.ID, Op: in.Op.String(), Path: in.Path.String(), Line: in.Line, Col: in.Col})
			}
			return err
		}
	}
	return nil
}

// callNative runs a host Block. Natives see the caller's current Block and
// get no Register of their own.
func (t *Thread) callNative(n *object.Native) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("native panicked",
				slog.String("name", n.Name),
				slog.Any("panic", r))
			err = Fatal(HostFailure, n.Name, "native %s panicked: %v", n.Name, r)
		}
	}()
	if err := n.Fn(t); err != nil {
		return AsFatal(n.Name, err)
	}
	return nil
}

func (t *Thread) graph(p object.Path) *object.Graph {
	if p.IsRegister() {
		return t.register
	}
	return t.store
}

// Machine implementation for natives.

func (t *Thread) Context() context.Context { return t.ctx }
func (t *Thread) Push(v object.Value)       { t.al.Push(v) }

func (t *Thread) Pop(op string) (object.Value, error) { return t.al.Pop(op) }

func (t *Thread) PopN(op string, n int) ([]object.Value, error) { return t.al.PopN(op, n) }

func (t *Thread) Peek() (object.Value, bool) { return t.al.Peek() }
func (t *Thread) Len() int                   { return t.al.Len() }
func (t *Thread) Values() []object.Value     { return t.al.Values() }
func (t *Thread) Store() *object.Graph       { return t.store }
func (t *Thread) Current() *object.Block     { return t.current }
func (t *Thread) Stdout() io.Writer          { return t.opts.Stdout }
func (t *Thread) Stdin() *bufio.Reader       { return t.stdin }

// Exec runs v the way >path runs the value it resolved.
func (t *Thread) Exec(v object.Value) error {
	switch x := v.(type) {
	case *object.Block:
		return t.execBlock(x)
	case *object.Native:
		return t.callNative(x)
	case *object.Void:
		return Fatal(ExecuteVoid, "execute", "cannot execute Void")
	default:
		return Fatal(ExecuteNonBlock, "execute", "cannot execute %s %s", v.Type(), object.Describe(v))
	}
}
