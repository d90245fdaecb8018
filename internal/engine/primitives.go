package engine

import (
	"fmt"
	"soma/internal/object"
)

// Install binds the engine's own control primitives in the Store. Everything
// else a program can call is host-provided through Register.
func Install(store *object.Graph) error {
	for name, fn := range map[string]object.NativeFunc{
		"choose": Choose,
		"chain":  Chain,
		"block":  CurrentBlock,
	} {
		if err := Register(store, name, fn); err != nil {
			return err
		}
	}
	return nil
}

// Register writes a native Block at path in the Store.
func Register(store *object.Graph, path string, fn object.NativeFunc) error {
	p, ref, err := object.ParsePath(path)
	if err != nil {
		return fmt.Errorf("register native %s: %w", path, err)
	}
	if ref || p.IsRegister() {
		return fmt.Errorf("register native %s: not a store path", path)
	}
	if err := store.Write(p, &object.Native{Name: path, Fn: fn}); err != nil {
		return fmt.Errorf("register native %s: %w", path, err)
	}
	return nil
}

// Choose pops onFalse, onTrue and a Boolean condition and pushes the selected
// value without executing it.
func Choose(m object.Machine) error {
	args, err := m.PopN("choose", 3)
	if err != nil {
		return err
	}
	cond, ok := args[0].(*object.Boolean)
	if !ok {
		return Fatal(TypeMismatch, "choose", "choose condition must be a Boolean, got %s %s",
			args[0].Type(), object.Describe(args[0]))
	}
	if cond.Value {
		m.Push(args[1])
	} else {
		m.Push(args[2])
	}
	return nil
}

// Chain executes the top of the AL for as long as the new top is a Block.
// The loop runs each Block at the same host stack depth, so arbitrarily long
// state machines never grow the stack. An empty AL after a Block ends the
// chain; a non-Block top is left where it is.
func Chain(m object.Machine) error {
	v, err := m.Pop("chain")
	if err != nil {
		return err
	}
	for object.IsExecutable(v) {
		if err := m.Context().Err(); err != nil {
			return fmt.Errorf("chain cancelled: %w", err)
		}
		if err := m.Exec(v); err != nil {
			return err
		}
		if m.Len() == 0 {
			return nil
		}
		if v, err = m.Pop("chain"); err != nil {
			return err
		}
	}
	m.Push(v)
	return nil
}

// CurrentBlock pushes the Block that is executing, which is the program Block
// at the top level.
func CurrentBlock(m object.Machine) error {
	m.Push(m.Current())
	return nil
}
