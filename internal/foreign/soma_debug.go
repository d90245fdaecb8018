package foreign

import (
	"errors"
	"fmt"
	"log/slog"
	"soma/internal/engine"
	"soma/internal/object"
	"strings"
)

// debugChainLimit stops an instrumented chain that looks like it will never
// terminate.
const debugChainLimit = 1000

func fnDebugALDump() object.NativeFunc {
	return func(m object.Machine) error {
		values := m.Values()
		items := make([]string, len(values))
		for i, v := range values {
			items[i] = ToDebug(v)
		}
		_, err := fmt.Fprintf(m.Stdout(), "DEBUG AL [%d items]: [%s]\n", len(values), strings.Join(items, ", "))
		return err
	}
}

// fnDebugChain behaves like chain but reports every iteration. It is meant to
// be swapped in with `chain !backup.chain debug.chain !chain`.
func fnDebugChain() object.NativeFunc {
	return func(m object.Machine) error {
		out := m.Stdout()
		v, err := m.Pop("debug.chain")
		if err != nil {
			return err
		}
		iteration := 0
		for object.IsExecutable(v) {
			iteration++
			fmt.Fprintf(out, "\n[DEBUG CHAIN] Iteration %d\n", iteration)
			fmt.Fprintf(out, "  AL before: %d items\n", m.Len())
			if iteration >= debugChainLimit {
				fmt.Fprintf(out, "\n[DEBUG CHAIN] WARNING: reached %d iterations, stopping chain\n", debugChainLimit)
				slog.Warn("debug.chain iteration limit reached",
					slog.Int("limit", debugChainLimit))
				return nil
			}
			fmt.Fprintf(out, "  executing %s\n", v.Inspect())
			if err := m.Exec(v); err != nil {
				return err
			}
			fmt.Fprintf(out, "  AL after: %d items\n", m.Len())
			if m.Len() == 0 {
				fmt.Fprintf(out, "  chain terminating: AL empty\n")
				return nil
			}
			if v, err = m.Pop("debug.chain"); err != nil {
				return err
			}
		}
		fmt.Fprintf(out, "  chain terminating: top is %s\n", ToDebug(v))
		m.Push(v)
		return nil
	}
}

// fnDebugChoose behaves like choose but reports the branch it selects.
func fnDebugChoose() object.NativeFunc {
	return func(m object.Machine) error {
		out := m.Stdout()
		before := m.Len()
		fmt.Fprintf(out, "\n[DEBUG CHOOSE]\n")
		fmt.Fprintf(out, "  AL before: %d items\n", before)
		if before >= 3 {
			values := m.Values()
			fmt.Fprintf(out, "  Condition: %s\n", ToDebug(values[before-3]))
		}
		if err := engine.Choose(m); err != nil {
			return err
		}
		top, _ := m.Peek()
		fmt.Fprintf(out, "  selected %s\n", ToDebug(top))
		fmt.Fprintf(out, "  AL after: %d items\n", m.Len())
		return nil
	}
}

// fnDebugRefSet pops a value and the CellRef below it and writes the value
// straight into the referenced cell. Children of the cell are kept.
func fnDebugRefSet() object.NativeFunc {
	return func(m object.Machine) error {
		args, err := m.PopN("debug.ref.set", 2)
		if err != nil {
			return err
		}
		ref, ok := args[0].(*object.CellRef)
		if !ok {
			return engine.Fatal(engine.TypeMismatch, "debug.ref.set",
				"debug.ref.set expects a CellRef below the value, got %s", args[0].Type())
		}
		if err := ref.Set(args[1]); err != nil {
			if errors.Is(err, object.ErrIllegalWrite) {
				return engine.Fatal(engine.IllegalWrite, "debug.ref.set", "%v", err)
			}
			return err
		}
		return nil
	}
}

// fnDebugChildren pops a CellRef or a Store path String and pushes the names
// of that cell's children as one space separated String. The empty String
// names the Store root.
func fnDebugChildren() object.NativeFunc {
	return func(m object.Machine) error {
		v, err := m.Pop("debug.children")
		if err != nil {
			return err
		}
		var names []string
		switch x := v.(type) {
		case *object.CellRef:
			names = x.Children()
		case *object.String:
			var p object.Path
			if x.Value != "" {
				if p, _, err = object.ParsePath(x.Value); err != nil {
					return engine.Fatal(engine.HostFailure, "debug.children", "%v", err)
				}
			}
			if p.IsRegister() {
				return engine.Fatal(engine.HostFailure, "debug.children",
					"debug.children reads Store paths, got %s", x.Value)
			}
			if names, err = m.Store().Children(p); err != nil {
				return err
			}
		default:
			return engine.Fatal(engine.TypeMismatch, "debug.children",
				"debug.children expects a CellRef or a path String, got %s", v.Type())
		}
		m.Push(&object.String{Value: strings.Join(names, " ")})
		return nil
	}
}
