package object

import "errors"

// Graph is one instance of the hierarchical cell store. The process-wide
// Store and every per-execution Register are Graphs; they differ only in the
// addressing of their root and in whether their domain is locked.
//
// Store operations are linearizable: each Read, ReadRef, Write, WriteReplace
// and DeleteEdge runs entirely under the Store lock, so a reader on another
// thread observes either all or none of a write, in lock acquisition order.
type Graph struct {
	root     *Cell
	dom      *domain
	register bool
	released bool
}

// NewStore creates the shared, thread-safe graph.
func NewStore() *Graph {
	d := &domain{shared: true}
	return &Graph{root: newCell(d, VOID), dom: d}
}

// NewRegister creates an empty, thread-confined graph whose root cell "_"
// exists from the start with payload Void.
func NewRegister() *Graph {
	d := &domain{}
	return &Graph{root: newCell(d, VOID), dom: d, register: true}
}

func (g *Graph) IsRegister() bool { return g.register }

// Release drops the graph's root. Cells that are still referenced through a
// CellRef stay alive; everything else becomes garbage.
func (g *Graph) Release() {
	g.root = nil
	g.released = true
}

// slot is the final edge of a resolved path: either a named child of parent,
// or, for the bare path "_", the register root itself.
type slot struct {
	g      *Graph
	parent *Cell
	name   string
}

func (s slot) cell() *Cell {
	if s.parent == nil {
		return s.g.root
	}
	return s.parent.child(s.name)
}

func (s slot) set(c *Cell) {
	if s.parent == nil {
		s.g.root = c
		return
	}
	s.parent.setChild(s.name, c)
}

func (s slot) unset() {
	if s.parent == nil {
		s.g.root = newCell(s.g.dom, VOID)
		return
	}
	delete(s.parent.children, s.name)
}

func (s slot) domain() *domain {
	if s.parent == nil {
		return s.g.dom
	}
	return s.parent.dom
}

var errMissing = errors.New("missing segment")

func (g *Graph) fail(op string, p Path, err error) error {
	if errors.Is(err, errMissing) {
		err = ErrUndefinedPath
	}
	return &PathError{Op: op, Path: p.String(), Register: g.register, Err: err}
}

// apply resolves p under the graph's lock and hands the final slot to fn.
func (g *Graph) apply(op string, p Path, mode accessMode, fn func(s slot) error) error {
	if g.released {
		return g.fail(op, p, ErrReleased)
	}
	if len(p.Segments) == 0 || p.IsRegister() != g.register {
		return g.fail(op, p, ErrWrongGraph)
	}
	err := g.dom.enter(mode, func() error {
		return g.resolve(p, mode, fn)
	})
	if err != nil {
		return g.fail(op, p, err)
	}
	return nil
}

// resolve assumes the graph's own lock is held.
func (g *Graph) resolve(p Path, mode accessMode, fn func(s slot) error) error {
	segments := p.Segments
	start := g.root
	if g.register {
		if len(segments) == 1 {
			return fn(slot{g: g})
		}
		start = g.root.follow()
		segments = segments[1:]
	}
	return walk(g.dom, start, segments, mode, fn)
}

// walk descends from cur through all but the last segment. When an aliased
// cell belongs to another domain the remainder of the walk continues under
// that domain's lock.
func walk(held *domain, cur *Cell, segments []string, mode accessMode, fn func(s slot) error) error {
	if cur.dom != held {
		next := cur.dom
		return next.enter(mode, func() error {
			return walk(next, cur, segments, mode, fn)
		})
	}
	last := len(segments) - 1
	for i := 0; i < last; i++ {
		child := cur.child(segments[i])
		if child == nil {
			switch mode {
			case modeWrite:
				child = newCell(cur.dom, VOID)
				cur.setChild(segments[i], child)
			case modeDelete:
				return nil
			default:
				return errMissing
			}
		}
		cur = child.follow()
		if cur.dom != held {
			return walk(held, cur, segments[i+1:], mode, fn)
		}
	}
	return fn(slot{parent: cur, name: segments[last]})
}

// Read returns the payload at p. A path that was never created is an
// ErrUndefinedPath; an auto-vivified cell yields Void.
func (g *Graph) Read(p Path) (Value, error) {
	var out Value
	err := g.apply("read", p, modeRead, func(s slot) error {
		c := s.cell()
		if c == nil {
			return errMissing
		}
		out = c.value
		return nil
	})
	return out, err
}

// ReadRef returns a handle to the cell at p, with the same resolution rule as
// Read.
func (g *Graph) ReadRef(p Path) (*CellRef, error) {
	var out *CellRef
	err := g.apply("readRef", p, modeRead, func(s slot) error {
		c := s.cell()
		if c == nil {
			return errMissing
		}
		out = &CellRef{cell: c}
		return nil
	})
	return out, err
}

// Write auto-vivifies missing ancestors and sets the payload at p. Children of
// the target cell are untouched. Void is an ordinary payload here.
func (g *Graph) Write(p Path, v Value) error {
	return g.apply("write", p, modeWrite, func(s slot) error {
		dom := s.domain()
		if err := dom.admit(v); err != nil {
			return err
		}
		if c := s.cell(); c != nil {
			c.value = v
			return nil
		}
		s.set(newCell(dom, v))
		return nil
	})
}

// WriteReplace discards the cell at p together with its subtree and puts a
// fresh cell holding v in its place. Existing CellRefs keep the old cell.
func (g *Graph) WriteReplace(p Path, v Value) error {
	return g.apply("writeReplace", p, modeWrite, func(s slot) error {
		dom := s.domain()
		if err := dom.admit(v); err != nil {
			return err
		}
		s.set(newCell(dom, v))
		return nil
	})
}

// DeleteEdge removes the last edge of p. It is a no-op when any segment is
// absent and never fails. The detached cell survives while referenced.
func (g *Graph) DeleteEdge(p Path) {
	_ = g.apply("delete", p, modeDelete, func(s slot) error {
		s.unset()
		return nil
	})
}

// Alias makes dst an additional edge to the cell at src. Missing ancestors of
// dst are auto-vivified. Both paths must address this graph.
func (g *Graph) Alias(dst, src Path) error {
	var target *Cell
	return g.apply("alias", dst, modeWrite, func(s slot) error {
		err := g.resolve(src, modeRead, func(from slot) error {
			target = from.cell()
			if target == nil {
				return errMissing
			}
			return nil
		})
		if err != nil {
			return err
		}
		if target.dom != s.domain() {
			return ErrIllegalWrite
		}
		s.set(target)
		return nil
	})
}

// Children lists the child names of the cell at p in sorted order.
func (g *Graph) Children(p Path) ([]string, error) {
	var names []string
	if len(p.Segments) == 0 && !g.register {
		err := g.dom.enter(modeRead, func() error {
			if g.root == nil {
				return ErrReleased
			}
			names = g.root.childNames()
			return nil
		})
		return names, err
	}
	err := g.apply("children", p, modeRead, func(s slot) error {
		c := s.cell()
		if c == nil {
			return errMissing
		}
		target := c.follow()
		if target.dom == s.domain() {
			names = target.childNames()
			return nil
		}
		return target.dom.enter(modeRead, func() error {
			names = target.childNames()
			return nil
		})
	})
	return names, err
}

// Entry is one edge of a graph snapshot.
type Entry struct {
	Path  Path
	Value Value
	// AliasOf is set when the edge reaches a cell already listed under
	// another path.
	AliasOf *Path
	// Target is set for CellRef payloads whose cell is reachable by an
	// edge of this graph.
	Target *Path
}

// Entries walks every edge reachable from the root in depth-first, name
// sorted order. CellRef payloads are reported, not followed.
func (g *Graph) Entries() []Entry {
	var entries []Entry
	_ = g.dom.enter(modeRead, func() error {
		if g.root == nil {
			return nil
		}
		seen := make(map[*Cell]Path)
		var visit func(c *Cell, at Path)
		visit = func(c *Cell, at Path) {
			if first, ok := seen[c]; ok {
				alias := first
				entries = append(entries, Entry{Path: at, Value: c.value, AliasOf: &alias})
				return
			}
			seen[c] = at
			entries = append(entries, Entry{Path: at, Value: c.value})
			for _, name := range c.childNames() {
				visit(c.children[name], at.Child(name))
			}
		}
		if g.register {
			visit(g.root, Path{Segments: []string{RegisterRoot}})
		} else {
			for _, name := range g.root.childNames() {
				visit(g.root.children[name], Path{Segments: []string{name}})
			}
		}
		for i := range entries {
			ref, ok := entries[i].Value.(*CellRef)
			if !ok {
				continue
			}
			if target, ok := seen[ref.cell]; ok {
				t := target
				entries[i].Target = &t
			}
		}
		return nil
	})
	return entries
}
