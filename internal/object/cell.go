package object

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

var nextCellID atomic.Uint64

type accessMode int

const (
	modeRead accessMode = iota
	modeWrite
	modeDelete
)

// domain is the lock scope of a set of cells. Every Cell belongs to the
// domain of the graph that created it. Only the Store domain is shared across
// threads and therefore locked; Register domains are confined to one thread.
type domain struct {
	mu     sync.RWMutex
	shared bool
}

func (d *domain) enter(mode accessMode, fn func() error) error {
	if !d.shared {
		return fn()
	}
	if mode == modeRead {
		d.mu.RLock()
		defer d.mu.RUnlock()
	} else {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	return fn()
}

// admit enforces that a shared domain only ever holds references to its own
// cells, which keeps Register cells unreachable from other threads.
func (d *domain) admit(v Value) error {
	ref, ok := v.(*CellRef)
	if !ok || !d.shared || ref.cell.dom == d {
		return nil
	}
	if ref.cell.dom.shared {
		return fmt.Errorf("%w: reference into a different store", ErrIllegalWrite)
	}
	return fmt.Errorf("%w: register cell cannot escape into the store", ErrIllegalWrite)
}

// Cell is one node of a cell graph: a payload and named children, which never
// interact with each other.
type Cell struct {
	id       uint64
	value    Value
	children map[string]*Cell
	dom      *domain
}

func newCell(dom *domain, v Value) *Cell {
	return &Cell{id: nextCellID.Add(1), value: v, dom: dom}
}

func (c *Cell) child(name string) *Cell {
	return c.children[name]
}

func (c *Cell) setChild(name string, child *Cell) {
	if c.children == nil {
		c.children = make(map[string]*Cell)
	}
	c.children[name] = child
}

// follow implements aliasing: a cell whose payload is a CellRef is traversed
// as the referenced cell.
func (c *Cell) follow() *Cell {
	if ref, ok := c.value.(*CellRef); ok {
		return ref.cell
	}
	return c
}

func (c *Cell) childNames() []string {
	names := make([]string, 0, len(c.children))
	for name := range c.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CellRef denotes one Cell directly, independent of any path. The Cell stays
// alive for as long as a CellRef to it is retained.
type CellRef struct {
	cell *Cell
}

func (r *CellRef) Type() ValueType { return CELLREF_OBJ }
func (r *CellRef) Inspect() string { return fmt.Sprintf("CellRef#%d", r.cell.id) }

// Same reports whether both refs denote the same Cell.
func (r *CellRef) Same(other *CellRef) bool {
	return other != nil && r.cell == other.cell
}

// Load returns the current payload of the referenced cell.
func (r *CellRef) Load() Value {
	var v Value
	_ = r.cell.dom.enter(modeRead, func() error {
		v = r.cell.value
		return nil
	})
	return v
}

// Set replaces the payload of the referenced cell; children are untouched.
func (r *CellRef) Set(v Value) error {
	return r.cell.dom.enter(modeWrite, func() error {
		if err := r.cell.dom.admit(v); err != nil {
			return err
		}
		r.cell.value = v
		return nil
	})
}

// Children lists the names of the referenced cell's children in sorted order.
func (r *CellRef) Children() []string {
	var names []string
	_ = r.cell.dom.enter(modeRead, func() error {
		names = r.cell.childNames()
		return nil
	})
	return names
}
