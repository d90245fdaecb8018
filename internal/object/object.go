package object

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
)

type ValueType string

const (
	INTEGER_OBJ = "INTEGER"
	STRING_OBJ  = "STRING"
	BOOLEAN_OBJ = "BOOLEAN"
	NIL_OBJ     = "NIL"
	VOID_OBJ    = "VOID"
	BLOCK_OBJ   = "BLOCK"
	NATIVE_OBJ  = "NATIVE"
	CELLREF_OBJ = "CELLREF"
)

var (
	NIL   = &Nil{}
	VOID  = &Void{}
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
)

// Value is anything that can live on the AL or in a Cell payload. Values are
// immutable; mutation always targets a Cell.
type Value interface {
	Type() ValueType
	Inspect() string
}

// Machine is the view of an executing thread handed to native Blocks. It is
// implemented by the engine and is only ever used from the owning thread.
type Machine interface {
	Context() context.Context
	Push(v Value)
	Pop(op string) (Value, error)
	PopN(op string, n int) ([]Value, error)
	Peek() (Value, bool)
	Len() int
	Values() []Value
	Store() *Graph
	Current() *Block
	Exec(v Value) error
	Stdout() io.Writer
	Stdin() *bufio.Reader
}

type Integer struct {
	Value int64
}

func (i *Integer) Type() ValueType { return INTEGER_OBJ }
func (i *Integer) Inspect() string { return strconv.FormatInt(i.Value, 10) }

type String struct {
	Value string
}

func (s *String) Type() ValueType { return STRING_OBJ }
func (s *String) Inspect() string { return s.Value }

type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ValueType { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string {
	if b.Value {
		return "True"
	}
	return "False"
}

// Nil is the explicit "set to empty" payload.
type Nil struct{}

func (n *Nil) Type() ValueType { return NIL_OBJ }
func (n *Nil) Inspect() string { return "Nil" }

// Void is the payload of a cell that was never explicitly written.
type Void struct{}

func (v *Void) Type() ValueType { return VOID_OBJ }
func (v *Void) Inspect() string { return "Void" }

func NativeBoolToBoolean(b bool) *Boolean {
	if b {
		return TRUE
	}
	return FALSE
}

// IsExecutable reports whether v can be run by >path or chain.
func IsExecutable(v Value) bool {
	switch v.(type) {
	case *Block, *Native:
		return true
	}
	return false
}

// Describe renders a value the way diagnostics and debug dumps show it:
// strings keep their delimiters so that (1) and 1 stay distinguishable.
func Describe(v Value) string {
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case *String:
		return fmt.Sprintf("(%s)", x.Value)
	default:
		return v.Inspect()
	}
}
