package object

import (
	"fmt"
	"sync/atomic"
)

var nextBlockID atomic.Uint64

type OpCode uint8

const (
	OpPush         OpCode = iota // push a literal (including nested Blocks)
	OpRead                       // a.b
	OpReadRef                    // a.b.
	OpWrite                      // !a.b
	OpWriteReplace               // !a.b.
	OpDelete                     // structural delete of a.b
	OpExec                       // >a.b
	OpExecBlock                  // >{ ... }
	OpPrimitive                  // host primitive bound at construction time
)

var opNames = [...]string{
	OpPush:         "push",
	OpRead:         "read",
	OpReadRef:      "readRef",
	OpWrite:        "write",
	OpWriteReplace: "writeReplace",
	OpDelete:       "delete",
	OpExec:         "execute",
	OpExecBlock:    "executeBlock",
	OpPrimitive:    "primitive",
}

func (o OpCode) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", o)
}

// Instr is one token of a Block after grouping. Value carries the literal for
// OpPush, the target *Block for OpExecBlock and the *Native for OpPrimitive.
type Instr struct {
	Op    OpCode
	Path  Path
	Value Value
	Line  int
	Col   int
}

// Block is an immutable, ordered instruction sequence. Blocks compare by
// identity only.
type Block struct {
	ID     uint64
	Instrs []Instr
}

func NewBlock(instrs ...Instr) *Block {
	return &Block{ID: nextBlockID.Add(1), Instrs: instrs}
}

func (b *Block) Type() ValueType { return BLOCK_OBJ }
func (b *Block) Inspect() string { return fmt.Sprintf("Block#%d", b.ID) }

type NativeFunc func(m Machine) error

// Native is a host-backed Block. Name is the Store path it was registered
// under and is used for diagnostics and persistence.
type Native struct {
	Name string
	Fn   NativeFunc
}

func (n *Native) Type() ValueType { return NATIVE_OBJ }
func (n *Native) Inspect() string { return fmt.Sprintf("<builtin %s>", n.Name) }

// Instruction constructors used by hosts that build Blocks without source.

func Push(v Value) Instr { return Instr{Op: OpPush, Value: v} }
func Read(p Path) Instr { return Instr{Op: OpRead, Path: p} }
func ReadRef(p Path) Instr { return Instr{Op: OpReadRef, Path: p} }
func Write(p Path) Instr { return Instr{Op: OpWrite, Path: p} }
func WriteReplace(p Path) Instr { return Instr{Op: OpWriteReplace, Path: p} }
func Delete(p Path) Instr { return Instr{Op: OpDelete, Path: p} }
func Exec(p Path) Instr { return Instr{Op: OpExec, Path: p} }
func ExecBlock(b *Block) Instr { return Instr{Op: OpExecBlock, Value: b} }
func Primitive(n *Native) Instr { return Instr{Op: OpPrimitive, Value: n} }
