package engine

import (
	"errors"
	"fmt"
	"soma/internal/object"
	"strings"
)

// Kind classifies a fatal halt. Fatal errors are never recoverable from
// inside the language; domain failures are reported as Values instead.
type Kind int

const (
	ALUnderflow Kind = iota
	TypeMismatch
	ExecuteNonBlock
	ExecuteVoid
	UndefinedPath
	IllegalWrite
	DepthExceeded
	HostFailure
)

var kindNames = [...]string{
	ALUnderflow:     "ALUnderflow",
	TypeMismatch:    "TypeMismatch",
	ExecuteNonBlock: "ExecuteNonBlock",
	ExecuteVoid:     "ExecuteVoid",
	UndefinedPath:   "UndefinedPath",
	IllegalWrite:    "IllegalWrite",
	DepthExceeded:   "DepthExceeded",
	HostFailure:     "HostFailure",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Frame locates one instruction on the way from the failing instruction out
// to the program Block.
type Frame struct {
	Block uint64
	Op    string
	Path  string
	Line  int
	Col   int
}

func (f Frame) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Block#%d %s", f.Block, f.Op)
	if f.Path != "" {
		sb.WriteString(" " + f.Path)
	}
	if f.Line > 0 {
		fmt.Fprintf(&sb, " at %d:%d", f.Line, f.Col)
	}
	return sb.String()
}

const maxTraceFrames = 64

// FatalError halts the executing thread. Trace lists frames innermost first.
type FatalError struct {
	Kind    Kind
	Op      string
	Path    string
	Message string
	Trace   []Frame
	Omitted int
	Err     error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FatalError) Unwrap() error { return e.Err }

// StackTrace renders the trace one frame per line.
func (e *FatalError) StackTrace() string {
	var sb strings.Builder
	for _, f := range e.Trace {
		sb.WriteString("    at " + f.String() + "\n")
	}
	if e.Omitted > 0 {
		fmt.Fprintf(&sb, "    ... %d more frames\n", e.Omitted)
	}
	return sb.String()
}

func (e *FatalError) addFrame(f Frame) {
	if len(e.Trace) >= maxTraceFrames {
		e.Omitted++
		return
	}
	e.Trace = append(e.Trace, f)
}

// Fatal builds a FatalError for native Blocks and host code.
func Fatal(kind Kind, op string, format string, args ...interface{}) *FatalError {
	return &FatalError{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// AsFatal converts any error returned into a running thread into a
// FatalError. Foreign errors become HostFailure.
func AsFatal(op string, err error) *FatalError {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe
	}
	var pe *object.PathError
	if errors.As(err, &pe) {
		return fromPathError(pe)
	}
	return &FatalError{Kind: HostFailure, Op: op, Message: err.Error(), Err: err}
}

func fromPathError(pe *object.PathError) *FatalError {
	fe := &FatalError{Op: pe.Op, Path: pe.Path, Err: pe}
	switch {
	case errors.Is(pe.Err, object.ErrUndefinedPath):
		fe.Kind = UndefinedPath
		fe.Message = undefinedMessage(pe.Op, pe.Path)
	case errors.Is(pe.Err, object.ErrIllegalWrite):
		fe.Kind = IllegalWrite
		fe.Message = fmt.Sprintf("%s %s: %v", pe.Op, pe.Path, pe.Err)
	default:
		fe.Kind = HostFailure
		fe.Message = pe.Error()
	}
	return fe
}

func undefinedMessage(op, path string) string {
	return fmt.Sprintf(
		"%s of undefined path '%s'; initialise it explicitly with 'Nil !%s' "+
			"or create it by writing a child with '<value> !%s.<child>'",
		op, path, path, path)
}

func underflow(op string, need, have int) *FatalError {
	return Fatal(ALUnderflow, op, "%s needs %d value(s) on the AL, found %d", op, need, have)
}
