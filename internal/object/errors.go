package object

import "errors"

var (
	ErrUndefinedPath = errors.New("undefined path")
	ErrIllegalWrite  = errors.New("illegal structural write")
	ErrWrongGraph    = errors.New("path addresses a different graph")
	ErrReleased      = errors.New("register already released")
)

// PathError records a failed graph operation and the path it failed on.
type PathError struct {
	Op       string
	Path     string
	Register bool
	Err      error
}

func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error { return e.Err }
