package engine

import "soma/internal/object"

// AL is the accumulator list: the LIFO of Values a thread computes on. An AL
// belongs to exactly one thread and is not safe for concurrent use.
type AL struct {
	values []object.Value
}

// NewAL returns an AL holding values, the last one on top.
func NewAL(values ...object.Value) *AL {
	al := &AL{values: make([]object.Value, 0, len(values)+16)}
	al.values = append(al.values, values...)
	return al
}

func (a *AL) Push(v object.Value) {
	a.values = append(a.values, v)
}

// Pop removes the top value. op names the operation for the underflow error.
func (a *AL) Pop(op string) (object.Value, error) {
	n := len(a.values)
	if n == 0 {
		return nil, underflow(op, 1, 0)
	}
	v := a.values[n-1]
	a.values[n-1] = nil
	a.values = a.values[:n-1]
	return v, nil
}

// PopN removes the top n values and returns them bottom to top. Nothing is
// removed when fewer than n values are present.
func (a *AL) PopN(op string, n int) ([]object.Value, error) {
	have := len(a.values)
	if have < n {
		return nil, underflow(op, n, have)
	}
	out := make([]object.Value, n)
	copy(out, a.values[have-n:])
	clear(a.values[have-n:])
	a.values = a.values[:have-n]
	return out, nil
}

func (a *AL) Peek() (object.Value, bool) {
	if len(a.values) == 0 {
		return nil, false
	}
	return a.values[len(a.values)-1], true
}

func (a *AL) Len() int { return len(a.values) }

// Values returns a bottom to top copy.
func (a *AL) Values() []object.Value {
	out := make([]object.Value, len(a.values))
	copy(out, a.values)
	return out
}

// Reset empties the AL.
func (a *AL) Reset() {
	clear(a.values)
	a.values = a.values[:0]
}
