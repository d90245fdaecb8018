package foreign

import (
	"soma/internal/engine"
	"soma/internal/object"
)

// popIntegers pops two Integers, a below b.
func popIntegers(m object.Machine, op string) (int64, int64, error) {
	args, err := m.PopN(op, 2)
	if err != nil {
		return 0, 0, err
	}
	a, ok1 := args[0].(*object.Integer)
	b, ok2 := args[1].(*object.Integer)
	if !ok1 || !ok2 {
		return 0, 0, engine.Fatal(engine.TypeMismatch, op,
			"%s expects two Integers, got %s and %s", op, args[0].Type(), args[1].Type())
	}
	return a.Value, b.Value, nil
}

func popString(m object.Machine, op string) (string, error) {
	v, err := m.Pop(op)
	if err != nil {
		return "", err
	}
	s, ok := v.(*object.String)
	if !ok {
		return "", engine.Fatal(engine.TypeMismatch, op, "%s expects a String, got %s", op, v.Type())
	}
	return s.Value, nil
}

// ToDisplay renders a value the way print writes it.
func ToDisplay(v object.Value) string {
	switch x := v.(type) {
	case *object.String:
		return x.Value
	default:
		return v.Inspect()
	}
}

// ToDebug renders a value for AL dumps, keeping strings delimited.
func ToDebug(v object.Value) string {
	switch v.(type) {
	case *object.Block, *object.Native:
		return "Block"
	default:
		return object.Describe(v)
	}
}
