package foreign

import (
	"soma/internal/engine"
	"soma/internal/object"
	"strconv"
	"strings"
)

func fnStringConcat() object.NativeFunc {
	return func(m object.Machine) error {
		args, err := m.PopN("concat", 2)
		if err != nil {
			return err
		}
		a, ok1 := args[0].(*object.String)
		b, ok2 := args[1].(*object.String)
		if !ok1 || !ok2 {
			return engine.Fatal(engine.TypeMismatch, "concat",
				"concat expects two Strings, got %s and %s", args[0].Type(), args[1].Type())
		}
		m.Push(&object.String{Value: a.Value + b.Value})
		return nil
	}
}

func fnStringToString() object.NativeFunc {
	return func(m object.Machine) error {
		v, err := m.Pop("toString")
		if err != nil {
			return err
		}
		i, ok := v.(*object.Integer)
		if !ok {
			return engine.Fatal(engine.TypeMismatch, "toString", "toString expects an Integer, got %s", v.Type())
		}
		m.Push(&object.String{Value: strconv.FormatInt(i.Value, 10)})
		return nil
	}
}

// fnStringToInt pushes Nil when the String is not a decimal integer.
func fnStringToInt() object.NativeFunc {
	return func(m object.Machine) error {
		s, err := popString(m, "toInt")
		if err != nil {
			return err
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			m.Push(object.NIL)
			return nil
		}
		m.Push(&object.Integer{Value: n})
		return nil
	}
}
