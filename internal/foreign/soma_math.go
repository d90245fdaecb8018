package foreign

import (
	"math"
	"soma/internal/engine"
	"soma/internal/object"
)

func overflow(op string, a, b int64) error {
	return engine.Fatal(engine.HostFailure, op, "integer overflow in %d %s %d", a, op, b)
}

func fnMathAdd() object.NativeFunc {
	return func(m object.Machine) error {
		a, b, err := popIntegers(m, "+")
		if err != nil {
			return err
		}
		sum := a + b
		if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
			return overflow("+", a, b)
		}
		m.Push(&object.Integer{Value: sum})
		return nil
	}
}

func fnMathSubtract() object.NativeFunc {
	return func(m object.Machine) error {
		a, b, err := popIntegers(m, "-")
		if err != nil {
			return err
		}
		diff := a - b
		if (a >= 0 && b < 0 && diff < 0) || (a < 0 && b > 0 && diff >= 0) {
			return overflow("-", a, b)
		}
		m.Push(&object.Integer{Value: diff})
		return nil
	}
}

func fnMathMultiply() object.NativeFunc {
	return func(m object.Machine) error {
		a, b, err := popIntegers(m, "*")
		if err != nil {
			return err
		}
		product := a * b
		if a != 0 && (product/a != b || (a == -1 && b == math.MinInt64)) {
			return overflow("*", a, b)
		}
		m.Push(&object.Integer{Value: product})
		return nil
	}
}

// fnMathDivide is floor division: the quotient rounds towards negative
// infinity.
func fnMathDivide() object.NativeFunc {
	return func(m object.Machine) error {
		a, b, err := popIntegers(m, "/")
		if err != nil {
			return err
		}
		if b == 0 {
			return engine.Fatal(engine.HostFailure, "/", "division by zero")
		}
		if a == math.MinInt64 && b == -1 {
			return overflow("/", a, b)
		}
		q := a / b
		if a%b != 0 && (a < 0) != (b < 0) {
			q--
		}
		m.Push(&object.Integer{Value: q})
		return nil
	}
}

// fnMathModulo takes the sign of the divisor, matching floor division.
func fnMathModulo() object.NativeFunc {
	return func(m object.Machine) error {
		a, b, err := popIntegers(m, "%")
		if err != nil {
			return err
		}
		if b == 0 {
			return engine.Fatal(engine.HostFailure, "%", "modulo by zero")
		}
		if b == -1 {
			m.Push(&object.Integer{Value: 0})
			return nil
		}
		r := a % b
		if r != 0 && (r < 0) != (b < 0) {
			r += b
		}
		m.Push(&object.Integer{Value: r})
		return nil
	}
}

// fnMathLessThan compares two Integers numerically or two Strings
// lexicographically.
func fnMathLessThan() object.NativeFunc {
	return func(m object.Machine) error {
		args, err := m.PopN("<", 2)
		if err != nil {
			return err
		}
		switch a := args[0].(type) {
		case *object.Integer:
			if b, ok := args[1].(*object.Integer); ok {
				m.Push(object.NativeBoolToBoolean(a.Value < b.Value))
				return nil
			}
		case *object.String:
			if b, ok := args[1].(*object.String); ok {
				m.Push(object.NativeBoolToBoolean(a.Value < b.Value))
				return nil
			}
		}
		return engine.Fatal(engine.TypeMismatch, "<", "cannot compare %s with %s",
			args[0].Type(), args[1].Type())
	}
}
