package foreign

import "soma/internal/object"

func fnStdIsVoid() object.NativeFunc {
	return func(m object.Machine) error {
		v, err := m.Pop("isVoid")
		if err != nil {
			return err
		}
		_, ok := v.(*object.Void)
		m.Push(object.NativeBoolToBoolean(ok))
		return nil
	}
}

func fnStdIsNil() object.NativeFunc {
	return func(m object.Machine) error {
		v, err := m.Pop("isNil")
		if err != nil {
			return err
		}
		_, ok := v.(*object.Nil)
		m.Push(object.NativeBoolToBoolean(ok))
		return nil
	}
}
