package foreign

import (
	"os"
	"soma/internal/object"
)

func sysExtension() *Extension {
	return &Extension{
		Name:    "sys",
		Natives: map[string]object.NativeFunc{"env": fnSysEnv()},
	}
}

// fnSysEnv pushes the variable's value, or Nil when it is unset.
func fnSysEnv() object.NativeFunc {
	return func(m object.Machine) error {
		name, err := popString(m, "use.sys.env")
		if err != nil {
			return err
		}
		if value, ok := os.LookupEnv(name); ok {
			m.Push(&object.String{Value: value})
		} else {
			m.Push(object.NIL)
		}
		return nil
	}
}
