package foreign

import (
	"soma/internal/engine"
	"soma/internal/object"
	"strings"
	"unicode"
	"unicode/utf8"
)

func stringExtension() *Extension {
	return &Extension{
		Name: "string",
		Natives: map[string]object.NativeFunc{
			"trim":    stringFn("use.string.trim", func(s string) string { return strings.TrimFunc(s, unicode.IsSpace) }),
			"toUpper": stringFn("use.string.toUpper", strings.ToUpper),
			"toLower": stringFn("use.string.toLower", strings.ToLower),
			"length":  fnStringLength(),
			"indexOf": fnStringIndexOf(),
		},
	}
}

func stringFn(op string, fn func(string) string) object.NativeFunc {
	return func(m object.Machine) error {
		s, err := popString(m, op)
		if err != nil {
			return err
		}
		m.Push(&object.String{Value: fn(s)})
		return nil
	}
}

// fnStringLength counts runes, not bytes.
func fnStringLength() object.NativeFunc {
	return func(m object.Machine) error {
		s, err := popString(m, "use.string.length")
		if err != nil {
			return err
		}
		m.Push(&object.Integer{Value: int64(utf8.RuneCountInString(s))})
		return nil
	}
}

// fnStringIndexOf pops haystack and needle and pushes the rune index of the
// first match, or -1.
func fnStringIndexOf() object.NativeFunc {
	return func(m object.Machine) error {
		args, err := m.PopN("use.string.indexOf", 2)
		if err != nil {
			return err
		}
		hay, ok1 := args[0].(*object.String)
		needle, ok2 := args[1].(*object.String)
		if !ok1 || !ok2 {
			return engine.Fatal(engine.TypeMismatch, "use.string.indexOf",
				"indexOf expects two Strings, got %s and %s", args[0].Type(), args[1].Type())
		}
		byteIdx := strings.Index(hay.Value, needle.Value)
		if byteIdx < 0 {
			m.Push(&object.Integer{Value: -1})
			return nil
		}
		m.Push(&object.Integer{Value: int64(utf8.RuneCountInString(hay.Value[:byteIdx]))})
		return nil
	}
}
