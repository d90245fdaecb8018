package parser

import (
	"fmt"
	"soma/internal/object"
	"strconv"
	"strings"
	"unicode"
)

// Format renders a Block back to source that parses to an equivalent Block.
// Instructions without a surface form (host primitives, structural deletes)
// and literals that cannot be written in source are reported as errors.
func Format(b *object.Block) (string, error) {
	var out strings.Builder
	if err := formatInstrs(&out, b.Instrs); err != nil {
		return "", err
	}
	return out.String(), nil
}

func formatInstrs(out *strings.Builder, instrs []object.Instr) error {
	for i, in := range instrs {
		if i > 0 {
			out.WriteByte(' ')
		}
		if err := formatInstr(out, in); err != nil {
			return err
		}
	}
	return nil
}

func formatInstr(out *strings.Builder, in object.Instr) error {
	switch in.Op {
	case object.OpPush:
		return formatLiteral(out, in.Value)
	case object.OpRead:
		out.WriteString(in.Path.String())
	case object.OpReadRef:
		out.WriteString(in.Path.String() + ".")
	case object.OpWrite:
		out.WriteString("!" + in.Path.String())
	case object.OpWriteReplace:
		out.WriteString("!" + in.Path.String() + ".")
	case object.OpExec:
		out.WriteString(">" + in.Path.String())
	case object.OpExecBlock:
		block, ok := in.Value.(*object.Block)
		if !ok {
			return fmt.Errorf("executeBlock without a block operand")
		}
		out.WriteByte('>')
		return formatBlock(out, block)
	default:
		return fmt.Errorf("instruction %s has no source form", in.Op)
	}
	return nil
}

func formatLiteral(out *strings.Builder, v object.Value) error {
	switch x := v.(type) {
	case *object.Integer:
		out.WriteString(strconv.FormatInt(x.Value, 10))
	case *object.String:
		out.WriteString(QuoteString(x.Value))
	case *object.Block:
		return formatBlock(out, x)
	default:
		return fmt.Errorf("literal %s has no source form", object.Describe(v))
	}
	return nil
}

func formatBlock(out *strings.Builder, b *object.Block) error {
	if len(b.Instrs) == 0 {
		out.WriteString("{}")
		return nil
	}
	out.WriteString("{ ")
	if err := formatInstrs(out, b.Instrs); err != nil {
		return err
	}
	out.WriteString(" }")
	return nil
}

// QuoteString wraps s in string delimiters, escaping the characters that
// would otherwise end the literal or start an escape. Control characters,
// NUL included, are written as escapes too.
func QuoteString(s string) string {
	var out strings.Builder
	out.WriteByte('(')
	for _, r := range s {
		switch r {
		case ')':
			out.WriteString(`\29\`)
		case '\\':
			out.WriteString(`\5C\`)
		default:
			if unicode.IsControl(r) {
				fmt.Fprintf(&out, "\\%X\\", r)
				continue
			}
			out.WriteRune(r)
		}
	}
	out.WriteByte(')')
	return out.String()
}
