package engine

import "soma/internal/object"

func (t *Thread) step(in *object.Instr) error {
	switch in.Op {
	case object.OpPush:
		t.al.Push(in.Value)
		return nil

	case object.OpRead:
		v, err := t.graph(in.Path).Read(in.Path)
		if err != nil {
			return AsFatal("read", err)
		}
		t.al.Push(v)
		return nil

	case object.OpReadRef:
		ref, err := t.graph(in.Path).ReadRef(in.Path)
		if err != nil {
			return AsFatal("readRef", err)
		}
		t.al.Push(ref)
		return nil

	case object.OpWrite:
		v, err := t.al.Pop("write")
		if err != nil {
			return err
		}
		if err := t.graph(in.Path).Write(in.Path, v); err != nil {
			return AsFatal("write", err)
		}
		return nil

	case object.OpWriteReplace:
		v, err := t.al.Pop("writeReplace")
		if err != nil {
			return err
		}
		// Replacing with Void removes the edge altogether.
		if _, ok := v.(*object.Void); ok {
			t.graph(in.Path).DeleteEdge(in.Path)
			return nil
		}
		if err := t.graph(in.Path).WriteReplace(in.Path, v); err != nil {
			return AsFatal("writeReplace", err)
		}
		return nil

	case object.OpDelete:
		t.graph(in.Path).DeleteEdge(in.Path)
		return nil

	case object.OpExec:
		v, err := t.graph(in.Path).Read(in.Path)
		if err != nil {
			return AsFatal("execute", err)
		}
		if err := t.Exec(v); err != nil {
			if fe, ok := err.(*FatalError); ok && fe.Path == "" {
				fe.Path = in.Path.String()
			}
			return err
		}
		return nil

	case object.OpExecBlock:
		b, ok := in.Value.(*object.Block)
		if !ok {
			return Fatal(ExecuteNonBlock, "executeBlock", "inline execute without a block operand")
		}
		return t.execBlock(b)

	case object.OpPrimitive:
		n, ok := in.Value.(*object.Native)
		if !ok {
			return Fatal(HostFailure, "primitive", "primitive instruction without a native operand")
		}
		return t.callNative(n)
	}
	return Fatal(HostFailure, in.Op.String(), "unknown instruction %s", in.Op)
}
