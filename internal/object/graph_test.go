package object

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func p(s string) Path { return MustPath(s) }

func TestWriteReadRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		value Value
	}{
		{"integer", "answer", &Integer{Value: 42}},
		{"string", "greeting", &String{Value: "hello"}},
		{"boolean", "flag", TRUE},
		{"nil", "empty", NIL},
		{"void", "nothing", VOID},
		{"nested", "a.b.c.d", &Integer{Value: -7}},
		{"block", "code", NewBlock()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			if err := store.Write(p(tt.path), tt.value); err != nil {
				t.Fatalf("write failed: %v", err)
			}
			got, err := store.Read(p(tt.path))
			if err != nil {
				t.Fatalf("read failed: %v", err)
			}
			if got != tt.value {
				t.Fatalf("expected %s, got %s", Describe(tt.value), Describe(got))
			}
		})
	}
}

func TestAutoVivifiedAncestorsReadVoid(t *testing.T) {
	store := NewStore()
	v := &Integer{Value: 9}
	if err := store.Write(p("a.b.c"), v); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	for _, path := range []string{"a", "a.b", "a", "a.b"} {
		got, err := store.Read(p(path))
		if err != nil {
			t.Fatalf("read %s failed: %v", path, err)
		}
		if got != VOID {
			t.Fatalf("expected Void at %s, got %s", path, Describe(got))
		}
	}

	got, err := store.Read(p("a.b.c"))
	if err != nil || got != v {
		t.Fatalf("expected 9 at a.b.c, got %v (%v)", got, err)
	}
}

func TestReadUndefinedPath(t *testing.T) {
	tests := []struct {
		name  string
		setup []string
		read  string
	}{
		{"empty store", nil, "missing"},
		{"missing leaf", []string{"a.b"}, "a.c"},
		{"missing below leaf", []string{"a.b"}, "a.b.c"},
		{"missing root", []string{"a.b"}, "x.b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			for _, path := range tt.setup {
				if err := store.Write(p(path), NIL); err != nil {
					t.Fatalf("setup failed: %v", err)
				}
			}
			for i := 0; i < 3; i++ {
				_, err := store.Read(p(tt.read))
				if !errors.Is(err, ErrUndefinedPath) {
					t.Fatalf("expected ErrUndefinedPath, got %v", err)
				}
				if _, err := store.ReadRef(p(tt.read)); !errors.Is(err, ErrUndefinedPath) {
					t.Fatalf("expected ErrUndefinedPath from readRef, got %v", err)
				}
			}
		})
	}
}

func TestPayloadAndChildrenAreOrthogonal(t *testing.T) {
	store := NewStore()
	_ = store.Write(p("a.b"), &String{Value: "child"})
	_ = store.Write(p("a"), &String{Value: "parent"})

	got, err := store.Read(p("a.b"))
	if err != nil || got.Inspect() != "child" {
		t.Fatalf("child payload disturbed: %v %v", got, err)
	}

	_ = store.Write(p("a.b.c"), &Integer{Value: 1})
	got, _ = store.Read(p("a"))
	if got.Inspect() != "parent" {
		t.Fatalf("parent payload disturbed by deeper write: %s", got.Inspect())
	}
}

func TestWriteReplaceDiscardsChildren(t *testing.T) {
	store := NewStore()
	_ = store.Write(p("a.b"), &String{Value: "one"})
	_ = store.Write(p("a.b.c"), &String{Value: "two"})
	if err := store.WriteReplace(p("a.b"), &String{Value: "three"}); err != nil {
		t.Fatalf("writeReplace failed: %v", err)
	}

	got, err := store.Read(p("a.b"))
	if err != nil || got.Inspect() != "three" {
		t.Fatalf("expected three, got %v (%v)", got, err)
	}
	if _, err := store.Read(p("a.b.c")); !errors.Is(err, ErrUndefinedPath) {
		t.Fatalf("expected a.b.c to be undefined after replace, got %v", err)
	}
}

func TestWriteReplaceKeepsOldCellForRefs(t *testing.T) {
	store := NewStore()
	_ = store.Write(p("a"), &Integer{Value: 1})
	_ = store.Write(p("a.child"), &Integer{Value: 2})
	ref, err := store.ReadRef(p("a"))
	if err != nil {
		t.Fatalf("readRef failed: %v", err)
	}
	_ = store.WriteReplace(p("a"), &Integer{Value: 3})

	if got := ref.Load(); got.Inspect() != "1" {
		t.Fatalf("old cell payload changed: %s", got.Inspect())
	}
	if names := ref.Children(); len(names) != 1 || names[0] != "child" {
		t.Fatalf("old cell lost its children: %v", names)
	}
}

func TestDeleteEdge(t *testing.T) {
	t.Run("ref survives", func(t *testing.T) {
		store := NewStore()
		_ = store.Write(p("foo"), &Integer{Value: 42})
		ref, err := store.ReadRef(p("foo"))
		if err != nil {
			t.Fatalf("readRef failed: %v", err)
		}
		store.DeleteEdge(p("foo"))

		if _, err := store.Read(p("foo")); !errors.Is(err, ErrUndefinedPath) {
			t.Fatalf("expected foo to be gone, got %v", err)
		}
		if got := ref.Load(); got.Inspect() != "42" {
			t.Fatalf("expected 42 through ref, got %s", got.Inspect())
		}
	})

	t.Run("absent path is a no-op", func(t *testing.T) {
		store := NewStore()
		store.DeleteEdge(p("never.was.here"))
		if _, err := store.Read(p("never")); !errors.Is(err, ErrUndefinedPath) {
			t.Fatalf("delete must not vivify, got %v", err)
		}
	})

	t.Run("parent payload untouched", func(t *testing.T) {
		store := NewStore()
		_ = store.Write(p("a"), &Integer{Value: 5})
		_ = store.Write(p("a.b"), &Integer{Value: 6})
		store.DeleteEdge(p("a.b"))
		got, err := store.Read(p("a"))
		if err != nil || got.Inspect() != "5" {
			t.Fatalf("expected parent payload 5, got %v (%v)", got, err)
		}
	})

	t.Run("other path keeps cell", func(t *testing.T) {
		store := NewStore()
		_ = store.Write(p("x"), &Integer{Value: 8})
		if err := store.Alias(p("y"), p("x")); err != nil {
			t.Fatalf("alias failed: %v", err)
		}
		store.DeleteEdge(p("x"))
		got, err := store.Read(p("y"))
		if err != nil || got.Inspect() != "8" {
			t.Fatalf("expected 8 through alias, got %v (%v)", got, err)
		}
	})
}

func TestTraversalFollowsCellRefs(t *testing.T) {
	store := NewStore()
	_ = store.Write(p("data.x"), &Integer{Value: 42})
	ref, _ := store.ReadRef(p("data"))
	_ = store.Write(p("alias"), ref)

	got, err := store.Read(p("alias.x"))
	if err != nil || got.Inspect() != "42" {
		t.Fatalf("expected 42 via alias.x, got %v (%v)", got, err)
	}

	_ = store.Write(p("alias.y"), &Integer{Value: 99})
	got, err = store.Read(p("data.y"))
	if err != nil || got.Inspect() != "99" {
		t.Fatalf("expected write through alias to land in data.y, got %v (%v)", got, err)
	}

	got, _ = store.Read(p("alias"))
	if r, ok := got.(*CellRef); !ok || !r.Same(ref) {
		t.Fatalf("reading the alias itself must yield the CellRef, got %s", Describe(got))
	}
}

func TestRegisterAddressing(t *testing.T) {
	reg := NewRegister()

	got, err := reg.Read(p("_"))
	if err != nil || got != VOID {
		t.Fatalf("fresh register root must read Void, got %v (%v)", got, err)
	}
	if _, err := reg.Read(p("_.x")); !errors.Is(err, ErrUndefinedPath) {
		t.Fatalf("expected undefined _.x, got %v", err)
	}

	_ = reg.Write(p("_"), &Integer{Value: 5})
	_ = reg.Write(p("_.x.y"), &Integer{Value: 6})
	got, _ = reg.Read(p("_"))
	if got.Inspect() != "5" {
		t.Fatalf("root payload lost: %s", got.Inspect())
	}

	if err := reg.Write(p("x"), NIL); !errors.Is(err, ErrWrongGraph) {
		t.Fatalf("store path on register must fail, got %v", err)
	}
	if err := NewStore().Write(p("_.x"), NIL); !errors.Is(err, ErrWrongGraph) {
		t.Fatalf("register path on store must fail, got %v", err)
	}
}

func TestRegistersNeverShareCells(t *testing.T) {
	outer := NewRegister()
	inner := NewRegister()
	_ = outer.Write(p("_.x"), &Integer{Value: 1})

	if _, err := inner.Read(p("_.x")); !errors.Is(err, ErrUndefinedPath) {
		t.Fatalf("sibling register observed outer write: %v", err)
	}
	_ = inner.Write(p("_.x"), &Integer{Value: 2})
	got, _ := outer.Read(p("_.x"))
	if got.Inspect() != "1" {
		t.Fatalf("outer register changed by inner write: %s", got.Inspect())
	}
}

func TestRegisterContextPassing(t *testing.T) {
	caller := NewRegister()
	_ = caller.Write(p("_.x"), &Integer{Value: 10})
	root, err := caller.ReadRef(p("_"))
	if err != nil {
		t.Fatalf("readRef failed: %v", err)
	}

	callee := NewRegister()
	if err := callee.WriteReplace(p("_"), root); err != nil {
		t.Fatalf("writeReplace failed: %v", err)
	}
	got, err := callee.Read(p("_.x"))
	if err != nil || got.Inspect() != "10" {
		t.Fatalf("expected callee to see caller's _.x, got %v (%v)", got, err)
	}
	_ = callee.Write(p("_.y"), &Integer{Value: 11})
	got, err = caller.Read(p("_.y"))
	if err != nil || got.Inspect() != "11" {
		t.Fatalf("expected caller to see _.y written by callee, got %v (%v)", got, err)
	}
}

func TestRegisterCellCannotEscapeIntoStore(t *testing.T) {
	store := NewStore()
	reg := NewRegister()
	_ = reg.Write(p("_.x"), &Integer{Value: 1})
	ref, _ := reg.ReadRef(p("_.x"))

	if err := store.Write(p("leak"), ref); !errors.Is(err, ErrIllegalWrite) {
		t.Fatalf("expected ErrIllegalWrite, got %v", err)
	}
	if err := store.WriteReplace(p("leak"), ref); !errors.Is(err, ErrIllegalWrite) {
		t.Fatalf("expected ErrIllegalWrite, got %v", err)
	}

	storeRef, _ := func() (*CellRef, error) {
		_ = store.Write(p("shared"), &Integer{Value: 2})
		return store.ReadRef(p("shared"))
	}()
	if err := reg.Write(p("_.s"), storeRef); err != nil {
		t.Fatalf("store refs may live in a register: %v", err)
	}
	if err := reg.Write(p("_.s.x"), ref); !errors.Is(err, ErrIllegalWrite) {
		t.Fatalf("writing through a register alias into the store must be checked, got %v", err)
	}
	if err := reg.Write(p("_.s.y"), &Integer{Value: 3}); err != nil {
		t.Fatalf("write through alias failed: %v", err)
	}
	got, err := store.Read(p("shared.y"))
	if err != nil || got.Inspect() != "3" {
		t.Fatalf("expected 3 at shared.y, got %v (%v)", got, err)
	}
}

func TestReleasedRegister(t *testing.T) {
	reg := NewRegister()
	_ = reg.Write(p("_.x"), &Integer{Value: 1})
	ref, _ := reg.ReadRef(p("_.x"))
	reg.Release()

	if _, err := reg.Read(p("_.x")); !errors.Is(err, ErrReleased) {
		t.Fatalf("expected ErrReleased, got %v", err)
	}
	if got := ref.Load(); got.Inspect() != "1" {
		t.Fatalf("retained ref must outlive its register, got %s", got.Inspect())
	}
}

func TestEntries(t *testing.T) {
	store := NewStore()
	_ = store.Write(p("a.b"), &Integer{Value: 1})
	_ = store.Write(p("c"), &String{Value: "s"})
	_ = store.Alias(p("d"), p("a.b"))
	ref, _ := store.ReadRef(p("c"))
	_ = store.Write(p("e"), ref)

	entries := store.Entries()
	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path.String())
	}
	want := []string{"a", "a.b", "c", "d", "e"}
	if fmt.Sprint(paths) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, paths)
	}
	if entries[3].AliasOf == nil || entries[3].AliasOf.String() != "a.b" {
		t.Fatalf("expected d to alias a.b, got %+v", entries[3])
	}
	if entries[4].Target == nil || entries[4].Target.String() != "c" {
		t.Fatalf("expected e to target c, got %+v", entries[4])
	}
}

func TestConcurrentStoreAccess(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				path := p(fmt.Sprintf("w%d.k%d.v", w, i%10))
				_ = store.Write(path, &Integer{Value: int64(i)})
				if _, err := store.Read(path); err != nil {
					t.Errorf("read after write failed: %v", err)
					return
				}
				if i%7 == 0 {
					store.DeleteEdge(p(fmt.Sprintf("w%d.k%d", w, i%10)))
				}
				_ = store.WriteReplace(p(fmt.Sprintf("shared.s%d", i%3)), &Integer{Value: int64(w)})
				_, _ = store.Read(p("shared"))
			}
		}(w)
	}
	wg.Wait()

	names, err := store.Children(p("shared"))
	if err != nil || len(names) != 3 {
		t.Fatalf("expected 3 shared children, got %v (%v)", names, err)
	}
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		in       string
		want     string
		ref      bool
		register bool
		wantErr  bool
	}{
		{"a", "a", false, false, false},
		{"a.b.c", "a.b.c", false, false, false},
		{"a.b.", "a.b", true, false, false},
		{"_", "_", false, true, false},
		{"_.", "_", true, true, false},
		{"_.x.y", "_.x.y", false, true, false},
		{"+", "+", false, false, false},
		{"_x", "", false, false, true},
		{"_temp.x", "", false, false, true},
		{"a..b", "", false, false, true},
		{".a", "", false, false, true},
		{"", "", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			path, ref, err := ParsePath(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error: %v, got: %v", tt.wantErr, err)
			}
			if tt.wantErr {
				return
			}
			if path.String() != tt.want || ref != tt.ref || path.IsRegister() != tt.register {
				t.Fatalf("got %q ref=%v register=%v", path.String(), ref, path.IsRegister())
			}
		})
	}
}
