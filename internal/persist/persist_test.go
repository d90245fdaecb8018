package persist

import (
	"context"
	"errors"
	"path/filepath"
	"soma/internal/object"
	"soma/internal/parser"
	"testing"
)

func p(s string) object.Path { return object.MustPath(s) }

func openTestDB(t *testing.T, dsn string) *DB {
	t.Helper()
	db, err := Open(context.Background(), "sqlite3", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func nativeNoop(m object.Machine) error { return nil }

func populate(t *testing.T) *object.Graph {
	t.Helper()
	store := object.NewStore()
	block, err := parser.Parse(`1 !x >f`)
	if err != nil {
		t.Fatal(err)
	}
	writes := []struct {
		path string
		v    object.Value
	}{
		{"n", &object.Integer{Value: -42}},
		{"s", &object.String{Value: "a)b\\c"}},
		{"flag", object.TRUE},
		{"empty", object.NIL},
		{"deep.a.b", &object.Integer{Value: 7}},
		{"code", block},
		{"tool", &object.Native{Name: "tool", Fn: nativeNoop}},
		{"backup.tool", &object.Native{Name: "tool", Fn: nativeNoop}},
	}
	for _, w := range writes {
		if err := store.Write(p(w.path), w.v); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Alias(p("link"), p("deep.a")); err != nil {
		t.Fatal(err)
	}
	ref, err := store.ReadRef(p("n"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Write(p("ptr"), ref); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, ":memory:")
	if err := db.Save(ctx, populate(t)); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored := object.NewStore()
	live := &object.Native{Name: "tool", Fn: nativeNoop}
	if err := restored.Write(p("tool"), live); err != nil {
		t.Fatal(err)
	}
	if err := db.Load(ctx, restored); err != nil {
		t.Fatalf("load: %v", err)
	}

	tests := []struct {
		path string
		want string
	}{
		{"n", "-42"},
		{"s", "(a)b\\c)"},
		{"flag", "True"},
		{"empty", "Nil"},
		{"deep", "Void"},
		{"deep.a.b", "7"},
		{"link.b", "7"},
	}
	for _, tt := range tests {
		v, err := restored.Read(p(tt.path))
		if err != nil {
			t.Fatalf("read %s: %v", tt.path, err)
		}
		if got := object.Describe(v); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.path, tt.want, got)
		}
	}

	for _, path := range []string{"tool", "backup.tool"} {
		v, _ := restored.Read(p(path))
		if v != live {
			t.Errorf("%s: expected the live native, got %s", path, object.Describe(v))
		}
	}

	code, _ := restored.Read(p("code"))
	block, ok := code.(*object.Block)
	if !ok {
		t.Fatalf("expected a Block, got %s", object.Describe(code))
	}
	if src, _ := parser.Format(block); src != "1 !x >f" {
		t.Fatalf("block source changed: %q", src)
	}

	// link aliases deep.a: a write through one path is visible through the other.
	if err := restored.Write(p("link.c"), object.TRUE); err != nil {
		t.Fatal(err)
	}
	if v, err := restored.Read(p("deep.a.c")); err != nil || v != object.TRUE {
		t.Fatalf("alias not restored: %v %v", v, err)
	}

	ptr, _ := restored.Read(p("ptr"))
	ref, ok := ptr.(*object.CellRef)
	if !ok {
		t.Fatalf("expected CellRef, got %s", object.Describe(ptr))
	}
	nref, _ := restored.ReadRef(p("n"))
	if !ref.Same(nref) {
		t.Fatalf("reference does not point at n")
	}
}

func TestSaveReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, filepath.Join(t.TempDir(), "store.db"))

	first := object.NewStore()
	_ = first.Write(p("old"), &object.Integer{Value: 1})
	if err := db.Save(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := object.NewStore()
	_ = second.Write(p("new"), &object.Integer{Value: 2})
	if err := db.Save(ctx, second); err != nil {
		t.Fatal(err)
	}

	restored := object.NewStore()
	if err := db.Load(ctx, restored); err != nil {
		t.Fatal(err)
	}
	if _, err := restored.Read(p("old")); !errors.Is(err, object.ErrUndefinedPath) {
		t.Fatalf("expected old snapshot to be gone, got %v", err)
	}
	if v, err := restored.Read(p("new")); err != nil || v.Inspect() != "2" {
		t.Fatalf("expected new=2, got %v %v", v, err)
	}
}

func TestMissingNativeRestoresVoid(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, ":memory:")
	store := object.NewStore()
	_ = store.Write(p("gone"), &object.Native{Name: "gone", Fn: nativeNoop})
	if err := db.Save(ctx, store); err != nil {
		t.Fatal(err)
	}
	restored := object.NewStore()
	if err := db.Load(ctx, restored); err != nil {
		t.Fatal(err)
	}
	if v, _ := restored.Read(p("gone")); v != object.VOID {
		t.Fatalf("expected Void, got %s", object.Describe(v))
	}
}

func TestSaveRejectsHostBlocks(t *testing.T) {
	db := openTestDB(t, ":memory:")
	store := object.NewStore()
	host := object.NewBlock(object.Push(object.TRUE))
	_ = store.Write(p("host"), host)
	if err := db.Save(context.Background(), store); err == nil {
		t.Fatalf("expected an error for a block without source form")
	}
}

func TestDialects(t *testing.T) {
	tests := []struct {
		driver string
		want   string
		query  string
	}{
		{"sqlite3", "sqlite3", "INSERT INTO t VALUES (?, ?)"},
		{"sqlite", "sqlite3", "INSERT INTO t VALUES (?, ?)"},
		{"mysql", "mysql", "INSERT INTO t VALUES (?, ?)"},
		{"postgres", "postgres", "INSERT INTO t VALUES ($1, $2)"},
		{"postgresql", "postgres", "INSERT INTO t VALUES ($1, $2)"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := DialectFor(tt.driver)
			if err != nil {
				t.Fatal(err)
			}
			if d.Driver != tt.want {
				t.Fatalf("expected driver %s, got %s", tt.want, d.Driver)
			}
			if got := d.Rebind("INSERT INTO t VALUES (?, ?)"); got != tt.query {
				t.Fatalf("expected %q, got %q", tt.query, got)
			}
		})
	}

	if _, err := DialectFor("oracle"); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}
