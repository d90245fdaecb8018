// Package persist snapshots the Store into a SQL database and restores it.
// The engine itself is in-memory only; persistence is a host extension.
package persist

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"soma/internal/object"
	"soma/internal/parser"
	"strconv"
)

// Row kinds.
const (
	kindInt    = "int"
	kindString = "string"
	kindBool   = "bool"
	kindNil    = "nil"
	kindVoid   = "void"
	kindBlock  = "block"
	kindNative = "native"
	kindRef    = "ref"
	kindAlias  = "alias"
)

type DB struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to dsn with the named driver and makes sure the snapshot
// table exists.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("persist: open %s: %w", dialect.Driver, err)
	}
	if dialect.SingleConn {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: ping %s: %w", dialect.Driver, err)
	}
	if _, err := db.ExecContext(ctx, dialect.CreateTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: create table: %w", err)
	}
	slog.Debug("store database opened",
		slog.String("driver", dialect.Driver))
	return &DB{db: db, dialect: dialect}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

type row struct {
	path    string
	kind    string
	payload sql.NullString
	target  sql.NullString
}

func text(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }

func encode(e object.Entry) (row, error) {
	r := row{path: e.Path.String()}
	if e.AliasOf != nil {
		r.kind = kindAlias
		r.target = text(e.AliasOf.String())
		return r, nil
	}
	switch v := e.Value.(type) {
	case *object.Integer:
		r.kind, r.payload = kindInt, text(strconv.FormatInt(v.Value, 10))
	case *object.String:
		r.kind, r.payload = kindString, text(v.Value)
	case *object.Boolean:
		r.kind, r.payload = kindBool, text(v.Inspect())
	case *object.Nil:
		r.kind = kindNil
	case *object.Void:
		r.kind = kindVoid
	case *object.Block:
		src, err := parser.Format(v)
		if err != nil {
			return r, fmt.Errorf("persist: block at %s: %w", r.path, err)
		}
		r.kind, r.payload = kindBlock, text(src)
	case *object.Native:
		r.kind, r.payload = kindNative, text(v.Name)
	case *object.CellRef:
		if e.Target == nil {
			slog.Warn("reference to a detached cell saved as Void",
				slog.String("path", r.path))
			r.kind = kindVoid
			return r, nil
		}
		r.kind, r.target = kindRef, text(e.Target.String())
	default:
		return r, fmt.Errorf("persist: cannot encode %s at %s", e.Value.Type(), r.path)
	}
	return r, nil
}

// Save replaces the stored snapshot with every edge currently reachable in
// store, in one transaction.
func (d *DB) Save(ctx context.Context, store *object.Graph) error {
	entries := store.Entries()
	rows := make([]row, 0, len(entries))
	for _, e := range entries {
		r, err := encode(e)
		if err != nil {
			return err
		}
		rows = append(rows, r)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM soma_cells"); err != nil {
		return fmt.Errorf("persist: clear: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, d.dialect.Rebind(
		"INSERT INTO soma_cells (seq, path, kind, payload, target) VALUES (?, ?, ?, ?, ?)"))
	if err != nil {
		return fmt.Errorf("persist: prepare: %w", err)
	}
	defer stmt.Close()
	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, i, r.path, r.kind, r.payload, r.target); err != nil {
			return fmt.Errorf("persist: insert %s: %w", r.path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persist: commit: %w", err)
	}
	slog.Info("store saved", slog.Int("cells", len(rows)))
	return nil
}

// Load writes the stored snapshot into store. Natives are looked up by name
// among the natives store already holds; aliases and references are rebuilt
// once every plain value is in place.
func (d *DB) Load(ctx context.Context, store *object.Graph) error {
	rs, err := d.db.QueryContext(ctx, "SELECT path, kind, payload, target FROM soma_cells ORDER BY seq")
	if err != nil {
		return fmt.Errorf("persist: query: %w", err)
	}
	var rows []row
	for rs.Next() {
		var r row
		if err := rs.Scan(&r.path, &r.kind, &r.payload, &r.target); err != nil {
			rs.Close()
			return fmt.Errorf("persist: scan: %w", err)
		}
		rows = append(rows, r)
	}
	if err := rs.Close(); err != nil {
		return fmt.Errorf("persist: read rows: %w", err)
	}
	if err := rs.Err(); err != nil {
		return fmt.Errorf("persist: read rows: %w", err)
	}

	natives := make(map[string]*object.Native)
	for _, e := range store.Entries() {
		if n, ok := e.Value.(*object.Native); ok {
			natives[n.Name] = n
		}
	}

	var deferred []row
	for _, r := range rows {
		if r.kind == kindAlias || r.kind == kindRef {
			deferred = append(deferred, r)
			continue
		}
		v, err := decode(r, natives)
		if err != nil {
			return err
		}
		p, err := parsePath(r.path)
		if err != nil {
			return err
		}
		if err := store.Write(p, v); err != nil {
			return fmt.Errorf("persist: restore %s: %w", r.path, err)
		}
	}
	for _, r := range deferred {
		if err := restoreLink(store, r); err != nil {
			return err
		}
	}
	slog.Info("store loaded", slog.Int("cells", len(rows)))
	return nil
}

func decode(r row, natives map[string]*object.Native) (object.Value, error) {
	switch r.kind {
	case kindInt:
		n, err := strconv.ParseInt(r.payload.String, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("persist: integer at %s: %w", r.path, err)
		}
		return &object.Integer{Value: n}, nil
	case kindString:
		return &object.String{Value: r.payload.String}, nil
	case kindBool:
		return object.NativeBoolToBoolean(r.payload.String == "True"), nil
	case kindNil:
		return object.NIL, nil
	case kindVoid:
		return object.VOID, nil
	case kindBlock:
		block, err := parser.Parse(r.payload.String)
		if err != nil {
			return nil, fmt.Errorf("persist: block at %s: %w", r.path, err)
		}
		return block, nil
	case kindNative:
		n, ok := natives[r.payload.String]
		if !ok {
			slog.Warn("native not available, restored as Void",
				slog.String("path", r.path),
				slog.String("native", r.payload.String))
			return object.VOID, nil
		}
		return n, nil
	}
	return nil, fmt.Errorf("persist: unknown kind %q at %s", r.kind, r.path)
}

func parsePath(s string) (object.Path, error) {
	p, ref, err := object.ParsePath(s)
	if err != nil || ref || p.IsRegister() {
		return object.Path{}, fmt.Errorf("persist: invalid store path %q", s)
	}
	return p, nil
}

func restoreLink(store *object.Graph, r row) error {
	dst, err := parsePath(r.path)
	if err != nil {
		return err
	}
	src, err := parsePath(r.target.String)
	if err != nil {
		return err
	}
	if r.kind == kindAlias {
		if err := store.Alias(dst, src); err != nil {
			return fmt.Errorf("persist: alias %s: %w", r.path, err)
		}
		return nil
	}
	ref, err := store.ReadRef(src)
	if err != nil {
		return fmt.Errorf("persist: reference %s: %w", r.path, err)
	}
	if err := store.Write(dst, ref); err != nil {
		return fmt.Errorf("persist: reference %s: %w", r.path, err)
	}
	return nil
}
