package sqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/reiase/probing-go/internal/chunkstore"
)

// tableRefRe finds identifiers following FROM/JOIN, including
// double-quoted identifiers (needed for virtual table references like
// "host.goroutines", whose dot would otherwise be parsed by SQLite as a
// schema-qualified name).
var tableRefRe = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+("(?:[^"]|"")+"|[A-Za-z_][A-Za-z0-9_.]*)`)

func referencedTables(sqlText string) []string {
	matches := tableRefRe.FindAllStringSubmatch(sqlText, -1)
	seen := map[string]struct{}{}
	var out []string
	for _, m := range matches {
		name := strings.Trim(m[1], `"`)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// runSelect materialises every table the statement references into a
// throwaway in-memory SQLite connection, runs the statement there, and
// encodes the rows into the JSON envelope. A bare "SELECT 1 AS
// a, 2 AS b" with no FROM clause  needs no binding at
// all and runs directly.
func (e *Engine) runSelect(ctx context.Context, sqlText string) (Result, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return Result{}, fmt.Errorf("%w: open in-memory engine: %v", ErrInternal, err)
	}
	defer db.Close()

	for _, ref := range referencedTables(sqlText) {
		if err := e.bindTable(ctx, db, ref); err != nil {
			return Result{}, err
		}
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	defer rows.Close()

	return scanResult(rows)
}

// bindTable creates and populates one SQLite table for a registry or
// virtual table reference. Table references resolve virtual-prefix-first,
// then registry
func (e *Engine) bindTable(ctx context.Context, db *sql.DB, ref string) error {
	if e.virtual != nil && virtualHasPrefix(ref) {
		vt, err := e.virtual.Resolve(ref)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}
		return createAndFillDynamic(ctx, db, ref, vt.Columns, vt.Rows)
	}

	tbl, err := e.registry.Get(ref)
	if err != nil {
		return err
	}
	return createAndFillTyped(ctx, db, ref, tbl)
}

func virtualHasPrefix(ref string) bool {
	return strings.HasPrefix(ref, "host.")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqliteType(k chunkstore.Kind) string {
	switch k {
	case chunkstore.KindInt64, chunkstore.KindUint64:
		return "INTEGER"
	case chunkstore.KindFloat64:
		return "REAL"
	default:
		return "TEXT"
	}
}

// createAndFillTyped binds a registry table, which knows its column
// types, as a strongly-typed SQLite table.
func createAndFillTyped(ctx context.Context, db *sql.DB, name string, tbl *chunkstore.Table) error {
	fields := tbl.Schema()
	kinds := tbl.Kinds()

	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = fmt.Sprintf("%s %s", quoteIdent(f), sqliteType(kinds[i]))
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(cols, ", "))
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrInternal, name, err)
	}

	rows := tbl.Take(int(tbl.ActiveRows()))
	if len(rows) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(fields)), ",")
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(name), placeholders)
	stmt, err := db.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("%w: prepare insert for %s: %v", ErrInternal, name, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, len(row))
		for i, v := range row {
			args[i] = v.Any()
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("%w: insert into %s: %v", ErrInternal, name, err)
		}
	}
	return nil
}

// createAndFillDynamic binds a virtual table, whose column types are only
// known per-value, as an untyped (BLOB-affinity) SQLite table: SQLite is
// dynamically typed per-cell regardless of declared affinity, so this is
// sufficient without a type-inference pass.
func createAndFillDynamic(ctx context.Context, db *sql.DB, name string, columns []string, rows [][]any) error {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = quoteIdent(c)
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(cols, ", "))
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrInternal, name, err)
	}
	if len(rows) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",")
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(name), placeholders)
	stmt, err := db.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("%w: prepare insert for %s: %v", ErrInternal, name, err)
	}
	defer stmt.Close()
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("%w: insert into %s: %v", ErrInternal, name, err)
		}
	}
	return nil
}

// scanResult reads every row of a *sql.Rows into the column-major JSON
// envelope requires.
func scanResult(rows *sql.Rows) (Result, error) {
	names, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	values := make([][]any, len(names))
	scanDest := make([]any, len(names))
	for rows.Next() {
		raw := make([]any, len(names))
		for i := range raw {
			scanDest[i] = &raw[i]
		}
		if err := rows.Scan(scanDest...); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		for i, v := range raw {
			values[i] = append(values[i], normalizeScanned(v))
		}
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	cols := make([]map[string]any, len(names))
	for i, n := range names {
		vs := values[i]
		if vs == nil {
			vs = []any{}
		}
		cols[i] = map[string]any{n: vs}
	}
	return Result{Names: names, Cols: cols}, nil
}

// normalizeScanned converts driver-native byte slices (SQLite returns
// []byte for TEXT columns scanned into interface{}) into plain strings so
// JSON encoding produces strings rather than base64 blobs.
func normalizeScanned(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
