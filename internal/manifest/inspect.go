package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
)

// ExtStat aggregates the files sharing one extension.
type ExtStat struct {
	Ext   string
	Files int64
	Bytes int64
}

// Column is one row of the manifest's DESCRIBE output.
type Column struct {
	Name string
	Type string
}

// Summary describes a manifest file.
type Summary struct {
	Path       string
	Files      int64
	Bytes      int64
	Duplicates int64 // files whose content hash appears more than once, minus one per group
	RunIDs     []string
	ByExt      []ExtStat
	Columns    []Column
}

// quote renders path as a DuckDB string literal.
func quote(path string) string {
	p := strings.ReplaceAll(path, `\`, `/`)
	return "'" + strings.ReplaceAll(p, "'", "''") + "'"
}

// Inspect reads the manifest at path through DuckDB's read_parquet.
func Inspect(ctx context.Context, db *sql.DB, path string) (Summary, error) {
	s := Summary{Path: path}
	src := fmt.Sprintf("read_parquet(%s)", quote(path))

	cols, err := describeColumns(ctx, db, src)
	if err != nil {
		return s, err
	}
	s.Columns = cols

	err = db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*), COALESCE(SUM(size), 0)::BIGINT, (COUNT(*) - COUNT(DISTINCT sha256))::BIGINT FROM %s;`, src),
	).Scan(&s.Files, &s.Bytes, &s.Duplicates)
	if err != nil {
		return s, fmt.Errorf("query manifest totals for %s: %w", path, err)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		`SELECT ext, COUNT(*), COALESCE(SUM(size), 0)::BIGINT FROM %s GROUP BY ext ORDER BY COUNT(*) DESC, ext;`, src))
	if err != nil {
		return s, fmt.Errorf("query manifest extensions for %s: %w", path, err)
	}
	defer rows.Close()
	for rows.Next() {
		var e ExtStat
		if err := rows.Scan(&e.Ext, &e.Files, &e.Bytes); err != nil {
			return s, fmt.Errorf("scan extension row: %w", err)
		}
		s.ByExt = append(s.ByExt, e)
	}
	if err := rows.Err(); err != nil {
		return s, fmt.Errorf("iterate extension rows: %w", err)
	}

	runRows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT DISTINCT run_id FROM %s ORDER BY run_id;`, src))
	if err != nil {
		return s, fmt.Errorf("query manifest runs for %s: %w", path, err)
	}
	defer runRows.Close()
	for runRows.Next() {
		var id sql.NullString
		if err := runRows.Scan(&id); err != nil {
			return s, fmt.Errorf("scan run row: %w", err)
		}
		if id.String != "" {
			s.RunIDs = append(s.RunIDs, id.String)
		}
	}
	return s, runRows.Err()
}

func describeColumns(ctx context.Context, db *sql.DB, src string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("DESCRIBE SELECT * FROM %s;", src))
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", src, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var name, typ, null, key, def, extra sql.NullString
		if err := rows.Scan(&name, &typ, &null, &key, &def, &extra); err != nil {
			return nil, fmt.Errorf("scan schema row: %w", err)
		}
		cols = append(cols, Column{Name: name.String, Type: typ.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schema rows: %w", err)
	}
	if len(cols) == 0 {
		return nil, errors.New("manifest has no columns")
	}
	return cols, nil
}

// Print writes a human-readable report of s.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "--- Manifest Summary: %s ---\n", s.Path)
	fmt.Fprintf(w, "Files: %d  Bytes: %d  Duplicate contents: %d\n", s.Files, s.Bytes, s.Duplicates)
	if len(s.RunIDs) > 0 {
		fmt.Fprintf(w, "Runs: %s\n", strings.Join(s.RunIDs, ", "))
	}
	fmt.Fprintln(w, "\n  Schema:")
	for _, c := range s.Columns {
		fmt.Fprintf(w, "    %-20s | %s\n", c.Name, c.Type)
	}
	fmt.Fprintf(w, "\n%-12s | %-10s | %s\n", "Extension", "Files", "Bytes")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	for _, e := range s.ByExt {
		ext := e.Ext
		if ext == "" {
			ext = "(none)"
		}
		fmt.Fprintf(w, "%-12s | %-10d | %d\n", ext, e.Files, e.Bytes)
	}
}
