package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"strconv"
	"strings"

	"github.com/poiesic/newsembed/core"
)

// IndexColumn names a header cell that was left blank, which is how
// dataframe exports write their positional index.
const IndexColumn = "Unnamed: 0"

type columnKind int

const (
	kindInt columnKind = iota
	kindFloat
	kindString
)

// Table is an immutable, row-oriented view of a delimited file.
type Table struct {
	columns []string
	rows    []core.Row
}

// Load reads a CSV file with a header row into a Table.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	slog.Default().With("component", "table").Debug("loaded table",
		"path", path, "rows", t.Len(), "columns", len(t.columns))
	return t, nil
}

// Read parses CSV data with a header row into a Table.
// Cells are typed per column: a column is int64 if every present value
// parses as an integer, float64 if every present value parses as a number,
// and string otherwise. Empty cells and cells missing from short records
// are left out of the row.
func Read(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, err
	}

	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			name = IndexColumn
			if i > 0 {
				name = fmt.Sprintf("Unnamed: %d", i)
			}
		}
		columns[i] = name
	}
	columns = dedupe(columns)

	var records [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	kinds := inferKinds(len(columns), records)

	rows := make([]core.Row, len(records))
	for i, rec := range records {
		fields := make(map[string]any, len(columns))
		for c, name := range columns {
			if c >= len(rec) || rec[c] == "" {
				continue
			}
			fields[name] = convert(rec[c], kinds[c])
		}
		rows[i] = core.Row{Index: i, Fields: fields}
	}

	return &Table{columns: columns, rows: rows}, nil
}

// dedupe renames repeated column names to name.1, name.2 and so on, skipping
// suffixes already taken by another column.
func dedupe(columns []string) []string {
	taken := make(map[string]struct{}, len(columns))
	for _, name := range columns {
		taken[name] = struct{}{}
	}

	seen := make(map[string]int, len(columns))
	out := make([]string, len(columns))
	for i, name := range columns {
		n := seen[name]
		seen[name] = n + 1
		if n == 0 {
			out[i] = name
			continue
		}
		candidate := fmt.Sprintf("%s.%d", name, n)
		for {
			if _, clash := taken[candidate]; !clash {
				break
			}
			n++
			candidate = fmt.Sprintf("%s.%d", name, n)
		}
		seen[name] = n + 1
		taken[candidate] = struct{}{}
		out[i] = candidate
	}
	return out
}

func inferKinds(n int, records [][]string) []columnKind {
	kinds := make([]columnKind, n)
	for c := 0; c < n; c++ {
		kind := kindInt
		for _, rec := range records {
			if c >= len(rec) || rec[c] == "" {
				continue
			}
			v := rec[c]
			if kind == kindInt {
				if _, err := strconv.ParseInt(v, 10, 64); err == nil {
					continue
				}
				kind = kindFloat
			}
			if kind == kindFloat {
				if _, err := strconv.ParseFloat(v, 64); err == nil {
					continue
				}
				kind = kindString
				break
			}
		}
		kinds[c] = kind
	}
	return kinds
}

func convert(v string, kind columnKind) any {
	switch kind {
	case kindInt:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case kindFloat:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return v
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Columns returns the column names in file order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// DropIncomplete returns a new Table without the rows that miss any column.
// Row indexes are preserved so a row can be traced back to the source.
func (t *Table) DropIncomplete() *Table {
	kept := make([]core.Row, 0, len(t.rows))
	for _, row := range t.rows {
		if t.complete(row) {
			kept = append(kept, row)
		}
	}
	return &Table{columns: t.columns, rows: kept}
}

func (t *Table) complete(row core.Row) bool {
	for _, name := range t.columns {
		if _, ok := row.Fields[name]; !ok {
			return false
		}
	}
	return true
}

// Slice returns the rows in [start, start+size), clamped to the table.
func (t *Table) Slice(start, size int) []core.Row {
	if start < 0 {
		start = 0
	}
	if start >= len(t.rows) || size <= 0 {
		return nil
	}
	end := min(start+size, len(t.rows))
	out := make([]core.Row, end-start)
	copy(out, t.rows[start:end])
	return out
}

// Records returns the rows in [start, start+size) as plain key/value maps.
func (t *Table) Records(start, size int) []map[string]any {
	rows := t.Slice(start, size)
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = maps.Clone(row.Fields)
	}
	return out
}

// Head returns up to the first n rows.
func (t *Table) Head(n int) []core.Row {
	return t.Slice(0, n)
}
