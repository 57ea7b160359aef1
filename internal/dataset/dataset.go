package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

var (
	ErrEmpty         = errors.New("dataset has no header row")
	ErrRaggedRow     = errors.New("row width does not match header")
	ErrColumnMissing = errors.New("column not found")
)

// Dataset is an in-memory table of rows with named, string-typed columns.
type Dataset struct {
	frame dataframe.DataFrame
}

// FromRecords builds a Dataset from CSV records. records[0] is the header;
// empty header cells are named "Unnamed: <index>".
func FromRecords(records [][]string) (*Dataset, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, ErrEmpty
	}
	header := normalizeHeader(records[0])
	rows := records[1:]

	cols := make([]series.Series, len(header))
	for i, name := range header {
		values := make([]string, len(rows))
		for j, row := range rows {
			if len(row) != len(header) {
				return nil, fmt.Errorf("%w: row %d has %d fields, header has %d", ErrRaggedRow, j+1, len(row), len(header))
			}
			values[j] = row[i]
		}
		cols[i] = series.New(values, series.String, name)
	}

	frame := dataframe.New(cols...)
	if frame.Err != nil {
		return nil, fmt.Errorf("build frame: %w", frame.Err)
	}
	return &Dataset{frame: frame}, nil
}

// normalizeHeader names blank cells "Unnamed: <i>" and suffixes repeated
// names with ".1", ".2", ... so every column name is unique.
func normalizeHeader(raw []string) []string {
	header := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, name := range raw {
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		base := name
		for seen[name] > 0 {
			name = fmt.Sprintf("%s.%d", base, seen[base])
			seen[base]++
		}
		seen[name]++
		header[i] = name
	}
	return header
}

// Len returns the number of data rows.
func (d *Dataset) Len() int { return d.frame.Nrow() }

// Columns returns the column names in order.
func (d *Dataset) Columns() []string { return d.frame.Names() }

// HasColumn reports whether a column named name exists.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.frame.Names() {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns the values of one column.
func (d *Dataset) Column(name string) ([]string, error) {
	if !d.HasColumn(name) {
		return nil, fmt.Errorf("%w: %s", ErrColumnMissing, name)
	}
	return d.frame.Col(name).Records(), nil
}

// Row returns row i as a column-name to value map.
func (d *Dataset) Row(i int) map[string]string {
	names := d.frame.Names()
	out := make(map[string]string, len(names))
	for j, name := range names {
		out[name] = d.frame.Elem(i, j).String()
	}
	return out
}

// Records returns the header followed by every row.
func (d *Dataset) Records() [][]string {
	if d.Len() == 0 {
		return [][]string{d.Columns()}
	}
	return d.frame.Records()
}

// Drop returns a copy without the named columns. Names that are not
// present are ignored.
func (d *Dataset) Drop(names ...string) (*Dataset, error) {
	present := make([]string, 0, len(names))
	for _, name := range names {
		if d.HasColumn(name) {
			present = append(present, name)
		}
	}
	if len(present) == 0 {
		return d, nil
	}
	frame := d.frame.Drop(present)
	if frame.Err != nil {
		return nil, fmt.Errorf("drop columns %v: %w", present, frame.Err)
	}
	return &Dataset{frame: frame}, nil
}

// Rename returns a copy with column from renamed to to.
func (d *Dataset) Rename(from, to string) (*Dataset, error) {
	if !d.HasColumn(from) {
		return nil, fmt.Errorf("%w: %s", ErrColumnMissing, from)
	}
	frame := d.frame.Rename(to, from)
	if frame.Err != nil {
		return nil, fmt.Errorf("rename %s to %s: %w", from, to, frame.Err)
	}
	return &Dataset{frame: frame}, nil
}

// Subset returns the rows at the given indexes, in the order given.
func (d *Dataset) Subset(indexes []int) (*Dataset, error) {
	if len(indexes) == 0 {
		return FromRecords([][]string{d.Columns()})
	}
	for _, i := range indexes {
		if i < 0 || i >= d.Len() {
			return nil, fmt.Errorf("subset: index %d out of range [0,%d)", i, d.Len())
		}
	}
	frame := d.frame.Subset(indexes)
	if frame.Err != nil {
		return nil, fmt.Errorf("subset: %w", frame.Err)
	}
	return &Dataset{frame: frame}, nil
}

// WriteCSV writes the header and all rows as CSV, without an index column.
func (d *Dataset) WriteCSV(w io.Writer) error {
	if d.Len() == 0 {
		return writeHeaderOnly(w, d.Columns())
	}
	if err := d.frame.WriteCSV(w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func writeHeaderOnly(w io.Writer, header []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	cw.Flush()
	return cw.Error()
}
