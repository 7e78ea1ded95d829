// Package dataset models a fully materialized tabular dataset: an ordered
// list of records, each mapping a column name to a tagged scalar value.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrNoHeader = errors.New("dataset has no header row")

// Record is one row, keyed by column name.
type Record map[string]Value

// Value returns the cell for col. Unknown columns read as null.
func (r Record) Value(col string) Value {
	v, ok := r[col]
	if !ok {
		return Null()
	}

	return v
}

// Dataset is an immutable collection of records with a stable column order.
// Row order is preserved and used as the record index.
type Dataset struct {
	Columns []string
	Records []Record
}

// New creates a [Dataset] from a column list and rows of raw cell text.
// Values are inferred per cell; short rows are padded with nulls.
func New(columns []string, rows [][]string) *Dataset {
	d := &Dataset{Columns: columns}

	for _, row := range rows {
		rec := make(Record, len(columns))
		for i, col := range columns {
			if i < len(row) {
				rec[col] = Infer(row[i])
			} else {
				rec[col] = Null()
			}
		}

		d.Records = append(d.Records, rec)
	}

	return d
}

// FromCSV reads a CSV document with a header row.
func FromCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	all, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	if len(all) == 0 {
		return nil, ErrNoHeader
	}

	return New(all[0], all[1:]), nil
}

// FromCSVFile reads a CSV file from disk.
func FromCSVFile(path string) (*Dataset, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is user input by design.
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only file.

	d, err := FromCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return d, nil
}

// ColumnProfile summarizes one column for the report.
type ColumnProfile struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Nulls    int    `json:"nulls"`
	Distinct int    `json:"distinct"`
}

// Profile summarizes the dataset shape.
type Profile struct {
	Columns []ColumnProfile `json:"columns"`
	Rows    int             `json:"rows"`
}

// Profile computes per-column null and distinct counts, plus the dominant
// non-null value kind per column.
func (d *Dataset) Profile() Profile {
	p := Profile{Rows: len(d.Records)}

	for _, col := range d.Columns {
		cp := ColumnProfile{Name: col}
		seen := make(map[string]struct{})
		kindCounts := make(map[Kind]int)

		for _, rec := range d.Records {
			v := rec.Value(col)
			if v.IsNull() {
				cp.Nulls++

				continue
			}

			kindCounts[v.Kind()]++

			if s, ok := v.AsText(); ok {
				seen[s] = struct{}{}
			}
		}

		cp.Distinct = len(seen)
		cp.Kind = dominantKind(kindCounts).String()
		p.Columns = append(p.Columns, cp)
	}

	return p
}

func dominantKind(counts map[Kind]int) Kind {
	best := KindNull
	bestCount := 0

	for _, k := range []Kind{KindNumber, KindText, KindDate, KindTime} {
		if counts[k] > bestCount {
			best = k
			bestCount = counts[k]
		}
	}

	return best
}
