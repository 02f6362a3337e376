// Package dataset holds tabular numeric data with a shared column schema
// and reads/writes it as CSV (header row, one sample per row).
package dataset

import (
	"errors"
	"fmt"
)

// ErrColumnMismatch is returned when a row or dataset does not match the
// column schema it is combined with.
var ErrColumnMismatch = errors.New("column count mismatch")

// Dataset is an ordered sequence of rows sharing one column schema.
// Scaled records whether the rows have already been standardised so that a
// second transform is a no-op.
type Dataset struct {
	Columns []string
	Rows    [][]float64
	Scaled  bool
}

// New returns an empty dataset with the given columns.
func New(columns []string) *Dataset {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Dataset{Columns: cols}
}

// FromRows builds a dataset from existing rows. Rows are copied.
func FromRows(columns []string, rows [][]float64) (*Dataset, error) {
	d := New(columns)
	for i, r := range rows {
		if err := d.Append(r); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return d, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// Width returns the number of columns.
func (d *Dataset) Width() int { return len(d.Columns) }

// Empty reports whether the dataset has no rows.
func (d *Dataset) Empty() bool { return len(d.Rows) == 0 }

// Append copies row onto the end of the dataset.
func (d *Dataset) Append(row []float64) error {
	if len(row) != len(d.Columns) {
		return fmt.Errorf("%w: got %d values, want %d", ErrColumnMismatch, len(row), len(d.Columns))
	}
	r := make([]float64, len(row))
	copy(r, row)
	d.Rows = append(d.Rows, r)
	return nil
}

// Column returns a copy of column i.
func (d *Dataset) Column(i int) []float64 {
	out := make([]float64, len(d.Rows))
	for r, row := range d.Rows {
		out[r] = row[i]
	}
	return out
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	c := New(d.Columns)
	c.Scaled = d.Scaled
	c.Rows = make([][]float64, len(d.Rows))
	for i, row := range d.Rows {
		r := make([]float64, len(row))
		copy(r, row)
		c.Rows[i] = r
	}
	return c
}

// Concat joins datasets with identical width into a new dataset using the
// first dataset's column names. Mixing scaled and unscaled inputs is
// rejected.
func Concat(parts ...*Dataset) (*Dataset, error) {
	if len(parts) == 0 {
		return nil, errors.New("nothing to concatenate")
	}
	out := New(parts[0].Columns)
	out.Scaled = parts[0].Scaled
	for i, p := range parts {
		if p.Width() != out.Width() {
			return nil, fmt.Errorf("part %d: %w: %d columns, want %d", i, ErrColumnMismatch, p.Width(), out.Width())
		}
		if p.Scaled != out.Scaled {
			return nil, fmt.Errorf("part %d: cannot mix scaled and unscaled datasets", i)
		}
		for j, row := range p.Rows {
			if err := out.Append(row); err != nil {
				return nil, fmt.Errorf("part %d row %d: %w", i, j, err)
			}
		}
	}
	return out, nil
}
