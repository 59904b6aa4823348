package dataset

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

// ErrNoRows is returned when a dataset has a header but no data rows
var ErrNoRows = errors.New("dataset has no data rows")

// Columns names the feature and label columns to read
type Columns struct {
	Features []string
	Label    string
}

// DefaultColumns matches the public heart-disease schema: maximum heart
// rate achieved predicting disease presence.
func DefaultColumns() Columns {
	return Columns{Features: []string{"thalach"}, Label: "target"}
}

// Dataset is a validated feature matrix with binary labels
type Dataset struct {
	Header   []string // All columns of the source, in file order
	Features []string
	Label    string
	X        [][]float64
	Y        []int
}

// Len returns the number of rows
func (d *Dataset) Len() int {
	return len(d.Y)
}

// Shape returns rows and total column count of the source table
func (d *Dataset) Shape() (int, int) {
	return len(d.Y), len(d.Header)
}

// Column returns a copy of the values of feature i
func (d *Dataset) Column(i int) []float64 {
	out := make([]float64, len(d.X))
	for r, row := range d.X {
		out[r] = row[i]
	}
	return out
}

// Load reads a delimited dataset from path
func Load(path string, cols Columns) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, cols)
}

// Read parses a CSV table with a header row. Every used cell must be
// present: features parse as finite floats, labels are exactly 0 or 1.
func Read(r io.Reader, cols Columns) (*Dataset, error) {
	if len(cols.Features) == 0 || cols.Label == "" {
		return nil, errors.New("feature and label columns must be configured")
	}

	records, err := gocsv.LazyCSVReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("dataset is empty")
	}

	header := make([]string, len(records[0]))
	index := make(map[string]int, len(header))
	for i, name := range records[0] {
		header[i] = strings.TrimSpace(name)
		index[header[i]] = i
	}

	featureIdx := make([]int, len(cols.Features))
	for i, name := range cols.Features {
		idx, ok := index[name]
		if !ok {
			return nil, &ColumnError{Column: name, Available: header}
		}
		featureIdx[i] = idx
	}
	labelIdx, ok := index[cols.Label]
	if !ok {
		return nil, &ColumnError{Column: cols.Label, Available: header}
	}

	rows := records[1:]
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	ds := &Dataset{
		Header:   header,
		Features: append([]string(nil), cols.Features...),
		Label:    cols.Label,
		X:        make([][]float64, 0, len(rows)),
		Y:        make([]int, 0, len(rows)),
	}

	for n, row := range rows {
		line := n + 2 // header is line 1
		x := make([]float64, len(featureIdx))
		for i, idx := range featureIdx {
			v, err := parseFeature(cell(row, idx))
			if err != nil {
				return nil, &CellError{Line: line, Column: cols.Features[i], Value: cell(row, idx), Err: err}
			}
			x[i] = v
		}
		y, err := parseLabel(cell(row, labelIdx))
		if err != nil {
			return nil, &CellError{Line: line, Column: cols.Label, Value: cell(row, labelIdx), Err: err}
		}
		ds.X = append(ds.X, x)
		ds.Y = append(ds.Y, y)
	}

	return ds, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

var errMissing = errors.New("missing value")

func isMissing(s string) bool {
	switch strings.ToLower(s) {
	case "", "na", "nan", "null", "none", "?":
		return true
	}
	return false
}

func parseFeature(s string) (float64, error) {
	if isMissing(s) {
		return 0, errMissing
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not a finite number")
	}
	return v, nil
}

func parseLabel(s string) (int, error) {
	if isMissing(s) {
		return 0, errMissing
	}
	switch s {
	case "0":
		return 0, nil
	case "1":
		return 1, nil
	}
	return 0, errors.New("label must be 0 or 1")
}
