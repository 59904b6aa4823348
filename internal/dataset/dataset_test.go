package dataset

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const heartCSV = `age,sex,thalach,target
63,1,150,1
37,1,187,1
56,1,142,0
57,0,163,1
`

func TestReadSelectsColumns(t *testing.T) {
	ds, err := Read(strings.NewReader(heartCSV), DefaultColumns())
	require.NoError(t, err)

	rows, cols := ds.Shape()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 4, cols)
	assert.Equal(t, []string{"age", "sex", "thalach", "target"}, ds.Header)
	assert.Equal(t, []float64{150, 187, 142, 163}, ds.Column(0))
	assert.Equal(t, []int{1, 1, 0, 1}, ds.Y)
}

func TestReadMissingColumn(t *testing.T) {
	_, err := Read(strings.NewReader(heartCSV), Columns{Features: []string{"max_hr"}, Label: "target"})
	require.Error(t, err)

	var colErr *ColumnError
	require.True(t, errors.As(err, &colErr))
	assert.Equal(t, "max_hr", colErr.Column)
	assert.Contains(t, colErr.Error(), "thalach")
}

func TestReadRejectsBadCells(t *testing.T) {
	cases := map[string]struct {
		csv    string
		line   int
		column string
	}{
		"blank feature": {"thalach,target\n150,1\n,0\n", 3, "thalach"},
		"NA feature":    {"thalach,target\nNA,1\n", 2, "thalach"},
		"NaN feature":   {"thalach,target\n150,1\n140,0\nNaN,1\n", 4, "thalach"},
		"text feature":  {"thalach,target\nfast,1\n", 2, "thalach"},
		"inf feature":   {"thalach,target\n+Inf,1\n", 2, "thalach"},
		"label two":     {"thalach,target\n150,2\n", 2, "target"},
		"label blank":   {"thalach,target\n150,\n", 2, "target"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tc.csv), DefaultColumns())
			require.Error(t, err)

			var cellErr *CellError
			require.True(t, errors.As(err, &cellErr), err.Error())
			assert.Equal(t, tc.line, cellErr.Line)
			assert.Equal(t, tc.column, cellErr.Column)
		})
	}
}

func TestReadIgnoresUnusedColumns(t *testing.T) {
	csv := "thalach,target,notes\n150,1,NA\n120,0,\n"
	ds, err := Read(strings.NewReader(csv), DefaultColumns())
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
}

func TestReadHeaderOnly(t *testing.T) {
	_, err := Read(strings.NewReader("thalach,target\n"), DefaultColumns())
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "heart.csv"), DefaultColumns())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSynthesizeIsSeparable(t *testing.T) {
	records := Synthesize(DefaultSynthConfig(200))
	require.Len(t, records, 200)

	var pos, neg int
	for _, r := range records {
		if r.Target == 1 {
			pos++
			assert.GreaterOrEqual(t, r.Thalach, 160.0)
		} else {
			neg++
			assert.Less(t, r.Thalach, 140.0)
		}
	}
	assert.Equal(t, 100, pos)
	assert.Equal(t, 100, neg)

	assert.Equal(t, records, Synthesize(DefaultSynthConfig(200)))
}

func TestWriteCSVRoundTrip(t *testing.T) {
	records := Synthesize(DefaultSynthConfig(20))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))
	assert.True(t, strings.HasPrefix(buf.String(), "age,thalach,target\n"))

	ds, err := Read(&buf, DefaultColumns())
	require.NoError(t, err)
	require.Equal(t, 20, ds.Len())
	for i, r := range records {
		assert.InDelta(t, r.Thalach, ds.X[i][0], 1e-9)
		assert.Equal(t, r.Target, ds.Y[i])
	}
}

func TestDescribe(t *testing.T) {
	s, err := Describe("thalach", []float64{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 3.0, s.Mean)
	assert.InDelta(t, 1.5811, s.Std, 1e-4)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 3.0, s.P50)
	assert.Equal(t, 5.0, s.Max)
	assert.LessOrEqual(t, s.P25, s.P50)
	assert.GreaterOrEqual(t, s.P75, s.P50)

	_, err = Describe("empty", nil)
	assert.Error(t, err)
}
