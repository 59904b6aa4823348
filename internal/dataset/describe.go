package dataset

import (
	"errors"

	"github.com/montanaflynn/stats"
)

// Summary holds describe-style statistics of one column
type Summary struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"` // Sample standard deviation
	Min    float64 `json:"min"`
	P25    float64 `json:"p25"`
	P50    float64 `json:"p50"`
	P75    float64 `json:"p75"`
	Max    float64 `json:"max"`
}

// Describe computes count, mean, std, min, quartiles and max of values
func Describe(column string, values []float64) (Summary, error) {
	s := Summary{Column: column, Count: len(values)}
	if len(values) == 0 {
		return s, errors.New("describe: no values")
	}

	var err error
	if s.Mean, err = stats.Mean(values); err != nil {
		return s, err
	}
	if len(values) > 1 {
		if s.Std, err = stats.StandardDeviationSample(values); err != nil {
			return s, err
		}
	}
	if s.Min, err = stats.Min(values); err != nil {
		return s, err
	}
	if s.Max, err = stats.Max(values); err != nil {
		return s, err
	}
	if s.P25, err = stats.Percentile(values, 25); err != nil {
		return s, err
	}
	if s.P50, err = stats.Median(values); err != nil {
		return s, err
	}
	if s.P75, err = stats.Percentile(values, 75); err != nil {
		return s, err
	}
	return s, nil
}

// DescribeAll summarizes every feature column of the dataset
func (d *Dataset) DescribeAll() ([]Summary, error) {
	out := make([]Summary, 0, len(d.Features))
	for i, name := range d.Features {
		s, err := Describe(name, d.Column(i))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
