package dataset

import (
	"io"
	"math/rand"
	"os"

	"github.com/gocarina/gocsv"
)

// Record is one row of a synthetic heart-disease table. Age is carried
// so generated files look like the public schema; it is never used.
type Record struct {
	Age     int     `csv:"age"`
	Thalach float64 `csv:"thalach"`
	Target  int     `csv:"target"`
}

// SynthConfig controls the separable synthetic dataset
type SynthConfig struct {
	Rows        int
	Seed        int64
	PositiveMin float64 // Positives drawn from [PositiveMin, PositiveMin+40)
	NegativeMax float64 // Negatives drawn from [NegativeMax-50, NegativeMax)
}

// DefaultSynthConfig returns positives at or above 160 BPM and negatives below 140
func DefaultSynthConfig(rows int) SynthConfig {
	return SynthConfig{Rows: rows, Seed: 42, PositiveMin: 160, NegativeMax: 140}
}

// Synthesize generates a labeled, linearly separable dataset. Classes
// alternate before a seeded shuffle so both are always represented.
func Synthesize(cfg SynthConfig) []Record {
	rng := rand.New(rand.NewSource(cfg.Seed))
	records := make([]Record, cfg.Rows)
	for i := range records {
		rec := Record{Age: 29 + rng.Intn(48)}
		if i%2 == 0 {
			rec.Target = 1
			rec.Thalach = cfg.PositiveMin + rng.Float64()*40
		} else {
			rec.Target = 0
			rec.Thalach = cfg.NegativeMax - 50 + rng.Float64()*50
			if rec.Thalach >= cfg.NegativeMax {
				rec.Thalach = cfg.NegativeMax - 1
			}
		}
		records[i] = rec
	}
	rng.Shuffle(len(records), func(i, j int) {
		records[i], records[j] = records[j], records[i]
	})
	return records
}

// WriteCSV writes records with a header row
func WriteCSV(w io.Writer, records []Record) error {
	return gocsv.Marshal(&records, w)
}

// WriteCSVFile writes records to path
func WriteCSVFile(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
