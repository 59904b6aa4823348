package trainer

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/dataset"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/model"
	"github.com/olekukonko/tablewriter"
)

// FeatureImportance pairs a feature with its share of impurity decrease
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Report is the human-readable outcome of a training run
type Report struct {
	Rows             int                        `json:"rows"`
	Columns          int                        `json:"columns"`
	AvailableColumns []string                   `json:"available_columns"`
	Features         []string                   `json:"features"`
	Label            string                     `json:"label"`
	FeatureStats     []dataset.Summary          `json:"feature_stats"`
	TrainSize        int                        `json:"train_size"`
	TestSize         int                        `json:"test_size"`
	Metrics          model.ClassificationReport `json:"metrics"`
	Importances      []FeatureImportance        `json:"importances"`
}

func f3(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func f2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// WriteReport renders the report as plain-text tables
func WriteReport(w io.Writer, r Report) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Dataset shape: (%d, %d)\n", r.Rows, r.Columns)
	fmt.Fprintf(&sb, "Available columns: %s\n", strings.Join(r.AvailableColumns, ", "))
	fmt.Fprintf(&sb, "Features: %s  Label: %s\n", strings.Join(r.Features, ", "), r.Label)
	fmt.Fprintf(&sb, "Train/test split: %d/%d\n\n", r.TrainSize, r.TestSize)

	sb.WriteString("Feature statistics\n")
	stats := tablewriter.NewWriter(&sb)
	stats.SetHeader([]string{"feature", "count", "mean", "std", "min", "25%", "50%", "75%", "max"})
	stats.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, s := range r.FeatureStats {
		stats.Append([]string{
			s.Column, strconv.Itoa(s.Count), f2(s.Mean), f2(s.Std),
			f2(s.Min), f2(s.P25), f2(s.P50), f2(s.P75), f2(s.Max),
		})
	}
	stats.Render()

	sb.WriteString("\nClassification report\n")
	metrics := tablewriter.NewWriter(&sb)
	metrics.SetHeader([]string{"class", "precision", "recall", "f1-score", "support"})
	metrics.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, c := range r.Metrics.Classes {
		metrics.Append(metricRow(c))
	}
	total := r.Metrics.MacroAvg.Support
	metrics.Append([]string{"accuracy", "", "", f3(r.Metrics.Accuracy), strconv.Itoa(total)})
	metrics.Append(metricRow(r.Metrics.MacroAvg))
	metrics.Append(metricRow(r.Metrics.WeightedAvg))
	metrics.Render()

	sb.WriteString("\nFeature importance\n")
	imp := tablewriter.NewWriter(&sb)
	imp.SetHeader([]string{"feature", "importance"})
	imp.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, fi := range r.Importances {
		imp.Append([]string{fi.Feature, f3(fi.Importance)})
	}
	imp.Render()

	_, err := io.WriteString(w, sb.String())
	return err
}

func metricRow(c model.ClassMetrics) []string {
	return []string{c.Label, f3(c.Precision), f3(c.Recall), f3(c.F1), strconv.Itoa(c.Support)}
}
