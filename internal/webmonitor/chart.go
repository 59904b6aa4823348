package webmonitor

import (
	"errors"
	"io"
	"time"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/detector"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/pkg/types"
	"github.com/wcharczuk/go-chart"
	"github.com/wcharczuk/go-chart/drawing"
)

// errTooFewReadings is returned when a line cannot be drawn yet
var errTooFewReadings = errors.New("need at least two readings to chart")

// renderHeartRateChart draws the heart-rate history as a PNG with the
// warning threshold as a dashed red line.
func renderHeartRateChart(w io.Writer, readings []types.Reading, width, height int) error {
	if len(readings) < 2 {
		return errTooFewReadings
	}

	xs := make([]time.Time, len(readings))
	ys := make([]float64, len(readings))
	for i, r := range readings {
		xs[i] = r.Timestamp
		ys[i] = r.HeartRate
	}
	limit := []float64{detector.HeartRateThreshold, detector.HeartRateThreshold}
	limitXs := []time.Time{xs[0], xs[len(xs)-1]}

	graph := chart.Chart{
		Title:      "Heart Rate",
		TitleStyle: chart.StyleShow(),
		Width:      width,
		Height:     height,
		XAxis: chart.XAxis{
			Name:           "Time",
			NameStyle:      chart.StyleShow(),
			Style:          chart.StyleShow(),
			ValueFormatter: chart.TimeValueFormatterWithFormat("15:04:05"),
		},
		YAxis: chart.YAxis{
			Name:      "BPM",
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Heart rate",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					Show:        true,
					StrokeColor: chart.ColorBlue,
					StrokeWidth: 2,
				},
			},
			chart.TimeSeries{
				Name:    "Warning threshold",
				XValues: limitXs,
				YValues: limit,
				Style: chart.Style{
					Show:            true,
					StrokeColor:     chart.ColorRed,
					StrokeDashArray: []float64{5.0, 5.0},
					FillColor:       drawing.ColorTransparent,
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	return graph.Render(chart.PNG, w)
}
