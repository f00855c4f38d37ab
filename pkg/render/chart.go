package render

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/types"
)

// ErrNoData indicates the projection holds no plottable points.
var ErrNoData = errors.New("no chart data in projection")

// metricLabels maps metrics to chart legend names.
var metricLabels = map[types.Metric]string{
	types.MetricIndoorTemperature:  "Température intérieure",
	types.MetricIndoorHumidity:     "Humidité intérieure",
	types.MetricOutdoorTemperature: "Température extérieure",
	types.MetricMass:               "Masse",
}

// Chart renders the projection's point sequences as a PNG time chart,
// one line per selected metric.
func Chart(p types.ProjectionResult) ([]byte, error) {
	var seriesList []chart.Series

	for _, seq := range p.Sequences {
		if len(seq.Points) == 0 {
			continue
		}

		name := metricLabels[seq.Metric]
		if name == "" {
			name = string(seq.Metric)
		}

		xs := make([]time.Time, 0, len(seq.Points))
		ys := make([]float64, 0, len(seq.Points))
		for _, pt := range seq.Points {
			xs = append(xs, pt.Timestamp)
			ys = append(ys, pt.Value)
		}

		// go-chart needs at least two points per series
		if len(xs) == 1 {
			xs = append(xs, xs[0].Add(time.Minute))
			ys = append(ys, ys[0])
		}

		seriesList = append(seriesList, chart.TimeSeries{
			Name:    name,
			XValues: xs,
			YValues: ys,
		})
	}

	if len(seriesList) == 0 {
		return nil, ErrNoData
	}

	ch := chart.Chart{
		Title:      fmt.Sprintf("Mesures du %s au %s", p.Window.Start, p.Window.End),
		Background: chart.Style{Padding: chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 16}},
		Series:     seriesList,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}
