package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/pose.report/internal/stabilize"
)

// featureLineData converts values to echarts points; "-" marks a gap.
func featureLineData(samples []Sample, value func(Sample) stabilize.Value) []opts.LineData {
	data := make([]opts.LineData, len(samples))
	for i, s := range samples {
		if v, ok := value(s).Finite(); ok {
			data[i] = opts.LineData{Value: v}
		} else {
			data[i] = opts.LineData{Value: "-"}
		}
	}
	return data
}

// handleFeatureChart renders the retained tilt and area series as an HTML
// line chart. Query params:
//   - last (optional) limits the chart to the most recent N samples
func (ws *WebServer) handleFeatureChart(w http.ResponseWriter, r *http.Request) {
	samples := ws.live.Samples()
	if l := r.URL.Query().Get("last"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n < len(samples) {
			samples = samples[len(samples)-n:]
		}
	}
	if len(samples) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no samples available")
		return
	}

	xs := make([]string, len(samples))
	for i, s := range samples {
		xs[i] = strconv.FormatUint(s.Frame, 10)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Stabilised Pose Features", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Stabilised Pose Features", Subtitle: fmt.Sprintf("frames %s-%s", xs[0], xs[len(xs)-1])}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.ExtendYAxis(opts.YAxis{Name: "Area", Position: "right"})

	line.SetXAxis(xs).
		AddSeries("tilt_slope", featureLineData(samples, func(s Sample) stabilize.Value { return s.TiltSlope })).
		AddSeries("triangle_area", featureLineData(samples, func(s Sample) stabilize.Value { return s.TriangleArea }),
			charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
