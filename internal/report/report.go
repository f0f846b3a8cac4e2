// Package report renders session results as charts: interactive HTML
// via go-echarts for the daemon's chart endpoints, and a static PNG
// movement timeline via gonum/plot for reports and offline analysis.
package report

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/kinetic-data/motion.report/internal/track"
)

// RenderMovementChart writes an HTML bar chart of per-block movement
// over the session timeline.
func RenderMovementChart(w io.Writer, blocks []track.Block, sessionID string) error {
	labels := make([]string, len(blocks))
	data := make([]opts.BarData, len(blocks))
	for i, b := range blocks {
		labels[i] = formatTimestamp(b.Start)
		data[i] = opts.BarData{Value: b.Movement}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Movement per Block", Theme: "dark", Width: "1200px", Height: "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Movement per Block",
			Subtitle: fmt.Sprintf("session=%s blocks=%d", sessionID, len(blocks)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Block start"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Movement"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("movement", data)

	return bar.Render(w)
}

// RenderLandmarkChart writes an HTML line chart of per-landmark
// displacement between consecutive frames, one series per landmark.
func RenderLandmarkChart(w io.Writer, s track.Series, sessionID string) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Landmark Movement", Theme: "dark", Width: "1200px", Height: "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Per-Landmark Movement",
			Subtitle: fmt.Sprintf("session=%s rows=%d", sessionID, s.Len()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Displacement"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Type: "scroll"}),
	)

	var labels []string
	for i := 1; i < s.Len(); i++ {
		labels = append(labels, fmt.Sprintf("%d", i))
	}
	line.SetXAxis(labels)

	for lm, name := range s.Landmarks {
		data := make([]opts.LineData, 0, len(labels))
		for i := 1; i < s.Len(); i++ {
			prev, cur := s.Rows[i-1].Points[lm], s.Rows[i].Points[lm]
			dx := cur.X - prev.X
			dy := cur.Y - prev.Y
			dz := cur.Z - prev.Z
			data = append(data, opts.LineData{Value: math.Sqrt(dx*dx + dy*dy + dz*dz)})
		}
		line.AddSeries(name, data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	}

	return line.Render(w)
}

// TimelinePNG writes a static PNG of per-frame movement over the
// session, suitable for embedding in reports. Series with fewer than
// two rows produce an empty plot.
func TimelinePNG(w io.Writer, s track.Series) error {
	p := plot.New()
	p.Title.Text = "Movement Timeline"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Movement per frame"

	movements := track.FrameMovements(s)
	if len(movements) > 0 {
		t0 := s.First()
		pts := make(plotter.XYs, len(movements))
		for i, m := range movements {
			pts[i] = plotter.XY{X: s.Rows[i+1].Timestamp - t0, Y: m}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("build timeline line: %w", err)
		}
		line.Width = vg.Points(1)
		p.Add(line)
	}

	wt, err := p.WriterTo(12*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render timeline: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write timeline: %w", err)
	}
	return nil
}

// SaveTimelinePNG renders the movement timeline to a file path.
func SaveTimelinePNG(path string, s track.Series) error {
	p := plot.New()
	p.Title.Text = "Movement Timeline"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Movement per frame"

	movements := track.FrameMovements(s)
	if len(movements) > 0 {
		t0 := s.First()
		pts := make(plotter.XYs, len(movements))
		for i, m := range movements {
			pts[i] = plotter.XY{X: s.Rows[i+1].Timestamp - t0, Y: m}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("build timeline line: %w", err)
		}
		line.Width = vg.Points(1)
		p.Add(line)
	}

	return p.Save(12*vg.Inch, 5*vg.Inch, path)
}

func formatTimestamp(ts float64) string {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC().Format("15:04:05")
}
