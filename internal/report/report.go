// Package report renders decision-value charts for trained novelty models:
// a static PNG via gonum/plot and an interactive HTML page via go-echarts.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/gait.report/internal/novelty"
)

// ErrNoData is returned when every group is empty.
var ErrNoData = errors.New("no decision values to plot")

// Group is one named set of per-row results, e.g. the in-distribution or
// known-anomaly validation set.
type Group struct {
	Name    string
	Results []novelty.Result
}

func hasData(groups []Group) bool {
	for _, g := range groups {
		if len(g.Results) > 0 {
			return true
		}
	}
	return false
}

// DecisionRange returns the smallest and largest decision value across
// groups.
func DecisionRange(groups ...Group) (lo, hi float64, ok bool) {
	for _, g := range groups {
		for _, r := range g.Results {
			if !ok || r.DecisionValue < lo {
				lo = r.DecisionValue
			}
			if !ok || r.DecisionValue > hi {
				hi = r.DecisionValue
			}
			ok = true
		}
	}
	return lo, hi, ok
}

// WriteDecisionPlot saves a scatter of decision value against row index for
// each group, with the zero decision boundary dashed. The image format
// follows the path extension (png, svg, pdf...).
func WriteDecisionPlot(path, title string, groups ...Group) error {
	if !hasData(groups) {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Row"
	p.Y.Label.Text = "Decision value"

	for i, g := range groups {
		if len(g.Results) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(g.Results))
		for j, r := range g.Results {
			pts[j] = plotter.XY{X: float64(j), Y: r.DecisionValue}
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("group %s: %w", g.Name, err)
		}
		s.GlyphStyle.Color = plotutil.Color(i)
		s.GlyphStyle.Shape = plotutil.Shape(i)
		s.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(s)
		p.Legend.Add(g.Name, s)
	}

	boundary := plotter.NewFunction(func(float64) float64 { return 0 })
	boundary.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	boundary.Width = vg.Points(1)
	p.Add(boundary)
	p.Legend.Add("boundary", boundary)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}

// WriteDecisionChart renders an interactive HTML scatter of the same data to
// w.
func WriteDecisionChart(w io.Writer, title string, groups ...Group) error {
	if !hasData(groups) {
		return ErrNoData
	}

	var total, anomalous int
	for _, g := range groups {
		for _, r := range g.Results {
			total++
			if !r.IsNormal() {
				anomalous++
			}
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1100px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("rows=%d anomalous=%d", total, anomalous)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Row", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Decision value", NameLocation: "middle", NameGap: 40}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)

	for _, g := range groups {
		if len(g.Results) == 0 {
			continue
		}
		data := make([]opts.ScatterData, len(g.Results))
		for j, r := range g.Results {
			data[j] = opts.ScatterData{Value: []interface{}{j, r.DecisionValue, r.Label}}
		}
		scatter.AddSeries(g.Name, data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}),
			charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{Name: "boundary", YAxis: 0}),
		)
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteDecisionChartFile writes the HTML chart to path.
func WriteDecisionChartFile(path, title string, groups ...Group) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteDecisionChart(f, title, groups...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
