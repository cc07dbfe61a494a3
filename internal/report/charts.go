package report

import (
	"fmt"
	"math"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/courtside-data/playerlock/internal/sessiondb"
)

// WriteHTML renders the session as one standalone HTML page: a trajectory
// scatter of raw vs smoothed centers in the unit square, then the confidence
// and match-score curves. sess may be nil when the run was not persisted.
func WriteHTML(path string, sess *sessiondb.Session, obs []*sessiondb.Observation) error {
	page := components.NewPage()
	page.AddCharts(trajectoryScatter(sess, obs), qualityLine(obs))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		return fmt.Errorf("failed to render report page: %w", err)
	}
	return nil
}

func trajectoryScatter(sess *sessiondb.Session, obs []*sessiondb.Observation) *charts.Scatter {
	rawPts := make([]opts.ScatterData, 0, len(obs))
	smoothPts := make([]opts.ScatterData, 0, len(obs))
	for _, o := range obs {
		cx, cy := o.Box.Center()
		smoothPts = append(smoothPts, opts.ScatterData{Value: []interface{}{cx, cy}})
		if !math.IsNaN(float64(o.RawCenterX)) {
			rawPts = append(rawPts, opts.ScatterData{Value: []interface{}{o.RawCenterX, o.RawCenterY}})
		}
	}

	subtitle := fmt.Sprintf("updates=%d", len(obs))
	if sess != nil {
		subtitle = fmt.Sprintf("session=%s master=%s updates=%d", sess.SessionID, sess.MasterID, len(obs))
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Lock Session", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Subject Trajectory", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		// Detector space is the unit square with y growing downward.
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: 1, Name: "x", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "y", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("raw", rawPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#9e9e9e"}))
	scatter.AddSeries("smoothed", smoothPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff5252"}))
	return scatter
}

func qualityLine(obs []*sessiondb.Observation) *charts.Line {
	xs := make([]string, 0, len(obs))
	confs := make([]opts.LineData, 0, len(obs))
	scores := make([]opts.LineData, 0, len(obs))
	for _, o := range obs {
		xs = append(xs, fmt.Sprintf("%.2f", o.Timeline.Seconds()))
		confs = append(confs, opts.LineData{Value: o.Confidence})
		score := float64(o.MatchScore)
		if math.IsNaN(score) {
			// Misses plot at zero; NaN would break the chart's JSON payload.
			score = 0
		}
		scores = append(scores, opts.LineData{Value: score})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Confidence and Match Score"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "timeline (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1}),
	)
	line.SetXAxis(xs).
		AddSeries("confidence", confs).
		AddSeries("match score", scores)
	return line
}
