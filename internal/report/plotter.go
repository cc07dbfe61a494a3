package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/courtside-data/playerlock/internal/replay"
	"github.com/courtside-data/playerlock/internal/sessiondb"
)

var (
	rawColor      = color.RGBA{R: 158, G: 158, B: 158, A: 255}
	smoothedColor = color.RGBA{R: 255, G: 82, B: 82, A: 255}
	predictColor  = color.RGBA{R: 66, G: 133, B: 244, A: 255}
	confColor     = color.RGBA{R: 38, G: 130, B: 142, A: 255}
)

// plotSeries is one named line on a plot. Empty series are skipped so a
// session without predict samples still renders.
type plotSeries struct {
	label string
	pts   plotter.XYs
	color color.RGBA
}

// WritePlots renders the session as PNG time series under dir: center-x and
// center-y with the raw detections, the smoothed output, and the predict
// samples overlaid, plus the confidence curve. The X axis is seconds into the
// video timeline.
func WritePlots(dir string, obs []*sessiondb.Observation, preds []replay.PredictSample) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	var rawX, rawY, smoothX, smoothY, conf plotter.XYs
	for _, o := range obs {
		ts := o.Timeline.Seconds()
		cx, cy := o.Box.Center()
		smoothX = append(smoothX, plotter.XY{X: ts, Y: float64(cx)})
		smoothY = append(smoothY, plotter.XY{X: ts, Y: float64(cy)})
		conf = append(conf, plotter.XY{X: ts, Y: float64(o.Confidence)})
		if !math.IsNaN(float64(o.RawCenterX)) {
			rawX = append(rawX, plotter.XY{X: ts, Y: float64(o.RawCenterX)})
			rawY = append(rawY, plotter.XY{X: ts, Y: float64(o.RawCenterY)})
		}
	}

	var predX, predY plotter.XYs
	for _, p := range preds {
		ts := p.Timeline.Seconds()
		cx, cy := p.Box.Center()
		predX = append(predX, plotter.XY{X: ts, Y: float64(cx)})
		predY = append(predY, plotter.XY{X: ts, Y: float64(cy)})
	}

	plots := []struct {
		file   string
		title  string
		yLabel string
		series []plotSeries
	}{
		{"center_x.png", "Center X", "center x", []plotSeries{
			{"raw", rawX, rawColor},
			{"smoothed", smoothX, smoothedColor},
			{"predicted", predX, predictColor},
		}},
		{"center_y.png", "Center Y", "center y", []plotSeries{
			{"raw", rawY, rawColor},
			{"smoothed", smoothY, smoothedColor},
			{"predicted", predY, predictColor},
		}},
		{"confidence.png", "Confidence", "confidence", []plotSeries{
			{"confidence", conf, confColor},
		}},
	}

	for _, pl := range plots {
		total := 0
		for _, s := range pl.series {
			total += len(s.pts)
		}
		if total == 0 {
			continue
		}
		if err := saveLinePlot(filepath.Join(dir, pl.file), pl.title, pl.yLabel, pl.series); err != nil {
			return err
		}
	}
	return nil
}

func saveLinePlot(path, title, yLabel string, series []plotSeries) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Timeline (s)"
	p.Y.Label.Text = yLabel

	for _, s := range series {
		if len(s.pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(s.pts)
		if err != nil {
			return fmt.Errorf("build %s series: %w", s.label, err)
		}
		line.Color = s.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.label, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	return nil
}
