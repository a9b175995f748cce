package tree

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/LeanderLXZ/catboost/pkg/errors"
)

// SaveScorePlot renders the winning score per depth of a fitted search as a
// line chart. The output format follows the file extension (png, svg, pdf).
func SaveScorePlot(history []float64, path string) error {
	if len(history) == 0 {
		return errors.Wrapf(errors.ErrEmptyData, "SaveScorePlot")
	}

	p := plot.New()
	p.Title.Text = "Split Scores by Depth"
	p.X.Label.Text = "Depth"
	p.Y.Label.Text = "Score"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(history))
	for i, score := range history {
		pts[i].X = float64(i)
		pts[i].Y = score
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrapf(err, "SaveScorePlot: build line")
	}
	p.Add(line)

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "SaveScorePlot: save %s", path)
	}
	return nil
}
