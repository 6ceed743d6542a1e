package telemetry

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// ErrNoSamples indicates there's nothing to plot.
var ErrNoSamples = errors.New("no samples")

// Plot renders position and current over time, one panel each.
func Plot(w io.Writer, ids []byte, samples []Sample, width, height vg.Length) error {
	if len(samples) == 0 {
		return ErrNoSamples
	}
	pos, cur := plot.New(), plot.New()
	pos.Title.Text = "Present position"
	pos.Y.Label.Text = "position (ticks)"
	cur.Title.Text = "Present current"
	cur.X.Label.Text = "time (s)"
	cur.Y.Label.Text = "current (mA)"

	for i, id := range ids {
		posXYs, curXYs := make(plotter.XYs, len(samples)), make(plotter.XYs, len(samples))
		for n, s := range samples {
			posXYs[n].X, posXYs[n].Y = s.Elapsed, float64(s.Readings[i].Position)
			curXYs[n].X, curXYs[n].Y = s.Elapsed, float64(s.Readings[i].Current)
		}
		name := fmt.Sprintf("ID %d", id)
		for _, panel := range []struct {
			p   *plot.Plot
			xys plotter.XYs
		}{{pos, posXYs}, {cur, curXYs}} {
			line, err := plotter.NewLine(panel.xys)
			if err != nil {
				return err
			}
			line.Color = plotutil.Color(i)
			line.Width = vg.Points(1.5)
			panel.p.Add(line)
			panel.p.Legend.Add(name, line)
		}
	}
	pos.Add(plotter.NewGrid())
	cur.Add(plotter.NewGrid())

	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadY: vg.Points(8)}
	canvases := plot.Align([][]*plot.Plot{{pos}, {cur}}, tiles, dc)
	pos.Draw(canvases[0][0])
	cur.Draw(canvases[1][0])

	bw := bufio.NewWriter(w)
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(bw); err != nil {
		return err
	}
	return bw.Flush()
}

// PlotFile writes a batch as a PNG named by Namer.
type PlotFile struct {
	Namer  Namer
	Width  vg.Length
	Height vg.Length
	// Path is set to the file written by the last Consume.
	Path string
}

// Consume implements Sink. An empty batch is skipped.
func (f *PlotFile) Consume(b *Batch) error {
	if len(b.Samples) == 0 {
		glog.Warning("no samples, plot skipped")
		return nil
	}
	width, height := f.Width, f.Height
	if width == 0 {
		width = 8 * vg.Inch
	}
	if height == 0 {
		height = 6 * vg.Inch
	}
	path := f.Namer.Name()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = Plot(out, b.IDs, b.Samples, width, height); err != nil {
		out.Close()
		return fmt.Errorf("plot %s: %v", path, err)
	}
	if err = out.Close(); err != nil {
		return err
	}
	f.Path = path
	glog.Infof("plot written to %s", path)
	return nil
}
