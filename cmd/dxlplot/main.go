package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"gonum.org/v1/plot/vg"

	"github.com/robotalks/currentloop/pkg/telemetry"
)

var (
	output = ""
	width  = 8.0
	height = 6.0
)

func init() {
	flag.StringVar(&output, "o", output, "Output PNG, defaults to the input with .png extension.")
	flag.Float64Var(&width, "width", width, "Width in inches.")
	flag.Float64Var(&height, "height", height, "Height in inches.")
}

func plotFile(in, out string) error {
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	n, samples, err := telemetry.ReadCSV(f)
	f.Close()
	if err != nil {
		return err
	}
	ids := make([]byte, n)
	for i := range ids {
		ids[i] = byte(i + 1)
	}
	w, err := os.Create(out)
	if err != nil {
		return err
	}
	if err = telemetry.Plot(w, ids, samples, vg.Length(width)*vg.Inch, vg.Length(height)*vg.Inch); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		glog.Exit("CSV file expected")
	}
	if output != "" && flag.NArg() > 1 {
		glog.Exit("-o works with a single input")
	}
	for _, in := range flag.Args() {
		out := output
		if out == "" {
			out = strings.TrimSuffix(in, filepath.Ext(in)) + ".png"
		}
		if err := plotFile(in, out); err != nil {
			glog.Exitf("%s: %v", in, err)
		}
		glog.Infof("%s written", out)
	}
}
