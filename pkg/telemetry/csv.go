package telemetry

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang/glog"
)

// TimePrecision is the number of decimals of elapsed time in files.
const TimePrecision = 6

// Header returns the CSV header for n actuators.
func Header(n int) []string {
	if n == 1 {
		return []string{"Time (s)", "Current (mA)", "Position"}
	}
	header := []string{"Time(s)"}
	for i := 1; i <= n; i++ {
		header = append(header, fmt.Sprintf("Position%d", i), fmt.Sprintf("Current%d", i))
	}
	return header
}

func formatRow(s Sample) []string {
	row := []string{strconv.FormatFloat(s.Elapsed, 'f', TimePrecision, 64)}
	if len(s.Readings) == 1 {
		r := s.Readings[0]
		return append(row, strconv.Itoa(int(r.Current)), strconv.Itoa(int(r.Position)))
	}
	for _, r := range s.Readings {
		row = append(row, strconv.Itoa(int(r.Position)), strconv.Itoa(int(r.Current)))
	}
	return row
}

// WriteCSV writes samples of n actuators in capture order.
func WriteCSV(w io.Writer, n int, samples []Sample) error {
	if n < 1 {
		return fmt.Errorf("invalid number of actuators %d", n)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(n)); err != nil {
		return err
	}
	for i, s := range samples {
		if len(s.Readings) != n {
			return fmt.Errorf("sample %d has %d readings, want %d", i, len(s.Readings), n)
		}
		if err := cw.Write(formatRow(s)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a file written by WriteCSV and returns the number of
// actuators and the samples.
func ReadCSV(r io.Reader) (int, []Sample, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return 0, nil, &FormatError{Line: 1, Msg: fmt.Sprintf("header: %v", err)}
	}
	n := (len(header) - 1) / 2
	if n < 1 || len(header) != 1+2*n || !equalStrings(header, Header(n)) {
		return 0, nil, &FormatError{Line: 1, Msg: fmt.Sprintf("unknown header %q", header)}
	}
	cr.FieldsPerRecord = len(header)

	var samples []Sample
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return n, samples, nil
		}
		if err != nil {
			return n, samples, &FormatError{Line: line, Msg: err.Error()}
		}
		s, err := parseRow(row, n)
		if err != nil {
			return n, samples, &FormatError{Line: line, Msg: err.Error()}
		}
		samples = append(samples, s)
	}
}

func parseRow(row []string, n int) (s Sample, err error) {
	if s.Elapsed, err = strconv.ParseFloat(row[0], 64); err != nil {
		return
	}
	s.Readings = make([]Reading, n)
	for i := range s.Readings {
		posField, curField := row[1+2*i], row[2+2*i]
		if n == 1 {
			posField, curField = curField, posField
		}
		pos, err := strconv.ParseInt(posField, 10, 32)
		if err != nil {
			return s, err
		}
		cur, err := strconv.ParseInt(curField, 10, 16)
		if err != nil {
			return s, err
		}
		s.Readings[i] = Reading{Position: int32(pos), Current: int16(cur)}
	}
	return
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CSVFile writes a batch to a file named by Namer.
type CSVFile struct {
	Namer Namer
	// Path is set to the file written by the last Consume.
	Path string
}

// Consume implements Sink.
func (f *CSVFile) Consume(b *Batch) error {
	path := f.Namer.Name()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = WriteCSV(out, len(b.IDs), b.Samples); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %v", path, err)
	}
	if err = out.Close(); err != nil {
		return err
	}
	f.Path = path
	glog.Infof("%d samples written to %s", len(b.Samples), path)
	return nil
}
