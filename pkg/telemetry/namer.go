package telemetry

import (
	"path/filepath"
	"time"
)

// Namer supplies a run-unique file name.
type Namer interface {
	Name() string
}

// TimestampNamer names files after the current local time,
// e.g. current_data/20240102150405_data.csv.
type TimestampNamer struct {
	Dir    string
	Suffix string
	Now    func() time.Time
}

// Name implements Namer.
func (n *TimestampNamer) Name() string {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	suffix := n.Suffix
	if suffix == "" {
		suffix = "_data.csv"
	}
	return filepath.Join(n.Dir, now().Format("20060102150405")+suffix)
}

// LabelNamer names files after an operator supplied label,
// e.g. angle_current/angle_current_trial3.csv.
type LabelNamer struct {
	Dir    string
	Label  string
	Suffix string
}

// Name implements Namer.
func (n *LabelNamer) Name() string {
	suffix := n.Suffix
	if suffix == "" {
		suffix = ".csv"
	}
	return filepath.Join(n.Dir, "angle_current_"+n.Label+suffix)
}

// FixedName is a Namer always returning itself.
type FixedName string

// Name implements Namer.
func (n FixedName) Name() string {
	return string(n)
}
