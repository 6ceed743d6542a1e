package operator

import (
	"flag"
	"fmt"
	"os"
)

// Input mechanisms.
const (
	InputLine = "line"
	InputKey  = "key"
	InputNone = "none"
)

// Config defines how the operator stops a run.
type Config struct {
	Input string
}

var defaultConfig = Config{
	Input: InputLine,
}

func init() {
	if val := os.Getenv("DXL_STOP_INPUT"); val != "" {
		defaultConfig.Input = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Input, "stop-input", defaultConfig.Input, "Stop on operator input: line (Enter), key (any key) or none.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewWatcher creates the watcher reading in.
func (c *Config) NewWatcher(in *os.File) (Watcher, error) {
	switch c.Input {
	case InputLine, "":
		return &LineWatcher{In: in}, nil
	case InputKey:
		return &KeyWatcher{In: in}, nil
	case InputNone:
		return NeverWatcher{}, nil
	}
	return nil, fmt.Errorf("unknown stop input %q", c.Input)
}
