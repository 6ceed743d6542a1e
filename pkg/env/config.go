package env

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/robotalks/currentloop/pkg/actuator"
	"github.com/robotalks/currentloop/pkg/control"
	"github.com/robotalks/currentloop/pkg/dxl"
	"github.com/robotalks/currentloop/pkg/orchestrator"
)

// Limit registers.
const (
	LimitCurrent = "current"
	LimitTorque  = "torque"
)

// Actuator is one actuator of the run.
type Actuator struct {
	ID           byte  `yaml:"id"`
	Displacement int32 `yaml:"displacement"`
}

// Config provides options to setup a run.
type Config struct {
	Device    string        `yaml:"device"`
	BaudRate  int           `yaml:"baud_rate"`
	TxTimeout time.Duration `yaml:"tx_timeout"`
	// Simulate runs against in-memory actuators instead of Device.
	Simulate bool `yaml:"simulate"`

	Actuators     []Actuator `yaml:"actuators"`
	LimitRegister string     `yaml:"limit_register"`
	CurrentLimit  int        `yaml:"current_limit"`

	Kp         float64 `yaml:"kp"`
	Ki         float64 `yaml:"ki"`
	Kd         float64 `yaml:"kd"`
	MaxCurrent float64 `yaml:"max_current"`
	// Unidirectional limits the command to [0, MaxCurrent].
	Unidirectional bool `yaml:"unidirectional"`

	Duration               time.Duration `yaml:"duration"`
	Period                 time.Duration `yaml:"period"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures"`

	OutputDir string `yaml:"output_dir"`
	Label     string `yaml:"label"`
	Plot      bool   `yaml:"plot"`
	// MQTTURL publishes telemetry when set,
	// e.g. mqtt://host:1883/currentloop/
	MQTTURL string `yaml:"mqtt_url"`
}

// Profiles are presets of the two original programs.
var Profiles = map[string]Config{
	"single": {
		Actuators:     []Actuator{{ID: 1, Displacement: 1024}},
		LimitRegister: LimitCurrent,
		CurrentLimit:  20,
		Kp:            1,
		Kd:            0.1,
		MaxCurrent:    20,
		Duration:      3 * time.Second,
		OutputDir:     "current_data",
	},
	"dual": {
		Actuators:      []Actuator{{ID: 1, Displacement: 1024}, {ID: 2, Displacement: -1024}},
		LimitRegister:  LimitTorque,
		CurrentLimit:   500,
		Kp:             5,
		Kd:             0.5,
		MaxCurrent:     500,
		Unidirectional: true,
		Duration:       time.Second,
		OutputDir:      "angle_current",
	},
}

var defaultConfig = Config{
	Device:                 "/dev/ttyUSB0",
	BaudRate:               dxl.DefaultBaudRate,
	TxTimeout:              dxl.DefaultTimeout,
	Period:                 10 * time.Millisecond,
	MaxConsecutiveFailures: 5,
}

func init() {
	defaultConfig.ApplyProfile("single")
	if val := os.Getenv("DXL_PROFILE"); val != "" {
		if err := defaultConfig.ApplyProfile(val); err != nil {
			fmt.Fprintf(os.Stderr, "DXL_PROFILE: %v\n", err)
		}
	}
	if val := os.Getenv("DXL_DEVICE"); val != "" {
		defaultConfig.Device = val
	}
	if val := os.Getenv("DXL_BAUD_RATE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			defaultConfig.BaudRate = n
		}
	}
	if val := os.Getenv("DXL_ACTUATORS"); val != "" {
		if list, err := ParseActuators(val); err == nil {
			defaultConfig.Actuators = list
		}
	}
	if val := os.Getenv("DXL_OUTPUT_DIR"); val != "" {
		defaultConfig.OutputDir = val
	}
	if val := os.Getenv("DXL_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
	if val := os.Getenv("DXL_SIM"); val != "" {
		defaultConfig.Simulate, _ = strconv.ParseBool(val)
	}
}

// SetupFlags sets command line flags. -profile and -config apply
// immediately so flags after them override their values.
func SetupFlags() {
	flag.Var(profileValue{&defaultConfig}, "profile", "Preset: single or dual.")
	flag.Var(fileValue{&defaultConfig}, "config", "YAML config file.")
	flag.StringVar(&defaultConfig.Device, "device", defaultConfig.Device, "Serial device.")
	flag.IntVar(&defaultConfig.BaudRate, "baud", defaultConfig.BaudRate, "Baud rate.")
	flag.DurationVar(&defaultConfig.TxTimeout, "tx-timeout", defaultConfig.TxTimeout, "Transaction timeout.")
	flag.BoolVar(&defaultConfig.Simulate, "sim", defaultConfig.Simulate, "Use simulated actuators.")
	flag.Var(actuatorsValue{&defaultConfig.Actuators}, "actuators", "Actuators as id:displacement,...")
	flag.StringVar(&defaultConfig.LimitRegister, "limit-register", defaultConfig.LimitRegister, "Limit register: current or torque.")
	flag.IntVar(&defaultConfig.CurrentLimit, "limit", defaultConfig.CurrentLimit, "Value written to the limit register.")
	flag.Float64Var(&defaultConfig.Kp, "kp", defaultConfig.Kp, "Proportional gain.")
	flag.Float64Var(&defaultConfig.Ki, "ki", defaultConfig.Ki, "Integral gain.")
	flag.Float64Var(&defaultConfig.Kd, "kd", defaultConfig.Kd, "Derivative gain.")
	flag.Float64Var(&defaultConfig.MaxCurrent, "max-current", defaultConfig.MaxCurrent, "Command limit.")
	flag.BoolVar(&defaultConfig.Unidirectional, "unidirectional", defaultConfig.Unidirectional, "Limit command to [0, max-current].")
	flag.DurationVar(&defaultConfig.Duration, "duration", defaultConfig.Duration, "Move duration.")
	flag.DurationVar(&defaultConfig.Period, "period", defaultConfig.Period, "Control period.")
	flag.IntVar(&defaultConfig.MaxConsecutiveFailures, "max-failures", defaultConfig.MaxConsecutiveFailures, "Stop after so many failed ticks in a row, 0 never stops.")
	flag.StringVar(&defaultConfig.OutputDir, "out", defaultConfig.OutputDir, "Output directory.")
	flag.StringVar(&defaultConfig.Label, "label", defaultConfig.Label, "Run label used in file names.")
	flag.BoolVar(&defaultConfig.Plot, "plot", defaultConfig.Plot, "Also write a PNG plot.")
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL to publish telemetry.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	conf.Actuators = append([]Actuator(nil), defaultConfig.Actuators...)
	return &conf
}

// ApplyProfile overwrites the run parameters with a preset.
// Connection and output settings are kept.
func (c *Config) ApplyProfile(name string) error {
	p, ok := Profiles[name]
	if !ok {
		return fmt.Errorf("unknown profile %q", name)
	}
	c.Actuators = append([]Actuator(nil), p.Actuators...)
	c.LimitRegister, c.CurrentLimit = p.LimitRegister, p.CurrentLimit
	c.Kp, c.Ki, c.Kd = p.Kp, p.Ki, p.Kd
	c.MaxCurrent, c.Unidirectional = p.MaxCurrent, p.Unidirectional
	c.Duration = p.Duration
	c.OutputDir = p.OutputDir
	return nil
}

// Load overlays YAML data on c. Keys absent in data are kept.
func (c *Config) Load(data []byte) error {
	return yaml.UnmarshalStrict(data, c)
}

// LoadFile overlays a YAML file on c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := c.Load(data); err != nil {
		return fmt.Errorf("%s: %v", path, err)
	}
	return nil
}

// Limit returns the register limiting current.
func (c *Config) Limit() (dxl.Register, error) {
	switch c.LimitRegister {
	case LimitCurrent, "":
		return dxl.CurrentLimit, nil
	case LimitTorque:
		return dxl.TorqueLimit, nil
	}
	return dxl.Register{}, fmt.Errorf("unknown limit register %q", c.LimitRegister)
}

// Gains returns the controller config.
func (c *Config) Gains() control.Config {
	g := control.Config{Kp: c.Kp, Ki: c.Ki, Kd: c.Kd, Min: -c.MaxCurrent, Max: c.MaxCurrent}
	if c.Unidirectional {
		g.Min = 0
	}
	return g
}

// Validate checks the config.
func (c *Config) Validate() error {
	if !c.Simulate && c.Device == "" {
		return errors.New("device must be specified")
	}
	if c.BaudRate <= 0 {
		return errors.New("baud rate must be positive")
	}
	if c.TxTimeout <= 0 {
		return errors.New("transaction timeout must be positive")
	}
	if c.MaxCurrent < 0 {
		return errors.New("max current must not be negative")
	}
	reg, err := c.Limit()
	if err != nil {
		return err
	}
	if int64(c.CurrentLimit) < reg.Min() || int64(c.CurrentLimit) > reg.Max() {
		return fmt.Errorf("%s %d out of range", reg.Name, c.CurrentLimit)
	}
	oc, err := c.Orchestrator()
	if err != nil {
		return err
	}
	return oc.Validate()
}

// Orchestrator converts c into the run config.
func (c *Config) Orchestrator() (orchestrator.Config, error) {
	reg, err := c.Limit()
	if err != nil {
		return orchestrator.Config{}, err
	}
	oc := orchestrator.Config{
		Setup:                  actuator.SetupConfig{Mode: actuator.ModeCurrent, LimitRegister: reg, Limit: int64(c.CurrentLimit)},
		Gains:                  c.Gains(),
		Duration:               c.Duration,
		Period:                 c.Period,
		MaxConsecutiveFailures: c.MaxConsecutiveFailures,
	}
	for _, a := range c.Actuators {
		oc.Actuators = append(oc.Actuators, orchestrator.Actuator{ID: a.ID, Displacement: a.Displacement})
	}
	return oc, nil
}

// ParseActuators parses id:displacement pairs separated by commas.
// A missing displacement is 0.
func ParseActuators(s string) ([]Actuator, error) {
	var list []Actuator
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		idStr, dispStr := item, ""
		if pos := strings.Index(item, ":"); pos >= 0 {
			idStr, dispStr = item[:pos], item[pos+1:]
		}
		id, err := strconv.ParseUint(idStr, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid actuator ID %q", idStr)
		}
		a := Actuator{ID: byte(id)}
		if dispStr != "" {
			disp, err := strconv.ParseInt(dispStr, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid displacement %q", dispStr)
			}
			a.Displacement = int32(disp)
		}
		list = append(list, a)
	}
	if len(list) == 0 {
		return nil, errors.New("no actuators")
	}
	return list, nil
}

// FormatActuators is the inverse of ParseActuators.
func FormatActuators(list []Actuator) string {
	items := make([]string, len(list))
	for n, a := range list {
		items[n] = fmt.Sprintf("%d:%d", a.ID, a.Displacement)
	}
	return strings.Join(items, ",")
}

type actuatorsValue struct {
	list *[]Actuator
}

func (v actuatorsValue) String() string {
	if v.list == nil {
		return ""
	}
	return FormatActuators(*v.list)
}

func (v actuatorsValue) Set(s string) error {
	list, err := ParseActuators(s)
	if err != nil {
		return err
	}
	*v.list = list
	return nil
}

type profileValue struct {
	conf *Config
}

func (v profileValue) String() string {
	return ""
}

func (v profileValue) Set(s string) error {
	return v.conf.ApplyProfile(s)
}

type fileValue struct {
	conf *Config
}

func (v fileValue) String() string {
	return ""
}

func (v fileValue) Set(s string) error {
	return v.conf.LoadFile(s)
}
