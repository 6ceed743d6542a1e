package env

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"go.uber.org/multierr"

	"github.com/robotalks/currentloop/pkg/dxl"
	"github.com/robotalks/currentloop/pkg/operator"
	"github.com/robotalks/currentloop/pkg/orchestrator"
	"github.com/robotalks/currentloop/pkg/sim"
	"github.com/robotalks/currentloop/pkg/telemetry"
	"github.com/robotalks/currentloop/pkg/telemetry/mqtt"
)

// ConnectTimeout bounds the wait for the MQTT broker.
const ConnectTimeout = 5 * time.Second

// Env holds the opened bus and telemetry connections of a run.
type Env struct {
	Config *Config
	Port   *dxl.Port
	Client *dxl.Client
	// Bus is the simulated bus when Config.Simulate is set.
	Bus   *sim.Bus
	Queue *mqtt.Queue
	Host  string

	lock   sync.Mutex
	runs   []*orchestrator.Orchestrator
	closed bool
}

// NewEnv opens the bus and connects telemetry.
func (c *Config) NewEnv() (*Env, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	env := &Env{Config: c, Host: HostID()}
	if c.Simulate {
		ids := make([]byte, len(c.Actuators))
		for n, a := range c.Actuators {
			ids[n] = a.ID
		}
		env.Port, env.Bus = sim.Open(ids...)
		env.Port.Timeout = c.TxTimeout
		glog.Infof("simulating actuators %v", ids)
	} else {
		port, err := dxl.OpenSerial(c.Device, c.BaudRate, c.TxTimeout)
		if err != nil {
			return nil, fmt.Errorf("open %s: %v", c.Device, err)
		}
		env.Port = port
		glog.Infof("opened %s at %d bps", c.Device, c.BaudRate)
	}
	env.Client = dxl.NewClient(env.Port)

	if c.MQTTURL != "" {
		q, err := c.newQueue(env.Host)
		if err != nil {
			env.Port.Close()
			return nil, err
		}
		env.Queue = q
	}
	return env, nil
}

func (c *Config) newQueue(host string) (*mqtt.Queue, error) {
	opts, prefix, err := mqtt.ClientOptionsFromURL(c.MQTTURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT URL: %v", err)
	}
	if opts.ClientID == "" {
		opts.SetClientID(AppID + "-" + host)
	}
	q := mqtt.NewQueue(opts, prefix)
	token := q.Connect()
	if !token.WaitTimeout(ConnectTimeout) {
		return nil, fmt.Errorf("connect %s: timeout", c.MQTTURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %v", c.MQTTURL, err)
	}
	return q, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	env, err := c.NewEnv()
	if err != nil {
		glog.Exit(err)
	}
	return env
}

// Namers returns the CSV and PNG file namers of a run started at now.
func (c *Config) Namers(now time.Time) (csv, png telemetry.Namer) {
	if c.Label != "" {
		return &telemetry.LabelNamer{Dir: c.OutputDir, Label: c.Label},
			&telemetry.LabelNamer{Dir: c.OutputDir, Label: c.Label, Suffix: ".png"}
	}
	at := func() time.Time { return now }
	return &telemetry.TimestampNamer{Dir: c.OutputDir, Now: at},
		&telemetry.TimestampNamer{Dir: c.OutputDir, Suffix: "_data.png", Now: at}
}

// Sinks creates the telemetry sinks: always CSV, PNG and MQTT when
// configured.
func (e *Env) Sinks(now time.Time) []telemetry.Sink {
	csvNamer, pngNamer := e.Config.Namers(now)
	sinks := []telemetry.Sink{&telemetry.CSVFile{Namer: csvNamer}}
	if e.Config.Plot {
		sinks = append(sinks, &telemetry.PlotFile{Namer: pngNamer})
	}
	if e.Queue != nil {
		sinks = append(sinks, &mqtt.Sink{Publisher: e.Queue, Host: e.Host})
	}
	return sinks
}

// NewOrchestrator creates a run on the bus, stopped by sig.
func (e *Env) NewOrchestrator(sig *operator.Signal) (*orchestrator.Orchestrator, error) {
	oc, err := e.Config.Orchestrator()
	if err != nil {
		return nil, err
	}
	o := orchestrator.New(oc, e.Client, sig)
	o.Sinks = e.Sinks(time.Now())
	e.lock.Lock()
	e.runs = append(e.runs, o)
	e.lock.Unlock()
	return o, nil
}

// Close invalidates the actuator handles of all runs and releases the
// bus and telemetry connections.
func (e *Env) Close() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	for _, o := range e.runs {
		for _, h := range o.Handles() {
			h.Invalidate()
		}
	}
	var err error
	if e.Queue != nil {
		err = multierr.Append(err, e.Queue.Close())
	}
	return multierr.Append(err, e.Port.Close())
}
