package main

import (
	"flag"
	"os"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/currentloop/pkg/telemetry"
	"github.com/robotalks/currentloop/pkg/telemetry/mqtt"
	"github.com/robotalks/currentloop/pkg/telemetry/msgs"
)

var (
	mqttURL = "mqtt://localhost:1883/currentloop/"
	outDir  = ""
)

func init() {
	if val := os.Getenv("DXL_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&outDir, "out", outDir, "Also save received runs as CSV into this directory.")
}

func main() {
	flag.Parse()

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		glog.Exit(err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		glog.Exit(token.Error())
	}
	defer q.Close()

	q.Sub("+/"+mqtt.RunsTopic, mqtt.Handler(func(topic string, payload []byte) {
		m, err := msgs.DecodeBatch(payload)
		if err != nil {
			glog.Warningf("%s: bad message: %v", topic, err)
			return
		}
		b := m.Batch()
		glog.Infof("%s: host %s actuators %v, %d samples, %s", topic, m.Host, b.IDs, len(b.Samples), b.Reason)
		if outDir == "" {
			return
		}
		sink := &telemetry.CSVFile{Namer: &telemetry.TimestampNamer{
			Dir:    outDir,
			Suffix: "_" + strings.Split(topic, "/")[0] + ".csv",
			Now:    b.Start.Local,
		}}
		if err := sink.Consume(b); err != nil {
			glog.Errorf("%s: %v", topic, err)
		}
	}))
	<-(chan struct{})(nil)
}
