package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/currentloop/pkg/env"
	fx "github.com/robotalks/currentloop/pkg/framework"
	"github.com/robotalks/currentloop/pkg/operator"
)

func init() {
	env.SetupFlags()
	operator.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	e := env.NewConfig().MustNewEnv()
	defer e.Close()

	w, err := operator.NewConfig().NewWatcher(os.Stdin)
	if err != nil {
		glog.Exit(err)
	}
	sig := operator.NewSignal()
	o, err := e.NewOrchestrator(sig)
	if err != nil {
		glog.Exit(err)
	}

	runner := fx.NewRunner().HandleSignals()
	watchCtx, stopWatch := context.WithCancel(runner.Context)
	runner.GoWith(watchCtx, operator.Runnable(w, sig))
	runner.Go(fx.RunFunc(func(ctx context.Context) error {
		defer stopWatch()
		return o.Run(ctx)
	}))
	err = runner.Wait()
	if err == fx.ErrForcedExit {
		glog.Exit(err)
	}

	rep := o.Report()
	glog.Infof("%s: %d samples in %d ticks, %d failed, %d overruns",
		rep.Reason, rep.Samples, rep.Ticks, rep.Failures, o.Overruns())
	if err != nil {
		e.Close()
		glog.Exit(err)
	}
}
