package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Controller defines the logic executed once per tick.
type Controller interface {
	Control(*ControlContext) error
}

// ControlFunc defines the func form of Controller.
type ControlFunc func(*ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(cc *ControlContext) error {
	return f(cc)
}

// ControlContext provides the context of current tick.
type ControlContext struct {
	context.Context
	// Tick counts from 0.
	Tick int
	// Start is when the loop started.
	Start time.Time
	// Time is when the current tick started.
	Time time.Time
}

// Elapsed is the time since the loop started.
func (cc *ControlContext) Elapsed() time.Duration {
	return cc.Time.Sub(cc.Start)
}
