// Package telemetry records samples during a run and flushes them to
// storage once the run stops.
package telemetry
