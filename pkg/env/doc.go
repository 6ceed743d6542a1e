// Package env configures a run from flags, DXL_* environment variables
// and YAML files, and opens the bus and telemetry connections it needs.
package env
