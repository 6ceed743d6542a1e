// Package operator lets the operator stop a run while it's in progress.
package operator
