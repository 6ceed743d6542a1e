// Package control implements trajectory generation and the feedback law.
package control
