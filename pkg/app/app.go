// Package app defines the runtime contract shared by the cmd/* entrypoints.
package app

// Runner is a long-running process component, e.g. the relayer server.
type Runner interface {
	Run() error
}
