package application

import (
	"log/slog"

	"mashiro/cli/internal/automation"
)

// StartOptions defines startup options for the assistant server.
type StartOptions struct {
	ConfigDir string
	TaskStore string
	DBDSN     string
	LocalHost string
	LocalPort int
	QueueSize int
	Logger    *slog.Logger

	// Exec and GOOS override the desktop backend; tests use them to avoid
	// launching real programs.
	Exec automation.Exec
	GOOS string
}
