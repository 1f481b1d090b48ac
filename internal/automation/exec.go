package automation

import (
	"fmt"
	"os/exec"
	"strings"
)

// Exec runs external programs. Start launches without waiting; Run waits and
// reports the program's output on failure.
type Exec interface {
	Start(name string, args ...string) error
	Run(name string, args ...string) error
	LookPath(name string) (string, error)
}

type RealExec struct{}

func (r *RealExec) Start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// reap in the background; launched programs outlive the request
	go func() { _ = cmd.Wait() }()
	return nil
}

func (r *RealExec) Run(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

func (r *RealExec) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
