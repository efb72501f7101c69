package external

import (
	"bytes"
	"context"
	"os/exec"
)

// Command is one solver invocation.
type Command struct {
	Path string
	Args []string
	Dir  string
}

// Runner executes a command to completion. started is called with the child PID as soon
// as the process exists.
type Runner interface {
	Run(ctx context.Context, cmd Command, started func(pid int)) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec; the process is killed when ctx ends.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, cmd Command, started func(pid int)) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdout = &stdout
	c.Stderr = &stderr
	if err := c.Start(); err != nil {
		return nil, nil, err
	}
	if started != nil {
		started(c.Process.Pid)
	}
	err := c.Wait()
	return stdout.Bytes(), stderr.Bytes(), err
}
