package worker

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Process is a running worker process. Requests go to its stdin, responses come
// from its stdout and everything it writes to stderr is logged.
type Process struct {
	logger *zap.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	eg errgroup.Group // eg reads stderr.
}

// StartProcess starts the worker binary with the given arguments.
func StartProcess(logger *zap.Logger, path string, args ...string) (*Process, error) {
	cmd := exec.Command(path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("setup stdin pipe for worker: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("setup stdout pipe for worker: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("setup stderr pipe for worker: %w", err)
	}
	p := &Process{
		logger: logger,
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
	}
	if err := startCommand(cmd); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}
	p.eg.Go(p.captureCmdOutput(stderr))
	logger.Info("worker started", zap.Int("pid", cmd.Process.Pid), zap.String("cmd", cmd.String()))
	return p, nil
}

// Stdin is where requests are written.
func (p *Process) Stdin() io.Writer {
	return p.stdin
}

// Stdout is where responses are read from.
func (p *Process) Stdout() io.Reader {
	return p.stdout
}

// Pid of the worker process.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Wait blocks until the worker exited. It must be called only after Stdout was
// read to the end.
func (p *Process) Wait() error {
	if err := p.eg.Wait(); err != nil {
		p.logger.Warn("output reading goroutine failed", zap.Error(err))
	}
	return p.cmd.Wait()
}

// Stop terminates the worker process and everything it spawned.
func (p *Process) Stop() error {
	p.stdin.Close()
	if err := killCommand(p.cmd); err != nil && !errors.Is(err, errProcessDone) {
		return fmt.Errorf("stop worker: %w", err)
	}
	return nil
}

// captureCmdOutput returns a function that reads from the given pipe and logs the output.
// it returns when the pipe is closed.
func (p *Process) captureCmdOutput(pipe io.ReadCloser) func() error {
	return func() error {
		buf := bufio.NewReader(pipe)
		for {
			line, err := buf.ReadString('\n')
			line = strings.TrimRight(line, "\r\n") // remove line delimiters at end of input
			if line != "" {
				p.logger.Info(line)
			}
			switch err {
			case nil:
			case io.EOF:
				return nil
			default:
				p.logger.Warn("read from worker pipe", zap.Error(err))
				return nil
			}
		}
	}
}
