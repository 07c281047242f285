package runner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

type Command struct {
	Name string
	Args []string

	// Dir and Env follow os/exec semantics; empty means inherit.
	Dir string
	Env []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// SubprocessError carries the exit status and captured output of a failed
// command.
type SubprocessError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *SubprocessError) Error() string {
	msg := fmt.Sprintf("command failed: %s", e.Command)

	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	} else if e.Err != nil {
		msg += fmt.Sprintf(": %s", e.Err)
	}

	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}

	return msg
}

func (e *SubprocessError) Unwrap() error {
	return e.Err
}

type Runner interface {
	// Run blocks until the command exits. A non-zero exit is returned as a
	// *SubprocessError alongside the captured result.
	Run(ctx context.Context, cmd Command) (*Result, error)

	// Start launches the command detached from this process and returns
	// without waiting on it.
	Start(cmd Command) (*os.Process, error)

	LookPath(name string) (string, error)
}

type Exec struct {
	L hclog.Logger

	// Output, when set, receives each line of subprocess output as it is
	// produced. Otherwise lines are logged at debug level.
	Output       io.Writer
	OutputPrefix string

	// Env is appended to the inherited environment of commands that do not
	// set their own.
	Env []string
}

func (e *Exec) environ(c Command) []string {
	if len(c.Env) > 0 {
		return c.Env
	}

	if len(e.Env) == 0 {
		return nil
	}

	return append(os.Environ(), e.Env...)
}

func (e *Exec) logger() hclog.Logger {
	if e.L == nil {
		return hclog.NewNullLogger()
	}

	return e.L
}

func (e *Exec) Run(ctx context.Context, c Command) (*Result, error) {
	L := e.logger()

	L.Debug("invoking command", "command", c.String(), "dir", c.Dir)

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = e.environ(c)

	or, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	er, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	var (
		wg             sync.WaitGroup
		mu             sync.Mutex
		stdout, stderr bytes.Buffer
	)

	pump := func(r io.Reader, buf *bytes.Buffer) {
		defer wg.Done()

		br := bufio.NewReader(r)
		for {
			line, err := br.ReadString('\n')
			if len(line) > 0 {
				buf.WriteString(line)

				text := strings.TrimRight(line, " \r\n\t")

				if e.Output != nil {
					mu.Lock()
					fmt.Fprintf(e.Output, "%s │ %s\n", e.OutputPrefix, text)
					mu.Unlock()
				} else {
					L.Debug("output", "prefix", e.OutputPrefix, "line", text)
				}
			}

			if err != nil {
				return
			}
		}
	}

	err = cmd.Start()
	if err != nil {
		return nil, &SubprocessError{Command: c.String(), ExitCode: -1, Err: err}
	}

	wg.Add(2)
	go pump(or, &stdout)
	go pump(er, &stderr)

	wg.Wait()

	err = cmd.Wait()

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}

	if err != nil {
		L.Debug("command failed", "command", c.String(), "exit", res.ExitCode, "error", err)

		return res, &SubprocessError{
			Command:  c.String(),
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
			Err:      err,
		}
	}

	return res, nil
}

func (e *Exec) Start(c Command) (*os.Process, error) {
	cmd := exec.Command(c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = e.environ(c)

	setDetached(cmd)

	err := cmd.Start()
	if err != nil {
		return nil, &SubprocessError{Command: c.String(), ExitCode: -1, Err: err}
	}

	e.logger().Info("started detached process", "command", c.String(), "pid", cmd.Process.Pid)

	return cmd.Process, nil
}

func (e *Exec) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
