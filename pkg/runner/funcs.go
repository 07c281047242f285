package runner

import (
	"context"
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

var ErrNotConfigured = errors.New("runner function not configured")

// Funcs adapts plain functions into a Runner. Unset functions fail with
// ErrNotConfigured, except LookPath which reports exec.ErrNotFound.
type Funcs struct {
	RunFunc      func(ctx context.Context, cmd Command) (*Result, error)
	StartFunc    func(cmd Command) (*os.Process, error)
	LookPathFunc func(name string) (string, error)
}

func (f Funcs) Run(ctx context.Context, cmd Command) (*Result, error) {
	if f.RunFunc == nil {
		return nil, errors.Wrapf(ErrNotConfigured, "run %s", cmd)
	}

	return f.RunFunc(ctx, cmd)
}

func (f Funcs) Start(cmd Command) (*os.Process, error) {
	if f.StartFunc == nil {
		return nil, errors.Wrapf(ErrNotConfigured, "start %s", cmd)
	}

	return f.StartFunc(cmd)
}

func (f Funcs) LookPath(name string) (string, error) {
	if f.LookPathFunc == nil {
		return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
	}

	return f.LookPathFunc(name)
}
