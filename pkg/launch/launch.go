package launch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/lab47/provision/pkg/event"
	"github.com/lab47/provision/pkg/runner"
	"github.com/lab47/provision/pkg/venv"
	"github.com/pkg/errors"
)

const (
	DefaultScriptName = "launch_uvr"
	DefaultAppName    = "Ultimate Vocal Remover GUI"
	SummaryFile       = "SETUP_README.txt"
)

// Artifact is a script that starts the installed application with its
// environment's interpreter.
type Artifact struct {
	Path        string
	Interpreter string
	EntryPoint  string
}

type Launcher struct {
	Runner runner.Runner
	GOOS   string
	L      hclog.Logger

	// ScriptName is the launch script's base name, without extension.
	ScriptName string
	AppName    string
}

func (l *Launcher) logger() hclog.Logger {
	if l.L == nil {
		return hclog.NewNullLogger()
	}

	return l.L
}

func (l *Launcher) goos() string {
	if l.GOOS == "" {
		return runtime.GOOS
	}

	return l.GOOS
}

func (l *Launcher) appName() string {
	if l.AppName == "" {
		return DefaultAppName
	}

	return l.AppName
}

// MaybeLaunch starts the entry point with the environment's interpreter when
// confirm is set. The process is detached and never waited on; its handle is
// returned for reporting only.
func (l *Launcher) MaybeLaunch(ctx context.Context, env *venv.Environment, entry string, confirm bool) (*os.Process, error) {
	if !confirm {
		return nil, nil
	}

	if _, err := os.Stat(entry); err != nil {
		return nil, errors.Wrapf(err, "entry point")
	}

	cmd := runner.Command{
		Name: env.Interpreter,
		Args: []string{entry},
		Dir:  filepath.Dir(entry),
	}

	event.Fire(ctx, &event.CommandEvent{Command: cmd.String()})

	proc, err := l.Runner.Start(cmd)
	if err != nil {
		return nil, err
	}

	l.logger().Info("application started", "pid", proc.Pid, "entry", entry)

	return proc, nil
}

const unixScript = `#!/bin/bash
echo Starting %[1]s...
"%[2]s" "%[3]s"
`

const windowsScript = "@echo off\r\necho Starting %[1]s...\r\n\"%[2]s\" \"%[3]s\"\r\n"

// MaybeWriteArtifact writes the launch script into dir when confirm is set.
func (l *Launcher) MaybeWriteArtifact(env *venv.Environment, entry, dir string, confirm bool) (*Artifact, error) {
	if !confirm {
		return nil, nil
	}

	name := l.ScriptName
	if name == "" {
		name = DefaultScriptName
	}

	var (
		body string
		mode os.FileMode
	)

	if l.goos() == "windows" {
		name += ".bat"
		body = fmt.Sprintf(windowsScript, l.appName(), env.Interpreter, entry)
		mode = 0644
	} else {
		name += ".sh"
		body = fmt.Sprintf(unixScript, l.appName(), env.Interpreter, entry)
		mode = 0755
	}

	path := filepath.Join(dir, name)

	err := os.WriteFile(path, []byte(body), mode)
	if err != nil {
		return nil, err
	}

	// WriteFile only applies mode on create.
	err = os.Chmod(path, mode)
	if err != nil && l.goos() != "windows" {
		return nil, err
	}

	l.logger().Info("wrote launch script", "path", path)

	return &Artifact{
		Path:        path,
		Interpreter: env.Interpreter,
		EntryPoint:  entry,
	}, nil
}

// WriteSummary writes the setup instructions file into dir and returns its
// path.
func (l *Launcher) WriteSummary(env *venv.Environment, entry, dir string, artifact *Artifact) (string, error) {
	var sb strings.Builder

	title := l.appName() + " - Setup Instructions"

	fmt.Fprintf(&sb, "%s\n%s\n\n", title, strings.Repeat("=", len(title)))
	sb.WriteString("This application has been set up with a virtual environment.\n\n")

	if l.goos() == "windows" {
		fmt.Fprintf(&sb, "To activate the virtual environment:\n%s\n\n", filepath.Join(env.Root, "Scripts", "activate"))
	} else {
		fmt.Fprintf(&sb, "To activate the virtual environment:\nsource %s\n\n", filepath.Join(env.Root, "bin", "activate"))
	}

	fmt.Fprintf(&sb, "To run the application:\n\"%s\" \"%s\"\n", env.Interpreter, entry)

	if artifact != nil {
		fmt.Fprintf(&sb, "\nYou can also use the launch script created during installation:\n%s\n", artifact.Path)
	}

	path := filepath.Join(dir, SummaryFile)

	err := os.WriteFile(path, []byte(sb.String()), 0644)
	if err != nil {
		return "", err
	}

	return path, nil
}
