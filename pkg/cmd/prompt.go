package cmd

import (
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/lab47/provision/pkg/ops"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func confirm(title string) (bool, error) {
	var answer bool

	err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&answer).
		Run()

	return answer, err
}

func askDestination(current string) (string, error) {
	dest := current

	err := huh.NewInput().
		Title("Where should the application be installed?").
		Description("Default: " + current).
		Value(&dest).
		Run()
	if err != nil {
		return "", err
	}

	return resolveDestination(dest, current)
}

// resolveDestination turns a typed answer into a path, expanding ~ the same
// way the destination setting is expanded.
func resolveDestination(answer, current string) (string, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return current, nil
	}

	return homedir.Expand(answer)
}

type decisionFlags struct {
	yes      bool
	run      bool
	launcher bool
}

// decider answers from flags when any were given or no terminal is
// attached, and asks otherwise.
func (f decisionFlags) decider(fs *pflag.FlagSet) ops.Decider {
	if f.yes {
		return ops.Decisions{Run: true, Launcher: true}
	}

	if fs.Changed("run") || fs.Changed("launcher") || !interactive() {
		return ops.Decisions{Run: f.run, Launcher: f.launcher}
	}

	return ops.DecideFuncs{
		RunNowFunc: func() (bool, error) {
			return confirm("Would you like to run the application now?")
		},
		WriteLauncherFunc: func() (bool, error) {
			return confirm("Would you like to create a launch script?")
		},
	}
}
