package sysdeps

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/lab47/provision/pkg/event"
	"github.com/lab47/provision/pkg/platform"
	"github.com/lab47/provision/pkg/runner"
	"github.com/lab47/provision/pkg/step"
	"github.com/pkg/errors"
)

const StepName = "system-dependencies"

const (
	HomebrewInstallScript = "https://raw.githubusercontent.com/Homebrew/install/HEAD/install.sh"
	FFmpegDownloadURL     = "https://ffmpeg.org/download.html"
)

var ErrUnsupported = errors.New("no dependency strategy for platform")

type Installer struct {
	Runner runner.Runner

	// Sudo prefixes Linux package manager calls with sudo.
	Sudo bool

	L hclog.Logger
}

func (i *Installer) logger() hclog.Logger {
	if i.L == nil {
		return hclog.NewNullLogger()
	}

	return i.L
}

// plan is the ordered set of commands for one family. Update commands are
// best-effort; everything else must succeed.
type plan struct {
	update  *runner.Command
	install runner.Command
}

func (i *Installer) linux(cmd string, args ...string) runner.Command {
	if i.Sudo {
		return runner.Command{Name: "sudo", Args: append([]string{cmd}, args...)}
	}

	return runner.Command{Name: cmd, Args: args}
}

func (i *Installer) planFor(p platform.Profile) (*plan, error) {
	switch p.Family {
	case platform.LinuxArch:
		up := i.linux("pacman", "-Syu", "--noconfirm")
		return &plan{
			update:  &up,
			install: i.linux("pacman", append([]string{"-S", "--noconfirm"}, p.Packages...)...),
		}, nil
	case platform.LinuxDebian:
		up := i.linux("apt", "update")
		return &plan{
			update:  &up,
			install: i.linux("apt", append([]string{"install", "-y"}, p.Packages...)...),
		}, nil
	case platform.MacOS:
		return &plan{
			update:  &runner.Command{Name: "brew", Args: []string{"update"}},
			install: runner.Command{Name: "brew", Args: append([]string{"install"}, p.Packages...)},
		}, nil
	case platform.Windows:
		return &plan{
			install: runner.Command{Name: "pip", Args: append([]string{"install"}, p.Packages...)},
		}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupported, "%s", p.Family)
	}
}

// Install runs the package manager for the profile. The host's package
// state is mutated directly; re-running is safe only as far as the
// underlying package manager is idempotent.
func (i *Installer) Install(ctx context.Context, p platform.Profile) step.Result {
	L := i.logger()

	pl, err := i.planFor(p)
	if err != nil {
		return step.Fail(StepName, err)
	}

	if p.Guessed {
		L.Warn("platform detection fell back to a guess", "family", p.Family, "reason", p.Reason)
		event.Fire(ctx, &event.NoticeEvent{
			Message: fmt.Sprintf("Could not positively identify the distribution, assuming %s (%s).", p.Family, p.Reason),
		})
	}

	switch p.Family {
	case platform.MacOS:
		err = i.ensureHomebrew(ctx)
		if err != nil {
			return step.Fail(StepName, err)
		}
	case platform.Windows:
		L.Warn("ffmpeg must be installed manually on windows", "url", FFmpegDownloadURL)
		event.Fire(ctx, &event.NoticeEvent{
			Message: fmt.Sprintf("Please make sure you have FFmpeg installed and on your PATH.\nYou can download FFmpeg from: %s", FFmpegDownloadURL),
		})
	}

	var warnings []string

	if pl.update != nil {
		err = i.run(ctx, *pl.update)
		if err != nil {
			L.Warn("package index update failed, continuing", "command", pl.update.String(), "error", err)
			warnings = append(warnings, "update failed: "+err.Error())
		}
	}

	err = i.run(ctx, pl.install)
	if err != nil {
		L.Error("package installation failed", "command", pl.install.String(), "error", err)
		return step.Fail(StepName, err)
	}

	detail := fmt.Sprintf("%s installed %d packages", p.PackageManager, len(p.Packages))
	if len(warnings) > 0 {
		detail += "; " + warnings[0]
	}

	return step.Ok(StepName, detail)
}

func (i *Installer) ensureHomebrew(ctx context.Context) error {
	L := i.logger()

	if path, err := i.Runner.LookPath("brew"); err == nil {
		L.Debug("homebrew found", "path", path)
		return nil
	}

	L.Info("homebrew not found, installing", "script", HomebrewInstallScript)

	err := i.run(ctx, runner.Command{
		Name: "/bin/bash",
		Args: []string{"-c", fmt.Sprintf(`/bin/bash -c "$(curl -fsSL %s)"`, HomebrewInstallScript)},
	})
	if err != nil {
		return errors.Wrap(err, "bootstrapping homebrew")
	}

	return nil
}

func (i *Installer) run(ctx context.Context, cmd runner.Command) error {
	event.Fire(ctx, &event.CommandEvent{Command: cmd.String()})

	_, err := i.Runner.Run(ctx, cmd)
	return err
}
