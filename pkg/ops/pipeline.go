package ops

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/lab47/provision/pkg/archive"
	"github.com/lab47/provision/pkg/event"
	"github.com/lab47/provision/pkg/fetch"
	"github.com/lab47/provision/pkg/gc"
	"github.com/lab47/provision/pkg/launch"
	"github.com/lab47/provision/pkg/platform"
	"github.com/lab47/provision/pkg/step"
	"github.com/lab47/provision/pkg/sysdeps"
	"github.com/lab47/provision/pkg/venv"
	"github.com/oklog/ulid"
	"github.com/pkg/errors"
)

const (
	StepPlatform     = "platform"
	StepFetch        = "fetch"
	StepEnvironment  = "environment"
	StepLaunch       = "launch"
	StepLaunchScript = "launch-script"
	StepSummary      = "summary"
)

type ArchiveFetcher interface {
	Fetch(ctx context.Context, source, scratch string) (*fetch.Result, error)
}

type Report struct {
	RunID   string
	Profile platform.Profile
	Steps   []step.Result

	Environment *venv.Environment
	Process     *os.Process
	Artifact    *launch.Artifact
	SummaryPath string
	ArchiveSum  string

	// Interactive is set when decisions were asked of a person.
	Interactive bool
}

// Failed returns the first failed step, if any.
func (r *Report) Failed() *step.Result {
	for i := range r.Steps {
		if r.Steps[i].Failed() {
			return &r.Steps[i]
		}
	}

	return nil
}

// Pipeline runs one installation: detect, system dependencies, fetch,
// extract and merge, provision, then the optional launch steps. Steps run
// sequentially and a fatal failure stops the run without rolling back.
type Pipeline struct {
	L hclog.Logger

	Policy  InstallPolicy
	Context InstallContext
	Decider Decider

	Source     string
	EntryPoint string

	// Manifest is relative to the destination.
	Manifest string

	Detector    *platform.Detector
	Deps        *sysdeps.Installer
	Fetcher     ArchiveFetcher
	Extractor   *archive.Extractor
	Provisioner *venv.Provisioner
	Launcher    *launch.Launcher

	// Collector, when set, removes scratch directories abandoned by earlier
	// runs before a new one is created.
	Collector *gc.Collector

	stepNum int
}

func (p *Pipeline) logger() hclog.Logger {
	if p.L == nil {
		return hclog.NewNullLogger()
	}

	return p.L
}

func (p *Pipeline) begin(ctx context.Context, name, title string) {
	p.stepNum++
	event.Fire(ctx, &event.StepStartEvent{Number: p.stepNum, Name: name, Title: title})
}

func (p *Pipeline) record(ctx context.Context, report *Report, res step.Result) {
	report.Steps = append(report.Steps, res)

	switch res.Status {
	case step.Failed:
		p.logger().Error("step failed", "step", res.Name, "error", res.Detail)
	default:
		p.logger().Info("step finished", "step", res.Name, "status", res.Status.String(), "detail", res.Detail)
	}

	event.Fire(ctx, &event.StepDoneEvent{Result: res})
}

func (p *Pipeline) collect(L hclog.Logger) {
	if p.Collector == nil {
		return
	}

	sr, err := p.Collector.SweepAndRemove()
	if err != nil {
		L.Warn("unable to remove abandoned scratch directories", "error", err)
	}

	if sr != nil && len(sr.Removed) > 0 {
		L.Info("removed abandoned scratch directories", "count", len(sr.Removed), "bytes", sr.BytesRecovered)
	}
}

func NewRunID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// Run executes the pipeline. The report is returned even when err is set and
// records every step attempted.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	L := p.logger()

	report := &Report{RunID: NewRunID(), Interactive: p.Policy.Prompt}

	L = L.With("run", report.RunID)

	dest := p.Context.Destination
	if dest == "" {
		return report, errors.New("no destination configured")
	}

	base := p.Context.Scratch
	if base == "" {
		base = os.TempDir()
	}

	p.collect(L)

	scratch := filepath.Join(base, gc.Prefix+report.RunID)

	defer os.RemoveAll(scratch)

	profile := p.Detector.Detect()
	report.Profile = profile

	if !p.Policy.Allows(profile.Family) {
		err := &platform.UnsupportedError{Profile: profile}
		p.record(ctx, report, step.Fail(StepPlatform, err))
		return report, err
	}

	detail := profile.Family.String()
	if profile.Guessed {
		detail += " (guessed)"
	}

	p.record(ctx, report, step.Ok(StepPlatform, detail))

	p.begin(ctx, sysdeps.StepName, "Installing system dependencies")

	if p.Policy.SystemDeps {
		res := p.Deps.Install(ctx, profile)
		p.record(ctx, report, res)

		if res.Failed() {
			if p.Policy.RequireSystemDeps {
				return report, res.Err
			}

			L.Warn("continuing without system dependencies", "error", res.Detail)
		}
	} else {
		p.record(ctx, report, step.Skip(sysdeps.StepName, "disabled by policy"))
	}

	merged := false

	defer func() {
		if !merged {
			return
		}

		if err := WriteReceipt(dest, p.Source, report); err != nil {
			L.Warn("unable to write install receipt", "error", err)
		}
	}()

	p.begin(ctx, StepFetch, "Downloading application source")

	fetched, err := p.Fetcher.Fetch(ctx, p.Source, scratch)
	if err != nil {
		p.record(ctx, report, step.Fail(StepFetch, err))
		return report, err
	}

	p.record(ctx, report, step.Ok(StepFetch, fetched.Path))

	p.begin(ctx, archive.StepName, "Extracting into "+dest)

	res := p.Extractor.ExtractAndMerge(ctx, fetched, scratch, dest)
	p.record(ctx, report, res)

	if p.Extractor.Digest != nil {
		report.ArchiveSum = p.Extractor.Digest.String()
	}

	if res.Failed() {
		var ae *archive.Error
		if errors.As(res.Err, &ae) && ae.Op == "merge" {
			merged = true
		}

		return report, res.Err
	}

	merged = true

	p.begin(ctx, StepEnvironment, "Setting up the virtual environment")

	env, err := p.Provisioner.Provision(ctx, dest, venv.Request{
		Manifest: filepath.Join(dest, p.Manifest),
		Extras:   p.Policy.ExtraPackages,
	})
	if err != nil {
		p.record(ctx, report, step.Fail(StepEnvironment, err))
		return report, err
	}

	report.Environment = env
	p.record(ctx, report, step.Ok(StepEnvironment, env.Root))

	err = p.finish(ctx, report, dest, env)
	if err != nil {
		return report, err
	}

	return report, nil
}

// finish runs the launch steps. Failures here are reported and the run
// continues; only a decider error stops it.
func (p *Pipeline) finish(ctx context.Context, report *Report, dest string, env *venv.Environment) error {
	entry := filepath.Join(dest, p.EntryPoint)

	p.begin(ctx, StepLaunch, "Running the application")

	p.logger().Debug("asking launch decisions", "interactive", p.Policy.Prompt)

	runNow, err := p.Decider.RunNow()
	if err != nil {
		return err
	}

	if runNow {
		proc, err := p.Launcher.MaybeLaunch(ctx, env, entry, true)
		if err != nil {
			p.record(ctx, report, step.Fail(StepLaunch, err))
		} else {
			report.Process = proc
			p.record(ctx, report, step.Ok(StepLaunch, entry))
		}
	} else {
		p.record(ctx, report, step.Skip(StepLaunch, "declined"))
	}

	writeScript, err := p.Decider.WriteLauncher()
	if err != nil {
		return err
	}

	if writeScript {
		art, err := p.Launcher.MaybeWriteArtifact(env, entry, dest, true)
		if err != nil {
			p.record(ctx, report, step.Fail(StepLaunchScript, err))
		} else {
			report.Artifact = art
			p.record(ctx, report, step.Ok(StepLaunchScript, art.Path))
		}
	} else {
		p.record(ctx, report, step.Skip(StepLaunchScript, "declined"))
	}

	if p.Policy.Summary {
		path, err := p.Launcher.WriteSummary(env, entry, dest, report.Artifact)
		if err != nil {
			p.record(ctx, report, step.Fail(StepSummary, err))
		} else {
			report.SummaryPath = path
			p.record(ctx, report, step.Ok(StepSummary, path))
		}
	}

	return nil
}
