package ops

import (
	"io"
	"net/http"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/lab47/provision/pkg/archive"
	"github.com/lab47/provision/pkg/config"
	"github.com/lab47/provision/pkg/fetch"
	"github.com/lab47/provision/pkg/gc"
	"github.com/lab47/provision/pkg/launch"
	"github.com/lab47/provision/pkg/platform"
	"github.com/lab47/provision/pkg/runner"
	"github.com/lab47/provision/pkg/sysdeps"
	"github.com/lab47/provision/pkg/venv"
)

// Ops hands out pipeline components configured from a single Config.
type Ops struct {
	logger hclog.Logger
	cfg    *config.Config

	runner   runner.Runner
	detector *platform.Detector
	output   io.Writer
}

func NewOps(logger hclog.Logger, cfg *config.Config) (*Ops, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	o := &Ops{
		logger:   logger,
		cfg:      cfg,
		detector: platform.NewDetector(),
		output:   os.Stdout,
	}

	o.runner = &runner.Exec{
		L:      logger.Named("exec"),
		Output: o.output,
		Env:    o.Context().EnvList(),
	}

	return o, nil
}

func (o *Ops) Config() *config.Config {
	return o.cfg
}

func (o *Ops) SetRunner(r runner.Runner) {
	o.runner = r
}

func (o *Ops) SetDetector(d *platform.Detector) {
	o.detector = d
}

func (o *Ops) Runner() runner.Runner {
	return o.runner
}

func (o *Ops) Detector() *platform.Detector {
	return o.detector
}

func (o *Ops) Context() InstallContext {
	return InstallContext{
		Destination: o.cfg.Destination,
		Scratch:     o.cfg.Scratch,
		Env:         o.cfg.Env,
	}
}

func (o *Ops) Policy() (InstallPolicy, error) {
	fams, err := o.cfg.Families()
	if err != nil {
		return InstallPolicy{}, err
	}

	return InstallPolicy{
		Platforms:         fams,
		SystemDeps:        o.cfg.SystemDeps,
		RequireSystemDeps: o.cfg.RequireSystemDeps,
		ExtraPackages:     o.cfg.ExtraPackages,
		Summary:           o.cfg.Summary,
	}, nil
}

func (o *Ops) Dependencies() *sysdeps.Installer {
	return &sysdeps.Installer{
		Runner: o.runner,
		Sudo:   o.cfg.Sudo,
		L:      o.logger.Named("sysdeps"),
	}
}

func (o *Ops) Fetcher() *fetch.Fetcher {
	return &fetch.Fetcher{
		L:          o.logger.Named("fetch"),
		HTTPClient: http.DefaultClient,
		Progress:   o.output,
	}
}

func (o *Ops) Extractor() (*archive.Extractor, error) {
	sum, err := o.cfg.ExpectedSum()
	if err != nil {
		return nil, err
	}

	return &archive.Extractor{
		L:           o.logger.Named("archive"),
		ExpectedSum: sum,
		Signature:   o.cfg.Verifier(),
	}, nil
}

func (o *Ops) Provisioner() *venv.Provisioner {
	return &venv.Provisioner{
		Runner: o.runner,
		Python: o.cfg.Python,
		Name:   o.cfg.VenvName,
		L:      o.logger.Named("venv"),
	}
}

func (o *Ops) Launcher() *launch.Launcher {
	return &launch.Launcher{
		Runner:     o.runner,
		L:          o.logger.Named("launch"),
		ScriptName: o.cfg.LauncherName,
		AppName:    o.cfg.AppName,
	}
}

// Collector sweeps the directory run scratch directories are created in.
func (o *Ops) Collector() (*gc.Collector, error) {
	base := o.cfg.Scratch
	if base == "" {
		base = os.TempDir()
	}

	return gc.NewCollector(base)
}

// Pipeline assembles a full install run answering its questions with d.
func (o *Ops) Pipeline(d Decider) (*Pipeline, error) {
	policy, err := o.Policy()
	if err != nil {
		return nil, err
	}

	ex, err := o.Extractor()
	if err != nil {
		return nil, err
	}

	col, err := o.Collector()
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		L:           o.logger.Named("pipeline"),
		Policy:      policy,
		Context:     o.Context(),
		Decider:     d,
		Source:      o.cfg.Source,
		EntryPoint:  o.cfg.EntryPoint,
		Manifest:    o.cfg.Manifest,
		Detector:    o.detector,
		Deps:        o.Dependencies(),
		Fetcher:     o.Fetcher(),
		Extractor:   ex,
		Provisioner: o.Provisioner(),
		Launcher:    o.Launcher(),
		Collector:   col,
	}, nil
}
