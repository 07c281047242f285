package venv

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/lab47/provision/pkg/event"
	"github.com/lab47/provision/pkg/runner"
	"github.com/mitchellh/hashstructure"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

const (
	DefaultName = "venv"
	StampFile   = ".provision-stamp"
)

var (
	ErrIncompatibleEnvironment = errors.New("existing environment was not created for this manifest")
	ErrIncompleteEnvironment   = errors.New("existing environment is incomplete")
	ErrMissingManifest         = errors.New("dependency manifest not found")
)

// Environment is an isolated interpreter plus its package manager, rooted
// inside the install destination.
type Environment struct {
	Root           string
	Interpreter    string
	PackageManager string
}

type Request struct {
	Manifest string
	Extras   []string
}

type Provisioner struct {
	Runner runner.Runner

	// Python creates the environment. Defaults to python3, or python on
	// windows.
	Python string

	Name string
	GOOS string
	L    hclog.Logger
}

func (p *Provisioner) logger() hclog.Logger {
	if p.L == nil {
		return hclog.NewNullLogger()
	}

	return p.L
}

func (p *Provisioner) goos() string {
	if p.GOOS == "" {
		return runtime.GOOS
	}

	return p.GOOS
}

func (p *Provisioner) python() string {
	if p.Python != "" {
		return p.Python
	}

	if p.goos() == "windows" {
		return "python"
	}

	return "python3"
}

// Layout returns where the environment for dest lives without touching the
// filesystem.
func (p *Provisioner) Layout(dest string) *Environment {
	name := p.Name
	if name == "" {
		name = DefaultName
	}

	root := filepath.Join(dest, name)

	if p.goos() == "windows" {
		return &Environment{
			Root:           root,
			Interpreter:    filepath.Join(root, "Scripts", "python.exe"),
			PackageManager: filepath.Join(root, "Scripts", "pip.exe"),
		}
	}

	return &Environment{
		Root:           root,
		Interpreter:    filepath.Join(root, "bin", "python"),
		PackageManager: filepath.Join(root, "bin", "pip"),
	}
}

type stampInput struct {
	Requirements []Requirement
	Extras       []string
}

// Stamp identifies the manifest and extras an environment was built from.
func Stamp(reqs []Requirement, extras []string) (string, error) {
	h, err := hashstructure.Hash(stampInput{Requirements: reqs, Extras: extras}, nil)
	if err != nil {
		return "", err
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h)

	return base58.Encode(buf[:]), nil
}

func readManifest(path string) ([]Requirement, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrMissingManifest, "%s", path)
		}

		return nil, err
	}

	defer f.Close()

	reqs, err := ParseManifest(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	return reqs, nil
}

func (p *Provisioner) run(ctx context.Context, dir, name string, args ...string) error {
	cmd := runner.Command{Name: name, Args: args, Dir: dir}

	event.Fire(ctx, &event.CommandEvent{Command: cmd.String()})

	_, err := p.Runner.Run(ctx, cmd)
	return err
}

// Provision creates the environment under dest and installs the manifest
// and extras into it. An existing environment is reused only when it was
// stamped with the same request.
func (p *Provisioner) Provision(ctx context.Context, dest string, req Request) (*Environment, error) {
	L := p.logger()

	env := p.Layout(dest)

	reqs, err := readManifest(req.Manifest)
	if err != nil {
		return nil, err
	}

	stamp, err := Stamp(reqs, req.Extras)
	if err != nil {
		return nil, err
	}

	stampPath := filepath.Join(env.Root, StampFile)

	if _, err := os.Stat(env.Root); err == nil {
		data, err := ioutil.ReadFile(stampPath)
		if err != nil {
			// A stamp is only written once every install finished.
			return nil, errors.Wrapf(ErrIncompleteEnvironment,
				"%s was left by an unfinished install; remove that directory and run again", env.Root)
		}

		if strings.TrimSpace(string(data)) == stamp {
			L.Info("reusing existing environment", "root", env.Root)
			return env, nil
		}

		return nil, errors.Wrapf(ErrIncompatibleEnvironment,
			"%s was built from a different manifest; remove that directory to rebuild it", env.Root)
	}

	L.Info("creating environment", "root", env.Root, "python", p.python())

	err = p.run(ctx, dest, p.python(), "-m", "venv", env.Root)
	if err != nil {
		return nil, errors.Wrapf(err, "creating environment")
	}

	err = p.run(ctx, dest, env.PackageManager, "install", "-r", req.Manifest)
	if err != nil {
		return nil, errors.Wrapf(err, "installing manifest")
	}

	if len(req.Extras) > 0 {
		err = p.run(ctx, dest, env.PackageManager, append([]string{"install"}, req.Extras...)...)
		if err != nil {
			return nil, errors.Wrapf(err, "installing extra packages")
		}
	}

	err = os.MkdirAll(env.Root, 0755)
	if err != nil {
		return nil, err
	}

	err = ioutil.WriteFile(stampPath, []byte(stamp+"\n"), 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "writing environment stamp")
	}

	return env, nil
}

type pipPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Installed reports the packages present in env keyed by normalized name.
func (p *Provisioner) Installed(ctx context.Context, env *Environment) (map[string]string, error) {
	res, err := p.Runner.Run(ctx, runner.Command{
		Name: env.PackageManager,
		Args: []string{"list", "--format=json"},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listing installed packages")
	}

	var pkgs []pipPackage

	// pip may print upgrade notices after the json document.
	dec := json.NewDecoder(strings.NewReader(res.Stdout))

	err = dec.Decode(&pkgs)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding pip output")
	}

	out := make(map[string]string, len(pkgs))

	for _, pkg := range pkgs {
		out[NormalizeName(pkg.Name)] = pkg.Version
	}

	return out, nil
}
