package venv

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lab47/provision/pkg/runner"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePython behaves enough like python and pip for the provisioner: venv
// creates the root, install records packages, list reports them.
type fakePython struct {
	commands  []string
	installed map[string]string
	fail      string
}

func (f *fakePython) run(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	s := cmd.String()
	f.commands = append(f.commands, s)

	if f.fail != "" && strings.Contains(s, f.fail) {
		return &runner.Result{ExitCode: 1, Stderr: "boom"}, &runner.SubprocessError{
			Command:  s,
			ExitCode: 1,
			Stderr:   "boom",
		}
	}

	if f.installed == nil {
		f.installed = map[string]string{}
	}

	args := cmd.Args

	switch {
	case len(args) == 3 && args[0] == "-m" && args[1] == "venv":
		return &runner.Result{}, os.MkdirAll(filepath.Join(args[2], "bin"), 0755)
	case len(args) == 3 && args[0] == "install" && args[1] == "-r":
		r, err := os.Open(args[2])
		if err != nil {
			return nil, err
		}

		defer r.Close()

		reqs, err := ParseManifest(r)
		if err != nil {
			return nil, err
		}

		for _, req := range reqs {
			f.installFor(req)
		}
	case len(args) > 1 && args[0] == "install":
		for _, a := range args[1:] {
			req, err := ParseRequirement(a)
			if err != nil {
				return nil, err
			}

			f.installFor(req)
		}
	case len(args) == 2 && args[0] == "list":
		var pkgs []pipPackage
		for name, ver := range f.installed {
			pkgs = append(pkgs, pipPackage{Name: name, Version: ver})
		}

		data, err := json.Marshal(pkgs)
		if err != nil {
			return nil, err
		}

		return &runner.Result{Stdout: string(data) + "\n[notice] A new release of pip is available\n"}, nil
	}

	return &runner.Result{}, nil
}

func (f *fakePython) installFor(req Requirement) {
	ver := "2.3.0"

	for _, s := range req.Specs {
		if s.Op == "==" {
			ver = s.Version
		}
	}

	f.installed[req.Name] = ver
}

func writeManifest(t *testing.T, dest, content string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(dest, 0755))

	path := filepath.Join(dest, "requirements.txt")
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))

	return path
}

func TestProvision(t *testing.T) {
	t.Run("installs the manifest then the extras", func(t *testing.T) {
		dest := t.TempDir()
		manifest := writeManifest(t, dest, "pkgX==1.0\n")

		var py fakePython

		p := &Provisioner{Runner: runner.Funcs{RunFunc: py.run}, GOOS: "linux"}

		env, err := p.Provision(context.TODO(), dest, Request{
			Manifest: manifest,
			Extras:   []string{"pkgY"},
		})
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(dest, "venv"), env.Root)
		assert.Equal(t, filepath.Join(dest, "venv", "bin", "python"), env.Interpreter)

		pip := filepath.Join(dest, "venv", "bin", "pip")

		assert.Equal(t, []string{
			"python3 -m venv " + env.Root,
			pip + " install -r " + manifest,
			pip + " install pkgY",
		}, py.commands)

		installed, err := p.Installed(context.TODO(), env)
		require.NoError(t, err)

		assert.Equal(t, "1.0", installed["pkgx"])
		assert.Contains(t, installed, "pkgy")

		err = p.Verify(context.TODO(), env, Request{Manifest: manifest, Extras: []string{"pkgY"}})
		assert.NoError(t, err)

		_, err = os.Stat(filepath.Join(env.Root, StampFile))
		assert.NoError(t, err)
	})

	t.Run("hands hash pinned and local manifests to pip untouched", func(t *testing.T) {
		for name, content := range map[string]string{
			"continued hashes": "pkgX==1.0 \\\n    --hash=sha256:0123abcd\n",
			"inline hash":      "pkgX==1.0 --hash=sha256:0123abcd\n",
			"local wheel":      "./vendor/pkgX-1.0-py3-none-any.whl\n",
			"byte order mark":  "\ufeffpkgX==1.0\n",
		} {
			dest := t.TempDir()
			manifest := writeManifest(t, dest, content)

			var py fakePython

			p := &Provisioner{Runner: runner.Funcs{RunFunc: py.run}, GOOS: "linux"}

			env, err := p.Provision(context.TODO(), dest, Request{Manifest: manifest})
			require.NoError(t, err, name)

			pip := filepath.Join(dest, "venv", "bin", "pip")

			assert.Equal(t, []string{
				"python3 -m venv " + env.Root,
				pip + " install -r " + manifest,
			}, py.commands, name)

			assert.Contains(t, py.installed, "pkgX", name)

			err = p.Verify(context.TODO(), env, Request{Manifest: manifest})
			assert.NoError(t, err, name)
		}
	})

	t.Run("skips the extras command when there are none", func(t *testing.T) {
		dest := t.TempDir()
		manifest := writeManifest(t, dest, "pkgX==1.0\n")

		var py fakePython

		p := &Provisioner{Runner: runner.Funcs{RunFunc: py.run}, GOOS: "linux"}

		_, err := p.Provision(context.TODO(), dest, Request{Manifest: manifest})
		require.NoError(t, err)

		assert.Len(t, py.commands, 2)
	})

	t.Run("uses Scripts paths on windows", func(t *testing.T) {
		p := &Provisioner{GOOS: "windows", Name: "env"}

		env := p.Layout("dest")

		assert.Equal(t, filepath.Join("dest", "env"), env.Root)
		assert.Equal(t, filepath.Join("dest", "env", "Scripts", "python.exe"), env.Interpreter)
		assert.Equal(t, filepath.Join("dest", "env", "Scripts", "pip.exe"), env.PackageManager)
		assert.Equal(t, "python", p.python())
	})

	t.Run("fails before running anything when the manifest is missing", func(t *testing.T) {
		dest := t.TempDir()

		var py fakePython

		p := &Provisioner{Runner: runner.Funcs{RunFunc: py.run}}

		_, err := p.Provision(context.TODO(), dest, Request{
			Manifest: filepath.Join(dest, "requirements.txt"),
		})
		require.Error(t, err)

		assert.True(t, errors.Is(err, ErrMissingManifest))
		assert.Empty(t, py.commands)
	})

	t.Run("reuses an environment stamped for the same request", func(t *testing.T) {
		dest := t.TempDir()
		manifest := writeManifest(t, dest, "pkgX==1.0\n")

		var py fakePython

		p := &Provisioner{Runner: runner.Funcs{RunFunc: py.run}}

		req := Request{Manifest: manifest, Extras: []string{"pkgY"}}

		_, err := p.Provision(context.TODO(), dest, req)
		require.NoError(t, err)

		py.commands = nil

		env, err := p.Provision(context.TODO(), dest, req)
		require.NoError(t, err)

		assert.NotNil(t, env)
		assert.Empty(t, py.commands)
	})

	t.Run("refuses an environment built for something else", func(t *testing.T) {
		dest := t.TempDir()
		manifest := writeManifest(t, dest, "pkgX==1.0\n")

		var py fakePython

		p := &Provisioner{Runner: runner.Funcs{RunFunc: py.run}}

		_, err := p.Provision(context.TODO(), dest, Request{Manifest: manifest})
		require.NoError(t, err)

		writeManifest(t, dest, "pkgX==2.0\n")
		py.commands = nil

		_, err = p.Provision(context.TODO(), dest, Request{Manifest: manifest})
		require.Error(t, err)

		assert.True(t, errors.Is(err, ErrIncompatibleEnvironment))
		assert.Empty(t, py.commands)
	})

	t.Run("reports an unstamped environment as incomplete", func(t *testing.T) {
		dest := t.TempDir()
		manifest := writeManifest(t, dest, "pkgX==1.0\n")

		require.NoError(t, os.MkdirAll(filepath.Join(dest, "venv"), 0755))

		var py fakePython

		p := &Provisioner{Runner: runner.Funcs{RunFunc: py.run}}

		_, err := p.Provision(context.TODO(), dest, Request{Manifest: manifest})
		require.Error(t, err)

		assert.True(t, errors.Is(err, ErrIncompleteEnvironment))
		assert.False(t, errors.Is(err, ErrIncompatibleEnvironment))
		assert.Contains(t, err.Error(), filepath.Join(dest, "venv"))
		assert.Contains(t, err.Error(), "remove that directory")
		assert.Empty(t, py.commands)
	})

	t.Run("points at the environment left by a failed install", func(t *testing.T) {
		dest := t.TempDir()
		manifest := writeManifest(t, dest, "pkgX==1.0\n")

		py := fakePython{fail: "install -r"}

		p := &Provisioner{Runner: runner.Funcs{RunFunc: py.run}}

		_, err := p.Provision(context.TODO(), dest, Request{Manifest: manifest})
		require.Error(t, err)

		py.fail = ""

		_, err = p.Provision(context.TODO(), dest, Request{Manifest: manifest})
		require.Error(t, err)

		assert.True(t, errors.Is(err, ErrIncompleteEnvironment))
		assert.Contains(t, err.Error(), filepath.Join(dest, "venv"))
	})

	t.Run("surfaces pip failures with captured output", func(t *testing.T) {
		dest := t.TempDir()
		manifest := writeManifest(t, dest, "pkgX==1.0\n")

		py := fakePython{fail: "install -r"}

		p := &Provisioner{Runner: runner.Funcs{RunFunc: py.run}}

		_, err := p.Provision(context.TODO(), dest, Request{Manifest: manifest})
		require.Error(t, err)

		var se *runner.SubprocessError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "boom", se.Stderr)

		_, err = os.Stat(filepath.Join(dest, "venv", StampFile))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestVerify(t *testing.T) {
	dest := t.TempDir()
	manifest := writeManifest(t, dest, "pkgX>=1.0,<2\nold-pkg~=1.4.2\n")

	py := fakePython{installed: map[string]string{
		"pkgX":    "2.1",
		"Old_Pkg": "1.4.5",
	}}

	p := &Provisioner{Runner: runner.Funcs{RunFunc: py.run}}

	err := p.Verify(context.TODO(), p.Layout(dest), Request{
		Manifest: manifest,
		Extras:   []string{"missing"},
	})
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrNotSatisfied))
	assert.Contains(t, err.Error(), "pkgX>=1.0,<2 has 2.1")
	assert.Contains(t, err.Error(), "missing is not installed")
	assert.NotContains(t, err.Error(), "old-pkg")
}

func TestSatisfies(t *testing.T) {
	cases := []struct {
		installed string
		specs     []Spec
		ok        bool
	}{
		{"1.0", []Spec{{"==", "1.0"}}, true},
		{"1.0.0", []Spec{{"==", "1.0"}}, true},
		{"1.1", []Spec{{"==", "1.0"}}, false},
		{"1.4.9", []Spec{{"~=", "1.4.2"}}, true},
		{"1.5.0", []Spec{{"~=", "1.4.2"}}, false},
		{"1.2.3", []Spec{{"==", "1.2.*"}}, true},
		{"1.3", []Spec{{"!=", "1.2.*"}}, true},
		{"3.0", []Spec{{">=", "1.0"}, {"<", "2"}}, false},
	}

	for _, c := range cases {
		ok, err := satisfies(c.installed, c.specs)
		require.NoError(t, err)
		assert.Equal(t, c.ok, ok, "%s %v", c.installed, c.specs)
	}
}
