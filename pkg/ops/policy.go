package ops

import (
	"sort"

	"github.com/lab47/provision/pkg/platform"
)

// InstallPolicy holds the choices that differ between installer variants.
type InstallPolicy struct {
	// Platforms the install may run on. Empty allows every supported family.
	Platforms []platform.Family

	// Prompt marks runs where decisions come from a person. It is recorded
	// in the report and the install receipt.
	Prompt bool

	SystemDeps        bool
	RequireSystemDeps bool
	ExtraPackages     []string
	Summary           bool
}

func (p InstallPolicy) Allows(f platform.Family) bool {
	if f == platform.Unsupported {
		return false
	}

	if len(p.Platforms) == 0 {
		return true
	}

	for _, a := range p.Platforms {
		if a == f {
			return true
		}
	}

	return false
}

// InstallContext carries the locations a run works in. Destination is
// durable. Each run works in its own directory under Scratch (the system
// temp directory when empty) and removes it when it ends.
type InstallContext struct {
	Destination string
	Scratch     string
	Env         map[string]string
}

// EnvList renders Env as sorted KEY=value pairs.
func (c InstallContext) EnvList() []string {
	var out []string

	for k, v := range c.Env {
		out = append(out, k+"="+v)
	}

	sort.Strings(out)

	return out
}

// Decider supplies the yes/no answers the pipeline needs. The pipeline never
// reads input itself.
type Decider interface {
	RunNow() (bool, error)
	WriteLauncher() (bool, error)
}

type Decisions struct {
	Run      bool
	Launcher bool
}

func (d Decisions) RunNow() (bool, error) {
	return d.Run, nil
}

func (d Decisions) WriteLauncher() (bool, error) {
	return d.Launcher, nil
}

type DecideFuncs struct {
	RunNowFunc        func() (bool, error)
	WriteLauncherFunc func() (bool, error)
}

func (d DecideFuncs) RunNow() (bool, error) {
	if d.RunNowFunc == nil {
		return false, nil
	}

	return d.RunNowFunc()
}

func (d DecideFuncs) WriteLauncher() (bool, error) {
	if d.WriteLauncherFunc == nil {
		return false, nil
	}

	return d.WriteLauncherFunc()
}
