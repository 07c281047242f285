package cmd

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/fatih/color"
	"github.com/lab47/provision/pkg/venv"
	"github.com/spf13/cobra"
)

var (
	envCmd = &cobra.Command{
		Use:   "env",
		Short: "Create or check the Python environment of an existing install",
		Long:  ``,
		Args:  cobra.NoArgs,
		Run:   checkEnv,
	}
)

func checkEnv(c *cobra.Command, args []string) {
	o, cfg, err := loadAPI()
	if err != nil {
		er(err)
	}

	ctx, cancel := runContext()
	defer cancel()

	req := venv.Request{
		Manifest: filepath.Join(cfg.Destination, cfg.Manifest),
		Extras:   cfg.ExtraPackages,
	}

	p := o.Provisioner()

	e, err := p.Provision(ctx, cfg.Destination, req)
	if err != nil {
		er(err)
	}

	installed, err := p.Installed(ctx, e)
	if err != nil {
		er(err)
	}

	var names []string
	for name := range installed {
		names = append(names, name)
	}

	sort.Strings(names)

	fmt.Printf("environment: %s\n", e.Root)

	for _, name := range names {
		fmt.Printf("  %s %s\n", name, installed[name])
	}

	err = p.Verify(ctx, e, req)
	if err != nil {
		color.Red("environment does not satisfy the manifest:\n%s", err)
		return
	}

	color.Green("environment satisfies %s", req.Manifest)
}
