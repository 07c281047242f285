package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	launchCmd = &cobra.Command{
		Use:   "launch",
		Short: "Start an installed application",
		Long:  ``,
		Args:  cobra.NoArgs,
		Run:   launchApp,
	}
)

var writeLauncher bool

func init() {
	launchCmd.Flags().BoolVar(&writeLauncher, "launcher", false, "also write a launch script")
}

func launchApp(c *cobra.Command, args []string) {
	o, cfg, err := loadAPI()
	if err != nil {
		er(err)
	}

	ctx, cancel := runContext()
	defer cancel()

	env := o.Provisioner().Layout(cfg.Destination)

	if _, err := os.Stat(env.Interpreter); err != nil {
		er(fmt.Errorf("no environment found in %s, run install first", cfg.Destination))
	}

	entry := filepath.Join(cfg.Destination, cfg.EntryPoint)

	l := o.Launcher()

	art, err := l.MaybeWriteArtifact(env, entry, cfg.Destination, writeLauncher)
	if err != nil {
		er(err)
	}

	if art != nil {
		fmt.Printf("Launch script created at: %s\n", art.Path)
	}

	proc, err := l.MaybeLaunch(ctx, env, entry, true)
	if err != nil {
		er(err)
	}

	fmt.Printf("Application started (pid %d)\n", proc.Pid)
}
