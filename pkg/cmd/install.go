package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/lab47/provision/pkg/ops"
	"github.com/spf13/cobra"
)

var (
	installCmd = &cobra.Command{
		Use:   "install",
		Short: "Install the application, its dependencies and environment",
		Long:  ``,
		Args:  cobra.NoArgs,
		Run:   install,
	}
)

var installFlags decisionFlags

func init() {
	installCmd.Flags().BoolVarP(&installFlags.yes, "yes", "y", false, "run the application and write the launch script without asking")
	installCmd.Flags().BoolVar(&installFlags.run, "run", false, "run the application when the install finishes")
	installCmd.Flags().BoolVar(&installFlags.launcher, "launcher", false, "write a launch script")
}

func install(c *cobra.Command, args []string) {
	o, cfg, err := loadAPI()
	if err != nil {
		er(err)
	}

	if !c.Flags().Changed("dest") && !installFlags.yes && interactive() {
		dest, err := askDestination(cfg.Destination)
		if err != nil {
			er(err)
		}

		cfg.Destination = dest
	}

	decider := installFlags.decider(c.Flags())

	pipeline, err := o.Pipeline(decider)
	if err != nil {
		er(err)
	}

	_, pipeline.Policy.Prompt = decider.(ops.DecideFuncs)

	ctx, cancel := runContext()
	defer cancel()

	report, err := pipeline.Run(ctx)

	printReport(report)

	if err != nil {
		er(err)
	}
}

func printReport(report *ops.Report) {
	if report == nil {
		return
	}

	fmt.Println()

	if report.Failed() != nil {
		color.New(color.FgRed, color.Bold).Printf("Installation incomplete (run %s)\n", report.RunID)
	} else {
		color.New(color.FgGreen, color.Bold).Printf("Installation complete (run %s)\n", report.RunID)
	}

	if report.Environment != nil {
		fmt.Printf("  environment: %s\n", report.Environment.Root)
	}

	if report.Process != nil {
		fmt.Printf("  application pid: %d\n", report.Process.Pid)
	}

	if report.Artifact != nil {
		fmt.Printf("  launch script: %s\n", report.Artifact.Path)
	}

	if report.SummaryPath != "" {
		fmt.Printf("  setup instructions: %s\n", report.SummaryPath)
	}

	if report.ArchiveSum != "" {
		fmt.Printf("  archive: %s\n", report.ArchiveSum)
	}
}
