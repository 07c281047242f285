package cmd

import (
	"github.com/lab47/provision/pkg/event"
	"github.com/lab47/provision/pkg/platform"
	"github.com/lab47/provision/pkg/sysdeps"
	"github.com/spf13/cobra"
)

var (
	depsCmd = &cobra.Command{
		Use:   "deps",
		Short: "Install the system packages the application needs",
		Long:  ``,
		Args:  cobra.NoArgs,
		Run:   deps,
	}
)

func deps(c *cobra.Command, args []string) {
	o, _, err := loadAPI()
	if err != nil {
		er(err)
	}

	profile := o.Detector().Detect()
	if !profile.Supported() {
		er(&platform.UnsupportedError{Profile: profile})
	}

	ctx, cancel := runContext()
	defer cancel()

	event.Fire(ctx, &event.StepStartEvent{Number: 1, Name: sysdeps.StepName, Title: "Installing system dependencies"})

	res := o.Dependencies().Install(ctx, profile)

	event.Fire(ctx, &event.StepDoneEvent{Result: res})

	if res.Failed() {
		er(res.Err)
	}
}
