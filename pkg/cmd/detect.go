package cmd

import (
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	detectCmd = &cobra.Command{
		Use:   "detect",
		Short: "Show the detected platform and its system packages",
		Long:  ``,
		Args:  cobra.NoArgs,
		Run:   detect,
	}
)

func detect(c *cobra.Command, args []string) {
	o, _, err := loadAPI()
	if err != nil {
		er(err)
	}

	profile := o.Detector().Detect()

	if debug {
		spew.Dump(profile)
	}

	if !profile.Supported() {
		color.Red("unsupported platform: %s", profile.Reason)
		return
	}

	fmt.Printf("platform:        %s\n", profile.Family)
	fmt.Printf("package manager: %s\n", profile.PackageManager)
	fmt.Printf("packages:        %s\n", strings.Join(profile.Packages, " "))
	fmt.Printf("decided by:      %s\n", profile.Reason)

	if profile.Guessed {
		color.Yellow("no distribution marker matched; assuming a Debian based system")
	}
}
