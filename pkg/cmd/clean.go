package cmd

import (
	"fmt"
	"time"

	"github.com/lab47/provision/pkg/gc"
	"github.com/spf13/cobra"
)

var (
	cleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Remove scratch data left behind by interrupted installs",
		Long:  ``,
		Args:  cobra.NoArgs,
		Run:   clean,
	}
)

var cleanMaxAge time.Duration

func init() {
	cleanCmd.Flags().DurationVar(&cleanMaxAge, "max-age", gc.DefaultMaxAge, "remove scratch directories older than this")
}

func clean(c *cobra.Command, args []string) {
	o, _, err := loadAPI()
	if err != nil {
		er(err)
	}

	col, err := o.Collector()
	if err != nil {
		er(err)
	}

	col.MaxAge = cleanMaxAge

	sr, err := col.SweepAndRemove()

	if sr != nil {
		for _, name := range sr.Removed {
			fmt.Printf("removed %s\n", name)
		}

		fmt.Printf("%d directories, %d entries, %d bytes recovered\n", len(sr.Removed), sr.EntriesRemoved, sr.BytesRecovered)
	}

	if err != nil {
		er(err)
	}
}
