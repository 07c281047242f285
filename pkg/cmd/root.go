package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/lab47/provision/pkg/config"
	"github.com/lab47/provision/pkg/event"
	"github.com/lab47/provision/pkg/ops"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
)

var (
	// Used for flags.
	cfgFile string
	debug   bool

	v = config.New()

	rootCmd = &cobra.Command{
		Use:   "provision",
		Short: "Install a desktop application and its Python environment",
		Long:  ``,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.provision.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "show debugging information")
	rootCmd.PersistentFlags().String("dest", "", "directory to install into")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this file")

	v.BindPFlag("destination", rootCmd.PersistentFlags().Lookup("dest"))
	v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	v.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(cleanCmd)
}

func er(msg interface{}) {
	color.New(color.FgRed).Fprintln(os.Stderr, "Error:", msg)
	os.Exit(1)
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		v.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			er(err)
		}

		// Search config in home directory with name ".provision" (without extension).
		v.AddConfigPath(home)
		v.SetConfigName(".provision")
	}

	if err := v.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	} else if cfgFile != "" {
		er(err)
	}
}

func loadAPI() (*ops.Ops, *config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}

	L, err := newLogger(cfg, debug)
	if err != nil {
		return nil, nil, err
	}

	o, err := ops.NewOps(L, cfg)
	if err != nil {
		return nil, nil, err
	}

	return o, cfg, nil
}

// runContext is cancelled on SIGINT or SIGTERM, which kills any running
// subprocess. Events are rendered to stdout.
func runContext() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var r event.Renderer

	return r.WithContext(ctx), cancel
}
