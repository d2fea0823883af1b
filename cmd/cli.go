// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"os"

	"deskviz/internal/audio"
	"deskviz/internal/build"
	"deskviz/internal/config"
	"deskviz/internal/log"
	"deskviz/internal/tui"

	"github.com/spf13/cobra"
)

// options holds the command line flags that override the config file.
type options struct {
	ConfigPath string
	Verbose    bool
	Device     string
	Record     bool
	TUI        bool
}

// Execute parses os.Args and runs the selected command until ctx is done.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	info := build.Get()
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         info.Description,
		Version:       fmt.Sprintf("%s (%s, %s)", info.Version, info.Commit, info.Time),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd.Context(), opts, false)
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Capture system audio and publish levels (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd.Context(), opts, false)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "preview",
		Short: "Capture system audio and draw the level bars in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd.Context(), opts, true)
		},
	})

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List the devices each capture backend can use",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listDevices(opts)
		},
	}
	devicesCmd.Flags().BoolVarP(&opts.TUI, "tui", "t", false,
		"Browse devices interactively and print the chosen device name")
	rootCmd.AddCommand(devicesCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "",
		"Path to the YAML config file (default ./"+config.DefaultPath+" when present)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false,
		"Show verbose output")
	flags.StringVarP(&opts.Device, "device", "d", "",
		"Capture from the device whose name contains this text. Use 'devices' to list them.")
	flags.BoolVarP(&opts.Record, "record", "r", false,
		"Record the mono capture to a WAV file in recording.output_dir")

	return rootCmd
}

// loadConfig reads the config and applies the flag overrides and log level.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Device != "" {
		cfg.Audio.Device = opts.Device
	}
	if opts.Record {
		cfg.Recording.Enabled = true
	}
	applyLogLevel(cfg, opts.Verbose)
	return cfg, nil
}

func applyLogLevel(cfg *config.Config, verbose bool) {
	level, _ := log.ParseLevel(cfg.LogLevel)
	if verbose || cfg.Debug {
		level = log.LevelDebug
	}
	log.SetLevel(level)
}

func listDevices(opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	backends := cfg.Backends()
	fetch := func() ([]audio.BackendDevices, error) {
		return audio.HostDevices(backends...)
	}

	if !opts.TUI {
		groups, err := fetch()
		audio.ListDevices(os.Stdout, groups)
		return err
	}

	dev, ok, err := tui.PickDevice(fetch)
	if err != nil {
		return err
	}
	if ok {
		fmt.Println(dev.Name)
	}
	return nil
}
