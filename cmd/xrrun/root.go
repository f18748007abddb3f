package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/leeforge/xrcore/config"
	"github.com/leeforge/xrcore/json"
	"github.com/leeforge/xrcore/runtime"
)

type rootFlags struct {
	configDir  string
	duration   time.Duration
	statusAddr string
	watch      bool
}

// NewRootCmd creates the xrrun command.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "xrrun [flags] [plugin.so ...]",
		Short: "Run XR plugins on the xrcore runtime",
		Long: `xrrun loads the plugin modules listed in the configuration followed by
those given as arguments, starts them in order and runs until SIGINT, SIGTERM,
a POST to the status /stop endpoint, or until --duration elapses.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rl := &reloader{flags: flags, args: args}
			load := flags.load
			if flags.watch {
				load = func() (runtime.Config, error) { return flags.loadWatched(rl.apply) }
			}

			cfg, err := load()
			if err != nil {
				return err
			}
			cfg.Plugins = append(cfg.Plugins, args...)
			return run(cmd.Context(), cfg, rl)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "directory holding config.yaml (default $XR_CONFIG_PATH or ./config)")
	cmd.Flags().DurationVar(&flags.duration, "duration", 0, "stop after this long; overrides run_duration")
	cmd.Flags().StringVar(&flags.statusAddr, "status-addr", "", "serve the status API on this address")
	cmd.Flags().BoolVar(&flags.watch, "watch", true, "apply log level changes from edited configuration files")

	cmd.AddCommand(newConfigCmd(flags))
	return cmd
}

func newConfigCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		},
	}
}

func (f *rootFlags) options() config.Options {
	opts := config.DefaultOptions()
	if f.configDir != "" {
		opts.BasePath = f.configDir
	}
	return opts
}

// override applies command line flags on top of cfg.
func (f *rootFlags) override(cfg *runtime.Config) {
	if f.duration > 0 {
		cfg.RunDuration = f.duration
	}
	if f.statusAddr != "" {
		cfg.Status.Enabled = true
		cfg.Status.Addr = f.statusAddr
	}
}

func (f *rootFlags) load() (runtime.Config, error) {
	cfg, err := runtime.LoadConfig(f.options())
	if err != nil {
		return cfg, err
	}
	f.override(&cfg)
	return cfg, nil
}

func (f *rootFlags) loadWatched(onChange func(runtime.Config, error)) (runtime.Config, error) {
	cfg, err := runtime.WatchConfig(f.options(), onChange)
	if err != nil {
		return cfg, err
	}
	f.override(&cfg)
	return cfg, nil
}
