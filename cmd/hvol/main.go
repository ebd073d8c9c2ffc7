package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/hvol/pkg/config"
	"github.com/ajitpratap0/hvol/pkg/logger"
	"github.com/ajitpratap0/hvol/pkg/observability"
	"github.com/ajitpratap0/hvol/pkg/vol"
)

var version = "0.1.0"

// app carries the state shared by every subcommand
type app struct {
	configFile string
	envFile    string
	logLevel   string

	cfg *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "hvol",
		Short: "hvol - connector layer for hierarchical data containers",
		Long: `hvol routes file, group, dataset, attribute and link operations to
pluggable connectors. The default connector comes from HVOL_VOL_CONNECTOR,
"<name-or-value> [info-string]", or from a YAML configuration file.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			_ = logger.Sync()
			return observability.Shutdown(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Path to a YAML configuration file (defaults come from HVOL_* variables)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading HVOL_* variables")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the configuration")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "hvol v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(a.listCmd(), a.envCmd(), a.demoCmd())
	return root
}

// setup loads the environment and configuration, then installs the logger
// and, when enabled, the span exporter
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.envFile != "" {
		// a missing dotenv file is fine
		_ = godotenv.Load(a.envFile)
	}

	var err error
	if a.configFile != "" {
		a.cfg, err = config.LoadFile(a.configFile)
	} else {
		a.cfg, err = config.FromEnv()
	}
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		a.cfg.Logging.Level = a.logLevel
		if err := a.cfg.Validate(); err != nil {
			return err
		}
	}

	if err := logger.Init(logger.Config{
		Level:       a.cfg.Logging.Level,
		Encoding:    a.cfg.Logging.Encoding,
		Development: a.cfg.Logging.Development,
	}); err != nil {
		return err
	}

	if a.cfg.Tracing.Enabled {
		tc := observability.DefaultTracingConfig()
		tc.ServiceName = a.cfg.Tracing.ServiceName
		tc.ServiceVersion = version
		tc.SamplingRate = a.cfg.Tracing.SampleRate
		tc.Writer = cmd.ErrOrStderr()
		tc.Sync = true
		if err := observability.Initialize(cmd.Context(), tc); err != nil {
			return err
		}
	}
	return nil
}

// library builds a library from the loaded configuration. The caller closes it.
func (a *app) library(ctx context.Context) (*vol.Library, error) {
	lib, err := vol.New(ctx, a.cfg)
	if err != nil {
		logger.Error("failed to initialize the library", zap.Error(err))
		return nil, err
	}
	return lib, nil
}
