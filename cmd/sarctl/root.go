package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/config"
)

// app carries the resolved configuration from the root command to its
// subcommands.
type app struct {
	cfg config.Config

	dataDir  string
	logLevel string
	strategy string
}

// NewRootCmd builds sarctl with every subcommand registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "sarctl",
		Short:         "SAR composites over stored areas of interest",
		Long:          "sarctl manages areas and time ranges, previews and composes SAR queries, and serves the HTTP API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			a.load()
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "directory holding the area and time range files (env DATA_DIR)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (env LOG_LEVEL)")
	root.PersistentFlags().StringVar(&a.strategy, "strategy", "", "composite strategy (env COMPOSITE_STRATEGY)")

	root.AddCommand(
		newServeCmd(a),
		newAreaCmd(a),
		newTimeRangeCmd(a),
		newPreviewCmd(a),
		newCompositeCmd(a),
		newExportCmd(a),
		newStrategiesCmd(),
		newVersionCmd(),
	)
	return root
}

// load reads the environment, then applies flag overrides.
func (a *app) load() {
	cfg := config.FromEnv()
	if d := strings.TrimSpace(a.dataDir); d != "" {
		cfg.DataDir = d
		cfg.AOIFile = filepath.Join(d, filepath.Base(cfg.AOIFile))
		cfg.TimeRangeFile = filepath.Join(d, filepath.Base(cfg.TimeRangeFile))
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.strategy != "" {
		cfg.Strategy = a.strategy
	}
	a.cfg = cfg
}
