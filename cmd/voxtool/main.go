// voxtool is a CLI utility for inspecting and vetting MagicaVoxel .vox files.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/voxintake/internal/config"
	"github.com/Faultbox/voxintake/internal/intake"
	"github.com/Faultbox/voxintake/internal/logger"
)

// Set by the linker.
var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	err := newRootCmd().Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries state shared by all subcommands once flags are parsed.
type app struct {
	configPath string
	overrides  config.Overrides

	cfg       *config.Config
	log       *zap.Logger
	inspector *intake.Inspector
}

// setup loads config, then starts logging, then builds the inspector.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath, a.overrides)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	a.cfg = cfg
	a.log = logger.Named("voxtool")
	a.inspector = intake.New(cfg.Intake, logger.Named("intake"))
	a.log.Debug("config loaded",
		zap.String("format", cfg.Output.Format),
		zap.Int("workers", cfg.Output.Workers),
		zap.Int64("max_upload_bytes", cfg.Intake.MaxUploadBytes),
	)
	return nil
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "voxtool",
		Short: "MagicaVoxel .vox inspection utility",
		Long: `voxtool decodes MagicaVoxel .vox files (optionally zstd or gzip
compressed) and reports their models, palette and scene graph.

Examples:
  voxtool info castle.vox
  voxtool dump castle.vox --format yaml
  voxtool palette castle.vox --all
  voxtool scene castle.vox
  voxtool check uploads/*.vox --workers 8
  voxtool config --workers 8 --write voxtool.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to config file")
	flags.BoolVar(&a.overrides.Debug, "debug", false, "Enable debug logging")
	flags.StringVarP(&a.overrides.Format, "format", "f", "", "Output format (text, json, yaml)")
	flags.IntVarP(&a.overrides.Workers, "workers", "w", 0, "Files inspected concurrently by check")
	flags.Int64Var(&a.overrides.MaxUpload, "max-upload", 0, "Maximum accepted file size in bytes")
	flags.StringVar(&a.overrides.LogFile, "log-file", "", "Also write logs to this file")

	cmd.AddCommand(
		a.infoCmd(),
		a.dumpCmd(),
		a.paletteCmd(),
		a.sceneCmd(),
		a.checkCmd(),
		a.configCmd(),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// version needs no config
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "voxtool version %s (build: %s)\n", Version, BuildTime)
		},
	}
}
