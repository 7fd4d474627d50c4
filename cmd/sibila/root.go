package main

import (
	"github.com/spf13/cobra"

	"github.com/0xcro3dile/sibila-go/internal/domain/ports"
	"github.com/0xcro3dile/sibila-go/internal/infrastructure/config"
	"github.com/0xcro3dile/sibila-go/internal/infrastructure/logger"
)

var (
	configPath string
	verbose    bool

	// Set by the root pre-run hook for every subcommand.
	cfg    *config.AppConfig
	log    ports.Logger
	zapLog *logger.ZapLogger
)

var rootCmd = &cobra.Command{
	Use:   "sibila",
	Short: "Legal document ingestion and retrieval",
	Long: `sibila chunks case law and statutes, stores the chunks with their
metadata in a vector index and answers filtered semantic queries.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		zapLog = logger.NewZapLogger(cfg.Log.File, cfg.Log.Production, verbose)
		log = zapLog
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if zapLog != nil {
			_ = zapLog.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to the console")
}
