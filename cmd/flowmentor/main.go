// Command flowmentor is a terminal side panel that explains, debugs and
// translates what you select in the browser, using Google Gemini.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"flowmentor/internal/config"
	"flowmentor/internal/logging"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "flowmentor",
	Short: "FlowMentor - an AI side panel for code and pages",
	Long: `FlowMentor forwards selected page text or typed questions to Gemini and
shows the answer in a side panel.

Two processes cooperate through a one-slot mailbox in the state database:
  flowmentor trigger <action>   plays the browser context menu
  flowmentor panel              consumes the task and talks to the model

Run without arguments to open the panel.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			if workspace, err = os.Getwd(); err != nil {
				return err
			}
		}
		if configPath == "" {
			configPath = filepath.Join(workspace, config.DefaultPath)
		}
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if !filepath.IsAbs(cfg.Storage.DatabasePath) {
			cfg.Storage.DatabasePath = filepath.Join(workspace, cfg.Storage.DatabasePath)
		}

		settings := cfg.Logging.Settings()
		if verbose {
			settings.DebugMode = true
			settings.Level = "debug"
		}
		if err := logging.Initialize(workspace, settings); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		if err := logging.InitAudit(); err != nil {
			logger.Warn("audit log unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAudit()
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPanel(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/.flowmentor/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&useBrowser, "browser", false, "Read pages from Chrome over DevTools instead of fetching them")

	rootCmd.AddCommand(
		panelCmd,
		openCmd,
		runCmd,
		triggerCmd,
		serveCmd,
		actionsCmd,
		themeCmd,
		statusCmd,
		initCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
