package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/labelscan/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// app carries the state shared by one command tree: the config loader, the
// loaded configuration and the flag bindings that feed it.
type app struct {
	cfgFile string
	loader  *config.Loader
	cfg     *config.Config
}

// NewRootCommand builds the labelscan command tree.
func NewRootCommand() *cobra.Command {
	a := &app{loader: config.NewLoaderWithViper(viper.New())}

	rootCmd := &cobra.Command{
		Use:   "labelscan",
		Short: "Food label scanner: OCR, ingredient extraction and allergen matching",
		Long: `labelscan reads photographed food labels and checks them against a
personal allergen and diet profile.

It provides:
- Label OCR with smart region detection and rotation search (Tesseract)
- Ingredient list extraction for Korean and English labels
- Allergen and diet (vegan, vegetarian, halal) matching with risk levels
- Both CLI and server modes, with a shared recognition cache

Examples:
  labelscan scan label.jpg --allergen milk --diet HALAL
  labelscan analyze --file ocr.txt --allergen peanut
  labelscan serve --port 8080`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "",
		"config file (default is search in ., $HOME, /etc/labelscan, $XDG_CONFIG_HOME/labelscan)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	a.bind(rootCmd.PersistentFlags().Lookup("verbose"), "verbose")
	a.bind(rootCmd.PersistentFlags().Lookup("log-level"), "log_level")

	rootCmd.AddCommand(
		newScanCmd(a),
		newAnalyzeCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command tree and exits non-zero on failure.
// This is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// bind ties a flag to a configuration key on the app's viper instance.
func (a *app) bind(flag *pflag.Flag, key string) {
	if err := a.loader.GetViper().BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %s: %v", key, err))
	}
}

// init loads .env and the configuration, then sets up structured logging.
func (a *app) init(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	var err error
	if cmd.Name() == "init" || cmd.Name() == "show" {
		// Config commands must work even when the current file is invalid
		a.cfg, err = a.loader.LoadWithFileWithoutValidation(a.cfgFile)
	} else {
		a.cfg, err = a.loader.LoadWithFile(a.cfgFile)
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel(a.cfg),
	}))
	slog.SetDefault(logger)
	return nil
}

// logLevel maps the configured level; verbose forces debug.
func logLevel(cfg *config.Config) slog.Level {
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
