package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/MeKo-Tech/labelscan/internal/analysis"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/MeKo-Tech/labelscan/internal/scan"
	"github.com/MeKo-Tech/labelscan/internal/utils"
	"github.com/spf13/cobra"
)

func newScanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Recognize a label photo and check it against a profile",
		Long: `Run label OCR on an image and analyze the recognized text against
an allergen and diet profile.

Supported formats: JPEG, PNG, BMP, TIFF, WebP

Examples:
  labelscan scan label.jpg
  labelscan scan label.jpg --allergen milk --allergen 땅콩 --diet VEGAN
  labelscan scan label.jpg --lang kor --no-auto-rotate --preview crop.jpg --format text`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd, args[0])
		},
	}

	cmd.Flags().String("lang", "", "recognition languages joined with + (default from config, e.g. kor+eng)")
	cmd.Flags().StringSliceP("allergen", "a", nil, "allergen to check for (repeatable or comma separated)")
	cmd.Flags().String("diet", "", "diet rule to apply: NONE, VEGAN, VEGETARIAN, HALAL")
	cmd.Flags().Int("profile-version", pipeline.DefaultProfileVersion, "profile version folded into the cache key")
	cmd.Flags().Bool("no-smart-roi", false, "recognize the whole image instead of locating the label panel")
	cmd.Flags().Bool("no-auto-rotate", false, "skip the rotation search")
	cmd.Flags().String("preview", "", "write the processed crop as JPEG to this path")
	cmd.Flags().StringP("format", "f", outputFormatJSON, "output format (json, text)")
	return cmd
}

func (a *app) runScan(cmd *cobra.Command, path string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := validateFormat(format); err != nil {
		return err
	}

	data, err := utils.ReadImageFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	in, err := a.scanInput(cmd, path, data)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	sink := pipeline.NewLogProgress(slog.Default(), slog.LevelDebug, path)
	rec, err := rt.service.Scan(ctx, in, sink)
	if err != nil {
		return fmt.Errorf("scan failed (%s): %w", pipeline.ErrorCode(err), err)
	}

	if previewPath, _ := cmd.Flags().GetString("preview"); previewPath != "" {
		if len(rec.Preview) == 0 {
			slog.Warn("No preview available", "roi_method", rec.ROI.Method)
		} else if err := os.WriteFile(previewPath, rec.Preview, 0o644); err != nil {
			return fmt.Errorf("failed to write preview: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if format == outputFormatText {
		writeRecordText(out, rec)
		return nil
	}
	return writeJSON(out, rec)
}

// scanInput builds the scan request from the image and the command flags.
func (a *app) scanInput(cmd *cobra.Command, path string, data []byte) (scan.Input, error) {
	opts := a.cfg.Options()
	if noROI, _ := cmd.Flags().GetBool("no-smart-roi"); noROI {
		opts.SmartROI = false
	}
	if noRotate, _ := cmd.Flags().GetBool("no-auto-rotate"); noRotate {
		opts.AutoRotate = false
	}

	langs := a.cfg.Languages()
	if lang, _ := cmd.Flags().GetString("lang"); lang != "" {
		langs = recognizer.ParseLanguages(lang)
	}

	version, _ := cmd.Flags().GetInt("profile-version")
	if version < 1 {
		return scan.Input{}, fmt.Errorf("invalid profile version: %d (must be at least 1)", version)
	}

	allergens, _ := cmd.Flags().GetStringSlice("allergen")
	if allergens == nil {
		allergens = []string{}
	}
	diet, _ := cmd.Flags().GetString("diet")

	return scan.Input{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Image:       data,
		Languages:   langs,
		Options:     opts,
		Profile: scan.ProfileSnapshot{
			DietType:  analysis.ParseDietType(diet),
			Allergens: allergens,
			Version:   version,
		},
	}, nil
}

// commandContext returns cmd's context, or Background when it has none.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
