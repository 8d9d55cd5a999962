package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/MeKo-Tech/labelscan/internal/analysis"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze already recognized label text",
		Long: `Classify label text, extract its ingredients and match them against an
allergen and diet profile. No OCR is performed.

The text is taken from --text, from --file, or from standard input.

Examples:
  labelscan analyze --text "원재료명: 밀가루, 우유" --allergen milk
  labelscan analyze --file ocr.txt --diet VEGAN --format text
  cat ocr.txt | labelscan analyze -a peanut -a 새우`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd)
		},
	}

	cmd.Flags().String("text", "", "label text to analyze")
	cmd.Flags().String("file", "", "read label text from this file")
	cmd.Flags().StringSliceP("allergen", "a", nil, "allergen to check for (repeatable or comma separated)")
	cmd.Flags().String("diet", "", "diet rule to apply: NONE, VEGAN, VEGETARIAN, HALAL")
	cmd.Flags().StringP("format", "f", outputFormatJSON, "output format (json, text)")
	cmd.MarkFlagsMutuallyExclusive("text", "file")
	return cmd
}

func (a *app) runAnalyze(cmd *cobra.Command) error {
	format, _ := cmd.Flags().GetString("format")
	if err := validateFormat(format); err != nil {
		return err
	}

	text, err := analyzeText(cmd)
	if err != nil {
		return err
	}

	allergens, _ := cmd.Flags().GetStringSlice("allergen")
	diet, _ := cmd.Flags().GetString("diet")
	res := analysis.Analyze(text, analysis.Profile{
		DietType:  analysis.ParseDietType(diet),
		Allergens: allergens,
	})

	out := cmd.OutOrStdout()
	if format == outputFormatText {
		writeAnalysisText(out, res)
		return nil
	}
	return writeJSON(out, res)
}

// analyzeText picks the text source: --text, then --file, then stdin.
func analyzeText(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("text") {
		text, _ := cmd.Flags().GetString("text")
		return text, nil
	}
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read text file: %w", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read standard input: %w", err)
	}
	if len(data) == 0 {
		return "", errors.New("no label text given (use --text, --file or standard input)")
	}
	return string(data), nil
}
