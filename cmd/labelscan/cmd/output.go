package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/MeKo-Tech/labelscan/internal/analysis"
	"github.com/MeKo-Tech/labelscan/internal/scan"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

func validateFormat(format string) error {
	switch format {
	case outputFormatJSON, outputFormatText:
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (must be json or text)", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// writeAnalysisText prints a human readable summary of an analysis result.
func writeAnalysisText(w io.Writer, res analysis.Result) {
	fmt.Fprintf(w, "Category: %s\n", res.Category)
	fmt.Fprintf(w, "Risk: %s\n", res.RiskLevel)
	fmt.Fprintf(w, "Quality: %d (hangul %d, latin %d, digit %d)\n",
		res.Quality.Score, res.Quality.Hangul, res.Quality.Latin, res.Quality.Digit)

	if len(res.Ingredients) > 0 {
		fmt.Fprintf(w, "Ingredients: %s\n", strings.Join(res.Ingredients, ", "))
	}
	if len(res.Matches) > 0 {
		fmt.Fprintln(w, "Matches:")
		for _, m := range res.Matches {
			fmt.Fprintf(w, "  - %s %s (hit: %s, %s)\n", m.Kind, m.Term, m.Hit, m.Reason)
		}
	}
	if len(res.EvidenceLines) > 0 {
		fmt.Fprintln(w, "Evidence:")
		for _, line := range res.EvidenceLines {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	if res.Message != "" {
		fmt.Fprintf(w, "Message: %s\n", res.Message)
	}
}

// writeRecordText prints a scan record: recognition details, then analysis.
func writeRecordText(w io.Writer, rec *scan.Record) {
	fmt.Fprintf(w, "Scan: %s\n", rec.ID)
	fmt.Fprintf(w, "Image: %s (%d bytes, sha256 %s)\n", rec.Image.Name, rec.Image.Size, rec.Image.Hash)
	fmt.Fprintf(w, "Region: %s x=%d y=%d w=%d h=%d rotation=%d\n",
		rec.ROI.Method, rec.ROI.X, rec.ROI.Y, rec.ROI.Width, rec.ROI.Height, rec.ROI.Rotation)
	fmt.Fprintf(w, "Words: %d\n", len(rec.Words))
	fmt.Fprintln(w, "Text:")
	for _, line := range strings.Split(rec.OCRText, "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
	writeAnalysisText(w, rec.Analysis)
}
