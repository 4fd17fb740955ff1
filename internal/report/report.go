package report

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cartseg/internal/dataset"
	"cartseg/internal/segment"

	"github.com/rs/zerolog/log"
)

// WriteAll writes the full artifact set for a segmentation result under
// <root>/output_<start>_<end>/ and returns that directory. Artifacts are
// regenerated deterministically: the same result produces the same bytes.
func WriteAll(root string, res *segment.Result) (string, error) {
	dir := filepath.Join(root, fmt.Sprintf("output_%s", res.Window.Key()))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	files := []struct {
		name  string
		write func(w io.Writer, res *segment.Result) error
	}{
		{"segments_summary.csv", writeSummaryCSV},
		{"user_segment_map.csv", writeUserMapCSV},
		{"mece_report.json", writeMECEJSON},
		{"segments_report.md", writeMarkdown},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := writeAtomic(path, res, f.write); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}

	log.Info().Str("dir", dir).Int("segments", len(res.Segments)).Msg("Report artifacts written")
	return dir, nil
}

// RankID formats the 1-based final ranking position as a stable segment
// reference for report consumers (S001, S002, ...).
func RankID(position int) string {
	return fmt.Sprintf("S%03d", position)
}

func writeAtomic(path string, res *segment.Result, write func(io.Writer, *segment.Result) error) error {
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	writer := bufio.NewWriter(file)
	if err := write(writer, res); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}

func writeSummaryCSV(w io.Writer, res *segment.Result) error {
	cw := csv.NewWriter(w)
	header := []string{
		"segment_id", "label", "size", "share",
		"composite", "conversion_score", "lift_score", "profitability_score", "strategic_score", "size_score",
		"mean_aov", "mean_engagement", "mean_profitability",
		"rule", "merged_from",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, s := range res.Segments {
		share := 0.0
		if res.UniverseSize > 0 {
			share = float64(s.Size) / float64(res.UniverseSize)
		}
		row := []string{
			RankID(i + 1),
			s.Label,
			strconv.Itoa(s.Size),
			formatScore(share),
			formatScore(s.Scores.Composite),
			formatScore(s.Scores.Conversion),
			formatScore(s.Scores.Lift),
			formatScore(s.Scores.Profitability),
			formatScore(s.Scores.Strategic),
			formatScore(s.Scores.Size),
			formatScore(s.Aggregates.MeanAOV),
			formatScore(s.Aggregates.MeanEngagement),
			formatScore(s.Aggregates.MeanProfitability),
			s.Rule,
			mergedFrom(s),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeUserMapCSV(w io.Writer, res *segment.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"customer_id", "segment_id", "label"}); err != nil {
		return err
	}

	// Rows grouped by final rank; members are already sorted within a segment.
	for i, s := range res.Segments {
		id := RankID(i + 1)
		for _, member := range s.Members {
			if err := cw.Write([]string{member, id, s.Label}); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

type meceDocument struct {
	Window       dataset.Window         `json:"window"`
	UniverseSize int                    `json:"universe_size"`
	MECE         segment.MECEReport     `json:"mece"`
	Config       segment.ResolvedConfig `json:"config"`
	SegmentCount int                    `json:"segment_count"`
	MergeEvents  int                    `json:"merge_events"`
}

func writeMECEJSON(w io.Writer, res *segment.Result) error {
	doc := meceDocument{
		Window:       res.Window,
		UniverseSize: res.UniverseSize,
		MECE:         res.MECE,
		Config:       res.Config,
		SegmentCount: len(res.Segments),
		MergeEvents:  len(res.MergeLog),
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

func writeMarkdown(w io.Writer, res *segment.Result) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Segmentation Report: %s to %s\n\n",
		res.Window.Start.Format(dataset.DateLayout),
		res.Window.End.Format(dataset.DateLayout)))

	meceState := "VALID"
	if !res.MECE.Valid() {
		meceState = "INVALID"
	}
	sb.WriteString(fmt.Sprintf("- Universe: %d customers\n", res.UniverseSize))
	sb.WriteString(fmt.Sprintf("- Final segments: %d\n", len(res.Segments)))
	sb.WriteString(fmt.Sprintf("- MECE: %s (exhaustive=%t, exclusive=%t)\n", meceState, res.MECE.Exhaustive, res.MECE.Exclusive))
	sb.WriteString(fmt.Sprintf("- Merge events: %d\n", len(res.MergeLog)))
	sb.WriteString(fmt.Sprintf("- Minimum viable size: %d\n\n", res.Config.MinSegmentSize))

	sb.WriteString("## Ranked Segments\n\n")
	sb.WriteString("| Rank | Label | Size | Composite | Conversion | Lift | Profitability | Strategic | Size Score |\n")
	sb.WriteString("|------|-------|------|-----------|------------|------|---------------|-----------|------------|\n")
	for i, s := range res.Segments {
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %s | %s | %s | %s | %s |\n",
			RankID(i+1), s.Label, s.Size,
			formatScore(s.Scores.Composite),
			formatScore(s.Scores.Conversion),
			formatScore(s.Scores.Lift),
			formatScore(s.Scores.Profitability),
			formatScore(s.Scores.Strategic),
			formatScore(s.Scores.Size)))
	}
	sb.WriteByte('\n')

	sb.WriteString("## Segment Sizes\n\n")
	sb.WriteString(generateSizeChart(res))
	sb.WriteByte('\n')

	if len(res.MergeLog) > 0 {
		sb.WriteString("\n## Optimization Log\n\n")
		for _, e := range res.MergeLog {
			if e.Kind == "split" {
				sb.WriteString(fmt.Sprintf("%d. split `%s` (%d) into `%s` (%d): %s\n",
					e.Step, e.Source, e.SourceSize, e.ResultID, e.ResultSize, e.Reason))
				continue
			}
			sb.WriteString(fmt.Sprintf("%d. merged `%s` (%d) into `%s` (%d) as `%s` (%d): %s\n",
				e.Step, e.Source, e.SourceSize, e.Target, e.TargetSize, e.ResultID, e.ResultSize, e.Reason))
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// generateSizeChart creates a Mermaid xychart-beta of final segment sizes in
// rank order.
func generateSizeChart(res *segment.Result) string {
	if len(res.Segments) == 0 {
		return ""
	}

	var labels []string
	var values []string

	maxVal := 0
	for i, s := range res.Segments {
		labels = append(labels, fmt.Sprintf("\"%s\"", RankID(i+1)))
		values = append(values, fmt.Sprintf("%d", s.Size))
		if s.Size > maxVal {
			maxVal = s.Size
		}
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Segment Sizes\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Customers\" 0 --> %d\n", maxVal+int(math.Max(1, float64(maxVal)*0.2))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```\n")
	return sb.String()
}

func mergedFrom(s segment.Segment) string {
	if len(s.Constituents) < 2 {
		return ""
	}
	parts := make([]string, 0, len(s.Constituents))
	for _, k := range s.Constituents {
		parts = append(parts, k.Label())
	}
	return strings.Join(parts, "|")
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
