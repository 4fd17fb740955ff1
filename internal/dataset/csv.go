package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Header is the canonical column set for tabular customer data. Readers
// accept any column order; writers always emit this order so a written file
// reads back losslessly.
var Header = []string{
	"user_id",
	"cart_abandoned_date",
	"last_order_date",
	"avg_order_value",
	"sessions_last_30d",
	"num_cart_items",
	"engagement_score",
	"profitability_score",
	"class_label",
	"region",
}

var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// CSVSource loads customer records from a file at Path.
type CSVSource struct {
	Path string
}

func (s CSVSource) Load(ctx context.Context) ([]CustomerRecord, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open customer data: %w", err)
	}
	defer f.Close()

	records, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("read customer data %s: %w", s.Path, err)
	}

	log.Debug().Str("path", s.Path).Int("records", len(records)).Msg("Loaded customer records from CSV")
	return records, nil
}

// ReadRecords decodes customer records from CSV with a header row.
func ReadRecords(r io.Reader) ([]CustomerRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err != nil {
		return nil, &ValidationError{Field: "header", Row: -1, Reason: "missing header row"}
	}

	col := make(map[string]int, len(head))
	for i, name := range head {
		col[name] = i
	}
	for _, required := range Header[:8] {
		if _, ok := col[required]; !ok {
			return nil, &ValidationError{Field: required, Row: -1, Reason: "required column is missing"}
		}
	}

	field := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	var out []CustomerRecord
	rowNum := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ValidationError{Field: "row", Row: rowNum, Reason: err.Error()}
		}

		rec := CustomerRecord{
			ID:        field(row, "user_id"),
			Archetype: field(row, "class_label"),
			Region:    field(row, "region"),
		}

		if rec.AbandonedAt, err = parseDate(field(row, "cart_abandoned_date")); err != nil {
			return nil, &ValidationError{Field: "cart_abandoned_date", Row: rowNum, Reason: err.Error()}
		}
		if raw := field(row, "last_order_date"); raw != "" {
			t, err := parseDate(raw)
			if err != nil {
				return nil, &ValidationError{Field: "last_order_date", Row: rowNum, Reason: err.Error()}
			}
			rec.LastOrderAt = &t
		}
		if rec.AOV, err = parseFloat(field(row, "avg_order_value")); err != nil {
			return nil, &ValidationError{Field: "avg_order_value", Row: rowNum, Reason: err.Error()}
		}
		if rec.Sessions, err = parseInt(field(row, "sessions_last_30d")); err != nil {
			return nil, &ValidationError{Field: "sessions_last_30d", Row: rowNum, Reason: err.Error()}
		}
		if rec.CartItems, err = parseInt(field(row, "num_cart_items")); err != nil {
			return nil, &ValidationError{Field: "num_cart_items", Row: rowNum, Reason: err.Error()}
		}
		if rec.Engagement, err = parseFloat(field(row, "engagement_score")); err != nil {
			return nil, &ValidationError{Field: "engagement_score", Row: rowNum, Reason: err.Error()}
		}
		if rec.Profitability, err = parseFloat(field(row, "profitability_score")); err != nil {
			return nil, &ValidationError{Field: "profitability_score", Row: rowNum, Reason: err.Error()}
		}

		out = append(out, rec)
		rowNum++
	}

	return out, nil
}

// WriteRecords encodes customer records as CSV using the canonical header.
func WriteRecords(w io.Writer, records []CustomerRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}

	for _, r := range records {
		lastOrder := ""
		if r.LastOrderAt != nil {
			lastOrder = r.LastOrderAt.Format(DateLayout)
		}
		row := []string{
			r.ID,
			r.AbandonedAt.Format(DateLayout),
			lastOrder,
			formatFloat(r.AOV),
			strconv.Itoa(r.Sessions),
			strconv.Itoa(r.CartItems),
			formatFloat(r.Engagement),
			formatFloat(r.Profitability),
			r.Archetype,
			r.Region,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteRecordsFile writes records to path atomically (temp file + rename).
func WriteRecordsFile(path string, records []CustomerRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := WriteRecords(f, records); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}

func parseFloat(raw string) (float64, error) {
	if raw == "" {
		return 0, fmt.Errorf("empty numeric value")
	}
	return strconv.ParseFloat(raw, 64)
}

func parseInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
