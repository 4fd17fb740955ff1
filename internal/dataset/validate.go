package dataset

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
)

// ValidationError reports an input-contract violation. Row is the 1-based
// data row in tabular sources, or -1 when the violation is not row-bound.
type ValidationError struct {
	Field  string
	Row    int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("invalid input: %s (row %d): %s", e.Field, e.Row, e.Reason)
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// ValidateRecords enforces the input contract for one analysis window:
// records outside the window are dropped, identifiers must be present and
// unique within the window, AOV must be non-negative, and every numeric
// feature must be a real number. The returned slice preserves input order.
func ValidateRecords(records []CustomerRecord, w Window) ([]CustomerRecord, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	kept := make([]CustomerRecord, 0, len(records))
	seen := make(map[string]int, len(records))
	dropped := 0

	for i, r := range records {
		row := i + 1

		if r.ID == "" {
			return nil, &ValidationError{Field: "user_id", Row: row, Reason: "identifier is empty"}
		}
		if r.AbandonedAt.IsZero() {
			return nil, &ValidationError{Field: "cart_abandoned_date", Row: row, Reason: "abandonment date is missing"}
		}
		if !w.Contains(r.AbandonedAt) {
			dropped++
			continue
		}
		if prev, dup := seen[r.ID]; dup {
			return nil, &ValidationError{Field: "user_id", Row: row,
				Reason: fmt.Sprintf("identifier %q already appears at row %d", r.ID, prev)}
		}
		seen[r.ID] = row

		if r.AOV < 0 {
			return nil, &ValidationError{Field: "avg_order_value", Row: row,
				Reason: fmt.Sprintf("negative value %v", r.AOV)}
		}
		for field, v := range map[string]float64{
			"avg_order_value":     r.AOV,
			"engagement_score":    r.Engagement,
			"profitability_score": r.Profitability,
		} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &ValidationError{Field: field, Row: row, Reason: "value is not a finite number"}
			}
		}

		kept = append(kept, r)
	}

	if dropped > 0 {
		log.Debug().
			Str("window", w.Key()).
			Int("dropped", dropped).
			Int("kept", len(kept)).
			Msg("Dropped records outside the analysis window")
	}

	return kept, nil
}
