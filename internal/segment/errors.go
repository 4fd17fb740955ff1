package segment

import (
	"fmt"
	"strings"
)

// ConfigurationError reports invalid run configuration (cut points, weights,
// thresholds). It is fatal and raised before any segment is produced.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// EmptyInputError reports that the analysis window contains no customers.
type EmptyInputError struct {
	Window string
}

func (e *EmptyInputError) Error() string {
	if e.Window == "" {
		return "no customers to segment"
	}
	return fmt.Sprintf("no customers to segment in window %s", e.Window)
}

// SegmentShortfall describes one segment that remained below the minimum
// viable size when the optimizer gave up.
type SegmentShortfall struct {
	ID        string `json:"id"`
	Size      int    `json:"size"`
	Shortfall int    `json:"shortfall"`
}

// UnresolvableSegmentationError reports that the optimizer could not reach a
// viable partition even though the total population exceeds the minimum size.
type UnresolvableSegmentationError struct {
	MinSize   int
	Remaining []SegmentShortfall
}

func (e *UnresolvableSegmentationError) Error() string {
	parts := make([]string, 0, len(e.Remaining))
	for _, s := range e.Remaining {
		parts = append(parts, fmt.Sprintf("%s (size %d, short %d)", s.ID, s.Size, s.Shortfall))
	}
	return fmt.Sprintf("cannot reach viable segmentation with min size %d; undersized: %s",
		e.MinSize, strings.Join(parts, ", "))
}
