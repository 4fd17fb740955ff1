package dataset

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for window boundary dates.
const DateLayout = "2006-01-02"

// WindowDays is the fixed span of an analysis window in calendar days.
const WindowDays = 7

// Window is one inclusive 7-day analysis window [Start, End]. Boundaries are
// dates (midnight UTC); every artifact of a run is keyed by the window.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds and validates a window from explicit boundaries.
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: truncateDay(start), End: truncateDay(end)}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// WindowEnding returns the 7-day window that closes on the given date.
func WindowEnding(end time.Time) Window {
	e := truncateDay(end)
	return Window{Start: e.AddDate(0, 0, -(WindowDays - 1)), End: e}
}

// WindowFromRecords derives the default window from the data itself: the
// window closing on the latest abandonment date present in the input.
func WindowFromRecords(records []CustomerRecord) (Window, error) {
	if len(records) == 0 {
		return Window{}, &ValidationError{Field: "cart_abandoned_date", Row: -1,
			Reason: "cannot derive a window from an empty dataset"}
	}
	latest := records[0].AbandonedAt
	for _, r := range records[1:] {
		if r.AbandonedAt.After(latest) {
			latest = r.AbandonedAt
		}
	}
	return WindowEnding(latest), nil
}

// Validate enforces the exact-7-day contract.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return &ValidationError{Field: "window", Row: -1, Reason: "window boundaries are required"}
	}
	if w.End.Before(w.Start) {
		return &ValidationError{Field: "window", Row: -1,
			Reason: fmt.Sprintf("window end %s precedes start %s", w.End.Format(DateLayout), w.Start.Format(DateLayout))}
	}
	if days := w.Days(); days != WindowDays {
		return &ValidationError{Field: "window", Row: -1,
			Reason: fmt.Sprintf("window spans %d days, must span exactly %d", days, WindowDays)}
	}
	return nil
}

// Days returns the inclusive day count of the window.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// Contains reports whether the timestamp's date falls inside the window.
func (w Window) Contains(t time.Time) bool {
	d := truncateDay(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

// DaysBeforeEnd returns how many whole days before the window end the
// timestamp's date lies (0 for the end date itself).
func (w Window) DaysBeforeEnd(t time.Time) int {
	return int(w.End.Sub(truncateDay(t)).Hours() / 24)
}

// Key renders the canonical artifact key, e.g. "2025-09-24_2025-09-30".
func (w Window) Key() string {
	return w.Start.Format(DateLayout) + "_" + w.End.Format(DateLayout)
}

// ParseWindowKey is the inverse of Key and validates the result.
func ParseWindowKey(key string) (Window, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 2 {
		return Window{}, &ValidationError{Field: "window", Row: -1,
			Reason: fmt.Sprintf("window key %q is not of the form start_end", key)}
	}
	start, err := time.ParseInLocation(DateLayout, parts[0], time.UTC)
	if err != nil {
		return Window{}, &ValidationError{Field: "window", Row: -1,
			Reason: fmt.Sprintf("bad window start %q: %v", parts[0], err)}
	}
	end, err := time.ParseInLocation(DateLayout, parts[1], time.UTC)
	if err != nil {
		return Window{}, &ValidationError{Field: "window", Row: -1,
			Reason: fmt.Sprintf("bad window end %q: %v", parts[1], err)}
	}
	return NewWindow(start, end)
}

type windowJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MarshalJSON encodes boundaries as plain dates so artifacts stay stable
// across time zones.
func (w Window) MarshalJSON() ([]byte, error) {
	return json.Marshal(windowJSON{Start: w.Start.Format(DateLayout), End: w.End.Format(DateLayout)})
}

func (w *Window) UnmarshalJSON(data []byte) error {
	var raw windowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := time.ParseInLocation(DateLayout, raw.Start, time.UTC)
	if err != nil {
		return err
	}
	end, err := time.ParseInLocation(DateLayout, raw.End, time.UTC)
	if err != nil {
		return err
	}
	w.Start, w.End = start, end
	return nil
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
