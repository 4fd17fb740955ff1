package segment

import (
	"cartseg/internal/dataset"
)

// MECEReport is the recorded outcome of a partition check: mutually
// exclusive (no customer in two segments) and collectively exhaustive
// (every customer in exactly one).
type MECEReport struct {
	Exhaustive    bool `json:"exhaustive"`
	Exclusive     bool `json:"exclusive"`
	UniverseSize  int  `json:"universe_size"`
	AssignedCount int  `json:"assigned_count"`
	SegmentCount  int  `json:"segment_count"`
	SmallestSize  int  `json:"smallest_size"`
	LargestSize   int  `json:"largest_size"`
}

// Valid reports whether both partition properties hold.
func (r MECEReport) Valid() bool {
	return r.Exhaustive && r.Exclusive
}

// CheckMECE verifies the partition properties of a segment set against its
// universe. It never mutates either side and is cheap enough to run after
// every optimizer step.
func CheckMECE(u *Universe, segments []Segment) MECEReport {
	report := MECEReport{
		Exclusive:    true,
		UniverseSize: u.Size(),
		SegmentCount: len(segments),
	}

	seen := make(map[string]bool, u.Size())
	foreign := false
	for i, s := range segments {
		if i == 0 || s.Size < report.SmallestSize {
			report.SmallestSize = s.Size
		}
		if s.Size > report.LargestSize {
			report.LargestSize = s.Size
		}
		for _, id := range s.Members {
			if seen[id] {
				report.Exclusive = false
				continue
			}
			seen[id] = true
			if _, known := u.index[id]; !known {
				foreign = true
			}
		}
	}

	report.AssignedCount = len(seen)
	report.Exhaustive = !foreign && report.AssignedCount == report.UniverseSize
	return report
}

// Result is the complete output of one segmentation run. It carries no
// timestamps and no random identifiers: identical input and configuration
// must marshal to byte-identical JSON.
type Result struct {
	Window       dataset.Window    `json:"window"`
	UniverseSize int               `json:"universe_size"`
	Config       ResolvedConfig    `json:"config"`
	Segments     []Segment         `json:"segments"`
	Assignments  map[string]string `json:"assignments"`
	MergeLog     []MergeEvent      `json:"merge_log"`
	MECE         MECEReport        `json:"mece"`
}

// Segment returns the final segment with the given ID, or nil.
func (r *Result) Segment(id string) *Segment {
	for i := range r.Segments {
		if r.Segments[i].ID == id {
			return &r.Segments[i]
		}
	}
	return nil
}
