package segment

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// MergeEvent is one entry of the optimizer's audit log. Kind is "merge" for
// a viability fold, "split" for an oversize split chunk.
type MergeEvent struct {
	Step       int    `json:"step"`
	Kind       string `json:"kind"`
	Source     string `json:"source"`
	Target     string `json:"target"`
	SourceSize int    `json:"source_size"`
	TargetSize int    `json:"target_size"`
	ResultID   string `json:"result_id"`
	ResultSize int    `json:"result_size"`
	Distance   int    `json:"tier_distance"`
	Reason     string `json:"reason"`
}

// OptimizeSegments folds undersized segments into their most similar
// neighbors until every segment meets the minimum viable size, re-scoring
// the final set. The fold is a worklist: each iteration takes the smallest
// undersized segment (ties by ascending canonical ordinal), merges it, and
// produces a new segment collection, so the MECE invariant is checked after
// every step rather than only at the end.
//
// An all-viable input is returned unchanged. A single remaining segment is a
// valid catch-all only while the whole population is below the threshold;
// otherwise an unreachable viable partition is an UnresolvableSegmentationError.
func OptimizeSegments(u *Universe, scored []Segment, sc *Scorer) ([]Segment, []MergeEvent, error) {
	minSize := u.Resolved.MinSegmentSize
	if minSize <= 0 {
		return nil, nil, &ConfigurationError{Reason: fmt.Sprintf("min segment size %d must be positive", minSize)}
	}
	if len(scored) == 0 {
		return nil, nil, &EmptyInputError{Window: u.Window.Key()}
	}

	if smallestUndersized(scored, minSize) == -1 {
		return scored, nil, nil
	}

	work := slices.Clone(scored)
	var events []MergeEvent

	for {
		srcIdx := smallestUndersized(work, minSize)
		if srcIdx == -1 {
			break
		}

		if len(work) == 1 {
			if u.Size() < minSize {
				// Catch-all: the whole window cannot reach the threshold.
				break
			}
			return nil, nil, unresolvable(work, minSize)
		}

		src := work[srcIdx]
		tgtIdx := pickMergeTarget(work, srcIdx)
		if tgtIdx == -1 {
			return nil, nil, unresolvable(work, minSize)
		}
		tgt := work[tgtIdx]

		dims, _ := tierDistance(src.Canonical, tgt.Canonical)
		merged := mergeSegments(u, tgt, src, tgt.Size >= minSize)

		events = append(events, MergeEvent{
			Step:       len(events) + 1,
			Kind:       "merge",
			Source:     src.ID,
			Target:     tgt.ID,
			SourceSize: src.Size,
			TargetSize: tgt.Size,
			ResultID:   merged.ID,
			ResultSize: merged.Size,
			Distance:   dims,
			Reason:     fmt.Sprintf("size %d below minimum %d", src.Size, minSize),
		})

		next := make([]Segment, 0, len(work)-1)
		for i := range work {
			if i == srcIdx || i == tgtIdx {
				continue
			}
			next = append(next, work[i])
		}
		work = append(next, merged)

		if report := CheckMECE(u, work); !report.Valid() {
			return nil, nil, fmt.Errorf("partition invariant broken after merge %d (%s into %s)",
				len(events), src.ID, tgt.ID)
		}

		// 12 candidates bound the fold at 11 merges; more means a logic bug.
		if len(events) >= KeyCount {
			return nil, nil, unresolvable(work, minSize)
		}
	}

	// Merging changed the set, which invalidates every score: the data-driven
	// sub-scores normalize across the set. Recompute, never average.
	final := sc.Score(work)

	for _, s := range final {
		if s.Size < minSize && !(len(final) == 1 && u.Size() < minSize) {
			return nil, nil, unresolvable(final, minSize)
		}
	}

	log.Debug().
		Str("window", u.Window.Key()).
		Int("merges", len(events)).
		Int("final", len(final)).
		Msg("Optimization complete")

	return final, events, nil
}

// smallestUndersized returns the index of the smallest segment below the
// threshold, ties broken by ascending canonical ordinal, or -1 if every
// segment is viable.
func smallestUndersized(segments []Segment, minSize int) int {
	best := -1
	for i := range segments {
		if segments[i].Size >= minSize {
			continue
		}
		if best == -1 ||
			segments[i].Size < segments[best].Size ||
			(segments[i].Size == segments[best].Size &&
				segments[i].Canonical.Ordinal() < segments[best].Canonical.Ordinal()) {
			best = i
		}
	}
	return best
}

// pickMergeTarget selects the most similar segment: fewest differing tier
// dimensions, then smallest AOV tier distance (adjacent AOV tiers beat a
// High/Low jump, so Mid folds toward High before Low), then ascending
// canonical ordinal. The chain is total, so target choice is deterministic.
func pickMergeTarget(segments []Segment, srcIdx int) int {
	src := segments[srcIdx]
	best := -1
	var bestDims, bestStep, bestOrd int

	for i := range segments {
		if i == srcIdx {
			continue
		}
		dims, step := tierDistance(src.Canonical, segments[i].Canonical)
		ord := segments[i].Canonical.Ordinal()

		better := best == -1 ||
			dims < bestDims ||
			(dims == bestDims && step < bestStep) ||
			(dims == bestDims && step == bestStep && ord < bestOrd)
		if better {
			best, bestDims, bestStep, bestOrd = i, dims, step, ord
		}
	}
	return best
}

// tierDistance counts differing tier dimensions between two combination keys
// and the ordinal distance on the three-level AOV axis.
func tierDistance(a, b Key) (dims, aovStep int) {
	aovStep = int(a.AOV) - int(b.AOV)
	if aovStep < 0 {
		aovStep = -aovStep
	}
	if aovStep > 0 {
		dims++
	}
	if a.Engagement != b.Engagement {
		dims++
	}
	if a.Profitability != b.Profitability {
		dims++
	}
	return dims, aovStep
}

// mergeSegments unions the member sets and recomputes aggregates from the
// merged membership. The target keeps its identity if it was viable;
// otherwise the lowest-ordinal constituent becomes canonical.
func mergeSegments(u *Universe, target, source Segment, targetViable bool) Segment {
	members := make([]string, 0, target.Size+source.Size)
	members = append(members, target.Members...)
	members = append(members, source.Members...)
	slices.Sort(members)

	canonical := target.Canonical
	if !targetViable && source.Canonical.Ordinal() < canonical.Ordinal() {
		canonical = source.Canonical
	}

	constituents := make([]Key, 0, len(target.Constituents)+len(source.Constituents))
	constituents = append(constituents, target.Constituents...)
	constituents = append(constituents, source.Constituents...)
	slices.SortFunc(constituents, func(a, b Key) int { return a.Ordinal() - b.Ordinal() })

	return Segment{
		ID:           canonical.Label(),
		Canonical:    canonical,
		Label:        canonical.Label(),
		Constituents: constituents,
		Rule:         combinedRule(constituents, u.Resolved.CutPoints),
		Members:      members,
		Size:         len(members),
		Aggregates:   u.Aggregate(members),
	}
}

func combinedRule(constituents []Key, cp CutPoints) string {
	if len(constituents) == 1 {
		return constituents[0].Rule(cp)
	}
	parts := make([]string, len(constituents))
	for i, k := range constituents {
		parts[i] = "(" + k.Rule(cp) + ")"
	}
	return strings.Join(parts, " OR ")
}

func unresolvable(segments []Segment, minSize int) *UnresolvableSegmentationError {
	var remaining []SegmentShortfall
	for _, s := range segments {
		if s.Size < minSize {
			remaining = append(remaining, SegmentShortfall{
				ID:        s.ID,
				Size:      s.Size,
				Shortfall: minSize - s.Size,
			})
		}
	}
	slices.SortFunc(remaining, func(a, b SegmentShortfall) int { return strings.Compare(a.ID, b.ID) })
	return &UnresolvableSegmentationError{MinSize: minSize, Remaining: remaining}
}

// SplitOversized breaks final segments above the configured maximum size
// into contiguous chunks, ordered by sessions descending then ID, sized so
// every chunk still meets the minimum. Returns the re-scored set. A no-op
// when the config leaves splitting off or nothing exceeds the maximum.
func SplitOversized(u *Universe, final []Segment, sc *Scorer) ([]Segment, []MergeEvent, error) {
	if !u.Resolved.SplitOversize {
		return final, nil, nil
	}
	maxSize := u.Resolved.MaxSegmentSize
	minSize := u.Resolved.MinSegmentSize

	out := make([]Segment, 0, len(final))
	var events []MergeEvent
	split := false

	for _, s := range final {
		if s.Size <= maxSize {
			out = append(out, s)
			continue
		}

		chunks := (s.Size + maxSize - 1) / maxSize
		for chunks >= 2 && s.Size/chunks < minSize {
			chunks--
		}
		if chunks < 2 {
			out = append(out, s)
			continue
		}

		ordered := make([]string, len(s.Members))
		copy(ordered, s.Members)
		slices.SortFunc(ordered, func(a, b string) int {
			sa := u.Records[u.index[a]].Sessions
			sb := u.Records[u.index[b]].Sessions
			if sa != sb {
				return sb - sa
			}
			return strings.Compare(a, b)
		})

		base := s.Size / chunks
		rem := s.Size % chunks
		offset := 0
		for q := 0; q < chunks; q++ {
			size := base
			if q < rem {
				size++
			}
			members := make([]string, size)
			copy(members, ordered[offset:offset+size])
			offset += size
			slices.Sort(members)

			chunk := s
			chunk.ID = s.ID + "/Q" + strconv.Itoa(q+1)
			chunk.Members = members
			chunk.Size = size
			chunk.Aggregates = u.Aggregate(members)
			chunk.Scores = nil
			out = append(out, chunk)

			events = append(events, MergeEvent{
				Step:       len(events) + 1,
				Kind:       "split",
				Source:     s.ID,
				Target:     chunk.ID,
				SourceSize: s.Size,
				ResultID:   chunk.ID,
				ResultSize: size,
				Reason:     fmt.Sprintf("size %d above maximum %d", s.Size, maxSize),
			})
		}
		split = true
	}

	if !split {
		return final, nil, nil
	}

	if report := CheckMECE(u, out); !report.Valid() {
		return nil, nil, fmt.Errorf("partition invariant broken by oversize split")
	}
	return sc.Score(out), events, nil
}
