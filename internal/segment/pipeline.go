package segment

import (
	"fmt"

	"cartseg/internal/dataset"

	"github.com/rs/zerolog/log"
)

// Run executes the full pipeline for one window: resolve configuration,
// build the universe, segment, score, optimize, and assemble the validated
// result. Records are expected to be validator output (in-window, unique
// IDs, finite non-negative features).
//
// Run is pure apart from logging: no ambient state, no I/O, deterministic
// output for identical records and configuration.
func Run(records []dataset.CustomerRecord, w dataset.Window, cfg RunConfig) (*Result, error) {
	if len(records) == 0 {
		return nil, &EmptyInputError{Window: w.Key()}
	}

	resolved, err := cfg.Resolve(records)
	if err != nil {
		return nil, err
	}

	u := BuildUniverse(records, w, resolved)

	candidates, err := SegmentCustomers(u)
	if err != nil {
		return nil, err
	}

	scorer := NewScorer(u)
	scored := scorer.Score(candidates)

	final, events, err := OptimizeSegments(u, scored, scorer)
	if err != nil {
		return nil, err
	}

	if resolved.SplitOversize {
		var splitEvents []MergeEvent
		final, splitEvents, err = SplitOversized(u, final, scorer)
		if err != nil {
			return nil, err
		}
		// Continue the audit-log step numbering across both passes.
		for i := range splitEvents {
			splitEvents[i].Step = len(events) + i + 1
		}
		events = append(events, splitEvents...)
	}

	mece := CheckMECE(u, final)
	if !mece.Valid() {
		// Terminal guard: a constraint-violating result must never escape.
		return nil, fmt.Errorf("final segment set is not a valid partition: %+v", mece)
	}

	assignments := make(map[string]string, u.Size())
	for _, s := range final {
		for _, id := range s.Members {
			assignments[id] = s.ID
		}
	}

	if events == nil {
		events = []MergeEvent{}
	}

	log.Info().
		Str("window", w.Key()).
		Int("customers", u.Size()).
		Int("candidates", len(candidates)).
		Int("final", len(final)).
		Int("merges", len(events)).
		Msg("Segmentation run complete")

	return &Result{
		Window:       w,
		UniverseSize: u.Size(),
		Config:       resolved,
		Segments:     final,
		Assignments:  assignments,
		MergeLog:     events,
		MECE:         mece,
	}, nil
}
