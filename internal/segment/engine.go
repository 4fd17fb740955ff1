package segment

import (
	"slices"
	"strings"

	"cartseg/internal/dataset"

	"github.com/rs/zerolog/log"
)

// Aggregates are the per-segment feature means the scorer consumes. They are
// always recomputed from the current member set, never carried over a merge.
type Aggregates struct {
	MeanAOV               float64 `json:"mean_aov"`
	MeanEngagement        float64 `json:"mean_engagement"`
	MeanProfitability     float64 `json:"mean_profitability"`
	MeanProfitabilityNorm float64 `json:"mean_profitability_norm"`
	MeanConversion        float64 `json:"mean_conversion"`
	MeanRecency           float64 `json:"mean_recency"`
}

// Segment is one partition of the customer universe. Created once per run by
// the engine, folded together only by the optimizer, immutable afterwards.
type Segment struct {
	// ID is the canonical identifier: the label of the lowest-ordinal
	// constituent combination (plus a chunk suffix after an oversize split).
	ID           string          `json:"id"`
	Canonical    Key             `json:"canonical"`
	Label        string          `json:"label"`
	Constituents []Key           `json:"constituents"`
	Rule         string          `json:"rule"`
	Members      []string        `json:"members"`
	Size         int             `json:"size"`
	Aggregates   Aggregates      `json:"aggregates"`
	Scores       *ScoreBreakdown `json:"scores,omitempty"`
}

// Universe is the validated, immutable input of one run: the window, the
// records sorted by customer ID, the per-customer derived factors, and the
// fully resolved configuration. Sorting by ID makes every downstream
// computation independent of source ordering.
type Universe struct {
	Window   dataset.Window
	Records  []dataset.CustomerRecord
	Resolved ResolvedConfig

	index      map[string]int
	engage01   []float64
	profit01   []float64
	recency    []float64
	conversion []float64
}

// Resolve turns a RunConfig into the effective configuration for a window's
// records: explicit values win, unset cut points are derived from the window
// (AOV at the configured percentiles, engagement and profitability at the
// median), and every remaining field gets its documented default.
func (c RunConfig) Resolve(records []dataset.CustomerRecord) (ResolvedConfig, error) {
	if err := c.validate(); err != nil {
		return ResolvedConfig{}, err
	}

	r := ResolvedConfig{
		Weights:        DefaultWeights(),
		MinSegmentSize: DefaultMinSegmentSize,
		SizeSaturation: DefaultSizeSaturation,
		MaxSegmentSize: DefaultMaxSegmentSize,
		AOVPercentiles: DefaultAOVPercentiles,
		SplitOversize:  c.SplitOversize,
		Baseline:       c.BaselineConversion,
	}
	if c.Weights != nil {
		r.Weights = *c.Weights
	}
	if c.MinSegmentSize > 0 {
		r.MinSegmentSize = c.MinSegmentSize
	}
	if c.SizeSaturation > 0 {
		r.SizeSaturation = c.SizeSaturation
	}
	if c.MaxSegmentSize > 0 {
		r.MaxSegmentSize = c.MaxSegmentSize
	}
	if c.AOVPercentiles != nil {
		r.AOVPercentiles = *c.AOVPercentiles
	}

	r.StrategicFit = DefaultStrategicFit()
	for label, v := range c.StrategicFit {
		r.StrategicFit[label] = v
	}

	// Cut points: explicit configuration wins; otherwise derive them from
	// the current window so tiers are window-relative. The derivation is
	// echoed in the resolved config to keep runs reproducible.
	switch {
	case c.AOVLow != nil:
		r.CutPoints.AOVLow = *c.AOVLow
		r.CutPoints.AOVHigh = *c.AOVHigh
	default:
		aov := make([]float64, len(records))
		for i, rec := range records {
			aov[i] = rec.AOV
		}
		r.CutPoints.AOVLow = Percentile(aov, r.AOVPercentiles[0])
		r.CutPoints.AOVHigh = Percentile(aov, r.AOVPercentiles[1])
		r.DerivedCutPoints = true
	}

	if c.EngagementCutoff != nil {
		r.CutPoints.Engagement = *c.EngagementCutoff
	} else {
		eng := make([]float64, len(records))
		for i, rec := range records {
			eng[i] = rec.Engagement
		}
		r.CutPoints.Engagement = Percentile(eng, 50)
		r.DerivedCutPoints = true
	}

	if c.ProfitabilityCutoff != nil {
		r.CutPoints.Profitability = *c.ProfitabilityCutoff
	} else {
		prof := make([]float64, len(records))
		for i, rec := range records {
			prof[i] = rec.Profitability
		}
		r.CutPoints.Profitability = Percentile(prof, 50)
		r.DerivedCutPoints = true
	}

	return r, nil
}

// BuildUniverse computes the per-customer derived factors the scorer needs:
// window-normalized engagement and profitability, the recency factor
// (7-day linear decay from the window end), and the raw conversion potential
// (normalized engagement x recency).
func BuildUniverse(records []dataset.CustomerRecord, w dataset.Window, resolved ResolvedConfig) *Universe {
	sorted := make([]dataset.CustomerRecord, len(records))
	copy(sorted, records)
	slices.SortFunc(sorted, func(a, b dataset.CustomerRecord) int {
		return strings.Compare(a.ID, b.ID)
	})

	u := &Universe{
		Window:   w,
		Records:  sorted,
		Resolved: resolved,
		index:    make(map[string]int, len(sorted)),
	}

	eng := make([]float64, len(sorted))
	prof := make([]float64, len(sorted))
	for i, rec := range sorted {
		u.index[rec.ID] = i
		eng[i] = rec.Engagement
		prof[i] = rec.Profitability
	}
	u.engage01 = normalize01(eng)
	u.profit01 = normalize01(prof)

	u.recency = make([]float64, len(sorted))
	u.conversion = make([]float64, len(sorted))
	for i, rec := range sorted {
		days := w.DaysBeforeEnd(rec.AbandonedAt)
		u.recency[i] = clamp01(float64(dataset.WindowDays-days) / dataset.WindowDays)
		u.conversion[i] = u.engage01[i] * u.recency[i]
	}

	return u
}

// Size is the customer count of the window.
func (u *Universe) Size() int {
	return len(u.Records)
}

// Aggregate computes the feature means over the given member IDs. Unknown
// IDs are impossible by construction; the caller always passes IDs that came
// out of this universe.
func (u *Universe) Aggregate(members []string) Aggregates {
	if len(members) == 0 {
		return Aggregates{}
	}

	var agg Aggregates
	for _, id := range members {
		i := u.index[id]
		rec := u.Records[i]
		agg.MeanAOV += rec.AOV
		agg.MeanEngagement += rec.Engagement
		agg.MeanProfitability += rec.Profitability
		agg.MeanProfitabilityNorm += u.profit01[i]
		agg.MeanConversion += u.conversion[i]
		agg.MeanRecency += u.recency[i]
	}

	n := float64(len(members))
	agg.MeanAOV = round4(agg.MeanAOV / n)
	agg.MeanEngagement = round4(agg.MeanEngagement / n)
	agg.MeanProfitability = round4(agg.MeanProfitability / n)
	agg.MeanProfitabilityNorm = round4(agg.MeanProfitabilityNorm / n)
	agg.MeanConversion = round4(agg.MeanConversion / n)
	agg.MeanRecency = round4(agg.MeanRecency / n)
	return agg
}

// SegmentCustomers assigns every customer to exactly one tier combination and
// returns the non-empty candidate segments in ascending canonical order.
// Combinations with no members are absent, so the candidate count is at most
// KeyCount but may be lower.
func SegmentCustomers(u *Universe) ([]Segment, error) {
	if u.Size() == 0 {
		return nil, &EmptyInputError{Window: u.Window.Key()}
	}

	cp := u.Resolved.CutPoints
	groups := make(map[Key][]string, KeyCount)
	for _, rec := range u.Records {
		k := cp.Assign(rec.AOV, rec.Engagement, rec.Profitability)
		groups[k] = append(groups[k], rec.ID)
	}

	segments := make([]Segment, 0, len(groups))
	for _, k := range AllKeys() {
		members, ok := groups[k]
		if !ok {
			continue
		}
		slices.Sort(members)
		segments = append(segments, Segment{
			ID:           k.Label(),
			Canonical:    k,
			Label:        k.Label(),
			Constituents: []Key{k},
			Rule:         k.Rule(cp),
			Members:      members,
			Size:         len(members),
			Aggregates:   u.Aggregate(members),
		})
	}

	log.Debug().
		Str("window", u.Window.Key()).
		Int("customers", u.Size()).
		Int("candidates", len(segments)).
		Msg("Segmentation complete")

	return segments, nil
}
