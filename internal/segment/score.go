package segment

import (
	"slices"
	"strings"
)

// ScoreBreakdown holds the composite campaign-priority score and its five
// weighted sub-scores, each on the 0-100 scale.
type ScoreBreakdown struct {
	Composite     float64 `json:"composite"`
	Conversion    float64 `json:"conversion"`
	Lift          float64 `json:"lift"`
	Profitability float64 `json:"profitability"`
	Strategic     float64 `json:"strategic"`
	Size          float64 `json:"size"`
}

// LiftProvider supplies the raw lift-vs-control value for a segment. The
// second return reports whether a value could be computed; segments without
// one receive the neutral midpoint sub-score. Implementations must be pure:
// same segment in, same value out.
type LiftProvider interface {
	Lift(s *Segment) (float64, bool)
}

// HeuristicLift estimates lift without a control group, blending the
// segment's conversion potential with its normalized profitability.
type HeuristicLift struct{}

func (HeuristicLift) Lift(s *Segment) (float64, bool) {
	return clamp01(0.6*s.Aggregates.MeanConversion + 0.4*s.Aggregates.MeanProfitabilityNorm), true
}

// BaselineLift measures relative improvement of the segment's conversion
// potential over a supplied control conversion rate.
type BaselineLift struct {
	ControlRate float64
}

func (b BaselineLift) Lift(s *Segment) (float64, bool) {
	if b.ControlRate <= 0 {
		return 0, false
	}
	return (s.Aggregates.MeanConversion - b.ControlRate) / b.ControlRate, true
}

// Scorer computes composite scores for a segment set. One scorer instance is
// bound to one run (its resolved weights, strategic-fit table, saturation
// point, universe size and lift provider).
type Scorer struct {
	weights      Weights
	provider     LiftProvider
	strategic    map[string]float64
	saturation   float64
	universeSize int
}

// NewScorer builds the run's scorer from the universe's resolved
// configuration. A configured baseline conversion rate selects BaselineLift,
// otherwise the heuristic estimate is used.
func NewScorer(u *Universe) *Scorer {
	var provider LiftProvider = HeuristicLift{}
	if u.Resolved.Baseline != nil {
		provider = BaselineLift{ControlRate: *u.Resolved.Baseline}
	}
	return &Scorer{
		weights:      u.Resolved.Weights,
		provider:     provider,
		strategic:    u.Resolved.StrategicFit,
		saturation:   u.Resolved.SizeSaturation,
		universeSize: u.Size(),
	}
}

// SetLiftProvider swaps the lift source (e.g. a real control-group feed)
// without touching the weighting logic.
func (sc *Scorer) SetLiftProvider(p LiftProvider) {
	sc.provider = p
}

// Score attaches a ScoreBreakdown to every segment and returns the set
// ranked by descending composite, ties broken by larger size, then by
// ascending canonical ordinal. The input slice is not modified.
//
// The data-driven sub-scores (conversion, lift, profitability) are min-max
// normalized across the given set, so scores are only comparable within one
// scoring pass. Merging segments therefore requires a full re-score.
func (sc *Scorer) Score(segments []Segment) []Segment {
	out := slices.Clone(segments)
	n := len(out)
	if n == 0 {
		return out
	}

	conv := make([]float64, n)
	prof := make([]float64, n)
	for i := range out {
		conv[i] = out[i].Aggregates.MeanConversion
		prof[i] = out[i].Aggregates.MeanProfitability
	}
	convScores := minMaxScale(conv)
	profScores := minMaxScale(prof)
	liftScores := sc.liftScores(out)

	for i := range out {
		b := ScoreBreakdown{
			Conversion:    round4(convScores[i]),
			Lift:          round4(liftScores[i]),
			Profitability: round4(profScores[i]),
			Strategic:     round4(sc.strategicScore(out[i].Label)),
			Size:          round4(sc.sizeScore(out[i].Size)),
		}
		b.Composite = round4(sc.weights.Conversion*b.Conversion +
			sc.weights.Lift*b.Lift +
			sc.weights.Profitability*b.Profitability +
			sc.weights.Strategic*b.Strategic +
			sc.weights.Size*b.Size)
		out[i].Scores = &b
	}

	rankSegments(out)
	return out
}

// liftScores normalizes provider values over the segments that have one;
// segments without a value get the neutral midpoint.
func (sc *Scorer) liftScores(segments []Segment) []float64 {
	n := len(segments)
	raw := make([]float64, n)
	ok := make([]bool, n)
	defined := make([]float64, 0, n)

	for i := range segments {
		v, has := sc.provider.Lift(&segments[i])
		raw[i], ok[i] = v, has
		if has {
			defined = append(defined, v)
		}
	}

	scaled := minMaxScale(defined)
	out := make([]float64, n)
	j := 0
	for i := range segments {
		if ok[i] {
			out[i] = scaled[j]
			j++
		} else {
			out[i] = 50
		}
	}
	return out
}

func (sc *Scorer) strategicScore(label string) float64 {
	if v, ok := sc.strategic[label]; ok {
		return v * 100
	}
	return 50
}

// sizeScore maps the segment's population share to 0-100 through a
// saturating curve: share*(1+s)/(share+s), scaled to 100. The curve reaches
// 100 only at share 1.0 and flattens past the saturation share s, so a
// single mega-segment cannot dominate the ranking on size alone.
func (sc *Scorer) sizeScore(size int) float64 {
	if sc.universeSize == 0 {
		return 50
	}
	share := float64(size) / float64(sc.universeSize)
	s := sc.saturation
	if s <= 0 {
		s = DefaultSizeSaturation
	}
	return 100 * share * (1 + s) / (share + s)
}

// rankSegments orders by descending composite score, then larger size, then
// ascending canonical ordinal, then ID. The chain is total, so the ranking
// is fully deterministic.
func rankSegments(segments []Segment) {
	slices.SortFunc(segments, func(a, b Segment) int {
		switch {
		case a.Scores.Composite > b.Scores.Composite:
			return -1
		case a.Scores.Composite < b.Scores.Composite:
			return 1
		}
		switch {
		case a.Size > b.Size:
			return -1
		case a.Size < b.Size:
			return 1
		}
		if d := a.Canonical.Ordinal() - b.Canonical.Ordinal(); d != 0 {
			return d
		}
		return strings.Compare(a.ID, b.ID)
	})
}
