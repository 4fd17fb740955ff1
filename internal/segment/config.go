package segment

import (
	"fmt"
	"math"
)

// Default configuration values. All of them are overridable; none is buried
// in stage logic.
const (
	DefaultMinSegmentSize = 500
	DefaultMaxSegmentSize = 20000
	DefaultSizeSaturation = 0.25

	// weightTolerance is the floating-point slack allowed on the weight sum.
	weightTolerance = 1e-9
)

// DefaultAOVPercentiles are the window percentiles used to derive AOV cut
// points when the configuration leaves them unset.
var DefaultAOVPercentiles = [2]float64{33, 66}

// Weights are the five sub-score weights of the composite. They must sum to
// 1.0 and none may be negative.
type Weights struct {
	Conversion    float64 `json:"conversion"`
	Lift          float64 `json:"lift"`
	Profitability float64 `json:"profitability"`
	Strategic     float64 `json:"strategic"`
	Size          float64 `json:"size"`
}

// DefaultWeights returns the standard campaign-priority weighting.
func DefaultWeights() Weights {
	return Weights{
		Conversion:    0.30,
		Lift:          0.25,
		Profitability: 0.20,
		Strategic:     0.15,
		Size:          0.10,
	}
}

// Validate enforces the weight contract: non-negative, summing to 1.0 within
// floating-point tolerance.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"conversion":    w.Conversion,
		"lift":          w.Lift,
		"profitability": w.Profitability,
		"strategic":     w.Strategic,
		"size":          w.Size,
	} {
		if v < 0 {
			return &ConfigurationError{Reason: fmt.Sprintf("weight %s is negative (%v)", name, v)}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ConfigurationError{Reason: fmt.Sprintf("weight %s is not a finite number", name)}
		}
	}
	sum := w.Conversion + w.Lift + w.Profitability + w.Strategic + w.Size
	if math.Abs(sum-1.0) > weightTolerance {
		return &ConfigurationError{Reason: fmt.Sprintf("weights sum to %v, must sum to 1.0", sum)}
	}
	return nil
}

// RunConfig is the caller-supplied configuration for one run. Pointer fields
// distinguish "unset" (derive from the window / use the default) from an
// explicit zero. It round-trips as the JSON run-config document.
type RunConfig struct {
	AOVLow              *float64           `json:"aov_low,omitempty"`
	AOVHigh             *float64           `json:"aov_high,omitempty"`
	AOVPercentiles      *[2]float64        `json:"aov_percentiles,omitempty"`
	EngagementCutoff    *float64           `json:"engagement_cutoff,omitempty"`
	ProfitabilityCutoff *float64           `json:"profitability_cutoff,omitempty"`
	Weights             *Weights           `json:"weights,omitempty"`
	MinSegmentSize      int                `json:"min_segment_size,omitempty"`
	SizeSaturation      float64            `json:"size_saturation,omitempty"`
	StrategicFit        map[string]float64 `json:"strategic_fit,omitempty"`
	BaselineConversion  *float64           `json:"baseline_conversion,omitempty"`
	SplitOversize       bool               `json:"split_oversize,omitempty"`
	MaxSegmentSize      int                `json:"max_segment_size,omitempty"`
}

// Merged overlays o onto c field by field and returns the combined config.
// Set fields in o win; unset fields keep c's value.
func (c RunConfig) Merged(o *RunConfig) RunConfig {
	if o == nil {
		return c
	}
	out := c
	if o.AOVLow != nil {
		out.AOVLow = o.AOVLow
	}
	if o.AOVHigh != nil {
		out.AOVHigh = o.AOVHigh
	}
	if o.AOVPercentiles != nil {
		out.AOVPercentiles = o.AOVPercentiles
	}
	if o.EngagementCutoff != nil {
		out.EngagementCutoff = o.EngagementCutoff
	}
	if o.ProfitabilityCutoff != nil {
		out.ProfitabilityCutoff = o.ProfitabilityCutoff
	}
	if o.Weights != nil {
		out.Weights = o.Weights
	}
	if o.MinSegmentSize != 0 {
		out.MinSegmentSize = o.MinSegmentSize
	}
	if o.SizeSaturation != 0 {
		out.SizeSaturation = o.SizeSaturation
	}
	if o.StrategicFit != nil {
		out.StrategicFit = o.StrategicFit
	}
	if o.BaselineConversion != nil {
		out.BaselineConversion = o.BaselineConversion
	}
	if o.SplitOversize {
		out.SplitOversize = true
	}
	if o.MaxSegmentSize != 0 {
		out.MaxSegmentSize = o.MaxSegmentSize
	}
	return out
}

// validate checks the statically checkable parts of the config (everything
// that does not need the window's data).
func (c RunConfig) validate() error {
	if (c.AOVLow == nil) != (c.AOVHigh == nil) {
		return &ConfigurationError{Reason: "aov_low and aov_high must be set together"}
	}
	if c.AOVLow != nil && *c.AOVLow >= *c.AOVHigh {
		return &ConfigurationError{Reason: fmt.Sprintf("aov_low %v must be below aov_high %v", *c.AOVLow, *c.AOVHigh)}
	}
	if c.AOVPercentiles != nil {
		p := *c.AOVPercentiles
		if p[0] < 0 || p[1] > 100 || p[0] >= p[1] {
			return &ConfigurationError{Reason: fmt.Sprintf("aov_percentiles %v must satisfy 0 <= low < high <= 100", p)}
		}
	}
	if c.Weights != nil {
		if err := c.Weights.Validate(); err != nil {
			return err
		}
	}
	for label, v := range c.StrategicFit {
		if _, err := ParseKeyLabel(label); err != nil {
			return &ConfigurationError{Reason: fmt.Sprintf("strategic_fit: %v", err)}
		}
		if v < 0 || v > 1 {
			return &ConfigurationError{Reason: fmt.Sprintf("strategic_fit[%s] = %v outside [0,1]", label, v)}
		}
	}
	if c.MinSegmentSize < 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("min_segment_size %d is negative", c.MinSegmentSize)}
	}
	if c.SizeSaturation < 0 || c.SizeSaturation > 1 {
		return &ConfigurationError{Reason: fmt.Sprintf("size_saturation %v outside [0,1]", c.SizeSaturation)}
	}
	if c.BaselineConversion != nil && *c.BaselineConversion <= 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("baseline_conversion %v must be positive", *c.BaselineConversion)}
	}
	if c.MaxSegmentSize < 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("max_segment_size %d is negative", c.MaxSegmentSize)}
	}
	if c.SplitOversize {
		maxSize := c.MaxSegmentSize
		if maxSize == 0 {
			maxSize = DefaultMaxSegmentSize
		}
		minSize := c.MinSegmentSize
		if minSize == 0 {
			minSize = DefaultMinSegmentSize
		}
		if maxSize < minSize {
			return &ConfigurationError{Reason: fmt.Sprintf("max_segment_size %d is below min_segment_size %d", maxSize, minSize)}
		}
	}
	return nil
}

// ResolvedConfig is the configuration a run actually used, with every
// derivation and default filled in. It is echoed inside the result so a
// stored artifact is self-describing.
type ResolvedConfig struct {
	CutPoints        CutPoints          `json:"cut_points"`
	DerivedCutPoints bool               `json:"derived_cut_points"`
	AOVPercentiles   [2]float64         `json:"aov_percentiles"`
	Weights          Weights            `json:"weights"`
	MinSegmentSize   int                `json:"min_segment_size"`
	SizeSaturation   float64            `json:"size_saturation"`
	StrategicFit     map[string]float64 `json:"strategic_fit"`
	Baseline         *float64           `json:"baseline_conversion,omitempty"`
	SplitOversize    bool               `json:"split_oversize"`
	MaxSegmentSize   int                `json:"max_segment_size"`
}

// DefaultStrategicFit grades every tier combination by business priority:
// 0.6 x AOV level + 0.4 x profitability level, with High=1.0, Mid=0.5,
// Low=0.0 on each axis. Callers override per label via RunConfig.
func DefaultStrategicFit() map[string]float64 {
	aovLevel := map[AOVTier]float64{AOVHigh: 1.0, AOVMid: 0.5, AOVLow: 0.0}
	profLevel := map[BinaryTier]float64{TierHigh: 1.0, TierLow: 0.0}

	fit := make(map[string]float64, KeyCount)
	for _, k := range AllKeys() {
		fit[k.Label()] = round4(0.6*aovLevel[k.AOV] + 0.4*profLevel[k.Profitability])
	}
	return fit
}
