package segment

import (
	"errors"
	"math"
	"testing"

	"cartseg/internal/dataset"
)

func floatPtr(v float64) *float64 { return &v }

func TestWeights_Validate(t *testing.T) {
	tests := []struct {
		name    string
		weights Weights
		wantErr bool
	}{
		{"Defaults", DefaultWeights(), false},
		{"ExplicitUnit", Weights{Conversion: 1}, false},
		{"SumTooHigh", Weights{Conversion: 0.5, Lift: 0.5, Profitability: 0.5}, true},
		{"SumTooLow", Weights{Conversion: 0.5}, true},
		{"Negative", Weights{Conversion: -0.1, Lift: 0.4, Profitability: 0.3, Strategic: 0.2, Size: 0.2}, true},
		{"NaN", Weights{Conversion: math.NaN(), Lift: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var cfgErr *ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Errorf("Validate() error type = %T, want *ConfigurationError", err)
				}
			}
		})
	}
}

func TestRunConfig_Resolve_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  RunConfig
	}{
		{"HalfSpecifiedAOVPair", RunConfig{AOVLow: floatPtr(50)}},
		{"AOVLowNotBelowHigh", RunConfig{AOVLow: floatPtr(150), AOVHigh: floatPtr(150)}},
		{"PercentilesOutOfOrder", RunConfig{AOVPercentiles: &[2]float64{66, 33}}},
		{"PercentileOutOfRange", RunConfig{AOVPercentiles: &[2]float64{-5, 50}}},
		{"BadWeights", RunConfig{Weights: &Weights{Conversion: 1, Lift: 1}}},
		{"UnknownStrategicLabel", RunConfig{StrategicFit: map[string]float64{"VIPs": 0.5}}},
		{"StrategicValueOutOfRange", RunConfig{StrategicFit: map[string]float64{
			"AOV-High/Engagement-High/Profitability-High": 1.5,
		}}},
		{"NegativeMinSize", RunConfig{MinSegmentSize: -1}},
		{"SaturationOutOfRange", RunConfig{SizeSaturation: 1.5}},
		{"NonPositiveBaseline", RunConfig{BaselineConversion: floatPtr(0)}},
		{"NegativeMaxSize", RunConfig{MaxSegmentSize: -1}},
		{"SplitMaxBelowMin", RunConfig{SplitOversize: true, MaxSegmentSize: 100, MinSegmentSize: 500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Resolve(nil)
			if err == nil {
				t.Fatal("Resolve() should fail")
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("Resolve() error type = %T, want *ConfigurationError", err)
			}
		})
	}
}

func TestRunConfig_Resolve_Defaults(t *testing.T) {
	records := []dataset.CustomerRecord{
		{ID: "a", AOV: 10, Engagement: 1, Profitability: 1},
		{ID: "b", AOV: 90, Engagement: 5, Profitability: 5},
	}

	r, err := RunConfig{}.Resolve(records)
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}

	if r.MinSegmentSize != DefaultMinSegmentSize {
		t.Errorf("MinSegmentSize = %d, want %d", r.MinSegmentSize, DefaultMinSegmentSize)
	}
	if r.MaxSegmentSize != DefaultMaxSegmentSize {
		t.Errorf("MaxSegmentSize = %d, want %d", r.MaxSegmentSize, DefaultMaxSegmentSize)
	}
	if r.SizeSaturation != DefaultSizeSaturation {
		t.Errorf("SizeSaturation = %v, want %v", r.SizeSaturation, DefaultSizeSaturation)
	}
	if r.Weights != DefaultWeights() {
		t.Errorf("Weights = %+v, want defaults", r.Weights)
	}
	if r.AOVPercentiles != DefaultAOVPercentiles {
		t.Errorf("AOVPercentiles = %v, want %v", r.AOVPercentiles, DefaultAOVPercentiles)
	}
	if !r.DerivedCutPoints {
		t.Error("DerivedCutPoints = false, want true when no cut point is configured")
	}
	if len(r.StrategicFit) != KeyCount {
		t.Errorf("StrategicFit has %d entries, want %d", len(r.StrategicFit), KeyCount)
	}
	if r.SplitOversize {
		t.Error("SplitOversize = true, want false by default")
	}
}

func TestRunConfig_Resolve_DerivesCutPoints(t *testing.T) {
	// Ten records with evenly spaced features: p33 lands on index 3, p66 on
	// index 6, the medians on index 5.
	records := make([]dataset.CustomerRecord, 10)
	for i := range records {
		records[i] = dataset.CustomerRecord{
			AOV:           float64((i + 1) * 10),
			Engagement:    float64(i + 1),
			Profitability: float64(i + 1),
		}
	}

	r, err := RunConfig{}.Resolve(records)
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}

	if r.CutPoints.AOVLow != 40 {
		t.Errorf("AOVLow = %v, want 40", r.CutPoints.AOVLow)
	}
	if r.CutPoints.AOVHigh != 70 {
		t.Errorf("AOVHigh = %v, want 70", r.CutPoints.AOVHigh)
	}
	if r.CutPoints.Engagement != 6 {
		t.Errorf("Engagement = %v, want 6", r.CutPoints.Engagement)
	}
	if r.CutPoints.Profitability != 6 {
		t.Errorf("Profitability = %v, want 6", r.CutPoints.Profitability)
	}
}

func TestRunConfig_Resolve_ExplicitCutPoints(t *testing.T) {
	cfg := RunConfig{
		AOVLow:              floatPtr(50),
		AOVHigh:             floatPtr(150),
		EngagementCutoff:    floatPtr(3),
		ProfitabilityCutoff: floatPtr(0.2),
	}

	r, err := cfg.Resolve(nil)
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}

	want := CutPoints{AOVLow: 50, AOVHigh: 150, Engagement: 3, Profitability: 0.2}
	if r.CutPoints != want {
		t.Errorf("CutPoints = %+v, want %+v", r.CutPoints, want)
	}
	if r.DerivedCutPoints {
		t.Error("DerivedCutPoints = true, want false when every cut point is explicit")
	}
}

func TestRunConfig_Resolve_StrategicOverlay(t *testing.T) {
	top := Key{AOVHigh, TierHigh, TierHigh}.Label()
	cfg := RunConfig{StrategicFit: map[string]float64{top: 0.1}}

	r, err := cfg.Resolve([]dataset.CustomerRecord{{AOV: 10}})
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}

	if r.StrategicFit[top] != 0.1 {
		t.Errorf("StrategicFit[%s] = %v, want the configured 0.1", top, r.StrategicFit[top])
	}
	bottom := Key{AOVLow, TierLow, TierLow}.Label()
	if r.StrategicFit[bottom] != 0 {
		t.Errorf("StrategicFit[%s] = %v, want the default 0", bottom, r.StrategicFit[bottom])
	}
}

func TestDefaultStrategicFit(t *testing.T) {
	fit := DefaultStrategicFit()
	if len(fit) != KeyCount {
		t.Fatalf("DefaultStrategicFit() has %d entries, want %d", len(fit), KeyCount)
	}

	tests := []struct {
		key      Key
		expected float64
	}{
		{Key{AOVHigh, TierHigh, TierHigh}, 1.0},
		{Key{AOVHigh, TierHigh, TierLow}, 0.6},
		{Key{AOVMid, TierLow, TierHigh}, 0.7},
		{Key{AOVMid, TierLow, TierLow}, 0.3},
		{Key{AOVLow, TierHigh, TierHigh}, 0.4},
		{Key{AOVLow, TierLow, TierLow}, 0},
	}
	for _, tt := range tests {
		if got := fit[tt.key.Label()]; got != tt.expected {
			t.Errorf("fit[%s] = %v, want %v", tt.key.Label(), got, tt.expected)
		}
	}

	// Engagement does not participate in strategic fit.
	hi := Key{AOVMid, TierHigh, TierHigh}.Label()
	lo := Key{AOVMid, TierLow, TierHigh}.Label()
	if fit[hi] != fit[lo] {
		t.Errorf("fit differs across engagement tiers: %v vs %v", fit[hi], fit[lo])
	}
}

func TestRunConfig_Merged(t *testing.T) {
	base := RunConfig{
		AOVLow:         floatPtr(50),
		AOVHigh:        floatPtr(150),
		MinSegmentSize: 200,
		SizeSaturation: 0.5,
	}

	t.Run("NilOverrideKeepsBase", func(t *testing.T) {
		got := base.Merged(nil)
		if *got.AOVLow != 50 || got.MinSegmentSize != 200 {
			t.Errorf("Merged(nil) = %+v, want the base config", got)
		}
	})

	t.Run("SetFieldsWin", func(t *testing.T) {
		got := base.Merged(&RunConfig{
			EngagementCutoff: floatPtr(3),
			MinSegmentSize:   400,
			SplitOversize:    true,
		})
		if *got.AOVLow != 50 {
			t.Errorf("AOVLow = %v, want the base 50", *got.AOVLow)
		}
		if *got.EngagementCutoff != 3 {
			t.Errorf("EngagementCutoff = %v, want the override 3", *got.EngagementCutoff)
		}
		if got.MinSegmentSize != 400 {
			t.Errorf("MinSegmentSize = %d, want the override 400", got.MinSegmentSize)
		}
		if !got.SplitOversize {
			t.Error("SplitOversize = false, want the override true")
		}
	})

	t.Run("ZeroFieldsKeepBase", func(t *testing.T) {
		got := base.Merged(&RunConfig{})
		if got.MinSegmentSize != 200 || got.SizeSaturation != 0.5 {
			t.Errorf("Merged(&RunConfig{}) = %+v, want the base config", got)
		}
	})
}
