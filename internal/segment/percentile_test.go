package segment

import (
	"testing"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		p        float64
		expected float64
	}{
		{"Empty", []float64{}, 50, 0},
		{"SingleItem", []float64{42}, 50, 42},
		{"P50OfTen", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 50, 6},
		{"P33OfTen", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 33, 4},
		{"P66OfTen", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 66, 7},
		{"P0", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0, 1},
		{"P100Clamped", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 100, 10},
		{"Unsorted", []float64{10, 2, 8, 4, 6}, 50, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percentile(tt.values, tt.p); got != tt.expected {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.values, tt.p, got, tt.expected)
			}
		})
	}
}

func TestPercentile_DoesNotMutateInput(t *testing.T) {
	values := []float64{10, 2, 8}
	Percentile(values, 50)
	if values[0] != 10 || values[1] != 2 || values[2] != 8 {
		t.Errorf("Percentile mutated its input: %v", values)
	}
}

func TestMinMaxScale(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected []float64
	}{
		{"Empty", []float64{}, []float64{}},
		{"SingleValueNeutral", []float64{7}, []float64{50}},
		{"AllEqualNeutral", []float64{3, 3, 3}, []float64{50, 50, 50}},
		{"FullRange", []float64{0, 5, 10}, []float64{0, 50, 100}},
		{"Descending", []float64{10, 0}, []float64{100, 0}},
		{"NegativeSpan", []float64{-10, 0, 10}, []float64{0, 50, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := minMaxScale(tt.values)
			if len(got) != len(tt.expected) {
				t.Fatalf("minMaxScale(%v) has length %d, want %d", tt.values, len(got), len(tt.expected))
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("minMaxScale(%v)[%d] = %v, want %v", tt.values, i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestNormalize01(t *testing.T) {
	got := normalize01([]float64{2, 4})
	if got[0] != 0 || got[1] != 1 {
		t.Errorf("normalize01([2 4]) = %v, want [0 1]", got)
	}

	degenerate := normalize01([]float64{7, 7})
	if degenerate[0] != 0.5 || degenerate[1] != 0.5 {
		t.Errorf("normalize01 on a degenerate span = %v, want [0.5 0.5]", degenerate)
	}
}

func TestRound4(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		expected float64
	}{
		{"TruncatesFifthDecimal", 0.123449, 0.1234},
		{"RoundsUp", 0.123456, 0.1235},
		{"Integer", 2, 2},
		{"Negative", -0.123456, -0.1235},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := round4(tt.value); got != tt.expected {
				t.Errorf("round4(%v) = %v, want %v", tt.value, got, tt.expected)
			}
		})
	}
}

func TestClamp01(t *testing.T) {
	if got := clamp01(-0.5); got != 0 {
		t.Errorf("clamp01(-0.5) = %v, want 0", got)
	}
	if got := clamp01(0.5); got != 0.5 {
		t.Errorf("clamp01(0.5) = %v, want 0.5", got)
	}
	if got := clamp01(1.5); got != 1 {
		t.Errorf("clamp01(1.5) = %v, want 1", got)
	}
}
