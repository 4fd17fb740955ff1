package segment

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AOVTier is the ordinal average-order-value tier. Lower values rank higher
// commercially; the numeric order is load-bearing for canonical identifiers
// and merge adjacency, so the constants must not be reordered.
type AOVTier uint8

const (
	AOVHigh AOVTier = iota
	AOVMid
	AOVLow
)

func (t AOVTier) String() string {
	switch t {
	case AOVHigh:
		return "High"
	case AOVMid:
		return "Mid"
	default:
		return "Low"
	}
}

// BinaryTier is a two-level tier used for engagement and profitability.
type BinaryTier uint8

const (
	TierHigh BinaryTier = iota
	TierLow
)

func (t BinaryTier) String() string {
	if t == TierHigh {
		return "High"
	}
	return "Low"
}

// Key is one of the 12 tier combinations a customer can land in. The zero
// value is the top combination (High/High/High).
type Key struct {
	AOV           AOVTier
	Engagement    BinaryTier
	Profitability BinaryTier
}

// KeyCount is the size of the combination space (3 AOV x 2 engagement x 2
// profitability tiers).
const KeyCount = 12

// Ordinal returns the stable position of the key in the combination space,
// 0 (High/High/High) through 11 (Low/Low/Low).
func (k Key) Ordinal() int {
	return int(k.AOV)*4 + int(k.Engagement)*2 + int(k.Profitability)
}

// Label renders the canonical human-readable combination label, e.g.
// "AOV-High/Engagement-High/Profitability-Low".
func (k Key) Label() string {
	return fmt.Sprintf("AOV-%s/Engagement-%s/Profitability-%s", k.AOV, k.Engagement, k.Profitability)
}

// KeyFromOrdinal is the inverse of Ordinal.
func KeyFromOrdinal(n int) (Key, error) {
	if n < 0 || n >= KeyCount {
		return Key{}, fmt.Errorf("ordinal %d outside combination space [0,%d)", n, KeyCount)
	}
	return Key{
		AOV:           AOVTier(n / 4),
		Engagement:    BinaryTier(n / 2 % 2),
		Profitability: BinaryTier(n % 2),
	}, nil
}

// ParseKeyLabel parses a label produced by Label.
func ParseKeyLabel(label string) (Key, error) {
	for n := 0; n < KeyCount; n++ {
		k, _ := KeyFromOrdinal(n)
		if k.Label() == label {
			return k, nil
		}
	}
	return Key{}, fmt.Errorf("unknown tier combination label %q", label)
}

// AllKeys returns the full combination space in ordinal order.
func AllKeys() []Key {
	keys := make([]Key, KeyCount)
	for n := range keys {
		keys[n], _ = KeyFromOrdinal(n)
	}
	return keys
}

// MarshalJSON encodes the key as its label so stored artifacts stay readable.
func (k Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Label())
}

func (k *Key) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	parsed, err := ParseKeyLabel(label)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// CutPoints holds the tiering thresholds for one run. AOVLow/AOVHigh bound
// the Mid tier; Engagement and Profitability are single High/Low cutoffs.
type CutPoints struct {
	AOVLow        float64 `json:"aov_low"`
	AOVHigh       float64 `json:"aov_high"`
	Engagement    float64 `json:"engagement"`
	Profitability float64 `json:"profitability"`
}

// Assign maps a numeric feature triple to its tier combination. The mapping
// is total and single-valued; boundary values take the higher tier (a value
// equal to a cutoff is High, AOV equal to the low cutoff is Mid).
func (c CutPoints) Assign(aov, engagement, profitability float64) Key {
	var k Key

	switch {
	case aov >= c.AOVHigh:
		k.AOV = AOVHigh
	case aov >= c.AOVLow:
		k.AOV = AOVMid
	default:
		k.AOV = AOVLow
	}

	if engagement >= c.Engagement {
		k.Engagement = TierHigh
	} else {
		k.Engagement = TierLow
	}

	if profitability >= c.Profitability {
		k.Profitability = TierHigh
	} else {
		k.Profitability = TierLow
	}

	return k
}

// Rule renders the decision-rule text for the combination under the given
// cut points, e.g. "aov >= 150 and engagement >= 3 and profitability < 0.2".
func (k Key) Rule(c CutPoints) string {
	var parts []string

	switch k.AOV {
	case AOVHigh:
		parts = append(parts, fmt.Sprintf("aov >= %s", trimFloat(c.AOVHigh)))
	case AOVMid:
		parts = append(parts, fmt.Sprintf("%s <= aov < %s", trimFloat(c.AOVLow), trimFloat(c.AOVHigh)))
	default:
		parts = append(parts, fmt.Sprintf("aov < %s", trimFloat(c.AOVLow)))
	}

	if k.Engagement == TierHigh {
		parts = append(parts, fmt.Sprintf("engagement >= %s", trimFloat(c.Engagement)))
	} else {
		parts = append(parts, fmt.Sprintf("engagement < %s", trimFloat(c.Engagement)))
	}

	if k.Profitability == TierHigh {
		parts = append(parts, fmt.Sprintf("profitability >= %s", trimFloat(c.Profitability)))
	} else {
		parts = append(parts, fmt.Sprintf("profitability < %s", trimFloat(c.Profitability)))
	}

	return strings.Join(parts, " and ")
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.4f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
