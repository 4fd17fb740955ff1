package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"cartseg/internal/dataset"
)

type GeneratorConfig struct {
	Scenario string // "baseline", "tied", or "skewed"
	Count    int
	Seed     int64
	End      time.Time // window end; abandonments fall on the 7 days ending here
	Progress func(done int)
}

type Summary struct {
	Scenario   string         `json:"scenario"`
	Seed       int64          `json:"seed"`
	Count      int            `json:"count"`
	WindowEnd  string         `json:"window_end"`
	Archetypes map[string]int `json:"archetypes"`
}

// archetype holds the sampling parameters for one customer persona.
type archetype struct {
	name        string
	weight      float64
	aovLogMean  float64 // lognormal basket value
	aovLogSigma float64
	engMean     float64 // engagement score center (0-5 scale)
	engSpread   float64
	profMean    float64 // profitability margin center
	profSpread  float64
	sessionRate float64 // typical sessions in the last 30 days
	firstTimeP  float64 // probability of no prior order
}

var archetypes = []archetype{
	{"VIP", 0.08, math.Log(220), 0.35, 4.2, 0.5, 0.45, 0.12, 18, 0.05},
	{"Loyalist", 0.22, math.Log(120), 0.30, 3.4, 0.6, 0.30, 0.10, 12, 0.10},
	{"Bargain Hunter", 0.25, math.Log(55), 0.40, 2.6, 0.7, 0.12, 0.08, 9, 0.25},
	{"Window Shopper", 0.30, math.Log(40), 0.45, 1.6, 0.6, 0.08, 0.06, 5, 0.55},
	{"At Risk", 0.15, math.Log(75), 0.50, 0.9, 0.5, 0.15, 0.09, 2, 0.20},
}

var regions = []string{"NA", "EMEA", "APAC", "LATAM"}

// Generate produces one window of synthetic abandoned-cart customers. All
// randomness flows from the seeded generator, so the same config yields the
// same records.
func Generate(cfg GeneratorConfig) ([]dataset.CustomerRecord, Summary, error) {
	if cfg.Count <= 0 {
		return nil, Summary{}, fmt.Errorf("count must be positive, got %d", cfg.Count)
	}
	if cfg.End.IsZero() {
		cfg.End = time.Now().UTC()
	}
	end := time.Date(cfg.End.Year(), cfg.End.Month(), cfg.End.Day(), 0, 0, 0, 0, time.UTC)

	rng := rand.New(rand.NewSource(cfg.Seed))
	counts := make(map[string]int, len(archetypes))
	records := make([]dataset.CustomerRecord, 0, cfg.Count)

	for i := 0; i < cfg.Count; i++ {
		a := pickArchetype(rng)
		counts[a.name]++

		// 1. Order value: lognormal around the archetype's typical basket
		aov := math.Exp(a.aovLogMean + a.aovLogSigma*rng.NormFloat64())

		// 2. Behavioral scores
		eng := clamp(a.engMean+a.engSpread*rng.NormFloat64(), 0, 5)
		prof := clamp(a.profMean+a.profSpread*rng.NormFloat64(), 0, 0.95)

		// 3. Abandonment day within the 7-day window
		daysAgo := rng.Intn(dataset.WindowDays)
		abandoned := end.AddDate(0, 0, -daysAgo)

		// 4. Activity and purchase history
		sessions := int(math.Round(a.sessionRate * (0.5 + rng.Float64())))
		cartItems := 1 + rng.Intn(6)
		var lastOrder *time.Time
		if rng.Float64() >= a.firstTimeP {
			d := abandoned.AddDate(0, 0, -(7 + rng.Intn(120)))
			lastOrder = &d
		}

		records = append(records, dataset.CustomerRecord{
			ID:            fmt.Sprintf("CUST-%06d", i+1),
			AbandonedAt:   abandoned,
			LastOrderAt:   lastOrder,
			AOV:           round2(aov),
			Sessions:      sessions,
			CartItems:     cartItems,
			Engagement:    round2(eng),
			Profitability: round2(prof),
			Archetype:     a.name,
			Region:        regions[rng.Intn(len(regions))],
		})

		if cfg.Progress != nil {
			cfg.Progress(i + 1)
		}
	}

	switch cfg.Scenario {
	case "baseline", "":
	case "tied":
		// Copy the first record's feature block across a tenth of the
		// population: exact duplicates force tier ties and identical keys.
		template := records[0]
		for i := 1; i <= cfg.Count/10 && i < len(records); i++ {
			records[i].AbandonedAt = template.AbandonedAt
			records[i].AOV = template.AOV
			records[i].Sessions = template.Sessions
			records[i].CartItems = template.CartItems
			records[i].Engagement = template.Engagement
			records[i].Profitability = template.Profitability
			records[i].Archetype = template.Archetype
		}
	case "skewed":
		// Heavy AOV outliers on a small slice: stretches the value range and
		// starves the upper tier
		for i := len(records) - cfg.Count/20; i < len(records); i++ {
			if i < 0 {
				continue
			}
			records[i].AOV = round2(records[i].AOV * (10 + rng.Float64()*40))
		}
	default:
		return nil, Summary{}, fmt.Errorf("unknown scenario %q", cfg.Scenario)
	}

	summary := Summary{
		Scenario:   cfg.Scenario,
		Seed:       cfg.Seed,
		Count:      cfg.Count,
		WindowEnd:  end.Format(dataset.DateLayout),
		Archetypes: counts,
	}
	if summary.Scenario == "" {
		summary.Scenario = "baseline"
	}
	return records, summary, nil
}

func pickArchetype(rng *rand.Rand) archetype {
	u := rng.Float64()
	cum := 0.0
	for _, a := range archetypes {
		cum += a.weight
		if u < cum {
			return a
		}
	}
	return archetypes[len(archetypes)-1]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Save writes customers.csv plus a generation report describing what was
// generated.
func Save(outDir string, records []dataset.CustomerRecord, summary Summary) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	if err := dataset.WriteRecordsFile(filepath.Join(outDir, "customers.csv"), records); err != nil {
		return err
	}

	fw, err := os.Create(filepath.Join(outDir, "generation_report.json"))
	if err != nil {
		return err
	}
	defer fw.Close()

	w := bufio.NewWriter(fw)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return err
	}
	return w.Flush()
}
