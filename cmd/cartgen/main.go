package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"cartseg/cmd/cartgen/engine"
	"cartseg/internal/dataset"

	"github.com/schollz/progressbar/v3"
)

func main() {
	scenario := flag.String("scenario", "baseline", "Scenario to generate: baseline, tied, skewed")
	count := flag.Int("count", 5000, "Number of customers to generate")
	seed := flag.Int64("seed", 1, "Random seed; same seed and flags produce identical data")
	end := flag.String("end", "", "Window end date YYYY-MM-DD (default: today)")
	outDir := flag.String("out", "./testdata", "Output directory for generated files")
	flag.Parse()

	endDate := time.Now().UTC()
	if *end != "" {
		parsed, err := time.Parse(dataset.DateLayout, *end)
		if err != nil {
			fmt.Printf("Invalid -end date: %v\n", err)
			os.Exit(1)
		}
		endDate = parsed
	}

	cfg := engine.GeneratorConfig{
		Scenario: *scenario,
		Count:    *count,
		Seed:     *seed,
		End:      endDate,
	}

	fmt.Printf("Generating scenario '%s' (Count: %d, Seed: %d) to %s...\n", cfg.Scenario, cfg.Count, cfg.Seed, *outDir)

	bar := progressbar.Default(int64(cfg.Count))
	cfg.Progress = func(int) { _ = bar.Add(1) }

	records, summary, err := engine.Generate(cfg)
	if err != nil {
		fmt.Printf("Failed to generate data: %v\n", err)
		os.Exit(1)
	}

	if err := engine.Save(*outDir, records, summary); err != nil {
		fmt.Printf("Failed to save generated data: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Done.")
}
