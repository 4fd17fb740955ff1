package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"cartseg/internal/config"
	"cartseg/internal/dataset"
	"cartseg/internal/report"
	"cartseg/internal/segment"
	"cartseg/internal/store"

	"github.com/spf13/cobra"
)

var (
	runInput       string
	runDSN         string
	runTable       string
	runWindowEnd   string
	runWindowStart string
	runConfigPath  string
	runMinSize     int
	runForce       bool
	runReports     bool
	runOut         string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Segment one analysis window and store the result",
	Long: `Run loads the window's customer records from a CSV file or MySQL table,
partitions them into MECE segments, scores and ranks the segments, and stores
the result artifact. Without --window-end the window is derived from the data
(the latest abandonment date closes the window).`,
	RunE: runSegmentation,
}

func init() {
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "customer CSV file (default: CUSTOMER_CSV)")
	runCmd.Flags().StringVar(&runDSN, "dsn", "", "MySQL DSN (default: MYSQL_DSN)")
	runCmd.Flags().StringVar(&runTable, "table", "", "MySQL table name (default: MYSQL_TABLE)")
	runCmd.Flags().StringVar(&runWindowEnd, "window-end", "", "window end date YYYY-MM-DD (default: derived from the data)")
	runCmd.Flags().StringVar(&runWindowStart, "window-start", "", "window start date YYYY-MM-DD (default: end minus 6 days)")
	runCmd.Flags().StringVar(&runConfigPath, "run-config", "", "run configuration JSON file (default: RUN_CONFIG)")
	runCmd.Flags().IntVar(&runMinSize, "min-size", 0, "minimum viable segment size (default 500)")
	runCmd.Flags().BoolVar(&runForce, "force", false, "recompute even if a stored result exists")
	runCmd.Flags().BoolVar(&runReports, "reports", false, "write report artifacts")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "store/report root directory (default: DATA_PATH)")
	rootCmd.AddCommand(runCmd)
}

func runSegmentation(cmd *cobra.Command, args []string) error {
	baseCfg, err := loadBaseRunConfig(runConfigPath, runMinSize)
	if err != nil {
		return err
	}

	window, factory, err := resolveWindowAndSource(cmd)
	if err != nil {
		return err
	}

	storeDir, reportDir := outputDirs()
	svc := store.NewRunService(store.NewResultStore(storeDir), factory, baseCfg, nil)

	outcome, err := svc.Run(cmd.Context(), window, nil, runForce)
	if err != nil {
		return err
	}
	res := outcome.Result

	cachedNote := ""
	if outcome.Cached {
		cachedNote = " (stored result)"
	}
	fmt.Printf("Window %s to %s: %d customers, %d segments, %d merges%s\n\n",
		res.Window.Start.Format(dataset.DateLayout),
		res.Window.End.Format(dataset.DateLayout),
		res.UniverseSize, len(res.Segments), len(res.MergeLog), cachedNote)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tLABEL\tSIZE\tSHARE\tCOMPOSITE\tRULE")
	for i, s := range res.Segments {
		share := 0.0
		if res.UniverseSize > 0 {
			share = float64(s.Size) / float64(res.UniverseSize) * 100
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f%%\t%.2f\t%s\n",
			report.RankID(i+1), s.Label, s.Size, share, s.Scores.Composite, s.Rule)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nMECE: exhaustive=%t exclusive=%t\n", res.MECE.Exhaustive, res.MECE.Exclusive)

	if runReports {
		dir, err := report.WriteAll(reportDir, res)
		if err != nil {
			return err
		}
		fmt.Printf("Reports written to %s\n", dir)
	}
	return nil
}

// loadBaseRunConfig reads the run-config document (flag first, then the
// environment-configured path) and applies CLI-level overrides.
func loadBaseRunConfig(path string, minSize int) (segment.RunConfig, error) {
	if path == "" {
		path = cfg.RunConfigPath
	}
	rc, err := config.LoadRunConfig(path)
	if err != nil {
		return rc, err
	}
	if minSize > 0 {
		rc.MinSegmentSize = minSize
	}
	return rc, nil
}

// resolveWindowAndSource determines the analysis window and a source factory
// for it. A CSV source without --window-end is loaded once to derive the
// window from the data; MySQL sources need an explicit end date.
func resolveWindowAndSource(cmd *cobra.Command) (dataset.Window, store.SourceFactory, error) {
	csvPath := runInput
	if csvPath == "" {
		csvPath = cfg.CSVPath
	}
	dsn := runDSN
	if dsn == "" {
		dsn = cfg.MySQLDSN
	}
	table := runTable
	if table == "" {
		table = cfg.MySQLTable
	}

	if csvPath == "" && dsn == "" {
		return dataset.Window{}, nil, fmt.Errorf("no input source: provide --input or --dsn")
	}

	if runWindowEnd != "" {
		end, err := time.Parse(dataset.DateLayout, runWindowEnd)
		if err != nil {
			return dataset.Window{}, nil, fmt.Errorf("invalid --window-end: %w", err)
		}
		window := dataset.WindowEnding(end)
		if runWindowStart != "" {
			start, perr := time.Parse(dataset.DateLayout, runWindowStart)
			if perr != nil {
				return dataset.Window{}, nil, fmt.Errorf("invalid --window-start: %w", perr)
			}
			if window, err = dataset.NewWindow(start, end); err != nil {
				return dataset.Window{}, nil, err
			}
		}
		return window, sourceFactory(csvPath, dsn, table), nil
	}

	if csvPath == "" {
		return dataset.Window{}, nil, fmt.Errorf("--window-end is required with a MySQL source")
	}

	records, err := (dataset.CSVSource{Path: csvPath}).Load(cmd.Context())
	if err != nil {
		return dataset.Window{}, nil, err
	}
	window, err := dataset.WindowFromRecords(records)
	if err != nil {
		return dataset.Window{}, nil, err
	}
	return window, func(dataset.Window) dataset.Source {
		return dataset.StaticSource(records)
	}, nil
}

func sourceFactory(csvPath, dsn, table string) store.SourceFactory {
	return func(w dataset.Window) dataset.Source {
		if csvPath != "" {
			return dataset.CSVSource{Path: csvPath}
		}
		return dataset.MySQLSource{DSN: dsn, Table: table, Window: w}
	}
}

func outputDirs() (storeDir, reportDir string) {
	if runOut != "" {
		return filepath.Join(runOut, "store"), filepath.Join(runOut, "reports")
	}
	return cfg.StoreDir, cfg.ReportDir
}
