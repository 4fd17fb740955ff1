package store

import (
	"context"
	"errors"
	"time"

	"cartseg/internal/dataset"
	"cartseg/internal/observability"
	"cartseg/internal/segment"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// SourceFactory builds a record source scoped to one analysis window.
type SourceFactory func(w dataset.Window) dataset.Source

// RunOutcome is what a run request produces: the result, whether it was
// served from the store without recomputation, and a correlation ID for
// logs and response metadata. The ID is never part of the stored artifact.
type RunOutcome struct {
	Result *segment.Result
	Cached bool
	RunID  string
}

// RunService coordinates segmentation runs against the artifact store.
// Runs are keyed by window: concurrent requests for the same window share
// a single computation, and completed windows are served from the store
// unless a re-run is forced. The pipeline is deterministic, so a forced
// re-run of an unchanged window writes byte-identical artifacts.
type RunService struct {
	store   *ResultStore
	source  SourceFactory
	baseCfg segment.RunConfig
	metrics *observability.Metrics
	group   singleflight.Group
}

func NewRunService(store *ResultStore, source SourceFactory, baseCfg segment.RunConfig, metrics *observability.Metrics) *RunService {
	return &RunService{
		store:   store,
		source:  source,
		baseCfg: baseCfg,
		metrics: metrics,
	}
}

// Run executes (or replays) the segmentation pipeline for the window.
// Overrides are merged over the service's base run configuration.
func (s *RunService) Run(ctx context.Context, w dataset.Window, overrides *segment.RunConfig, force bool) (*RunOutcome, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	key := w.Key()
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Str("window", key).Logger()

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		// 1. Serve from the store unless recomputation is forced
		if !force {
			if res, err := s.store.Load(key); err == nil {
				s.metrics.StoreHit()
				logger.Debug().Msg("Run served from store")
				return &RunOutcome{Result: res, Cached: true, RunID: runID}, nil
			} else if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			s.metrics.StoreMiss()
		}

		// 2. Load and validate the window's records
		records, err := s.source(w).Load(ctx)
		if err != nil {
			s.metrics.RunObserved(0, "error")
			return nil, err
		}
		records, err = dataset.ValidateRecords(records, w)
		if err != nil {
			s.metrics.RunObserved(0, "error")
			return nil, err
		}

		// 3. Run the pipeline
		cfg := s.baseCfg.Merged(overrides)
		start := time.Now()
		res, err := segment.Run(records, w, cfg)
		if err != nil {
			s.metrics.RunObserved(time.Since(start), "error")
			return nil, err
		}
		s.metrics.RunObserved(time.Since(start), "ok")
		s.metrics.MergesObserved(len(res.MergeLog))

		// 4. Persist atomically
		if err := s.store.Save(res); err != nil {
			return nil, err
		}

		logger.Info().
			Int("segments", len(res.Segments)).
			Int("universe", res.UniverseSize).
			Bool("forced", force).
			Msg("Segmentation run complete")
		return &RunOutcome{Result: res, RunID: runID}, nil
	})
	if err != nil {
		return nil, err
	}

	outcome := v.(*RunOutcome)
	if shared && outcome.RunID != runID {
		// This caller piggybacked on another caller's in-flight run.
		shadow := *outcome
		shadow.Cached = true
		shadow.RunID = runID
		logger.Debug().Str("origin_run_id", outcome.RunID).Msg("Run coalesced with in-flight computation")
		return &shadow, nil
	}
	return outcome, nil
}

// Get returns the stored result for a window key.
func (s *RunService) Get(key string) (*segment.Result, error) {
	return s.store.Load(key)
}

// List returns all stored window keys in ascending order.
func (s *RunService) List() ([]string, error) {
	return s.store.List()
}
