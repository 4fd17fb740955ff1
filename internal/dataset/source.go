package dataset

import "context"

// Source supplies the customer records for one analysis run. Implementations
// may over-fetch; the validator filters to the window either way.
type Source interface {
	Load(ctx context.Context) ([]CustomerRecord, error)
}

// StaticSource serves records already held in memory, for callers that load
// once up front (window derivation, tests).
type StaticSource []CustomerRecord

func (s StaticSource) Load(ctx context.Context) ([]CustomerRecord, error) {
	return s, nil
}
