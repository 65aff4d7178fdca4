package bundle

import (
	"context"
	"fmt"

	"github.com/roach88/relay/internal/provenance"
	"github.com/roach88/relay/internal/store"
)

// Export reads a run and its events into a bundle. Repeated exports of
// the same run encode to identical bytes.
func Export(ctx context.Context, s *store.Store, runID string, includeProvenance bool) (*Bundle, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("read run: %w", err)
	}
	if run == nil {
		return nil, &store.RunNotFoundError{RunID: runID}
	}
	events, err := s.ReadEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	b := &Bundle{
		SchemaVersion: SchemaVersion,
		Run:           *run,
		Events:        events,
	}
	if includeProvenance {
		prov, err := provenance.Derive(*run, events)
		if err != nil {
			return nil, fmt.Errorf("derive provenance: %w", err)
		}
		b.Provenance = &prov
	}
	return b, nil
}
