// pkg/pipeline/explode.go
package pipeline

import (
	"context"

	"github.com/transitops/wmata-ingress/pkg/contract"
	"github.com/transitops/wmata-ingress/pkg/extractor"
	"github.com/transitops/wmata-ingress/pkg/transformer"
)

// ExplodingExtractor decorates an extractor, flattening a multivalued
// field into one record per element. Lets a contract with a composite
// natural key (stop_routes) run through the same pipeline as its parent
// feed.
type ExplodingExtractor struct {
	Inner     Extractor
	Keep      []string
	ListField string
}

// Extract pulls the parent feed and explodes the configured list field
func (e *ExplodingExtractor) Extract(ctx context.Context, src extractor.SourceConfig) ([]contract.RawRecord, extractor.Stats, error) {
	raws, stats, err := e.Inner.Extract(ctx, src)
	if err != nil {
		return nil, extractor.Stats{}, err
	}

	exploded := transformer.ExplodeField(raws, e.Keep, e.ListField)
	stats.Records = len(exploded)
	return exploded, stats, nil
}
