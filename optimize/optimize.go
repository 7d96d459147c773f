package optimize

import (
	"context"
	"fmt"

	"github.com/wudi/boletopdf/ir/raw"
)

type Config struct {
	// CombineDuplicateStreams keeps one copy of streams whose dictionary and
	// data are byte-identical and points every reference at it.
	CombineDuplicateStreams bool
	// CombineIdenticalIndirectObjects does the same for non-stream objects.
	// Page objects are never merged.
	CombineIdenticalIndirectObjects bool
	// RemoveUnreferenced drops objects not reachable from the trailer.
	RemoveUnreferenced bool
}

// Stats reports what a pass changed.
type Stats struct {
	Combined int
	Removed  int
}

type Optimizer struct {
	config Config
}

func New(config Config) *Optimizer {
	return &Optimizer{config: config}
}

// Optimize rewrites doc in place.
func (o *Optimizer) Optimize(ctx context.Context, doc *raw.Document) (Stats, error) {
	var stats Stats
	if doc == nil {
		return stats, nil
	}
	if o.config.CombineDuplicateStreams || o.config.CombineIdenticalIndirectObjects {
		n, err := o.combineObjects(ctx, doc, o.config.CombineDuplicateStreams, o.config.CombineIdenticalIndirectObjects)
		if err != nil {
			return stats, fmt.Errorf("failed to combine duplicate objects: %w", err)
		}
		stats.Combined = n
	}
	if o.config.RemoveUnreferenced {
		stats.Removed = removeUnreferenced(doc)
	}
	return stats, nil
}
