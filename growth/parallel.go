package growth

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/giobri/leaf/systems"
)

// attract fills e.links for every attractor in live. Below the parallel
// threshold, or with a single worker, it runs inline. Otherwise live is cut
// into one contiguous chunk per worker. Each attractor owns its link slice
// and locate hint, so the outcome does not depend on the chunking.
func (e *Engine) attract(live []int32) error {
	if e.workers <= 1 || len(live) < e.p.ParallelThreshold {
		return e.attractChunk(live, e.queries[0])
	}

	chunk := (len(live) + e.workers - 1) / e.workers
	var g errgroup.Group
	g.SetLimit(e.workers)
	for w := 0; w < e.workers; w++ {
		lo := w * chunk
		if lo >= len(live) {
			break
		}
		hi := min(lo+chunk, len(live))
		q := e.queries[w]
		g.Go(func() error {
			return e.attractChunk(live[lo:hi], q)
		})
	}
	return g.Wait()
}

// attractChunk computes the recruited nodes of each attractor in ids using
// q as scratch. It only reads the arena and the index.
func (e *Engine) attractChunk(ids []int32, q *systems.Query) error {
	nodes := e.veins.Positions()
	for _, s := range ids {
		p := e.attractors.Pos(s)
		q.Hint = e.hints[s]
		if err := e.index.Candidates(p, q); err != nil {
			return fmt.Errorf("%w: attractor %d at (%g, %g): %w", ErrIndexLookup, s, p.X, p.Y, err)
		}
		e.hints[s] = q.Hint
		e.links[s] = systems.Attract(e.p.Policy, e.links[s][:0], p, q, nodes)
	}
	return nil
}
