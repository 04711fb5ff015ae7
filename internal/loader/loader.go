// Package loader provides per-read-operation book count resolution.
//
// Counting books per author is the catalog's N+1 hazard: a naive resolver
// issues one count query per author row. The batched counter coalesces every
// count requested within one read operation into a single store query. Its
// cache lives exactly as long as the counter itself: it is minted fresh per
// read operation and never reused or invalidated by later writes. That keeps
// a client that adds a book and immediately re-queries seeing the new count,
// at the price of counts not reflecting other requests' writes committed
// during this operation's own execution window. This trade-off is
// deliberate; do not bolt cross-request caching onto it.
package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader/v7"
)

// CountQuerier is the store-side query the counters are built on.
// A single call resolves counts for any number of authors.
type CountQuerier interface {
	CountBooksByAuthors(ctx context.Context, authorIDs []string) (map[string]int, error)
}

// BookCounter resolves the number of books attributed to an author.
// One counter serves exactly one read operation.
type BookCounter interface {
	// Preload registers authors whose counts the operation will need.
	// Calling it before BookCount lets implementations coalesce the
	// underlying queries.
	Preload(ctx context.Context, authorIDs []string)

	// BookCount resolves one author's book count.
	BookCount(ctx context.Context, authorID string) (int, error)
}

// Factory mints a fresh BookCounter for one read operation.
type Factory func() BookCounter

// Count strategy names accepted by NewFactory.
const (
	// StrategyBatched coalesces all counts of a read operation into one
	// store query. This is the default.
	StrategyBatched = "batched"
	// StrategyDirect issues one store query per count. Never stale within
	// or across operations, but N+1-prone on author listings.
	StrategyDirect = "direct"
)

// NewFactory returns a counter factory for the named strategy.
// The strategy is fixed at construction; the two are never mixed.
func NewFactory(strategy string, querier CountQuerier) (Factory, error) {
	switch strategy {
	case StrategyBatched:
		return func() BookCounter { return NewBatchedCounter(querier) }, nil
	case StrategyDirect:
		return func() BookCounter { return NewDirectCounter(querier) }, nil
	default:
		return nil, fmt.Errorf("unknown count strategy %q", strategy)
	}
}

// batchWait is how long the batched counter collects keys before firing the
// underlying query. Preload queues all of a read operation's keys
// synchronously, so one window is enough.
const batchWait = 2 * time.Millisecond

// BatchedCounter coalesces book counts through a dataloader.
// Counters are request-scoped and not safe for concurrent use.
//
// All counts preloaded before the first resolution become ONE CountQuerier
// call; duplicate author IDs share the same pending result; a query error
// fails every pending count with that same error. Zero preloads and zero
// BookCount calls mean zero store queries.
type BatchedCounter struct {
	loader *dataloader.Loader[string, int]
	thunks map[string]dataloader.Thunk[int]
}

// NewBatchedCounter creates a counter for a single read operation.
func NewBatchedCounter(querier CountQuerier) *BatchedCounter {
	batchFn := func(ctx context.Context, authorIDs []string) []*dataloader.Result[int] {
		results := make([]*dataloader.Result[int], len(authorIDs))

		counts, err := querier.CountBooksByAuthors(ctx, authorIDs)
		if err != nil {
			// No partial success: the whole batch fails together.
			for i := range results {
				results[i] = &dataloader.Result[int]{Error: err}
			}
			return results
		}

		for i, authorID := range authorIDs {
			results[i] = &dataloader.Result[int]{Data: counts[authorID]}
		}
		return results
	}

	return &BatchedCounter{
		loader: dataloader.NewBatchedLoader(batchFn,
			dataloader.WithWait[string, int](batchWait)),
		thunks: make(map[string]dataloader.Thunk[int]),
	}
}

// Preload queues count loads without resolving them.
func (c *BatchedCounter) Preload(ctx context.Context, authorIDs []string) {
	for _, authorID := range authorIDs {
		if _, ok := c.thunks[authorID]; !ok {
			c.thunks[authorID] = c.loader.Load(ctx, authorID)
		}
	}
}

// BookCount resolves one author's count, reusing the pending or cached
// result when the author was already requested in this operation.
func (c *BatchedCounter) BookCount(ctx context.Context, authorID string) (int, error) {
	thunk, ok := c.thunks[authorID]
	if !ok {
		thunk = c.loader.Load(ctx, authorID)
		c.thunks[authorID] = thunk
	}
	return thunk()
}

// DirectCounter issues one store query per count. No caching, no batching.
type DirectCounter struct {
	querier CountQuerier
}

// NewDirectCounter creates a direct counter.
func NewDirectCounter(querier CountQuerier) *DirectCounter {
	return &DirectCounter{querier: querier}
}

// Preload is a no-op: the direct strategy has nothing to coalesce.
func (c *DirectCounter) Preload(context.Context, []string) {}

// BookCount queries the store for one author's count.
func (c *DirectCounter) BookCount(ctx context.Context, authorID string) (int, error) {
	counts, err := c.querier.CountBooksByAuthors(ctx, []string{authorID})
	if err != nil {
		return 0, err
	}
	return counts[authorID], nil
}
