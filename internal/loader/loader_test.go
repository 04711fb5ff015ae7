package loader

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQuerier records every CountBooksByAuthors call.
type fakeQuerier struct {
	mu     sync.Mutex
	calls  [][]string
	counts map[string]int
	err    error
}

func (f *fakeQuerier) CountBooksByAuthors(_ context.Context, authorIDs []string) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	recorded := make([]string, len(authorIDs))
	copy(recorded, authorIDs)
	f.calls = append(f.calls, recorded)

	if f.err != nil {
		return nil, f.err
	}

	result := make(map[string]int, len(authorIDs))
	for _, id := range authorIDs {
		result[id] = f.counts[id]
	}
	return result, nil
}

func (f *fakeQuerier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestBatchedCounter_CoalescesIntoOneQuery(t *testing.T) {
	querier := &fakeQuerier{counts: map[string]int{"a1": 2, "a2": 0, "a3": 7}}
	counter := NewBatchedCounter(querier)
	ctx := context.Background()

	counter.Preload(ctx, []string{"a1", "a2", "a3"})

	for id, want := range map[string]int{"a1": 2, "a2": 0, "a3": 7} {
		got, err := counter.BookCount(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got, id)
	}

	require.Equal(t, 1, querier.callCount(), "all preloaded counts must share one store query")

	keys := querier.calls[0]
	sort.Strings(keys)
	assert.Equal(t, []string{"a1", "a2", "a3"}, keys)
}

func TestBatchedCounter_DuplicatesShareOneResult(t *testing.T) {
	querier := &fakeQuerier{counts: map[string]int{"a1": 4}}
	counter := NewBatchedCounter(querier)
	ctx := context.Background()

	counter.Preload(ctx, []string{"a1", "a1", "a1"})

	for range 3 {
		got, err := counter.BookCount(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, 4, got)
	}

	require.Equal(t, 1, querier.callCount())
	assert.Equal(t, []string{"a1"}, querier.calls[0])
}

func TestBatchedCounter_ZeroLoadsZeroQueries(t *testing.T) {
	querier := &fakeQuerier{counts: map[string]int{}}
	counter := NewBatchedCounter(querier)

	counter.Preload(context.Background(), nil)

	assert.Equal(t, 0, querier.callCount())
}

func TestBatchedCounter_ErrorFailsWholeBatch(t *testing.T) {
	batchErr := errors.New("store unavailable")
	querier := &fakeQuerier{err: batchErr}
	counter := NewBatchedCounter(querier)
	ctx := context.Background()

	counter.Preload(ctx, []string{"a1", "a2"})

	_, err1 := counter.BookCount(ctx, "a1")
	_, err2 := counter.BookCount(ctx, "a2")

	assert.ErrorIs(t, err1, batchErr)
	assert.ErrorIs(t, err2, batchErr)
	assert.Equal(t, 1, querier.callCount(), "no partial success, no retry")
}

func TestBatchedCounter_CacheIsOperationScoped(t *testing.T) {
	querier := &fakeQuerier{counts: map[string]int{"a1": 1}}
	factory, err := NewFactory(StrategyBatched, querier)
	require.NoError(t, err)
	ctx := context.Background()

	first := factory()
	got, err := first.BookCount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	// A write lands between the two read operations.
	querier.counts["a1"] = 2

	second := factory()
	got, err = second.BookCount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, got, "a fresh counter must not reuse a previous operation's cache")

	assert.Equal(t, 2, querier.callCount(), "each read operation issues its own query")
}

func TestBatchedCounter_CachesWithinOperation(t *testing.T) {
	querier := &fakeQuerier{counts: map[string]int{"a1": 1}}
	counter := NewBatchedCounter(querier)
	ctx := context.Background()

	got, err := counter.BookCount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	// Another request's write during this operation's window.
	querier.counts["a1"] = 5

	// Same operation, same author: the cached result is returned and no
	// second query is issued.
	got, err = counter.BookCount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	assert.Equal(t, 1, querier.callCount())
}

func TestDirectCounter_OneQueryPerCount(t *testing.T) {
	querier := &fakeQuerier{counts: map[string]int{"a1": 3, "a2": 1}}
	factory, err := NewFactory(StrategyDirect, querier)
	require.NoError(t, err)
	counter := factory()
	ctx := context.Background()

	counter.Preload(ctx, []string{"a1", "a2"}) // no-op for the direct strategy
	assert.Equal(t, 0, querier.callCount())

	got, err := counter.BookCount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	got, err = counter.BookCount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	assert.Equal(t, 2, querier.callCount(), "direct strategy never caches")
}

func TestNewFactory_UnknownStrategy(t *testing.T) {
	_, err := NewFactory("hybrid", &fakeQuerier{})
	assert.Error(t, err)
}
