package semantic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/loupe/core"
)

// owner drains posted closures on a single goroutine, standing in for
// the controller run loop the coordinator is embedded in.
type owner struct {
	calls chan func()
	stop  chan struct{}
	done  chan struct{}
}

func newOwner() *owner {
	o := &owner{
		calls: make(chan func(), 64),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(o.done)
		for {
			select {
			case fn := <-o.calls:
				fn()
			case <-o.stop:
				return
			}
		}
	}()
	return o
}

func (o *owner) post(fn func()) {
	select {
	case o.calls <- fn:
	case <-o.stop:
	}
}

// call runs fn on the owner goroutine and waits for it.
func (o *owner) call(fn func()) {
	ch := make(chan struct{})
	o.post(func() {
		fn()
		close(ch)
	})
	<-ch
}

func (o *owner) close() {
	close(o.stop)
	<-o.done
}

type fakeIndexer struct {
	mu            sync.Mutex
	total         int
	progress      chan int
	indexErr      error
	results       []core.SemanticResult
	queryErr      error
	queryStarted  chan struct{}
	queryRelease  chan struct{}
	indexRequests int
	queryRequests int
}

func (f *fakeIndexer) RequestIndex(_ context.Context, _ string) (int, <-chan int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexRequests++
	if f.indexErr != nil {
		return 0, nil, f.indexErr
	}
	return f.total, f.progress, nil
}

func (f *fakeIndexer) SemanticSearch(_ context.Context, _, _ string, _ int) ([]core.SemanticResult, error) {
	f.mu.Lock()
	f.queryRequests++
	started := f.queryStarted
	release := f.queryRelease
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results, f.queryErr
}

func (f *fakeIndexer) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queryRequests
}

// progressLog records Progress callback invocations.
type progressLog struct {
	mu      sync.Mutex
	entries [][2]int
}

func (p *progressLog) record(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, [2]int{done, total})
}

func (p *progressLog) all() [][2]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][2]int(nil), p.entries...)
}

func TestNewCoordinator_Validation(t *testing.T) {
	_, err := NewCoordinator(nil, "p", Callbacks{Post: func(fn func()) {}})
	require.ErrorIs(t, err, ErrIndexerRequired)

	_, err = NewCoordinator(&fakeIndexer{}, "p", Callbacks{})
	require.ErrorIs(t, err, ErrPostRequired)
}

func TestCoordinator_ProgressStream(t *testing.T) {
	o := newOwner()
	defer o.close()

	idx := &fakeIndexer{total: 5, progress: make(chan int, 8)}
	log := &progressLog{}
	coord, err := NewCoordinator(idx, "proj", Callbacks{
		Post:     o.post,
		Progress: log.record,
	})
	require.NoError(t, err)

	o.call(func() { coord.ToggleOn(context.Background()) })

	idx.progress <- 5
	idx.progress <- 3
	idx.progress <- 0

	require.Eventually(t, func() bool {
		var outstanding int
		o.call(func() { outstanding = coord.Outstanding() })
		return outstanding == 0
	}, time.Second, 5*time.Millisecond)

	var done, total int
	var ok bool
	o.call(func() { done, total, ok = coord.Progress() })
	require.True(t, ok)
	assert.Equal(t, 5, done)
	assert.Equal(t, 5, total)

	entries := log.all()
	require.NotEmpty(t, entries)
	assert.Equal(t, [2]int{0, 5}, entries[0])
	assert.Equal(t, [2]int{5, 5}, entries[len(entries)-1])
	// Indexing completion never dispatches a query on its own.
	assert.Zero(t, idx.queryCount())
}

func TestCoordinator_IndexFailureReturnsToOff(t *testing.T) {
	o := newOwner()
	defer o.close()

	idx := &fakeIndexer{indexErr: errors.New("embedding host unreachable")}
	var failures []error
	var mu sync.Mutex
	coord, err := NewCoordinator(idx, "proj", Callbacks{
		Post: o.post,
		IndexError: func(err error) {
			mu.Lock()
			failures = append(failures, err)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	o.call(func() { coord.ToggleOn(context.Background()) })

	require.Eventually(t, func() bool {
		var active bool
		o.call(func() { active = coord.Active() })
		return !active
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failures, 1)
	assert.EqualError(t, failures[0], "embedding host unreachable")

	// No automatic retry.
	idx.mu.Lock()
	defer idx.mu.Unlock()
	assert.Equal(t, 1, idx.indexRequests)
}

func TestCoordinator_ToggleOffInvalidatesProgress(t *testing.T) {
	o := newOwner()
	defer o.close()

	idx := &fakeIndexer{total: 3, progress: make(chan int, 8)}
	log := &progressLog{}
	coord, err := NewCoordinator(idx, "proj", Callbacks{
		Post:     o.post,
		Progress: log.record,
	})
	require.NoError(t, err)

	o.call(func() { coord.ToggleOn(context.Background()) })
	require.Eventually(t, func() bool {
		var total int
		o.call(func() { _, total, _ = coord.Progress() })
		return total == 3
	}, time.Second, 5*time.Millisecond)

	o.call(func() { coord.ToggleOff() })
	before := len(log.all())

	// Counts from the superseded cycle must not resurface.
	idx.progress <- 2
	time.Sleep(50 * time.Millisecond)

	var active bool
	var ok bool
	o.call(func() {
		active = coord.Active()
		_, _, ok = coord.Progress()
	})
	assert.False(t, active)
	assert.False(t, ok)
	assert.Len(t, log.all(), before)
}

func TestCoordinator_SingleFlightQuery(t *testing.T) {
	o := newOwner()
	defer o.close()

	idx := &fakeIndexer{
		total:        0,
		progress:     make(chan int),
		queryStarted: make(chan struct{}, 1),
		queryRelease: make(chan struct{}),
		results: []core.SemanticResult{
			{Path: "lib.rs", Score: 0.92, Excerpt: "fn main"},
		},
	}
	close(idx.progress)

	var got [][]core.SemanticResult
	var mu sync.Mutex
	coord, err := NewCoordinator(idx, "proj", Callbacks{
		Post: o.post,
		Results: func(results []core.SemanticResult) {
			mu.Lock()
			got = append(got, results)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	o.call(func() { coord.ToggleOn(context.Background()) })
	o.call(func() { coord.IssueQuery("error handling") })
	<-idx.queryStarted

	// A second dispatch while the first runs is dropped, not queued.
	o.call(func() { coord.IssueQuery("something else") })

	close(idx.queryRelease)
	require.Eventually(t, func() bool {
		var running bool
		o.call(func() { running = coord.QueryRunning() })
		return !running
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, idx.queryCount())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "lib.rs", got[0][0].Path)
}

func TestCoordinator_QueryWhileOffIsNoOp(t *testing.T) {
	o := newOwner()
	defer o.close()

	idx := &fakeIndexer{}
	coord, err := NewCoordinator(idx, "proj", Callbacks{Post: o.post})
	require.NoError(t, err)

	o.call(func() { coord.IssueQuery("anything") })
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, idx.queryCount())
}

func TestCoordinator_QueryErrorReported(t *testing.T) {
	o := newOwner()
	defer o.close()

	idx := &fakeIndexer{
		progress: make(chan int),
		queryErr: errors.New("query embed failed"),
	}
	close(idx.progress)

	var failures []error
	var mu sync.Mutex
	coord, err := NewCoordinator(idx, "proj", Callbacks{
		Post: o.post,
		QueryError: func(err error) {
			mu.Lock()
			failures = append(failures, err)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	o.call(func() { coord.ToggleOn(context.Background()) })
	o.call(func() { coord.IssueQuery("broken") })

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(failures) == 1
	}, time.Second, 5*time.Millisecond)

	var running, active bool
	o.call(func() {
		running = coord.QueryRunning()
		active = coord.Active()
	})
	// A failed query leaves semantic mode on and ready for the next one.
	assert.False(t, running)
	assert.True(t, active)
}

func TestCoordinator_ToggleOffDiscardsInFlightQuery(t *testing.T) {
	o := newOwner()
	defer o.close()

	idx := &fakeIndexer{
		progress:     make(chan int),
		queryStarted: make(chan struct{}, 1),
		queryRelease: make(chan struct{}),
		results:      []core.SemanticResult{{Path: "stale.rs"}},
	}
	close(idx.progress)

	var got [][]core.SemanticResult
	var mu sync.Mutex
	coord, err := NewCoordinator(idx, "proj", Callbacks{
		Post: o.post,
		Results: func(results []core.SemanticResult) {
			mu.Lock()
			got = append(got, results)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	o.call(func() { coord.ToggleOn(context.Background()) })
	o.call(func() { coord.IssueQuery("soon stale") })
	<-idx.queryStarted

	o.call(func() { coord.ToggleOff() })
	close(idx.queryRelease)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, got)
}
