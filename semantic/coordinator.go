package semantic

import (
	"context"
	"log/slog"

	"github.com/poiesic/loupe/core"
)

// Indexer is the external semantic index capability the coordinator
// orchestrates. Implementations must be safe for concurrent use.
type Indexer interface {
	// RequestIndex starts indexing the project's files. It returns the
	// total number of files to index and a channel of outstanding-file
	// counts; the channel is closed (or yields 0) when indexing is done.
	RequestIndex(ctx context.Context, project string) (total int, progress <-chan int, err error)

	// SemanticSearch ranks project content against the phrase, returning
	// up to limit results ordered by similarity.
	SemanticSearch(ctx context.Context, project string, phrase string, limit int) ([]core.SemanticResult, error)
}

// Callbacks routes the coordinator's asynchronous work back to its
// single-threaded owner. Post must execute the function on the owner's
// goroutine; the remaining callbacks are invoked only from within such
// posted functions.
type Callbacks struct {
	Post       func(func())
	Progress   func(done, total int)
	Results    func([]core.SemanticResult)
	IndexError func(error)
	QueryError func(error)
}

// Coordinator manages the semantic search lifecycle for one project:
// requesting indexing on toggle-on, tracking outstanding-file progress,
// and holding at most one in-flight semantic query.
//
// All methods must be called from the owner's goroutine. Coordinator
// state is never mutated directly by background work; listeners post
// closures through Callbacks.Post, and every posted closure re-checks
// the toggle generation it was spawned under so work from a superseded
// toggle cycle is discarded.
type Coordinator struct {
	indexer Indexer
	project string
	limit   int
	logger  *slog.Logger
	cb      Callbacks

	gen          int
	active       bool
	fileCount    int
	outstanding  int
	queryRunning bool
	ctx          context.Context
	cancel       context.CancelFunc
}

// Option configures a Coordinator.
type Option func(*Coordinator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithResultLimit caps how many results a semantic query returns.
// Default is 10.
func WithResultLimit(limit int) Option {
	return func(c *Coordinator) error {
		if limit < 1 {
			limit = 1
		}
		c.limit = limit
		return nil
	}
}

// NewCoordinator creates a coordinator in the off state.
func NewCoordinator(indexer Indexer, project string, cb Callbacks, opts ...Option) (*Coordinator, error) {
	if indexer == nil {
		return nil, ErrIndexerRequired
	}
	if cb.Post == nil {
		return nil, ErrPostRequired
	}
	c := &Coordinator{
		indexer: indexer,
		project: project,
		limit:   10,
		logger:  slog.Default().With("component", "semantic"),
		cb:      cb,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Active reports whether semantic mode is toggled on.
func (c *Coordinator) Active() bool {
	return c.active
}

// Outstanding returns how many files remain to be indexed.
func (c *Coordinator) Outstanding() int {
	return c.outstanding
}

// QueryRunning reports whether a semantic query task is in flight.
func (c *Coordinator) QueryRunning() bool {
	return c.queryRunning
}

// Progress returns indexing progress as (done, total). ok is false when
// semantic mode is off.
func (c *Coordinator) Progress() (done, total int, ok bool) {
	if !c.active {
		return 0, 0, false
	}
	return c.fileCount - c.outstanding, c.fileCount, true
}

// ToggleOn requests indexing and starts the progress listener. A no-op
// if already on. The parent context bounds all work of this cycle.
func (c *Coordinator) ToggleOn(parent context.Context) {
	if c.active {
		return
	}
	c.gen++
	c.active = true
	c.fileCount = 0
	c.outstanding = 0
	c.ctx, c.cancel = context.WithCancel(parent)
	go c.requestIndex(c.ctx, c.gen)
}

// ToggleOff cancels the progress listener and any running query task and
// drops all semantic state. No partial results persist across toggles.
func (c *Coordinator) ToggleOff() {
	if !c.active {
		return
	}
	c.reset()
}

// reset invalidates outstanding posted work and returns to off.
func (c *Coordinator) reset() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.ctx = nil
	c.active = false
	c.fileCount = 0
	c.outstanding = 0
	c.queryRunning = false
}

// requestIndex runs off the owner goroutine: it makes the index request
// and then forwards progress counts until the channel closes, yields 0,
// or the cycle is cancelled. Counts are authoritative replacements, not
// deltas; out-of-order delivery shows a stale number but cannot corrupt
// state.
func (c *Coordinator) requestIndex(ctx context.Context, gen int) {
	total, progress, err := c.indexer.RequestIndex(ctx, c.project)
	if err != nil {
		c.cb.Post(func() {
			if gen != c.gen {
				return
			}
			c.logger.Error("index request failed", "project", c.project, "err", err)
			c.reset()
			if c.cb.IndexError != nil {
				c.cb.IndexError(err)
			}
		})
		return
	}

	c.cb.Post(func() {
		if gen != c.gen {
			return
		}
		c.fileCount = total
		c.outstanding = total
		if c.cb.Progress != nil {
			c.cb.Progress(0, total)
		}
	})

	for {
		select {
		case <-ctx.Done():
			return
		case count, ok := <-progress:
			if !ok {
				return
			}
			c.cb.Post(func() {
				if gen != c.gen {
					return
				}
				c.outstanding = count
				if c.cb.Progress != nil {
					c.cb.Progress(c.fileCount-count, c.fileCount)
				}
			})
			if count == 0 {
				return
			}
		}
	}
}

// IssueQuery dispatches a semantic query. At most one query task runs at
// a time: a new request while one is in flight is a no-op, neither
// cancelling nor queueing behind it.
func (c *Coordinator) IssueQuery(phrase string) {
	if !c.active || c.queryRunning {
		return
	}
	gen := c.gen
	ctx := c.ctx
	c.queryRunning = true

	go func() {
		results, err := c.indexer.SemanticSearch(ctx, c.project, phrase, c.limit)
		c.cb.Post(func() {
			if gen != c.gen {
				return
			}
			c.queryRunning = false
			if err != nil {
				c.logger.Error("semantic query failed", "phrase", phrase, "err", err)
				if c.cb.QueryError != nil {
					c.cb.QueryError(err)
				}
				return
			}
			if c.cb.Results != nil {
				c.cb.Results(results)
			}
		})
	}()
}
