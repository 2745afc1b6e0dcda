// Package engine implements the project text search capability: given a
// validated query, it scans the corpus in parallel and streams grouped
// per-document matches until exhaustion or cancellation.
package engine

import (
	"context"
	"log/slog"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/loupe/core"
	"github.com/poiesic/loupe/corpus"
)

// Engine searches a corpus store. It is stateless between calls; each
// Search snapshots the document set at dispatch time.
type Engine struct {
	store  *corpus.Store
	limit  int
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithConcurrency bounds how many documents are scanned in parallel.
// Default is runtime.NumCPU().
func WithConcurrency(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			n = 1
		}
		e.limit = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// New creates an engine over the given store.
func New(store *corpus.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	e := &Engine{
		store:  store,
		limit:  runtime.NumCPU(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Search scans every document passing the query's path filters and
// streams one DocumentMatches per matching document. The match channel
// is closed when the scan finishes or ctx is cancelled; a terminal
// failure is delivered on the error channel, which carries at most one
// value and is closed with the stream.
func (e *Engine) Search(ctx context.Context, query core.Query) (<-chan core.DocumentMatches, <-chan error) {
	out := make(chan core.DocumentMatches)
	errs := make(chan error, 1)

	docs := e.store.Documents()

	go func() {
		defer close(out)
		defer close(errs)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.limit)

		for _, doc := range docs {
			if !query.MatchesPath(doc.Path) {
				continue
			}
			doc := doc
			g.Go(func() error {
				matches, ok := scanDocument(doc, query)
				if !ok {
					return nil
				}
				select {
				case out <- matches:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}

		if err := g.Wait(); err != nil && ctx.Err() == nil {
			e.logger.Error("search scan failed", "pattern", query.Pattern(), "err", err)
			errs <- err
		}
	}()

	return out, errs
}

// scanDocument finds every occurrence of the query within one document,
// anchoring ranges to the document's snapshot version.
func scanDocument(doc corpus.Document, query core.Query) (core.DocumentMatches, bool) {
	if isBinary(doc.Text) {
		return core.DocumentMatches{}, false
	}
	locs := query.Regexp().FindAllStringIndex(doc.Text, -1)
	if len(locs) == 0 {
		return core.DocumentMatches{}, false
	}
	ranges := make([]core.MatchRange, len(locs))
	for i, loc := range locs {
		ranges[i] = core.MatchRange{
			Doc:   doc.ID,
			Path:  doc.Path,
			Start: core.Anchor{Offset: loc[0], Version: doc.Version},
			End:   core.Anchor{Offset: loc[1], Version: doc.Version},
		}
	}
	return core.DocumentMatches{Doc: doc.ID, Path: doc.Path, Ranges: ranges}, true
}

// isBinary uses a NUL byte as a cheap binary-content heuristic.
func isBinary(text string) bool {
	return strings.ContainsRune(text, 0)
}
