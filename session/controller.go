package session

import (
	"context"
	"log/slog"
	"sort"

	"github.com/poiesic/loupe/core"
	"github.com/poiesic/loupe/semantic"
)

// Backend is the external project search capability: given a validated
// query it streams grouped per-document matches. The match channel
// closes on exhaustion or cancellation; a terminal failure arrives on
// the error channel, which carries at most one value and is closed with
// the stream.
type Backend interface {
	Search(ctx context.Context, query core.Query) (<-chan core.DocumentMatches, <-chan error)
}

// SearchOption is one of the three query mode toggles.
type SearchOption int

const (
	// OptionCaseSensitive toggles case-sensitive matching.
	OptionCaseSensitive SearchOption = iota + 1
	// OptionWholeWord toggles word-boundary matching.
	OptionWholeWord
	// OptionRegex toggles regular-expression interpretation of the query text.
	OptionRegex
)

// Session is one logical search lifecycle. The search ID increases
// monotonically with every execution; results arriving from a superseded
// execution are identified by their captured ID and discarded.
type Session struct {
	searchID    uint64
	activeQuery *core.Query
	matchRanges []core.MatchRange
	pending     bool
}

// inputState is the raw, not-yet-validated query input.
type inputState struct {
	queryText     string
	includeText   string
	excludeText   string
	caseSensitive bool
	wholeWord     bool
	isRegex       bool
}

// Controller owns all mutable search state for one project: the session,
// the navigation cursor, the raw input fields, and the semantic
// coordinator. Every mutation happens on the controller's run loop;
// asynchronous work posts closures into the loop and re-checks the
// search ID it captured at dispatch, so no stale result can touch state
// belonging to a newer search.
type Controller struct {
	backend Backend
	resolve AnchorResolver
	logger  *slog.Logger

	calls  chan func()
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// Loop-owned state below. Never touched off the run loop.
	session      Session
	input        inputState
	fieldErrs    *core.FieldErrors
	activeIndex  int
	hasActive    bool
	cancelSearch context.CancelFunc
	coordinator  *semantic.Coordinator
	handlers     map[int]func(Event)
	nextHandler  int
}

// Option configures a Controller.
type Option func(*Controller) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithAnchorResolver supplies the document layer's anchor translation,
// used when resynchronizing the cursor against a moved caret. Without
// one, anchors are compared by their captured offsets.
func WithAnchorResolver(resolve AnchorResolver) Option {
	return func(c *Controller) error {
		c.resolve = resolve
		return nil
	}
}

// WithSemanticIndexer enables semantic mode, backed by the given indexer
// scoped to the named project.
func WithSemanticIndexer(indexer semantic.Indexer, project string, opts ...semantic.Option) Option {
	return func(c *Controller) error {
		coord, err := semantic.NewCoordinator(indexer, project, semantic.Callbacks{
			Post: c.post,
			Progress: func(done, total int) {
				c.emit(SemanticProgressEvent{Done: done, Total: total})
			},
			Results:    c.applySemanticResults,
			IndexError: func(err error) { c.emit(IndexFailedEvent{Err: err}) },
			QueryError: func(err error) { c.emit(SearchFailedEvent{Err: err}) },
		}, opts...)
		if err != nil {
			return err
		}
		c.coordinator = coord
		return nil
	}
}

// NewController creates a controller and starts its run loop.
func NewController(backend Backend, opts ...Option) (*Controller, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend:  backend,
		logger:   slog.Default(),
		calls:    make(chan func(), 128),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		handlers: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			cancel()
			return nil, err
		}
	}
	go c.run()
	return c, nil
}

// run drains the serialized call queue until the controller is closed.
func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case fn := <-c.calls:
			fn()
		case <-c.ctx.Done():
			return
		}
	}
}

// post queues a state mutation onto the run loop. Dropped if the
// controller is closed.
func (c *Controller) post(fn func()) {
	select {
	case c.calls <- fn:
	case <-c.ctx.Done():
	}
}

// call runs fn on the loop and waits for it, for synchronous accessors.
func (c *Controller) call(fn func()) {
	ch := make(chan struct{})
	c.post(func() {
		fn()
		close(ch)
	})
	select {
	case <-ch:
	case <-c.ctx.Done():
	}
}

// Close cancels in-flight work and stops the run loop.
func (c *Controller) Close() {
	c.cancel()
	<-c.done
}

// Subscribe registers an event handler and returns its unsubscribe
// function. Handlers run on the controller goroutine and must not block.
func (c *Controller) Subscribe(handler func(Event)) func() {
	var id int
	c.call(func() {
		id = c.nextHandler
		c.nextHandler++
		c.handlers[id] = handler
	})
	return func() {
		c.post(func() {
			delete(c.handlers, id)
		})
	}
}

// emit dispatches an event to all handlers. Loop-only.
func (c *Controller) emit(ev Event) {
	for _, handler := range c.handlers {
		handler(ev)
	}
}

// SetQueryText replaces the raw query text.
func (c *Controller) SetQueryText(text string) {
	c.post(func() { c.input.queryText = text })
}

// SetIncludeText replaces the comma-separated include glob text.
func (c *Controller) SetIncludeText(text string) {
	c.post(func() { c.input.includeText = text })
}

// SetExcludeText replaces the comma-separated exclude glob text.
func (c *Controller) SetExcludeText(text string) {
	c.post(func() { c.input.excludeText = text })
}

// ToggleOption flips one of the query mode flags.
func (c *Controller) ToggleOption(opt SearchOption) {
	c.post(func() {
		switch opt {
		case OptionCaseSensitive:
			c.input.caseSensitive = !c.input.caseSensitive
		case OptionWholeWord:
			c.input.wholeWord = !c.input.wholeWord
		case OptionRegex:
			c.input.isRegex = !c.input.isRegex
		}
	})
}

// Execute validates the current input and runs it. With semantic mode on
// the text is dispatched as a semantic phrase instead; otherwise a failed
// build marks the offending fields and no search runs.
func (c *Controller) Execute() {
	c.post(c.executeLocked)
}

func (c *Controller) executeLocked() {
	if c.coordinator != nil && c.coordinator.Active() {
		c.issueSemanticLocked(c.input.queryText)
		return
	}
	if c.input.queryText == "" {
		return
	}
	query, ferrs := core.BuildQuery(
		c.input.queryText,
		c.input.wholeWord,
		c.input.caseSensitive,
		c.input.isRegex,
		c.input.includeText,
		c.input.excludeText,
	)
	if ferrs.Any() {
		c.fieldErrs = ferrs
		c.emit(InputErrorsEvent{Errors: ferrs})
		return
	}
	c.fieldErrs = nil
	c.startSearch(query)
}

// ExecuteQuery runs an already-built query, bypassing input validation.
func (c *Controller) ExecuteQuery(query core.Query) {
	c.post(func() { c.startSearch(query) })
}

// startSearch begins a new execution generation: supersede the previous
// task, clear accumulated state, and hand the stream to a consumer
// goroutine carrying the new search ID.
func (c *Controller) startSearch(query core.Query) {
	c.session.searchID++
	id := c.session.searchID
	c.session.activeQuery = &query
	c.session.matchRanges = nil
	c.hasActive = false
	c.emit(MatchesChangedEvent{Count: 0})
	c.emit(ActiveIndexChangedEvent{OK: false})
	c.setPending(true)

	if c.cancelSearch != nil {
		c.cancelSearch()
	}
	sctx, cancel := context.WithCancel(c.ctx)
	c.cancelSearch = cancel

	matches, errs := c.backend.Search(sctx, query)
	go c.consumeSearch(id, matches, errs)
}

// consumeSearch buffers the stream's per-document groups, establishes
// the visitation order with a single sort, then streams ranges into the
// loop one document at a time. Every posted closure re-checks the
// captured search ID so a superseded execution cannot mutate state.
func (c *Controller) consumeSearch(id uint64, matches <-chan core.DocumentMatches, errs <-chan error) {
	var groups []core.DocumentMatches
	for group := range matches {
		groups = append(groups, group)
	}
	streamErr := <-errs

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Path != groups[j].Path {
			return groups[i].Path < groups[j].Path
		}
		return groups[i].Doc < groups[j].Doc
	})
	for i := range groups {
		sort.Slice(groups[i].Ranges, func(a, b int) bool {
			return groups[i].Ranges[a].Before(groups[i].Ranges[b])
		})
	}

	for _, group := range groups {
		ranges := group.Ranges
		c.post(func() {
			if c.session.searchID != id {
				return
			}
			c.appendRanges(ranges)
		})
	}

	c.post(func() {
		if c.session.searchID != id {
			return
		}
		c.setPending(false)
		if streamErr != nil {
			c.logger.Error("search stream failed", "err", streamErr)
			c.emit(SearchFailedEvent{Err: streamErr})
		}
	})
}

// appendRanges grows the match set in the established order. The first
// append of an execution seats the cursor on the first match and asks
// the presentation layer to reveal it.
func (c *Controller) appendRanges(ranges []core.MatchRange) {
	c.session.matchRanges = append(c.session.matchRanges, ranges...)
	c.emit(MatchesChangedEvent{Count: len(c.session.matchRanges)})
	if !c.hasActive && len(c.session.matchRanges) > 0 {
		c.hasActive = true
		c.activeIndex = 0
		c.emit(ActiveIndexChangedEvent{Index: 0, OK: true})
		c.emit(SelectionRequestedEvent{Range: c.session.matchRanges[0]})
	}
}

func (c *Controller) setPending(pending bool) {
	if c.session.pending == pending {
		return
	}
	c.session.pending = pending
	c.emit(PendingChangedEvent{Pending: pending})
}

// Select moves the cursor one step and requests selection of the target.
func (c *Controller) Select(direction core.Direction) {
	c.post(func() {
		index, ok := SelectMatch(direction, c.activeIndex, c.hasActive, len(c.session.matchRanges))
		if !ok {
			return
		}
		c.activeIndex = index
		c.hasActive = true
		c.emit(ActiveIndexChangedEvent{Index: index, OK: true})
		c.emit(SelectionRequestedEvent{Range: c.session.matchRanges[index]})
	})
}

// ResyncCaret recomputes the cursor after the caret moved for a reason
// other than navigation, e.g. the user clicking into a result.
func (c *Controller) ResyncCaret(path string, offset int) {
	c.post(func() {
		index, ok := ResyncActiveIndex(c.session.matchRanges, path, offset, c.resolve)
		if ok == c.hasActive && (!ok || index == c.activeIndex) {
			return
		}
		c.activeIndex = index
		c.hasActive = ok
		c.emit(ActiveIndexChangedEvent{Index: index, OK: ok})
	})
}

// ToggleSemantic flips semantic mode. Toggling on requests indexing;
// toggling off cancels the indexing listener and any query task. A no-op
// when no semantic indexer is configured.
func (c *Controller) ToggleSemantic() {
	c.post(func() {
		if c.coordinator == nil {
			return
		}
		if c.coordinator.Active() {
			c.coordinator.ToggleOff()
			return
		}
		c.coordinator.ToggleOn(c.ctx)
	})
}

// IssueSemanticQuery dispatches a semantic query for the phrase.
func (c *Controller) IssueSemanticQuery(phrase string) {
	c.post(func() { c.issueSemanticLocked(phrase) })
}

func (c *Controller) issueSemanticLocked(phrase string) {
	if c.coordinator == nil || !c.coordinator.Active() {
		return
	}
	// Readiness signal, not an execution lock: queries are held back
	// while files are still outstanding.
	if c.coordinator.Outstanding() > 0 {
		return
	}
	if phrase == "" {
		return
	}
	c.coordinator.IssueQuery(phrase)
}

// applySemanticResults installs a completed semantic query's ranked hits
// as the session's match set. Ranked order is kept; it is the navigation
// order that makes sense for similarity results. Installing the set
// supersedes any text search still in flight, so its closures cannot
// interleave text ranges into the ranked set.
func (c *Controller) applySemanticResults(results []core.SemanticResult) {
	c.session.searchID++
	if c.cancelSearch != nil {
		c.cancelSearch()
		c.cancelSearch = nil
	}
	c.setPending(false)
	c.session.matchRanges = nil
	for _, result := range results {
		c.session.matchRanges = append(c.session.matchRanges, result.Range)
	}
	c.hasActive = false
	c.emit(SemanticResultsEvent{Results: results})
	c.appendRangesNotify()
}

func (c *Controller) appendRangesNotify() {
	c.emit(MatchesChangedEvent{Count: len(c.session.matchRanges)})
	if len(c.session.matchRanges) > 0 {
		c.hasActive = true
		c.activeIndex = 0
		c.emit(ActiveIndexChangedEvent{Index: 0, OK: true})
		c.emit(SelectionRequestedEvent{Range: c.session.matchRanges[0]})
	} else {
		c.emit(ActiveIndexChangedEvent{OK: false})
	}
}

// CurrentMatches returns a copy of the ordered match set.
func (c *Controller) CurrentMatches() []core.MatchRange {
	var out []core.MatchRange
	c.call(func() {
		out = append(out, c.session.matchRanges...)
	})
	return out
}

// ActiveIndex returns the cursor position. ok is false when no match is
// active, which happens both for an empty match set and for a caret
// outside every result.
func (c *Controller) ActiveIndex() (index int, ok bool) {
	c.call(func() {
		index, ok = c.activeIndex, c.hasActive
	})
	return index, ok
}

// IsPending reports whether a search is in flight.
func (c *Controller) IsPending() bool {
	var pending bool
	c.call(func() { pending = c.session.pending })
	return pending
}

// SearchID returns the current execution generation.
func (c *Controller) SearchID() uint64 {
	var id uint64
	c.call(func() { id = c.session.searchID })
	return id
}

// ActiveQuery returns the most recently executed query, if any.
func (c *Controller) ActiveQuery() (core.Query, bool) {
	var (
		query core.Query
		ok    bool
	)
	c.call(func() {
		if c.session.activeQuery != nil {
			query, ok = *c.session.activeQuery, true
		}
	})
	return query, ok
}

// FieldErrors returns the validation failures of the last Execute, or
// nil when the last build succeeded.
func (c *Controller) FieldErrors() *core.FieldErrors {
	var ferrs *core.FieldErrors
	c.call(func() { ferrs = c.fieldErrs })
	return ferrs
}

// SemanticProgress returns indexing progress as (done, total). ok is
// false while semantic mode is off.
func (c *Controller) SemanticProgress() (done, total int, ok bool) {
	c.call(func() {
		if c.coordinator != nil {
			done, total, ok = c.coordinator.Progress()
		}
	})
	return done, total, ok
}

// SemanticActive reports whether semantic mode is toggled on.
func (c *Controller) SemanticActive() bool {
	var active bool
	c.call(func() {
		active = c.coordinator != nil && c.coordinator.Active()
	})
	return active
}
