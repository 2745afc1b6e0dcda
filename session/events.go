package session

import "github.com/poiesic/loupe/core"

// EventType identifies a controller event.
type EventType int

const (
	// EventMatchesChanged fires on every growth of the match set.
	EventMatchesChanged EventType = iota + 1
	// EventActiveIndexChanged fires when the navigation cursor moves.
	EventActiveIndexChanged
	// EventPendingChanged fires when a search starts or settles.
	EventPendingChanged
	// EventSelectionRequested asks the presentation layer to move the
	// caret to a match range and scroll it into view.
	EventSelectionRequested
	// EventInputErrors fires when query building fails field validation.
	EventInputErrors
	// EventSearchFailed fires once when the search backend errors.
	EventSearchFailed
	// EventSemanticProgress fires on each indexing progress update.
	EventSemanticProgress
	// EventSemanticResults fires when a semantic query completes.
	EventSemanticResults
	// EventIndexFailed fires once when an index request fails.
	EventIndexFailed
)

// Event is a notification emitted by the controller. Handlers run on the
// controller's goroutine and must not block.
type Event interface {
	Type() EventType
}

// MatchesChangedEvent reports the new size of the match set.
type MatchesChangedEvent struct {
	Count int
}

// ActiveIndexChangedEvent reports the new cursor, with OK false when the
// cursor is cleared.
type ActiveIndexChangedEvent struct {
	Index int
	OK    bool
}

// PendingChangedEvent reports whether a search is in flight.
type PendingChangedEvent struct {
	Pending bool
}

// SelectionRequestedEvent carries the match range the caller should
// select and reveal.
type SelectionRequestedEvent struct {
	Range core.MatchRange
}

// InputErrorsEvent carries the per-field validation failures of a build.
type InputErrorsEvent struct {
	Errors *core.FieldErrors
}

// SearchFailedEvent reports a terminal backend failure. Matches already
// accumulated are preserved.
type SearchFailedEvent struct {
	Err error
}

// SemanticProgressEvent reports indexing progress.
type SemanticProgressEvent struct {
	Done  int
	Total int
}

// SemanticResultsEvent carries ranked results of a semantic query.
type SemanticResultsEvent struct {
	Results []core.SemanticResult
}

// IndexFailedEvent reports a failed index request. Semantic mode has
// returned to off; it is not retried automatically.
type IndexFailedEvent struct {
	Err error
}

func (MatchesChangedEvent) Type() EventType     { return EventMatchesChanged }
func (ActiveIndexChangedEvent) Type() EventType { return EventActiveIndexChanged }
func (PendingChangedEvent) Type() EventType     { return EventPendingChanged }
func (SelectionRequestedEvent) Type() EventType { return EventSelectionRequested }
func (InputErrorsEvent) Type() EventType        { return EventInputErrors }
func (SearchFailedEvent) Type() EventType       { return EventSearchFailed }
func (SemanticProgressEvent) Type() EventType   { return EventSemanticProgress }
func (SemanticResultsEvent) Type() EventType    { return EventSemanticResults }
func (IndexFailedEvent) Type() EventType        { return EventIndexFailed }
