package semantic

import "errors"

var (
	// ErrIndexerRequired is returned when a coordinator is created without an indexer.
	ErrIndexerRequired = errors.New("indexer required")

	// ErrPostRequired is returned when no Post callback is provided.
	ErrPostRequired = errors.New("post callback required")
)
