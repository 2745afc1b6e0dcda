package engine

import "errors"

var (
	// ErrStoreRequired is returned when an engine is created without a corpus store.
	ErrStoreRequired = errors.New("corpus store required")
)
