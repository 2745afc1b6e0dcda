// Package core defines the domain values shared across loupe: validated
// search queries, anchored match ranges, and identifiers.
package core

import (
	"encoding/binary"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Document IDs are generated by content-addressing the document path.
type ID uint64

// IDFromContent generates a deterministic ID from text using BLAKE2b hashing.
// Identical content always produces an identical ID.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Direction selects which neighbor of the active match a navigation
// step moves to.
type Direction int

const (
	// Next moves toward the end of the match set, wrapping to the start.
	Next Direction = iota + 1
	// Prev moves toward the start of the match set, wrapping to the end.
	Prev
)

// Anchor is a position within a document, stamped with the document
// version it was captured at. Anchors are resolved to current offsets
// through the owning store, so positions survive edits made after the
// anchor was taken.
type Anchor struct {
	Offset  int
	Version uint64
}

// MatchRange is a located occurrence of a search pattern within a
// document. Start and End are anchors, not raw offsets; the range stays
// meaningful while the document is edited underneath it.
type MatchRange struct {
	Doc   ID
	Path  string
	Start Anchor
	End   Anchor
}

// Before reports whether m sorts before other in the canonical match
// order: primarily by path, secondarily by position.
func (m MatchRange) Before(other MatchRange) bool {
	if m.Path != other.Path {
		return m.Path < other.Path
	}
	if m.Start.Offset != other.Start.Offset {
		return m.Start.Offset < other.Start.Offset
	}
	return m.End.Offset < other.End.Offset
}

// DocumentMatches groups every match found within a single document.
// The search capability guarantees all ranges for a document arrive
// together, but gives no cross-document ordering guarantee.
type DocumentMatches struct {
	Doc    ID
	Path   string
	Ranges []MatchRange
}

// SemanticResult is a similarity-ranked hit from the embedding index.
type SemanticResult struct {
	Doc     ID
	Path    string
	Range   MatchRange
	Excerpt string
	Score   float32
}
