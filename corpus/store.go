package corpus

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/poiesic/loupe/core"
)

// Document is a single text file tracked by the store. Contents carry a
// version number that advances on every edit; anchors taken against an
// older version are translated through the edit log on resolution.
type Document struct {
	ID      core.ID
	Path    string
	Version uint64
	Text    string
}

// edit records a single splice applied to a document: at Pos, Deleted
// bytes were removed and Inserted bytes were added.
type edit struct {
	version  uint64
	pos      int
	deleted  int
	inserted int
}

type docState struct {
	doc   Document
	edits []edit
}

// Store is a versioned, in-memory view of a project's text files.
// Documents are identified by content-addressed path IDs and may be
// edited while searches over them are in flight; anchored positions are
// resolved through the per-document edit log.
type Store struct {
	root   string
	logger *slog.Logger

	mu   sync.RWMutex
	docs map[core.ID]*docState
}

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewStore creates an empty store rooted at the given directory.
func NewStore(root string, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, ErrRootRequired
	}
	s := &Store{
		root:   root,
		logger: slog.Default(),
		docs:   make(map[core.ID]*docState),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Root returns the directory the store was rooted at.
func (s *Store) Root() string {
	return s.root
}

// Load walks the root directory and loads every regular file into the
// store. Hidden directories are skipped. Files that cannot be read are
// logged and skipped rather than failing the whole walk.
func (s *Store) Load() error {
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && path != s.root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if loadErr := s.LoadFile(path); loadErr != nil {
			s.logger.Warn("skipping unreadable file", "path", path, "err", loadErr)
		}
		return nil
	})
}

// LoadFile reads a single file from disk into the store. If the
// document already exists its contents are replaced as an edit, so
// existing anchors remain resolvable.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	s.mu.Lock()
	defer s.mu.Unlock()

	id := core.IDFromContent(rel)
	if state, ok := s.docs[id]; ok {
		s.replaceLocked(state, string(data))
		return nil
	}
	s.docs[id] = &docState{doc: Document{
		ID:      id,
		Path:    rel,
		Version: 1,
		Text:    string(data),
	}}
	return nil
}

// AddDocument inserts a document directly, bypassing the filesystem.
// Used by tests and by callers that manage their own file contents.
func (s *Store) AddDocument(path, text string) core.ID {
	path = filepath.ToSlash(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	id := core.IDFromContent(path)
	if state, ok := s.docs[id]; ok {
		s.replaceLocked(state, text)
		return id
	}
	s.docs[id] = &docState{doc: Document{
		ID:      id,
		Path:    path,
		Version: 1,
		Text:    text,
	}}
	return id
}

// replaceLocked swaps a document's entire text, recording the change as
// a single whole-document edit. Caller holds s.mu.
func (s *Store) replaceLocked(state *docState, text string) {
	state.doc.Version++
	state.edits = append(state.edits, edit{
		version:  state.doc.Version,
		pos:      0,
		deleted:  len(state.doc.Text),
		inserted: len(text),
	})
	state.doc.Text = text
}

// Edit splices a document: at pos, remove deleted bytes and insert the
// given text. Returns the document's new version.
func (s *Store) Edit(id core.ID, pos, deleted int, insert string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.docs[id]
	if !ok {
		return 0, ErrUnknownDocument
	}
	text := state.doc.Text
	if pos < 0 || pos+deleted > len(text) {
		return 0, fmt.Errorf("%w: splice [%d,%d) outside document of %d bytes",
			ErrInvalidEdit, pos, pos+deleted, len(text))
	}
	state.doc.Version++
	state.edits = append(state.edits, edit{
		version:  state.doc.Version,
		pos:      pos,
		deleted:  deleted,
		inserted: len(insert),
	})
	state.doc.Text = text[:pos] + insert + text[pos+deleted:]
	return state.doc.Version, nil
}

// Remove drops the document at the given store-relative path. It
// reports whether a document was present. Anchors into a removed
// document no longer resolve.
func (s *Store) Remove(path string) bool {
	path = filepath.ToSlash(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	id := core.IDFromContent(path)
	if _, ok := s.docs[id]; !ok {
		return false
	}
	delete(s.docs, id)
	return true
}

// Document returns a snapshot of the document with the given ID.
func (s *Store) Document(id core.ID) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.docs[id]
	if !ok {
		return Document{}, false
	}
	return state.doc, true
}

// Documents returns snapshots of all documents, ordered by path.
func (s *Store) Documents() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0, len(s.docs))
	for _, state := range s.docs {
		docs = append(docs, state.doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].Path < docs[j].Path
	})
	return docs
}

// Anchor captures the given offset against the document's current version.
func (s *Store) Anchor(id core.ID, offset int) (core.Anchor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.docs[id]
	if !ok {
		return core.Anchor{}, ErrUnknownDocument
	}
	return core.Anchor{Offset: offset, Version: state.doc.Version}, nil
}

// Resolve translates an anchor taken at an earlier document version to
// an offset in the document's current text, replaying edits made since
// the anchor was captured. An anchor inside a deleted region collapses
// to the deletion point.
func (s *Store) Resolve(id core.ID, a core.Anchor) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.docs[id]
	if !ok {
		return 0, ErrUnknownDocument
	}
	offset := a.Offset
	for _, e := range state.edits {
		if e.version <= a.Version {
			continue
		}
		switch {
		case offset < e.pos:
			// Edit is entirely after the anchor.
		case offset < e.pos+e.deleted:
			offset = e.pos
		default:
			offset += e.inserted - e.deleted
		}
	}
	if offset > len(state.doc.Text) {
		offset = len(state.doc.Text)
	}
	return offset, nil
}
