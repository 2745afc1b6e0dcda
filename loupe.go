// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package loupe coordinates full-project text/regex search with an
// optional embedding-based semantic mode. Search opens one project's
// corpus, wires the streaming text engine and semantic index to a
// session controller, and hands back the controller as the command
// surface.
package loupe

import (
	"log/slog"

	"github.com/poiesic/loupe/core"
	"github.com/poiesic/loupe/corpus"
	"github.com/poiesic/loupe/embed"
	"github.com/poiesic/loupe/engine"
	"github.com/poiesic/loupe/semantic"
	"github.com/poiesic/loupe/semantic/badgerindex"
	"github.com/poiesic/loupe/session"
)

// Search bundles everything one project's search needs: the versioned
// corpus, the text engine, the optional semantic index, and the
// controller that owns all search state.
type Search struct {
	store      *corpus.Store
	watcher    *corpus.Watcher
	index      *badgerindex.Index
	controller *session.Controller
	logger     *slog.Logger
}

type searchOptions struct {
	watch         bool
	embedder      embed.Embedder
	embedConfig   *embed.Config
	indexPath     string
	semanticOpts  []semantic.Option
	logger        *slog.Logger
	engineOpts    []engine.Option
	semanticWired bool
}

// SearchOption configures a Search.
type SearchOption func(*searchOptions)

// WithWatcher keeps the corpus synchronized with filesystem changes.
func WithWatcher() SearchOption {
	return func(o *searchOptions) {
		o.watch = true
	}
}

// WithSemantic enables semantic mode backed by an embedding index stored
// at indexPath (empty for in-memory) using the configured embedding
// service.
func WithSemantic(cfg *embed.Config, indexPath string, opts ...semantic.Option) SearchOption {
	return func(o *searchOptions) {
		o.embedConfig = cfg
		o.indexPath = indexPath
		o.semanticOpts = opts
		o.semanticWired = true
	}
}

// WithEmbedder supplies an embedder directly, overriding the embedding
// service config. Combined with WithSemantic's index path.
func WithEmbedder(embedder embed.Embedder) SearchOption {
	return func(o *searchOptions) {
		o.embedder = embedder
		o.semanticWired = true
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) SearchOption {
	return func(o *searchOptions) {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
	}
}

// WithEngineOptions forwards options to the text search engine.
func WithEngineOptions(opts ...engine.Option) SearchOption {
	return func(o *searchOptions) {
		o.engineOpts = append(o.engineOpts, opts...)
	}
}

// Open loads the project rooted at root and starts its controller.
func Open(root string, opts ...SearchOption) (*Search, error) {
	options := &searchOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	store, err := corpus.NewStore(root, corpus.WithLogger(options.logger))
	if err != nil {
		return nil, err
	}
	if err := store.Load(); err != nil {
		return nil, err
	}

	eng, err := engine.New(store, append([]engine.Option{engine.WithLogger(options.logger)}, options.engineOpts...)...)
	if err != nil {
		return nil, err
	}

	s := &Search{
		store:  store,
		logger: options.logger,
	}

	controllerOpts := []session.Option{
		session.WithLogger(options.logger),
		session.WithAnchorResolver(func(doc core.ID, a core.Anchor) int {
			offset, resolveErr := store.Resolve(doc, a)
			if resolveErr != nil {
				return a.Offset
			}
			return offset
		}),
	}

	if options.semanticWired {
		embedder := options.embedder
		if embedder == nil {
			cfg := options.embedConfig
			if cfg == nil {
				cfg = embed.DefaultConfig()
			}
			embedder, err = embed.NewOpenAI(cfg)
			if err != nil {
				return nil, err
			}
		}
		index, indexErr := badgerindex.Open(options.indexPath, store, embedder, badgerindex.WithLogger(options.logger))
		if indexErr != nil {
			return nil, indexErr
		}
		s.index = index
		controllerOpts = append(controllerOpts,
			session.WithSemanticIndexer(index, root, options.semanticOpts...))
	}

	controller, err := session.NewController(eng, controllerOpts...)
	if err != nil {
		s.closePartial()
		return nil, err
	}
	s.controller = controller

	if options.watch {
		watcher, watchErr := corpus.NewWatcher(store, corpus.WithWatcherLogger(options.logger))
		if watchErr != nil {
			controller.Close()
			s.closePartial()
			return nil, watchErr
		}
		s.watcher = watcher
	}

	return s, nil
}

// Controller returns the command and notification surface.
func (s *Search) Controller() *session.Controller {
	return s.controller
}

// Store returns the project's document store.
func (s *Search) Store() *corpus.Store {
	return s.store
}

// Close stops the controller, the watcher, and the semantic index.
func (s *Search) Close() error {
	if s.controller != nil {
		s.controller.Close()
	}
	return s.closePartial()
}

func (s *Search) closePartial() error {
	var firstErr error
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			s.logger.Error("error closing watcher", "err", err)
			firstErr = err
		}
	}
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			s.logger.Error("error closing semantic index", "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
