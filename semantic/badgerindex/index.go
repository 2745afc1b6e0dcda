package badgerindex

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/loupe/core"
	"github.com/poiesic/loupe/corpus"
	"github.com/poiesic/loupe/embed"
	"github.com/poiesic/loupe/semantic"
)

const (
	// chunkSize is the target byte length of one embedded document slice.
	chunkSize = 1024
	// excerptLen caps the stored preview text per chunk.
	excerptLen = 160
)

// Index is a badger-backed embedding index over a corpus store. It
// implements semantic.Indexer: RequestIndex embeds every document's
// chunks with a bounded worker pool, reporting outstanding-file counts
// on a progress channel, and SemanticSearch ranks stored vectors against
// an embedded phrase by cosine similarity.
type Index struct {
	db       *badger.DB
	store    *corpus.Store
	embedder embed.Embedder
	pool     *ants.Pool
	logger   *slog.Logger
	minScore float32
}

var _ semantic.Indexer = (*Index)(nil)

// Option configures an Index.
type Option func(*Index) error

// WithPoolSize sets the embedding worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(ix *Index) error {
		if size < 1 {
			size = 1
		}
		if ix.pool != nil {
			ix.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		ix.pool = pool
		return nil
	}
}

// WithMinScore filters out results below the similarity threshold.
// Default is 0 (no filtering).
func WithMinScore(score float32) Option {
	return func(ix *Index) error {
		ix.minScore = score
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger
		return nil
	}
}

// badgerLoggerAdapter adapts slog.Logger to the badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open creates an index at the given path. An empty path opens an
// in-memory database, used by tests.
func Open(path string, store *corpus.Store, embedder embed.Embedder, opts ...Option) (*Index, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	var dbOpts badger.Options
	if path == "" {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, err
		}
		dbOpts = badger.DefaultOptions(path)
	}
	dbOpts.Logger = &badgerLoggerAdapter{logger: slog.Default()}
	dbOpts.Compression = options.None

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	ix := &Index{
		db:       db,
		store:    store,
		embedder: embedder,
		pool:     pool,
		logger:   slog.Default().With("component", "badgerindex"),
	}
	for _, opt := range opts {
		if optErr := opt(ix); optErr != nil {
			ix.Close()
			return nil, optErr
		}
	}
	return ix, nil
}

// Close releases the worker pool and the database.
func (ix *Index) Close() error {
	if ix.pool != nil {
		ix.pool.Release()
	}
	return ix.db.Close()
}

// RequestIndex embeds every document in the store. It returns the total
// file count and a channel of outstanding-file counts that is closed
// once every file has been processed. Per-file embedding failures are
// logged and counted as processed rather than failing the request.
func (ix *Index) RequestIndex(ctx context.Context, project string) (int, <-chan int, error) {
	if project != "" && project != ix.store.Root() {
		return 0, nil, fmt.Errorf("%w: %q", ErrUnknownProject, project)
	}

	docs := ix.store.Documents()
	total := len(docs)
	progress := make(chan int, total+1)

	var outstanding atomic.Int64
	outstanding.Store(int64(total))

	var wg sync.WaitGroup
	for _, doc := range docs {
		wg.Add(1)
		submitErr := ix.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() == nil {
				if err := ix.indexDocument(ctx, doc); err != nil {
					ix.logger.Error("error indexing document", "path", doc.Path, "err", err)
				}
			}
			progress <- int(outstanding.Add(-1))
		})
		if submitErr != nil {
			wg.Done()
			progress <- int(outstanding.Add(-1))
			ix.logger.Error("error submitting index work", "path", doc.Path, "err", submitErr)
		}
	}

	go func() {
		wg.Wait()
		close(progress)
	}()

	return total, progress, nil
}

// indexDocument replaces the stored chunks for one document.
func (ix *Index) indexDocument(ctx context.Context, doc corpus.Document) error {
	chunks := splitChunks(doc.Text)
	if len(chunks) == 0 {
		return ix.deleteDocChunks(doc.ID)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = doc.Text[c.start:c.end]
	}
	vectors, err := ix.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(chunks), len(vectors))
	}

	return ix.db.Update(func(tx *badger.Txn) error {
		// Drop any chunks a longer previous version left behind.
		if err := deleteDocChunksTx(tx, doc.ID); err != nil {
			return err
		}
		for i, c := range chunks {
			record := &chunkRecord{
				Path:    doc.Path,
				Doc:     uint64(doc.ID),
				Version: doc.Version,
				Start:   c.start,
				End:     c.end,
				Excerpt: excerpt(texts[i]),
				Vector:  normalize(vectors[i]),
			}
			if err := tx.Set(makeChunkKey(doc.ID, i), marshalChunkRecord(record)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (ix *Index) deleteDocChunks(doc core.ID) error {
	return ix.db.Update(func(tx *badger.Txn) error {
		return deleteDocChunksTx(tx, doc)
	})
}

func deleteDocChunksTx(tx *badger.Txn, doc core.ID) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeDocPrefix(doc)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()
	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// SemanticSearch embeds the phrase and ranks every stored chunk by
// cosine similarity (dot product over normalized vectors), returning the
// top limit results.
func (ix *Index) SemanticSearch(ctx context.Context, project string, phrase string, limit int) ([]core.SemanticResult, error) {
	if project != "" && project != ix.store.Root() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProject, project)
	}

	queryVector, err := ix.embedder.EmbedText(ctx, phrase)
	if err != nil {
		return nil, err
	}
	queryVector = normalize(queryVector)

	var results []core.SemanticResult
	err = ix.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var record *chunkRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = unmarshalChunkRecord(val)
				return err
			})
			if err != nil {
				return err
			}

			score := dotProduct(queryVector, record.Vector)
			if score < ix.minScore {
				continue
			}
			doc := core.ID(record.Doc)
			results = append(results, core.SemanticResult{
				Doc:     doc,
				Path:    record.Path,
				Excerpt: record.Excerpt,
				Score:   score,
				Range: core.MatchRange{
					Doc:   doc,
					Path:  record.Path,
					Start: core.Anchor{Offset: record.Start, Version: record.Version},
					End:   core.Anchor{Offset: record.End, Version: record.Version},
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b core.SemanticResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

type chunk struct {
	start, end int
}

// splitChunks slices text into roughly chunkSize pieces, breaking at
// line boundaries where one exists within the window and never inside
// a multi-byte rune.
func splitChunks(text string) []chunk {
	var chunks []chunk
	for start := 0; start < len(text); {
		end := start + chunkSize
		if end >= len(text) {
			end = len(text)
		} else if nl := strings.LastIndexByte(text[start:end], '\n'); nl > 0 {
			end = start + nl + 1
		} else {
			end = runeBoundaryBefore(text, end)
			if end <= start {
				end = start + chunkSize
			}
		}
		if strings.TrimSpace(text[start:end]) != "" {
			chunks = append(chunks, chunk{start: start, end: end})
		}
		start = end
	}
	return chunks
}

func excerpt(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > excerptLen {
		return text[:runeBoundaryBefore(text, excerptLen)]
	}
	return text
}

// runeBoundaryBefore walks end back to the nearest rune start so a cut
// at a byte offset cannot split a multi-byte rune.
func runeBoundaryBefore(text string, end int) int {
	for end > 0 && end < len(text) && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// normalize scales a vector to unit length so dot products are cosine
// similarities.
func normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return v
	}
	inv := 1.0 / math.Sqrt(sumSquares)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
