package ingestion

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/kbase/ai"
	"github.com/poiesic/kbase/chunking"
	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/storage"
)

// Pipeline keeps the stores in step with file content. Each Consume call
// fingerprints a source, skips it when nothing changed, and otherwise tears
// down the old sections, chunks and vectors before indexing the new content.
type Pipeline struct {
	stores       storage.Stores
	engine       *chunking.Engine
	pool         *ants.Pool
	chunking     chunking.Config
	dimension    int
	contentTypes []string
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size used by ConsumeAll.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithChunkingConfig sets the chunk and section budgets.
func WithChunkingConfig(config chunking.Config) Option {
	return func(p *Pipeline) error {
		p.chunking = config
		return nil
	}
}

// WithEmbeddingDimension makes every chunk embedding be checked against n.
// Zero disables the check.
func WithEmbeddingDimension(n int) Option {
	return func(p *Pipeline) error {
		if n < 0 {
			return fmt.Errorf("embedding dimension must not be negative, got %d", n)
		}
		p.dimension = n
		return nil
	}
}

// WithContentTypes restricts indexing to the listed media types. By default
// every text/* type is accepted.
func WithContentTypes(types ...string) Option {
	return func(p *Pipeline) error {
		p.contentTypes = types
		return nil
	}
}

// WithClock replaces time.Now for ProcessedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) error {
		p.now = now
		return nil
	}
}

// NewPipeline creates a new indexing pipeline.
func NewPipeline(stores *storage.Stores, provider ai.AIProvider, opts ...Option) (*Pipeline, error) {
	if err := stores.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		stores:   *stores,
		pool:     pool,
		chunking: chunking.DefaultConfig(),
		now:      time.Now,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	engine, err := chunking.NewEngine(provider.Tokenizer(), provider.Embedder(),
		chunking.WithConfig(p.chunking),
		chunking.WithLogger(p.logger))
	if err != nil {
		p.Release()
		return nil, err
	}
	p.engine = engine

	return p, nil
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.engine != nil {
		p.engine.Release()
	}
	if p.pool != nil {
		p.pool.Release()
	}
}

// Consume brings the stores up to date with source. It returns true when the
// content was (re)indexed and false when the stored fingerprint already
// matched or the source's content type is not indexable.
//
// On failure the file is left Pending with an empty fingerprint so the next
// Consume rebuilds it. Broken engine output also marks the file Error.
func (p *Pipeline) Consume(ctx context.Context, source FileSource) (bool, error) {
	if source == nil {
		return false, ErrNilSource
	}
	fileID := source.FileID()
	if fileID == uuid.Nil {
		return false, ErrEmptyFileID
	}
	logger := p.logger.With("file_id", fileID, "name", source.FileName())

	if !p.indexable(source) {
		logger.Info("skipping unsupported content type", "content_type", source.(ContentTyper).ContentType())
		return false, p.markUnsupported(ctx, source)
	}

	fingerprint, err := p.fingerprint(ctx, source)
	if err != nil {
		return false, err
	}

	file, err := p.stores.Files.Get(ctx, fileID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		file = &core.KnowledgeFile{ID: fileID, Name: source.FileName(), Status: core.StatusPending}
		if err := p.stores.Files.Add(ctx, file); err != nil {
			return false, err
		}
	case err != nil:
		return false, err
	case bytes.Equal(file.ContentHash, fingerprint):
		logger.Debug("file unchanged")
		return false, nil
	default:
		if err := p.teardown(ctx, file); err != nil {
			return false, err
		}
	}

	start := time.Now()
	sections, chunks, err := p.build(ctx, source)
	if err != nil {
		if isInvariantViolation(err) {
			p.markError(ctx, fileID, logger)
		}
		return false, err
	}

	file, err = p.stores.Files.Get(ctx, fileID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("%w: %s", ErrFileVanished, fileID)
	}
	if err != nil {
		return false, err
	}
	file.Name = source.FileName()
	file.ContentHash = fingerprint
	file.ProcessedAt = p.now().UTC()
	file.Status = core.StatusIndexed
	if err := p.stores.Files.Update(ctx, file); err != nil {
		return false, err
	}

	logger.Info("file indexed", "sections", sections, "chunks", chunks, "duration", time.Since(start))
	return true, nil
}

// ConsumeResult is the outcome of one source in ConsumeAll.
type ConsumeResult struct {
	FileID  uuid.UUID
	Name    string
	Changed bool
	// Unsupported is set when the source was recorded with
	// StatusUnsupportedContentType instead of being indexed.
	Unsupported bool
	Err         error
}

// ConsumeAll runs Consume for every source on the pipeline's worker pool and
// returns one result per source in input order. The returned error is set
// only when the batch itself is invalid; per-file failures are in the results.
func (p *Pipeline) ConsumeAll(ctx context.Context, sources []FileSource) ([]ConsumeResult, error) {
	seen := make(map[uuid.UUID]string, len(sources))
	for _, source := range sources {
		if source == nil {
			return nil, ErrNilSource
		}
		id := source.FileID()
		if id == uuid.Nil {
			return nil, fmt.Errorf("%w: %s", ErrEmptyFileID, source.FileName())
		}
		if prev, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: %s and %s share id %s", ErrDuplicateSource, prev, source.FileName(), id)
		}
		seen[id] = source.FileName()
	}

	results := make([]ConsumeResult, len(sources))
	var wg sync.WaitGroup
	for i, source := range sources {
		results[i] = ConsumeResult{FileID: source.FileID(), Name: source.FileName()}
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			results[i].Changed, results[i].Err = p.Consume(ctx, source)
			results[i].Unsupported = results[i].Err == nil && !p.indexable(source)
		})
		if err != nil {
			wg.Done()
			results[i].Err = err
		}
	}
	wg.Wait()
	return results, nil
}

// Remove deletes a file and everything indexed from it, vectors included.
// Returns storage.ErrNotFound if the file is unknown.
func (p *Pipeline) Remove(ctx context.Context, fileID uuid.UUID) error {
	file, err := p.stores.Files.Get(ctx, fileID)
	if err != nil {
		return err
	}
	if err := p.teardown(ctx, file); err != nil {
		return err
	}
	if err := p.stores.Files.Delete(ctx, fileID); err != nil {
		return err
	}
	p.logger.Info("file removed", "file_id", fileID)
	return nil
}

// fingerprint streams the source through SHA-256.
func (p *Pipeline) fingerprint(ctx context.Context, source FileSource) ([]byte, error) {
	r, err := source.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// teardown resets file to Pending with no fingerprint, then removes its
// vectors, chunks and sections. The reset comes first so a teardown that
// fails part way still forces the next Consume to rebuild.
func (p *Pipeline) teardown(ctx context.Context, file *core.KnowledgeFile) error {
	file.ContentHash = nil
	file.Status = core.StatusPending
	if err := p.stores.Files.Update(ctx, file); err != nil {
		return err
	}

	ids, err := p.stores.Chunks.IDsByFile(ctx, file.ID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := p.stores.Vectors.Remove(ctx, id); err != nil {
			return err
		}
	}
	sections, err := p.stores.Sections.DeleteByFile(ctx, file.ID)
	if err != nil {
		return err
	}
	chunks, err := p.stores.Chunks.DeleteByFile(ctx, file.ID)
	if err != nil {
		return err
	}
	p.logger.Debug("tore down file", "file_id", file.ID, "sections", sections, "chunks", chunks, "vectors", len(ids))
	return nil
}

// build runs the engine over a fresh reader and persists its output.
func (p *Pipeline) build(ctx context.Context, source FileSource) (int, int, error) {
	r, err := source.Open(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer r.Close()

	fileID := source.FileID()
	sections, chunks := 0, 0
	for section, err := range p.engine.Sections(ctx, r) {
		if err != nil {
			return sections, chunks, err
		}
		section.FileID = fileID
		for _, chunk := range section.Chunks {
			chunk.FileID = fileID
		}
		if err := core.ValidateSection(section); err != nil {
			return sections, chunks, err
		}
		for _, chunk := range section.Chunks {
			if err := core.ValidateChunk(chunk, p.dimension); err != nil {
				return sections, chunks, err
			}
		}

		if err := p.stores.Sections.Add(ctx, section); err != nil {
			return sections, chunks, err
		}
		for _, chunk := range section.Chunks {
			if err := p.stores.Chunks.Add(ctx, chunk); err != nil {
				return sections, chunks, err
			}
			if err := p.stores.Vectors.Add(ctx, chunk.ID, chunk.Embedding); err != nil {
				return sections, chunks, err
			}
			chunks++
		}
		sections++
	}
	return sections, chunks, nil
}

// indexable reports whether the source's declared content type, if any, is
// accepted by the pipeline.
func (p *Pipeline) indexable(source FileSource) bool {
	ct, ok := source.(ContentTyper)
	return !ok || p.supported(ct.ContentType())
}

func (p *Pipeline) supported(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	if p.contentTypes == nil {
		return strings.HasPrefix(mediaType, "text/")
	}
	return slices.Contains(p.contentTypes, mediaType)
}

// markUnsupported records the source with StatusUnsupportedContentType,
// dropping anything indexed from an earlier, supported version.
func (p *Pipeline) markUnsupported(ctx context.Context, source FileSource) error {
	file, err := p.stores.Files.Get(ctx, source.FileID())
	if errors.Is(err, storage.ErrNotFound) {
		return p.stores.Files.Add(ctx, &core.KnowledgeFile{
			ID:          source.FileID(),
			Name:        source.FileName(),
			ProcessedAt: p.now().UTC(),
			Status:      core.StatusUnsupportedContentType,
		})
	}
	if err != nil {
		return err
	}
	if err := p.teardown(ctx, file); err != nil {
		return err
	}
	file.Name = source.FileName()
	file.ProcessedAt = p.now().UTC()
	file.Status = core.StatusUnsupportedContentType
	return p.stores.Files.Update(ctx, file)
}

// markError flags the file Error without a fingerprint. Failures are logged,
// not returned, so the original error reaches the caller.
func (p *Pipeline) markError(ctx context.Context, fileID uuid.UUID, logger *slog.Logger) {
	file, err := p.stores.Files.Get(ctx, fileID)
	if err != nil {
		logger.Warn("could not load file to mark error", "err", err)
		return
	}
	file.ContentHash = nil
	file.Status = core.StatusError
	if err := p.stores.Files.Update(ctx, file); err != nil {
		logger.Warn("could not mark file error", "err", err)
	}
}

func isInvariantViolation(err error) bool {
	return errors.Is(err, core.ErrInvalidSection) || errors.Is(err, core.ErrInvalidChunk)
}
