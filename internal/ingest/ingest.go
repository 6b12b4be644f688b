// Package ingest loads source pages into the vector store: fetch,
// extract, split into overlapping chunks, embed, upsert. Built as a
// batch job where a single bad source never sinks the run.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pitlane/f1gpt/internal/vectorstore"
)

// Fetcher retrieves the readable text of one page.
type Fetcher interface {
	Fetch(url string) (string, error)
}

// Embedder turns chunk texts into vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Writer is the vector store surface the pipeline writes through.
type Writer interface {
	GetOrCreateCollection(ctx context.Context, name string, dimension int) (*vectorstore.Collection, error)
	Upsert(ctx context.Context, coll *vectorstore.Collection, records []vectorstore.Record) error
}

// Config assembles an ingestion pipeline.
type Config struct {
	Fetcher    Fetcher
	Embedder   Embedder
	Store      Writer
	Logger     *slog.Logger
	Collection string

	ChunkSize    int // runes per chunk (0 = default 512)
	ChunkOverlap int // runes shared between consecutive chunks (0 = default 100)
	BatchSize    int // chunks embedded per provider call (0 = default 16)
}

// Pipeline ingests source URLs into one collection.
type Pipeline struct {
	fetcher    Fetcher
	embedder   Embedder
	store      Writer
	splitter   *Splitter
	logger     *slog.Logger
	collection string
	batchSize  int
}

// Result summarizes one ingestion run.
type Result struct {
	Sources int // URLs attempted
	Failed  int // URLs skipped after an error
	Chunks  int // records upserted
}

// New validates cfg and builds the pipeline.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	case cfg.Embedder == nil:
		return nil, errors.New("embedder is required")
	case cfg.Store == nil:
		return nil, errors.New("store is required")
	case cfg.Collection == "":
		return nil, errors.New("collection name is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 16
	}
	overlap := cfg.ChunkOverlap
	if overlap <= 0 {
		overlap = DefaultChunkOverlap
	}

	return &Pipeline{
		fetcher:    cfg.Fetcher,
		embedder:   cfg.Embedder,
		store:      cfg.Store,
		splitter:   NewSplitter(cfg.ChunkSize, overlap),
		logger:     logger,
		collection: cfg.Collection,
		batchSize:  batch,
	}, nil
}

// Run ingests every URL in sources. Per-URL failures are logged and
// counted, not fatal; an unreachable store or a canceled context ends
// the run.
func (p *Pipeline) Run(ctx context.Context, sources []string) (Result, error) {
	coll, err := p.store.GetOrCreateCollection(ctx, p.collection, p.embedder.Dimension())
	if err != nil {
		return Result{}, fmt.Errorf("opening collection %s: %w", p.collection, err)
	}

	var res Result
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Sources++

		n, err := p.ingestURL(ctx, coll, src)
		if err != nil {
			res.Failed++
			p.logger.Warn("skipping source", "url", src, "error", err)
			continue
		}
		res.Chunks += n
		p.logger.Info("ingested source", "url", src, "chunks", n)
	}

	p.logger.Info("ingestion finished",
		"sources", res.Sources,
		"failed", res.Failed,
		"chunks", res.Chunks,
	)
	return res, nil
}

// ingestURL processes one source end to end and returns the number of
// records written.
func (p *Pipeline) ingestURL(ctx context.Context, coll *vectorstore.Collection, src string) (int, error) {
	text, err := p.fetcher.Fetch(src)
	if err != nil {
		return 0, err
	}

	chunks := p.splitter.Split(text)
	if len(chunks) == 0 {
		return 0, errors.New("no text content")
	}

	written := 0
	for start := 0; start < len(chunks); start += p.batchSize {
		end := min(start+p.batchSize, len(chunks))
		batch := chunks[start:end]

		vectors, err := p.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			return written, fmt.Errorf("embedding chunks %d-%d: %w", start, end-1, err)
		}

		records := make([]vectorstore.Record, len(batch))
		for i, chunk := range batch {
			records[i] = vectorstore.Record{
				ID:     chunkID(src, start+i),
				Text:   chunk,
				Vector: vectors[i],
				Metadata: map[string]string{
					"source": src,
				},
			}
		}
		if err := p.store.Upsert(ctx, coll, records); err != nil {
			return written, fmt.Errorf("upserting chunks %d-%d: %w", start, end-1, err)
		}
		written += len(records)
	}
	return written, nil
}

// chunkID derives a stable id from the source URL and chunk index so
// re-ingesting a page replaces its rows instead of duplicating them.
func chunkID(src string, index int) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "%s#%d", src, index))
}
