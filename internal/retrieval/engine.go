package retrieval

// Package retrieval matches failure summaries against a knowledge base of
// documented error patterns. Entries are embedded once (description and
// symptoms only) into a flat inner-product index; queries embed the
// summary, take the top-K candidates, drop everything under the
// similarity threshold and return the top-N survivors.
//
// The index and its metadata persist as a file pair. Both are written
// atomically and the metadata records which embedding model produced the
// vectors; loading under a different model identity is refused, since
// vectors from different models are not comparable.

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"context"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/embedding"
	"github.com/logtriage/logtriage-ai/internal/metrics"
	"github.com/logtriage/logtriage-ai/internal/models"
)

// ErrDisabled is returned by Query when retrieval is switched off, either
// by configuration or after a failed index load.
var ErrDisabled = errors.New("retrieval is disabled")

// Config holds retrieval engine settings.
type Config struct {
	Enabled             bool
	IndexPath           string
	MetadataPath        string
	TopK                int
	TopN                int
	SimilarityThreshold float64
	CacheTTL            time.Duration
}

// Result is one knowledge-base match with its similarity score.
type Result struct {
	Entry models.KnowledgeEntry `json:"entry"`
	Score float64               `json:"score"`
}

// QueryMetadata describes how a query was answered.
type QueryMetadata struct {
	NumResults          int     `json:"numResults"`
	NumCandidates       int     `json:"numCandidates"`
	NumFiltered         int     `json:"numFiltered"`
	BestScore           float64 `json:"bestScore"`
	SearchTimeMS        float64 `json:"searchTimeMs"`
	TopK                int     `json:"topK"`
	TopN                int     `json:"topN"`
	SimilarityThreshold float64 `json:"similarityThreshold"`
	Model               string  `json:"model"`
}

// QueryResponse is the complete answer to one retrieval query. Results
// may be empty; BestScore in the metadata then reports the highest score
// seen below threshold, which distinguishes "near miss" from "nothing
// remotely similar".
type QueryResponse struct {
	Query    string        `json:"query"`
	Results  []Result      `json:"results"`
	Metadata QueryMetadata `json:"metadata"`
}

// Engine owns the similarity index, the entry store and the query path.
// Queries are safe for concurrent use; Build and Load swap state under a
// write lock.
type Engine struct {
	cfg    Config
	client embedding.Client
	logger *zap.Logger

	mu           sync.RWMutex
	enabled      bool
	index        *SimilarityIndex
	entries      map[string]models.KnowledgeEntry
	positionToID []string

	cache *gocache.Cache
}

// NewEngine creates an engine. The index starts empty; call Load or
// BuildFromChunks before querying.
func NewEngine(cfg Config, client embedding.Client, logger *zap.Logger) *Engine {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Engine{
		cfg:     cfg,
		client:  client,
		logger:  logger.Named("retrieval"),
		enabled: cfg.Enabled,
		cache:   gocache.New(ttl, 2*ttl),
	}
}

// Enabled reports whether the engine will serve queries.
func (e *Engine) Enabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled && e.index != nil
}

// Size returns the number of indexed entries.
func (e *Engine) Size() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.index == nil {
		return 0
	}
	return e.index.Len()
}

// BuildFromChunks assembles chunks into entries, embeds the indexable
// ones and replaces the in-memory index. Entries without a description or
// symptoms are skipped, never indexed with an empty vector.
func (e *Engine) BuildFromChunks(ctx context.Context, chunks []models.KnowledgeChunk) error {
	entries := AssembleEntries(chunks)

	var texts []string
	var ids []string
	indexable := make(map[string]models.KnowledgeEntry)
	for i := range entries {
		entry := entries[i]
		if !entry.Indexable() {
			e.logger.Warn("skipping entry without description or symptoms",
				zap.String("entry_id", entry.ID),
				zap.String("title", entry.Title))
			continue
		}
		texts = append(texts, CompositeText(&entry))
		ids = append(ids, entry.ID)
		indexable[entry.ID] = entry
	}
	if len(texts) == 0 {
		return fmt.Errorf("no indexable entries in %d chunks", len(chunks))
	}

	vectors, err := e.client.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed entries: %w", err)
	}

	index := NewSimilarityIndex(e.client.Dimension())
	if err := index.Add(vectors); err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	e.mu.Lock()
	e.index = index
	e.entries = indexable
	e.positionToID = ids
	e.mu.Unlock()
	e.cache.Flush()

	e.logger.Info("index built",
		zap.Int("chunks", len(chunks)),
		zap.Int("entries", len(entries)),
		zap.Int("indexed", len(ids)),
		zap.String("model", e.client.ModelName()))
	return nil
}

// indexMetadata is the JSON sidecar persisted next to the vector file.
type indexMetadata struct {
	Entries      map[string]models.KnowledgeEntry `json:"entries"`
	PositionToID []string                         `json:"positionToId"`
	Model        string                           `json:"model"`
	Dimension    int                              `json:"dimension"`
	TotalEntries int                              `json:"totalEntries"`
}

// Save persists the index and its metadata as a pair. Each file is
// written to a temp file and renamed, so a crash mid-save leaves the
// previous pair intact.
func (e *Engine) Save() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.index == nil {
		return fmt.Errorf("nothing to save: index not built")
	}

	if err := e.index.WriteFile(e.cfg.IndexPath); err != nil {
		return err
	}

	meta := indexMetadata{
		Entries:      e.entries,
		PositionToID: e.positionToID,
		Model:        e.client.ModelName(),
		Dimension:    e.index.Dimension(),
		TotalEntries: len(e.entries),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	dir := filepath.Dir(e.cfg.MetadataPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create metadata directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".meta-*")
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp metadata file: %w", err)
	}
	if err := os.Rename(tmp.Name(), e.cfg.MetadataPath); err != nil {
		return fmt.Errorf("rename metadata file: %w", err)
	}

	e.logger.Info("index saved",
		zap.String("index_path", e.cfg.IndexPath),
		zap.String("metadata_path", e.cfg.MetadataPath),
		zap.Int("entries", len(e.entries)))
	return nil
}

// Load reads a persisted index pair. The metadata's model identity and
// dimension must match the configured embedding client; a mismatch means
// the index must be rebuilt, not queried.
//
// A failed load disables the engine for the process lifetime. Callers
// then get ErrDisabled instead of a retry on every query.
func (e *Engine) Load() error {
	if !e.cfg.Enabled {
		return ErrDisabled
	}

	err := e.load()
	if err != nil {
		e.mu.Lock()
		e.enabled = false
		e.mu.Unlock()
		e.logger.Warn("index load failed, retrieval disabled for this process", zap.Error(err))
	}
	return err
}

func (e *Engine) load() error {
	metaData, err := os.ReadFile(e.cfg.MetadataPath)
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}
	var meta indexMetadata
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return fmt.Errorf("parse metadata: %w", err)
	}

	if meta.Model != e.client.ModelName() {
		return fmt.Errorf("index built with model %q, configured model is %q", meta.Model, e.client.ModelName())
	}
	if e.client.Dimension() > 0 && meta.Dimension != e.client.Dimension() {
		return fmt.Errorf("index dimension %d does not match configured dimension %d", meta.Dimension, e.client.Dimension())
	}

	index, err := ReadIndexFile(e.cfg.IndexPath)
	if err != nil {
		return err
	}
	if index.Dimension() != meta.Dimension {
		return fmt.Errorf("index file dimension %d disagrees with metadata dimension %d", index.Dimension(), meta.Dimension)
	}
	if index.Len() != len(meta.PositionToID) {
		return fmt.Errorf("index holds %d vectors but metadata maps %d positions", index.Len(), len(meta.PositionToID))
	}
	for _, id := range meta.PositionToID {
		if _, ok := meta.Entries[id]; !ok {
			return fmt.Errorf("metadata maps position to unknown entry %q", id)
		}
	}

	e.mu.Lock()
	e.index = index
	e.entries = meta.Entries
	e.positionToID = meta.PositionToID
	e.enabled = true
	e.mu.Unlock()

	e.logger.Info("index loaded",
		zap.Int("entries", len(meta.Entries)),
		zap.String("model", meta.Model),
		zap.Int("dimension", meta.Dimension))
	return nil
}

// Query embeds the summary, searches the index and returns the ranked
// results above threshold. An empty Results slice with a populated
// BestScore is a real answer, not an error.
func (e *Engine) Query(ctx context.Context, summary string) (*QueryResponse, error) {
	if !e.Enabled() {
		metrics.RetrievalQueriesTotal.WithLabelValues("disabled").Inc()
		return nil, ErrDisabled
	}

	if cached, ok := e.cache.Get(summary); ok {
		metrics.RetrievalQueriesTotal.WithLabelValues("cached").Inc()
		return cached.(*QueryResponse), nil
	}

	start := time.Now()
	query, err := e.client.EmbedQuery(ctx, summary)
	if err != nil {
		metrics.RetrievalQueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("embed query: %w", err)
	}

	e.mu.RLock()
	hits, err := e.index.Search(query, e.cfg.TopK)
	if err != nil {
		e.mu.RUnlock()
		metrics.RetrievalQueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	var bestScore float64
	var filtered []Result
	for _, hit := range hits {
		if hit.Score > bestScore {
			bestScore = hit.Score
		}
		if hit.Score < e.cfg.SimilarityThreshold {
			continue
		}
		id := e.positionToID[hit.Position]
		filtered = append(filtered, Result{Entry: e.entries[id], Score: hit.Score})
	}
	e.mu.RUnlock()

	// Hits come back best-first, so top-N is a prefix.
	results := filtered
	if e.cfg.TopN > 0 && len(results) > e.cfg.TopN {
		results = results[:e.cfg.TopN]
	}

	elapsed := time.Since(start)
	metrics.RetrievalQueryDuration.Observe(elapsed.Seconds())

	resp := &QueryResponse{
		Query:   summary,
		Results: results,
		Metadata: QueryMetadata{
			NumResults:          len(results),
			NumCandidates:       len(hits),
			NumFiltered:         len(filtered),
			BestScore:           bestScore,
			SearchTimeMS:        float64(elapsed.Microseconds()) / 1000.0,
			TopK:                e.cfg.TopK,
			TopN:                e.cfg.TopN,
			SimilarityThreshold: e.cfg.SimilarityThreshold,
			Model:               e.client.ModelName(),
		},
	}

	if len(results) == 0 {
		metrics.RetrievalQueriesTotal.WithLabelValues("miss").Inc()
		e.logger.Debug("no results above threshold",
			zap.Float64("best_score", bestScore),
			zap.Float64("threshold", e.cfg.SimilarityThreshold))
	} else {
		metrics.RetrievalQueriesTotal.WithLabelValues("hit").Inc()
	}

	e.cache.SetDefault(summary, resp)
	return resp, nil
}

// Context queries the knowledge base and renders the result block for
// prompt assembly. Disabled retrieval and query failures both degrade to
// an empty string so diagnosis proceeds without knowledge-base context.
func (e *Engine) Context(ctx context.Context, summary string) string {
	resp, err := e.Query(ctx, summary)
	if err != nil {
		if !errors.Is(err, ErrDisabled) {
			e.logger.Warn("knowledge-base query failed, continuing without it", zap.Error(err))
		}
		return ""
	}
	return FormatContext(resp)
}
