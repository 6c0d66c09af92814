package engine

import (
	"context"
	"os"

	"github.com/kayis-rahman/synapse/internal/assembler"
	"github.com/kayis-rahman/synapse/internal/cache"
	"github.com/kayis-rahman/synapse/internal/extractor"
	"github.com/kayis-rahman/synapse/internal/reader"
	"github.com/kayis-rahman/synapse/internal/symbolic"
	"github.com/kayis-rahman/synapse/internal/synerr"
	"github.com/kayis-rahman/synapse/internal/types"
)

// ProjList implements proj.list: every project_id the registry has seen.
func (h *Handle) ProjList(ctx context.Context) ([]string, error) {
	ids, err := h.registry.List(ctx)
	if err != nil {
		return nil, asEngineError(err, newTraceID())
	}
	return ids, nil
}

// SourceInfo is one row of src.list.
type SourceInfo struct {
	DocID      string
	Source     string
	IngestedAt int64
	ChunkCount int
}

// SrcList implements src.list: every document ingested into a project.
func (h *Handle) SrcList(ctx context.Context, projectID string) ([]SourceInfo, error) {
	vh, traceID, err := h.acquire(ctx, projectID, false)
	if err != nil {
		return nil, err
	}
	docs, err := vh.Semantic.ListDocuments(ctx, projectID)
	if err != nil {
		return nil, asEngineError(err, traceID)
	}
	out := make([]SourceInfo, len(docs))
	for i, d := range docs {
		out[i] = SourceInfo{DocID: d.DocID, Source: d.SourceName, IngestedAt: d.IngestedAt, ChunkCount: d.ChunkCount}
	}
	return out, nil
}

// CtxGetResult is the response of ctx.get: the assembled injection payload
// plus the raw ranked results and any detected conflicts, for callers that
// want more than the formatted text.
type CtxGetResult struct {
	Context   string
	Results   []reader.Result
	Conflicts []reader.Conflict
	CacheHit  bool
}

// CtxGet implements ctx.get: the merged, ranked, assembled view over all
// three substrates for one query, consulting the query-result cache before
// touching any store.
func (h *Handle) CtxGet(ctx context.Context, projectID, query string, topK int) (*CtxGetResult, error) {
	vh, traceID, err := h.acquire(ctx, projectID, false)
	if err != nil {
		return nil, err
	}

	opts := assembleOptions(topK)
	key := cache.NewKey(projectID, query, opts.TopK)
	if cached, ok := h.cache.Get(key); ok {
		res := cached.(*CtxGetResult)
		hit := *res
		hit.CacheHit = true
		return &hit, nil
	}

	r := reader.New(vh, h.embedder, h.weights())
	results, conflicts, err := r.Query(ctx, projectID, query, opts)
	if err != nil {
		return nil, asEngineError(err, traceID)
	}

	out := &CtxGetResult{
		Context:   assembler.Assemble(results, assembler.DefaultCaps),
		Results:   results,
		Conflicts: conflicts,
	}
	h.cache.Set(key, projectID, out)
	return out, nil
}

// MemSearchOptions narrows mem.search to one memory substrate.
type MemSearchOptions struct {
	MemoryType     string // "symbolic" | "episodic" | "semantic"
	TopK           int
	Scope          string
	Category       string
	SemanticFilter map[string]string
}

// MemSearch implements mem.search: a typed, single-substrate query (as
// opposed to ctx.get's merged view across all three).
func (h *Handle) MemSearch(ctx context.Context, projectID, query string, opts MemSearchOptions) ([]reader.Result, error) {
	vh, traceID, err := h.acquire(ctx, projectID, false)
	if err != nil {
		return nil, err
	}

	ropts := reader.Options{
		TopK:           opts.TopK,
		Scope:          opts.Scope,
		Category:       opts.Category,
		SemanticFilter: opts.SemanticFilter,
	}
	switch opts.MemoryType {
	case "symbolic":
		ropts.EnableSymbolic = true
	case "episodic":
		ropts.EnableEpisodic = true
	case "semantic":
		ropts.EnableSemantic = true
	default:
		return nil, synerr.New(synerr.InvalidInput, traceID, "unknown memory_type %q", opts.MemoryType)
	}

	r := reader.New(vh, h.embedder, h.weights())
	results, _, err := r.Query(ctx, projectID, query, ropts)
	if err != nil {
		return nil, asEngineError(err, traceID)
	}
	return results, nil
}

// IngestResult is the response of mem.ingest.
type IngestResult struct {
	DocID      string
	ChunkCount int
}

// MemIngest implements mem.ingest: chunk, embed, and store a document,
// registering the project on first write.
func (h *Handle) MemIngest(ctx context.Context, projectID, text, sourceName, sourceType string, metadata map[string]string) (*IngestResult, error) {
	vh, traceID, err := h.acquire(ctx, projectID, true)
	if err != nil {
		return nil, err
	}

	doc, err := vh.Semantic.AddDocument(ctx, projectID, sourceName, sourceType, text, h.cfg.ChunkSize, h.cfg.ChunkOverlap, metadata, h.embedder)
	if err != nil {
		h.log.Error().Err(err).Str("trace_id", traceID).Str("project_id", projectID).Msg("mem.ingest failed")
		return nil, asEngineError(err, traceID)
	}
	h.cache.InvalidateProject(projectID)
	h.log.Info().Str("project_id", projectID).Str("doc_id", doc.DocID).Msg("mem.ingest committed")

	docs, err := vh.Semantic.ListDocuments(ctx, projectID)
	if err != nil {
		return nil, asEngineError(err, traceID)
	}
	chunkCount := 0
	for _, d := range docs {
		if d.DocID == doc.DocID {
			chunkCount = d.ChunkCount
			break
		}
	}
	return &IngestResult{DocID: doc.DocID, ChunkCount: chunkCount}, nil
}

// FactAddResult is the response of mem.fact.add.
type FactAddResult struct {
	FactID   string
	Replaced bool
}

// MemFactAdd implements mem.fact.add: the symbolic store's confidence/rank
// upsert policy, registering the project on first write.
func (h *Handle) MemFactAdd(ctx context.Context, projectID, scope, category, key, value string, confidence float64, source types.Source) (*FactAddResult, error) {
	vh, traceID, err := h.acquire(ctx, projectID, true)
	if err != nil {
		return nil, err
	}

	res, err := vh.Symbolic.AddFact(ctx, projectID, scope, category, key, value, confidence, source)
	if err != nil {
		h.log.Error().Err(err).Str("trace_id", traceID).Str("project_id", projectID).Msg("mem.fact.add failed")
		return nil, asEngineError(err, traceID)
	}
	h.cache.InvalidateProject(projectID)
	h.log.Info().Str("project_id", projectID).Str("fact_id", res.FactID).Bool("replaced", res.Replaced).Msg("mem.fact.add committed")
	return &FactAddResult{FactID: res.FactID, Replaced: res.Replaced}, nil
}

// FactQueryOptions narrows query_memory (the symbolic read path exposed
// through mem.search's "symbolic" memory_type, plus direct listing helpers).
type FactQueryOptions = symbolic.Filter

// MemFactQuery implements the symbolic-only read path: a thin pass-through
// to the store's query_memory for callers that want typed Fact values
// rather than reader.Result's flattened Content string.
func (h *Handle) MemFactQuery(ctx context.Context, projectID string, filter FactQueryOptions) ([]*types.Fact, error) {
	vh, traceID, err := h.acquire(ctx, projectID, false)
	if err != nil {
		return nil, err
	}
	facts, err := vh.Symbolic.QueryMemory(ctx, projectID, filter)
	if err != nil {
		return nil, asEngineError(err, traceID)
	}
	return facts, nil
}

// EpAddResult is the response of mem.ep.add.
type EpAddResult struct {
	EpisodeID        string
	Deduped          bool
	DiscardedLowConf bool
}

// MemEpAdd implements mem.ep.add: the episodic store's fingerprint dedup
// policy, registering the project on first write.
func (h *Handle) MemEpAdd(ctx context.Context, projectID, sessionID string, ep *types.Episode) (*EpAddResult, error) {
	vh, traceID, err := h.acquire(ctx, projectID, true)
	if err != nil {
		return nil, err
	}

	res, err := vh.Episodic.AddEpisode(ctx, projectID, sessionID, ep)
	if err != nil {
		h.log.Error().Err(err).Str("trace_id", traceID).Str("project_id", projectID).Msg("mem.ep.add failed")
		return nil, asEngineError(err, traceID)
	}
	if !res.DiscardedLowConf {
		h.cache.InvalidateProject(projectID)
	}
	h.log.Info().Str("project_id", projectID).Bool("deduped", res.Deduped).Bool("discarded_low_conf", res.DiscardedLowConf).Msg("mem.ep.add committed")
	return &EpAddResult{EpisodeID: res.EpisodeID, Deduped: res.Deduped, DiscardedLowConf: res.DiscardedLowConf}, nil
}

// Analyze runs the Conversation Analyzer over one exchange. It
// does not commit anything; the caller decides which candidates to pass to
// MemFactAdd/MemEpAdd, same as Analyzer.Analyze's own contract.
func (h *Handle) Analyze(ctx context.Context, userMessage, agentResponse string) (extractor.AnalysisResult, extractor.Dropped, error) {
	result, dropped, err := h.analyzer.Analyze(ctx, userMessage, agentResponse)
	if err != nil {
		return extractor.AnalysisResult{}, dropped, asEngineError(err, newTraceID())
	}
	return result, dropped, nil
}

// DeleteProject cascades a project's removal: the symbolic/episodic/
// semantic stores all live in one relational.db per project, so closing
// the pool, removing the on-disk project directory, and forgetting the
// registry entry together retire all four entity kinds for projectID.
func (h *Handle) DeleteProject(ctx context.Context, projectID string) error {
	traceID := newTraceID()
	if err := types.ValidateProjectID(projectID); err != nil {
		return asEngineError(err, traceID)
	}
	h.vecMgr.Remove(projectID)
	h.cache.InvalidateProject(projectID)
	if err := os.RemoveAll(h.cfg.ProjectDir(projectID)); err != nil {
		h.log.Error().Err(err).Str("trace_id", traceID).Str("project_id", projectID).Msg("project delete failed")
		return asEngineError(err, traceID)
	}
	if err := h.registry.Forget(ctx, projectID); err != nil {
		h.log.Error().Err(err).Str("trace_id", traceID).Str("project_id", projectID).Msg("project delete failed")
		return asEngineError(err, traceID)
	}
	h.log.Info().Str("project_id", projectID).Msg("project deleted")
	return nil
}
