// Package toolcontext implements the Tool Context Builder: ranked tool
// selection over semantic similarity, usage telemetry, and performance, and
// an LRU+TTL-cached usage guide store that telemetry arrivals enrich.
package toolcontext

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/agentcore/core/toolspec"
)

// Candidate is one tool available for selection, carrying the pieces the
// ranking score is computed from.
type Candidate struct {
	Spec            toolspec.Spec
	Metadata        toolspec.Metadata
	UsageEmbedding  []float64
	Platforms       []string
	Experimental    bool
}

// SelectionRequest is the Planner's (or an interactive caller's) query
// against the tool catalog.
type SelectionRequest struct {
	Query               string
	QueryEmbedding      []float64
	Context             map[string]string
	RequiredCategories  []string
	ExcludeTools        map[toolspec.Ident]struct{}
	Platform            string
	MaxSecurityLevel    *toolspec.SecurityLevel
	PreferFast          bool
	IncludeExperimental bool
	RerankTopN          int
}

// RankingResult is one scored, ordered candidate in a SelectionResponse.
type RankingResult struct {
	Tool               toolspec.Ident
	Score              float64
	SemanticSimilarity float64
	UsageScore         float64
	PerformanceScore   float64
}

// SelectionMetadata reports bookkeeping about a selection run.
type SelectionMetadata struct {
	TotalCandidates    int
	FilteredCandidates int
	EmbeddingSearchTime time.Duration
	RerankingTime       *time.Duration
}

// SelectionResponse is the Tool Context Builder's ranked output.
type SelectionResponse struct {
	Tools    []RankingResult
	Metadata SelectionMetadata
}

// Reranker optionally reorders the top-N candidates after the initial
// score-based ranking (e.g. an LLM-based cross-encoder). Builder works
// correctly with a nil Reranker; reranking is purely an enrichment step.
type Reranker interface {
	Rerank(ctx context.Context, query string, top []RankingResult) []RankingResult
}

// Builder ranks tools for a SelectionRequest and caches derived usage
// guides.
type Builder struct {
	catalog  map[toolspec.Ident]Candidate
	guides   *lru.LRU[toolspec.Ident, toolspec.UsageGuide]
	reranker Reranker
}

// New constructs a Builder. guideTTL bounds how long a cached usage guide
// survives since it was added; guideCapacity bounds the cache size —
// both evictions are handled by the underlying expirable LRU.
func New(guideCapacity int, guideTTL time.Duration, reranker Reranker) *Builder {
	return &Builder{
		catalog:  make(map[toolspec.Ident]Candidate),
		guides:   lru.NewLRU[toolspec.Ident, toolspec.UsageGuide](guideCapacity, nil, guideTTL),
		reranker: reranker,
	}
}

// Register adds or replaces a tool candidate in the catalog, invalidating
// any cached usage guide so the next lookup rederives it.
func (b *Builder) Register(c Candidate) {
	b.catalog[c.Spec.Name] = c
	b.guides.Remove(c.Spec.Name)
}

// UsageGuide returns the cached usage guide for name, deriving and caching
// it on a miss.
func (b *Builder) UsageGuide(name toolspec.Ident) (toolspec.UsageGuide, bool) {
	if g, ok := b.guides.Get(name); ok {
		return g, true
	}
	c, ok := b.catalog[name]
	if !ok {
		return toolspec.UsageGuide{}, false
	}
	g := toolspec.DeriveUsageGuide(c.Spec, c.Metadata)
	b.guides.Add(name, g)
	return g, true
}

// ObserveTelemetry folds a fresh performance sample into the tool's
// metadata, then re-derives the tool's guide and caches it with the
// telemetry applied: common errors are appended to Constraints and an
// average execution time above 1s sets LatencyClass to "degraded".
func (b *Builder) ObserveTelemetry(name toolspec.Ident, sample toolspec.PerformanceMetrics, commonErrors []string) {
	c, ok := b.catalog[name]
	if !ok {
		return
	}
	c.Metadata.PerformanceMetrics = sample
	b.catalog[name] = c

	g := toolspec.DeriveUsageGuide(c.Spec, c.Metadata)
	if sample.AvgExecutionTime > 1.0 {
		g.LatencyClass = "degraded"
	}
	if len(commonErrors) > 0 {
		g.Constraints = append(append([]string{}, g.Constraints...), commonErrors...)
	}
	b.guides.Add(name, g)
}

// Select ranks the catalog against req, applying filters before scoring
// and breaking ties by (security_level ascending, name lexicographic).
func (b *Builder) Select(ctx context.Context, req SelectionRequest) SelectionResponse {
	start := time.Now()
	total := len(b.catalog)

	var filtered []Candidate
	for _, c := range b.catalog {
		if _, excluded := req.ExcludeTools[c.Spec.Name]; excluded {
			continue
		}
		if c.Experimental && !req.IncludeExperimental {
			continue
		}
		if req.MaxSecurityLevel != nil && c.Metadata.Security > *req.MaxSecurityLevel {
			continue
		}
		if req.Platform != "" && !containsString(c.Platforms, req.Platform) {
			continue
		}
		if len(req.RequiredCategories) > 0 && !containsString(req.RequiredCategories, c.Metadata.Category) {
			continue
		}
		filtered = append(filtered, c)
	}

	results := make([]RankingResult, 0, len(filtered))
	for _, c := range filtered {
		sem := cosineSimilarity(req.QueryEmbedding, c.UsageEmbedding)
		usage := c.Metadata.PerformanceMetrics.SuccessRate
		perf := performanceScore(c.Metadata.PerformanceMetrics.AvgExecutionTime)
		score := 0.5*sem + 0.3*usage + 0.2*perf
		if req.PreferFast {
			score = 0.4*sem + 0.2*usage + 0.4*perf
		}
		results = append(results, RankingResult{
			Tool:               c.Spec.Name,
			Score:              score,
			SemanticSimilarity: sem,
			UsageScore:         usage,
			PerformanceScore:   perf,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		si := b.catalog[results[i].Tool].Metadata.Security
		sj := b.catalog[results[j].Tool].Metadata.Security
		if si != sj {
			return si < sj
		}
		return results[i].Tool < results[j].Tool
	})

	searchTime := time.Since(start)
	meta := SelectionMetadata{
		TotalCandidates:     total,
		FilteredCandidates:  len(filtered),
		EmbeddingSearchTime: searchTime,
	}

	if b.reranker != nil && req.RerankTopN > 0 {
		n := req.RerankTopN
		if n > len(results) {
			n = len(results)
		}
		rerankStart := time.Now()
		top := b.reranker.Rerank(ctx, req.Query, append([]RankingResult{}, results[:n]...))
		copy(results[:n], top)
		elapsed := time.Since(rerankStart)
		meta.RerankingTime = &elapsed
	}

	return SelectionResponse{Tools: results, Metadata: meta}
}

func performanceScore(avgExecSeconds float64) float64 {
	if avgExecSeconds <= 0 {
		return 1
	}
	return 1 / (1 + avgExecSeconds)
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
