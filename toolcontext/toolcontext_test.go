package toolcontext_test

import (
	"context"
	"testing"
	"time"

	"github.com/agentcore/core/toolcontext"
	"github.com/agentcore/core/toolspec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastCandidate() toolcontext.Candidate {
	return toolcontext.Candidate{
		Spec:           toolspec.Spec{Name: "fast_tool", Description: "quick lookup"},
		Metadata:       toolspec.Metadata{Security: toolspec.Safe, PerformanceMetrics: toolspec.PerformanceMetrics{SuccessRate: 0.9, AvgExecutionTime: 0.01}},
		UsageEmbedding: []float64{1, 0},
		Platforms:      []string{"linux"},
	}
}

func slowCandidate() toolcontext.Candidate {
	return toolcontext.Candidate{
		Spec:           toolspec.Spec{Name: "slow_tool", Description: "thorough scan"},
		Metadata:       toolspec.Metadata{Security: toolspec.Safe, PerformanceMetrics: toolspec.PerformanceMetrics{SuccessRate: 0.9, AvgExecutionTime: 5}},
		UsageEmbedding: []float64{1, 0},
		Platforms:      []string{"linux"},
	}
}

func TestSelectRanksFasterToolHigherOnIdenticalSemantics(t *testing.T) {
	b := toolcontext.New(16, time.Hour, nil)
	b.Register(fastCandidate())
	b.Register(slowCandidate())

	resp := b.Select(context.Background(), toolcontext.SelectionRequest{
		QueryEmbedding: []float64{1, 0},
	})
	require.Len(t, resp.Tools, 2)
	assert.Equal(t, toolspec.Ident("fast_tool"), resp.Tools[0].Tool)
}

func TestSelectFiltersByPlatform(t *testing.T) {
	b := toolcontext.New(16, time.Hour, nil)
	c := fastCandidate()
	c.Platforms = []string{"windows"}
	b.Register(c)

	resp := b.Select(context.Background(), toolcontext.SelectionRequest{
		QueryEmbedding: []float64{1, 0},
		Platform:       "linux",
	})
	assert.Empty(t, resp.Tools)
	assert.Equal(t, 1, resp.Metadata.TotalCandidates)
	assert.Equal(t, 0, resp.Metadata.FilteredCandidates)
}

func TestSelectExcludesExperimentalByDefault(t *testing.T) {
	b := toolcontext.New(16, time.Hour, nil)
	c := fastCandidate()
	c.Experimental = true
	b.Register(c)

	resp := b.Select(context.Background(), toolcontext.SelectionRequest{QueryEmbedding: []float64{1, 0}})
	assert.Empty(t, resp.Tools)

	resp = b.Select(context.Background(), toolcontext.SelectionRequest{
		QueryEmbedding:      []float64{1, 0},
		IncludeExperimental: true,
	})
	assert.Len(t, resp.Tools, 1)
}

func TestUsageGuideIsCachedThenInvalidatedByTelemetry(t *testing.T) {
	b := toolcontext.New(16, time.Hour, nil)
	b.Register(fastCandidate())

	g1, ok := b.UsageGuide("fast_tool")
	require.True(t, ok)
	assert.Equal(t, "fast", g1.LatencyClass)

	b.ObserveTelemetry("fast_tool", toolspec.PerformanceMetrics{SuccessRate: 0.5, AvgExecutionTime: 2.0}, []string{"rate_limited"})
	g2, ok := b.UsageGuide("fast_tool")
	require.True(t, ok)
	assert.Equal(t, "degraded", g2.LatencyClass)
	assert.Contains(t, g2.Constraints, "rate_limited")
}

func TestUsageGuideMissReturnsFalseForUnknownTool(t *testing.T) {
	b := toolcontext.New(16, time.Hour, nil)
	_, ok := b.UsageGuide("nope")
	assert.False(t, ok)
}

type reverseReranker struct{}

func (reverseReranker) Rerank(_ context.Context, _ string, top []toolcontext.RankingResult) []toolcontext.RankingResult {
	out := make([]toolcontext.RankingResult, len(top))
	for i, r := range top {
		out[len(top)-1-i] = r
	}
	return out
}

func TestRerankerReordersTopN(t *testing.T) {
	b := toolcontext.New(16, time.Hour, reverseReranker{})
	b.Register(fastCandidate())
	b.Register(slowCandidate())

	resp := b.Select(context.Background(), toolcontext.SelectionRequest{
		QueryEmbedding: []float64{1, 0},
		RerankTopN:     2,
	})
	require.Len(t, resp.Tools, 2)
	require.NotNil(t, resp.Metadata.RerankingTime)
	assert.Equal(t, toolspec.Ident("slow_tool"), resp.Tools[0].Tool)
}
