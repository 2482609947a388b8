// Package memory implements the Tiered Memory Orchestrator: three layers
// (Interact, Insights, Assets) of embedded records behind six bounded
// coordinators (embedding, search, promotion, backup, health, resource),
// each wrapped by a circuit breaker and retry handler at the orchestrator
// boundary.
package memory

import (
	"math"
	"time"

	"github.com/agentcore/core/ids"
)

// Layer is one of the three memory tiers, ordered hot-to-cold.
type Layer int

const (
	// Interact is the recency-biased hot tier; the p99 search SLA
	// target applies here.
	Interact Layer = iota
	Insights
	Assets
)

func (l Layer) String() string {
	switch l {
	case Interact:
		return "Interact"
	case Insights:
		return "Insights"
	case Assets:
		return "Assets"
	default:
		return "Unknown"
	}
}

// unitNormTolerance bounds how far an embedding's L2 norm may drift from
// 1 and still be accepted.
const unitNormTolerance = 1e-6

// Record is one stored memory: content plus its unit-norm embedding and
// access-pattern bookkeeping the Promotion Coordinator reads.
type Record struct {
	ID          ids.ID
	Layer       Layer
	Content     string
	Embedding   []float64
	Metadata    map[string]any
	CreatedAt   time.Time
	AccessCount int64
	LastAccess  time.Time
}

// IsUnitNorm reports whether the embedding's L2 norm is within tolerance
// of 1.
func (r Record) IsUnitNorm() bool {
	var sumSq float64
	for _, v := range r.Embedding {
		sumSq += v * v
	}
	norm := math.Sqrt(sumSq)
	return math.Abs(norm-1) <= unitNormTolerance
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
