// Package toolspec defines the persisted tool metadata the runtime
// consumes. Concrete tool implementations (shell, file, HTTP) are external
// collaborators; this package only models the descriptor, registry
// metadata, and usage guide that the Tool Context Builder and Sandbox
// Gateway operate on.
package toolspec

import (
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Ident is the strong type for a fully qualified tool name, so tool
// identifiers never mix with free-form strings in maps or APIs.
type Ident string

// SecurityLevel orders tool risk from safest to most dangerous. The
// ordering is meaningful: Tool Context Builder ties break on it ascending
// and its selection filters candidates against a request's
// MaxSecurityLevel ceiling; the Sandbox Gateway maps it to a policy risk
// level.
type SecurityLevel int

const (
	Safe SecurityLevel = iota
	LowRisk
	MediumRisk
	HighRisk
	Critical
)

func (l SecurityLevel) String() string {
	switch l {
	case Safe:
		return "Safe"
	case LowRisk:
		return "LowRisk"
	case MediumRisk:
		return "MediumRisk"
	case HighRisk:
		return "HighRisk"
	case Critical:
		return "Critical"
	default:
		return "Unknown"
	}
}

type (
	// Spec is the persisted, immutable-once-registered tool specification
	//. Unknown JSON fields are preserved via Extra so forward
	// compatibility holds across schema revisions.
	Spec struct {
		Name            Ident           `json:"name"`
		Description     string          `json:"description"`
		Usage           string          `json:"usage"`
		Examples        []string        `json:"examples,omitempty"`
		InputSchema     json.RawMessage `json:"input_schema"`
		UsageGuideSeed  *UsageGuide     `json:"usage_guide,omitempty"`
		Permissions     []string        `json:"permissions,omitempty"`
		SupportsDryRun  bool            `json:"supports_dry_run"`
		Extra           map[string]json.RawMessage `json:"-"`
	}

	// Metadata adds registry-level attributes to a Spec.
	Metadata struct {
		Category           string
		Version             *semver.Version
		Security            SecurityLevel
		Permissions          []string
		Dependencies         []string
		PerformanceMetrics   PerformanceMetrics
	}

	// PerformanceMetrics summarizes telemetry the Tool Context Builder folds
	// into ranking ( usage_score/performance_score).
	PerformanceMetrics struct {
		SuccessRate       float64
		AvgExecutionTime  float64 // seconds
		InvocationCount   int64
	}

	// UsageGuide is the compact, LLM-consumable description derived
	// deterministically from Spec+Metadata and enriched by telemetry.
	UsageGuide struct {
		Title          string
		Summary        string
		Preconditions  []string
		GoodFor        []string
		NotFor         []string
		Constraints    []string
		Examples       []string
		Platforms      []string
		CostClass      string
		LatencyClass   string
		SideEffects    []string
		RiskScore      int // 1..10
		Capabilities   []string
		Tags           []string
	}
)

// RequiredFieldsPresent reports a missing-required-fields error unless
// name, description, usage, and input_schema are all present.
func (s Spec) RequiredFieldsPresent() error {
	if s.Name == "" {
		return fmt.Errorf("tool spec: missing name")
	}
	if s.Description == "" {
		return fmt.Errorf("tool spec: missing description")
	}
	if s.Usage == "" {
		return fmt.Errorf("tool spec: missing usage")
	}
	if len(s.InputSchema) == 0 {
		return fmt.Errorf("tool spec: missing input_schema")
	}
	return nil
}

// ParseVersion parses a semver string into Metadata.Version.
func ParseVersion(v string) (*semver.Version, error) {
	return semver.NewVersion(v)
}

// DeriveUsageGuide builds the deterministic baseline guide from a spec and
// its metadata. Telemetry enrichment happens separately in toolcontext,
// which folds common errors into Constraints and degrades LatencyClass on
// high average execution time.
func DeriveUsageGuide(s Spec, m Metadata) UsageGuide {
	riskScore := 1 + int(m.Security)*2
	if riskScore > 10 {
		riskScore = 10
	}
	latency := "fast"
	if m.PerformanceMetrics.AvgExecutionTime > 1.0 {
		latency = "slow"
	} else if m.PerformanceMetrics.AvgExecutionTime > 0.1 {
		latency = "moderate"
	}
	return UsageGuide{
		Title:        string(s.Name),
		Summary:      s.Description,
		Examples:     s.Examples,
		CostClass:    m.Category,
		LatencyClass: latency,
		RiskScore:    riskScore,
		Capabilities: []string{string(s.Name)},
	}
}
