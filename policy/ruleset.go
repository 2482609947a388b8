package policy

import "fmt"

// Rule is a profile-specific rule keyed by exact operation name. Decision
// is returned verbatim when an operation matches.
type Rule struct {
	Operation string
	Decision  Decision
}

// RuleSet is one profile's full evaluation configuration, applied in this
// order:
//  1. capability presence — DeniedTools / DeniedOperations
//  2. profile-specific rules — Rules, matched by exact operation name
//  3. risk assessment — AskAtOrAbove / DenyAtOrAbove thresholds on op.Risk
//  4. default — Default
type RuleSet struct {
	// DeniedOperations fails capability presence outright (step 1).
	DeniedOperations map[string]string // operation -> deny reason
	// DeniedTools fails capability presence outright on tool name (step 1).
	DeniedTools map[string]string // tool name -> deny reason
	// Rules holds exact-match profile-specific decisions (step 2).
	Rules []Rule
	// AskAtOrAbove: risk >= this threshold becomes Ask unless already
	// decided in an earlier step. Applied only when HasAskThreshold is set.
	AskAtOrAbove RiskLevel
	// DenyAtOrAbove: risk >= this threshold becomes Deny unless already
	// decided in an earlier step. Applied only when HasDenyThreshold is set.
	DenyAtOrAbove RiskLevel
	// HasAskThreshold/HasDenyThreshold gate the two thresholds above,
	// since RiskLevel's zero value (Low) is itself meaningful.
	HasAskThreshold  bool
	HasDenyThreshold bool
	// Default is returned when no earlier step produced a decision.
	Default Decision
}

func evaluate(rs RuleSet, op OperationContext) Decision {
	// Step 1: capability presence.
	if reason, denied := rs.DeniedOperations[op.Operation]; denied {
		return Decision{Kind: Deny, Reason: reason, Risk: op.Risk}
	}
	if reason, denied := rs.DeniedTools[op.ToolName]; op.ToolName != "" && denied {
		return Decision{Kind: Deny, Reason: reason, Risk: op.Risk}
	}

	// Step 2: profile-specific rules, first match wins.
	for _, r := range rs.Rules {
		if r.Operation == op.Operation {
			d := r.Decision
			d.Risk = op.Risk
			return d
		}
	}

	// Step 3: risk assessment.
	if rs.HasDenyThreshold && op.Risk >= rs.DenyAtOrAbove {
		return Decision{Kind: Deny, Reason: "risk_too_high", Risk: op.Risk}
	}
	if rs.HasAskThreshold && op.Risk >= rs.AskAtOrAbove {
		return Decision{Kind: Ask, Prompt: "confirm " + op.Operation, Risk: op.Risk}
	}

	// Step 4: default.
	d := rs.Default
	d.Risk = op.Risk
	return d
}

// validPair reports whether (dev, prod) is one of the canonical valid
// pairs: (Allow,*), (Ask,{Ask,Deny}), (Deny,Deny).
func validPair(dev, prod DecisionKind) bool {
	switch dev {
	case Allow:
		return true
	case Ask:
		return prod == Ask || prod == Deny
	case Deny:
		return prod == Deny
	default:
		return false
	}
}

// ValidateMonotonic checks the monotonicity contract for every
// operation named in both rule sets' explicit Rules and for the two
// sets' Default decisions. DeniedOperations, DeniedTools and the risk
// thresholds are not compared. It does not attempt to enumerate every possible
// operation string; callers that want exhaustive coverage should pass the
// same set of representative OperationContext values through both engines
// and compare with IsAtLeastAsRestrictive instead.
func ValidateMonotonic(dev, prod RuleSet) error {
	if !validPair(dev.Default.Kind, prod.Default.Kind) {
		return fmt.Errorf("policy: default decisions violate monotonicity: dev=%s prod=%s",
			dev.Default.Kind, prod.Default.Kind)
	}
	devByOp := make(map[string]DecisionKind, len(dev.Rules))
	for _, r := range dev.Rules {
		devByOp[r.Operation] = r.Decision.Kind
	}
	for _, r := range prod.Rules {
		devKind, ok := devByOp[r.Operation]
		if !ok {
			continue
		}
		if !validPair(devKind, r.Decision.Kind) {
			return fmt.Errorf("policy: operation %q violates monotonicity: dev=%s prod=%s",
				r.Operation, devKind, r.Decision.Kind)
		}
	}
	return nil
}

// IsAtLeastAsRestrictive reports whether b is at least as restrictive as a,
// i.e. (a,b) is a valid (Dev,Prod) pair. Used directly by property-style
// tests that sweep OperationContext values.
func IsAtLeastAsRestrictive(a, b Decision) bool {
	return validPair(a.Kind, b.Kind)
}
