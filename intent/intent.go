// Package intent defines the Intent data type: the immutable output of the
// IntentAnalyzer actor, consumed by the Planner.
package intent

import (
	"time"

	"github.com/agentcore/core/ids"
)

// Kind discriminates what a user's request is asking for.
type Kind int

const (
	ExecuteTool Kind = iota
	AskQuestion
	FileOp
	MemoryOp
	Custom
)

func (k Kind) String() string {
	switch k {
	case ExecuteTool:
		return "ExecuteTool"
	case AskQuestion:
		return "AskQuestion"
	case FileOp:
		return "FileOp"
	case MemoryOp:
		return "MemoryOp"
	case Custom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// Turn is one prior exchange in a session's history.
type Turn struct {
	Input     string
	Output    string
	Timestamp time.Time
}

// Context carries the session and environment an Intent was produced in.
type Context struct {
	SessionID   ids.ID
	UserID      string // empty when absent
	Environment map[string]string
	History     []Turn
}

// Intent is created once by the IntentAnalyzer and never mutated
// afterward; the Planner only reads it.
type Intent struct {
	ID         ids.ID
	Kind       Kind
	Parameters map[string]any
	Confidence float64
	Context    Context
}

// Valid reports whether confidence is within the required [0,1] range.
func (i Intent) Valid() bool {
	return i.Confidence >= 0 && i.Confidence <= 1
}
