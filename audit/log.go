// Package audit implements the append-only audit sink: every policy
// decision and sandbox invocation outcome is written as one JSON line,
// with pruning, integrity checks, and filtered search over the stored
// stream.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/agentcore/core/ids"
	"github.com/agentcore/core/policy"
	"github.com/agentcore/core/sandbox"
)

// Event is the wire format for one stored audit record.
type Event struct {
	Timestamp     time.Time      `json:"timestamp"`
	EventType     string         `json:"event_type"`
	Operation     string         `json:"operation"`
	Decision      string         `json:"decision"`
	RiskScore     int            `json:"risk_score"`
	Subject       string         `json:"subject"`
	Additional    map[string]any `json:"additional,omitempty"`
	recordedAt    time.Time
}

// requiredFieldsValid reports whether e carries every field the
// integrity contract requires.
func (e Event) requiredFieldsValid() bool {
	return e.EventType != "" && e.Operation != "" && e.Decision != "" && !e.Timestamp.IsZero()
}

// Filter narrows Search to a subset of the stored stream.
type Filter struct {
	EventType string
	Operation string
	Subject   string
	MinRisk   int
	Since     time.Time
	Until     time.Time
}

func (f Filter) matches(e Event) bool {
	if f.EventType != "" && f.EventType != e.EventType {
		return false
	}
	if f.Operation != "" && f.Operation != e.Operation {
		return false
	}
	if f.Subject != "" && f.Subject != e.Subject {
		return false
	}
	if e.RiskScore < f.MinRisk {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// Metrics reports the contract scores the log's own guarantees are
// measured against.
type Metrics struct {
	TotalEvents        int64
	CompletenessScore  float64
	IntegrityScore     float64
	LastPruneRemoved   int64
	RetentionWindow    time.Duration
}

// Log is an append-only, JSON-line audit sink. It satisfies both
// policy.AuditSink and sandbox.AuditSink so the Policy Engine and
// Sandbox Gateway can share one stream without importing this package.
type Log struct {
	path          string
	clock         ids.Clock
	retention     time.Duration

	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	events   []Event // in-memory mirror, enabling Search/Prune without re-reading the file
	emitted  int64
	complete int64
}

// New opens (creating if needed) the JSON-lines file at path and returns
// a ready-to-use Log. retention is the pruning window (default 90 days
// if zero).
func New(path string, clock ids.Clock, retention time.Duration) (*Log, error) {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: opening log file: %w", err)
	}
	l := &Log{path: path, clock: clock, retention: retention, file: f, writer: bufio.NewWriter(f)}
	if err := l.loadExisting(); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) loadExisting() error {
	if _, err := l.file.Seek(0, 0); err != nil {
		return err
	}
	scanner := bufio.NewScanner(l.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		l.events = append(l.events, e)
	}
	if _, err := l.file.Seek(0, 2); err != nil {
		return err
	}
	return scanner.Err()
}

func (l *Log) append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.recordedAt = l.clock.Now()
	l.events = append(l.events, e)
	l.emitted++
	if e.recordedAt.Sub(e.Timestamp) <= 100*time.Millisecond {
		l.complete++
	}

	encoded, err := json.Marshal(e)
	if err != nil {
		return
	}
	_, _ = l.writer.Write(encoded)
	_, _ = l.writer.WriteString("\n")
	_ = l.writer.Flush()
}

// RecordDecision implements policy.AuditSink.
func (l *Log) RecordDecision(ctx context.Context, ev policy.DecisionAuditEvent) {
	l.append(Event{
		Timestamp: ev.Timestamp,
		EventType: "policy_decision",
		Operation: ev.Operation,
		Decision:  ev.Decision,
		RiskScore: ev.RiskScore,
		Subject:   ev.ContextDigest,
	})
}

// RecordInvocation implements sandbox.AuditSink.
func (l *Log) RecordInvocation(ctx context.Context, ev sandbox.InvocationAuditEvent) {
	errMsg := ""
	if ev.Err != nil {
		errMsg = ev.Err.Error()
	}
	l.append(Event{
		Timestamp: ev.Timestamp,
		EventType: "sandbox_invocation",
		Operation: string(ev.Tool),
		Decision:  ev.Decision,
		Subject:   string(ev.Tool),
		Additional: map[string]any{
			"error": errMsg,
		},
	})
}

// RecordPlanStateChange records a plan's state transition, completing the
// three event sources spec.md names (policy decision, sandbox outcome,
// plan state change).
func (l *Log) RecordPlanStateChange(ctx context.Context, planID ids.ID, from, to string) {
	l.append(Event{
		Timestamp: l.clock.Now(),
		EventType: "plan_state_change",
		Operation: "transition",
		Decision:  fmt.Sprintf("%s->%s", from, to),
		Subject:   planID.String(),
	})
}

// Search returns every stored event matching filter, oldest first.
func (l *Log) Search(_ context.Context, filter Filter) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// Prune removes events older than the retention window, rewriting the
// backing file. It reports how many events were removed.
func (l *Log) Prune(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.clock.Now().Add(-l.retention)
	kept := l.events[:0:0]
	removed := 0
	for _, e := range l.events {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	l.events = kept

	if err := l.rewriteLocked(); err != nil {
		return 0, err
	}
	return removed, nil
}

func (l *Log) rewriteLocked() error {
	if err := l.file.Truncate(0); err != nil {
		return err
	}
	if _, err := l.file.Seek(0, 0); err != nil {
		return err
	}
	l.writer = bufio.NewWriter(l.file)
	for _, e := range l.events {
		encoded, err := json.Marshal(e)
		if err != nil {
			continue
		}
		_, _ = l.writer.Write(encoded)
		_, _ = l.writer.WriteString("\n")
	}
	return l.writer.Flush()
}

// Metrics reports the completeness and integrity scores the stored
// stream currently measures, per spec.md's §4.L contracts.
func (l *Log) Metrics() Metrics {
	l.mu.Lock()
	defer l.mu.Unlock()

	completeness := 1.0
	if l.emitted > 0 {
		completeness = float64(l.complete) / float64(l.emitted)
	}

	validCount := 0
	for _, e := range l.events {
		if e.requiredFieldsValid() {
			validCount++
		}
	}
	integrity := 1.0
	if len(l.events) > 0 {
		integrity = float64(validCount) / float64(len(l.events))
	}

	return Metrics{
		TotalEvents:       int64(len(l.events)),
		CompletenessScore: completeness,
		IntegrityScore:    integrity,
		RetentionWindow:   l.retention,
	}
}

// Close flushes and closes the backing file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.writer.Flush()
	return l.file.Close()
}

var (
	_ policy.AuditSink  = (*Log)(nil)
	_ sandbox.AuditSink = (*Log)(nil)
)
