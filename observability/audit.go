package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// AuditEventType represents the kind of decision being recorded for a
// completed optimizer run.
type AuditEventType string

const (
	EventIterationCompleted  AuditEventType = "iteration_completed"
	EventEvaluationFailed    AuditEventType = "evaluation_failed"
	EventSurrogateRefit      AuditEventType = "surrogate_refit"
	EventCompressorRefit     AuditEventType = "compressor_refit"
	EventConfigRejected      AuditEventType = "config_rejected"
	EventWarmStartExhausted  AuditEventType = "warm_start_exhausted"
	EventSchedulerEliminated AuditEventType = "scheduler_eliminated"
	EventPlanUnavailable     AuditEventType = "plan_unavailable"
	EventHistoryPersisted    AuditEventType = "history_persisted"
)

// AuditSeverity represents the severity level of an audit event.
type AuditSeverity string

const (
	SeverityDebug    AuditSeverity = "debug"
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeverityError    AuditSeverity = "error"
	SeverityCritical AuditSeverity = "critical"
)

// AuditEvent represents a structured audit event.
type AuditEvent struct {
	EventType AuditEventType         `json:"event_type"`
	Severity  AuditSeverity          `json:"severity"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	TaskID    string                 `json:"task_id,omitempty"`
	Resource  string                 `json:"resource,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
	SpanID    string                 `json:"span_id,omitempty"`
}

// NewAuditEvent creates a new audit event, attaching trace context from ctx
// when the caller has an active span.
func NewAuditEvent(ctx context.Context, eventType AuditEventType, severity AuditSeverity, message string) *AuditEvent {
	event := &AuditEvent{
		EventType: eventType,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]interface{}),
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		event.TraceID = span.SpanContext().TraceID().String()
		event.SpanID = span.SpanContext().SpanID().String()
	}

	return event
}

// AuditAdapter is the interface for audit log sinks.
type AuditAdapter interface {
	LogEvent(event *AuditEvent) error
}

// ConsoleAuditAdapter logs audit events to console.
type ConsoleAuditAdapter struct {
	UseColors bool
	mu        sync.Mutex
}

func NewConsoleAuditAdapter(useColors bool) *ConsoleAuditAdapter {
	return &ConsoleAuditAdapter{UseColors: useColors}
}

func (a *ConsoleAuditAdapter) LogEvent(event *AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	colors := map[AuditSeverity]string{
		SeverityDebug:    "\033[36m",
		SeverityInfo:     "\033[32m",
		SeverityWarning:  "\033[33m",
		SeverityError:    "\033[31m",
		SeverityCritical: "\033[35m",
	}
	reset := "\033[0m"

	color := ""
	if a.UseColors {
		color = colors[event.Severity]
	}

	stream := os.Stdout
	if event.Severity == SeverityError || event.Severity == SeverityCritical {
		stream = os.Stderr
	}

	_, err := fmt.Fprintf(stream, "%s %s%s%s [%s] task=%s %s\n",
		event.Timestamp.Format(time.RFC3339),
		color, string(event.Severity), reset,
		event.EventType, event.TaskID, event.Message,
	)
	return err
}

// StructuredAuditAdapter logs audit events as JSON lines.
type StructuredAuditAdapter struct {
	Writer io.Writer
	mu     sync.Mutex
}

func NewStructuredAuditAdapter(writer io.Writer) *StructuredAuditAdapter {
	if writer == nil {
		writer = os.Stdout
	}
	return &StructuredAuditAdapter{Writer: writer}
}

func (a *StructuredAuditAdapter) LogEvent(event *AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	_, err = fmt.Fprintln(a.Writer, string(data))
	return err
}

// FileAuditAdapter appends audit events to a file.
type FileAuditAdapter struct {
	Structured bool
	file       *os.File
	mu         sync.Mutex
}

func NewFileAuditAdapter(filePath string, structured bool) (*FileAuditAdapter, error) {
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return &FileAuditAdapter{Structured: structured, file: file}, nil
}

func (a *FileAuditAdapter) LogEvent(event *AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var line string
	if a.Structured {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal audit event: %w", err)
		}
		line = string(data)
	} else {
		line = fmt.Sprintf("%s [%s] severity=%s task=%s %s",
			event.Timestamp.Format(time.RFC3339), event.EventType, event.Severity, event.TaskID, event.Message)
	}

	_, err := fmt.Fprintln(a.file, line)
	return err
}

func (a *FileAuditAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// AuditLogger is the optimizer's audit trail, dispatching to pluggable
// adapters. A failing adapter is logged and skipped rather than aborting
// the run.
type AuditLogger struct {
	adapters []AuditAdapter
	mu       sync.RWMutex
}

func NewAuditLogger(adapters ...AuditAdapter) *AuditLogger {
	if len(adapters) == 0 {
		adapters = []AuditAdapter{NewConsoleAuditAdapter(true)}
	}
	return &AuditLogger{adapters: adapters}
}

func (l *AuditLogger) LogEvent(event *AuditEvent) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, adapter := range l.adapters {
		if err := adapter.LogEvent(event); err != nil {
			fmt.Fprintf(os.Stderr, "audit adapter error: %v\n", err)
		}
	}
}

// LogIterationCompleted records a completed optimizer iteration.
func (l *AuditLogger) LogIterationCompleted(ctx context.Context, taskID string, iterID int, incumbent float64) {
	event := NewAuditEvent(ctx, EventIterationCompleted, SeverityInfo,
		fmt.Sprintf("iteration %d complete, incumbent=%g", iterID, incumbent))
	event.TaskID = taskID
	event.Metadata["iter_id"] = iterID
	event.Metadata["incumbent"] = incumbent
	l.LogEvent(event)
}

// LogEvaluationFailed records a synthesized +Inf result from the evaluator manager.
func (l *AuditLogger) LogEvaluationFailed(ctx context.Context, taskID string, reason string) {
	event := NewAuditEvent(ctx, EventEvaluationFailed, SeverityWarning,
		fmt.Sprintf("evaluation failed, substituting +Inf objective: %s", reason))
	event.TaskID = taskID
	l.LogEvent(event)
}

// LogCompressorRefit records the advisor rebuilding its surrogate/optimizer
// after the compressor reports a shape change.
func (l *AuditLogger) LogCompressorRefit(ctx context.Context, taskID string) {
	event := NewAuditEvent(ctx, EventCompressorRefit, SeverityInfo, "compressor triggered surrogate refit")
	event.TaskID = taskID
	l.LogEvent(event)
}

// LogPlanUnavailable records a planner miss that fell through to fallback or nil.
func (l *AuditLogger) LogPlanUnavailable(ctx context.Context, taskID string, resourceRatio float64, usedFallback bool) {
	event := NewAuditEvent(ctx, EventPlanUnavailable, SeverityWarning,
		fmt.Sprintf("no partition plan for resource_ratio=%.5f (fallback_used=%v)", resourceRatio, usedFallback))
	event.TaskID = taskID
	event.Metadata["resource_ratio"] = resourceRatio
	event.Metadata["used_fallback"] = usedFallback
	l.LogEvent(event)
}

// LogHistoryPersisted records an atomic history-JSON write.
func (l *AuditLogger) LogHistoryPersisted(ctx context.Context, taskID, path string) {
	event := NewAuditEvent(ctx, EventHistoryPersisted, SeverityDebug, "history persisted")
	event.TaskID = taskID
	event.Resource = path
	l.LogEvent(event)
}
