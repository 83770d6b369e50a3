// Package core exposes the laboratory service: transactional inventory,
// recipe, and experiment operations layered over a persistent store, with
// rule evaluation on every commit.
package core

import (
	"chemlab/internal/infra/persistence/memory"
	"chemlab/pkg/domain"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Logger is the minimal structured logging surface used by the service.
// *slog.Logger satisfies it via NewSlogLogger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type slogLogger struct{ l *slog.Logger }

// NewSlogLogger adapts a *slog.Logger to the service Logger interface.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return slogLogger{l: l}
}

func (s slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

// Clock abstracts the service time source.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface. A nil function falls
// back to the system clock; times are normalized to UTC.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

// AuditStatus marks the outcome recorded in an audit entry.
type AuditStatus string

// Audit entry outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one completed service operation.
type AuditEntry struct {
	Operation string
	Entity    EntityType
	Action    Action
	EntityID  string
	Status    AuditStatus
	Duration  time.Duration
	Timestamp time.Time
	Error     string
}

// AuditRecorder receives audit entries for completed operations.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes operation outcomes and durations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan terminates a span started by a Tracer.
type TraceSpan interface {
	End(err error)
}

// Service exposes higher-level transactional operations for the laboratory
// domain: inventory, suppliers and orders, recipes, and experiment runs.
type Service struct {
	store   PersistentStore
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock
	nowFn   func() time.Time
}

// ServiceOption customizes a Service at construction time.
type ServiceOption func(*Service)

// WithLogger overrides the default no-op logger.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditRecorder attaches an audit sink to the service.
func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(s *Service) { s.audit = recorder }
}

// WithMetricsRecorder attaches a metrics sink to the service.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(s *Service) { s.metrics = recorder }
}

// WithTracer attaches a tracer to the service.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) { s.tracer = tracer }
}

// WithClock overrides the service time source.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.nowFn = selectNowFunc(store, s.clock)
	return s
}

// NewInMemoryService creates a service over an in-memory store with the given
// rules engine. A nil engine gets the default rule set.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// RulesEngine returns the engine attached to the store, or nil when the store
// does not expose one.
func (s *Service) RulesEngine() *RulesEngine {
	return extractRulesEngine(s.store)
}

func extractRulesEngine(store PersistentStore) *RulesEngine {
	if provider, ok := store.(interface{ RulesEngine() *RulesEngine }); ok {
		return provider.RulesEngine()
	}
	return nil
}

// selectNowFunc prefers the store's time provider when it exposes one so that
// test clocks installed on the store take effect, then an explicit Clock, and
// finally the system clock in UTC.
func selectNowFunc(store PersistentStore, clock Clock) func() time.Time {
	if provider, ok := store.(interface{ NowFunc() func() time.Time }); ok {
		if fn := provider.NowFunc(); fn != nil {
			return func() time.Time { return fn().UTC() }
		}
	}
	if clock != nil {
		return func() time.Time { return clock.Now().UTC() }
	}
	return func() time.Time { return time.Now().UTC() }
}

// today truncates the service clock to the current calendar day.
func (s *Service) today() Date {
	return domain.DateOf(s.nowFn())
}

// operationMetadata maps operation names onto the entity and action recorded
// in audit entries. Unknown operations are not audited.
var operationMetadata = map[string]struct {
	Entity EntityType
	Action Action
}{
	"add_reagent":        {domain.EntityReagent, domain.ActionCreate},
	"remove_reagent":     {domain.EntityReagent, domain.ActionDelete},
	"update_stock":       {domain.EntityReagent, domain.ActionUpdate},
	"register_supplier":  {domain.EntitySupplier, domain.ActionCreate},
	"associate_supplier": {domain.EntitySupplier, domain.ActionUpdate},
	"place_order":        {domain.EntityOrder, domain.ActionCreate},
	"receive_order":      {domain.EntityOrder, domain.ActionUpdate},
	"add_recipe":         {domain.EntityRecipe, domain.ActionCreate},
	"remove_recipe":      {domain.EntityRecipe, domain.ActionDelete},
	"perform_experiment": {domain.EntityExperiment, domain.ActionCreate},
}

func (s *Service) recordAuditSuccess(ctx context.Context, operation, entityID string, duration time.Duration) {
	s.recordAudit(ctx, operation, entityID, duration, nil)
}

func (s *Service) recordAuditError(ctx context.Context, operation, entityID string, duration time.Duration, err error) {
	s.recordAudit(ctx, operation, entityID, duration, err)
}

func (s *Service) recordAudit(ctx context.Context, operation, entityID string, duration time.Duration, opErr error) {
	if s.audit == nil {
		return
	}
	meta, ok := operationMetadata[operation]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: operation,
		Entity:    meta.Entity,
		Action:    meta.Action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.nowFn(),
	}
	if opErr != nil {
		entry.Status = AuditStatusError
		entry.Error = opErr.Error()
	}
	s.audit.Record(ctx, entry)
}

// run executes fn inside a store transaction wrapped with tracing, metrics,
// logging, and auditing. entityID may be filled in by fn before it returns.
func (s *Service) run(ctx context.Context, operation string, entityID *string, fn func(Transaction) error) (Result, error) {
	start := time.Now()
	runCtx := ctx
	var span TraceSpan
	if s.tracer != nil {
		runCtx, span = s.tracer.Start(ctx, operation)
	}

	res, err := s.store.RunInTransaction(runCtx, fn)
	duration := time.Since(start)

	if span != nil {
		span.End(err)
	}
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, duration)
	}

	id := ""
	if entityID != nil {
		id = *entityID
	}
	if err != nil {
		s.logger.Error(operation+" failed", "entity_id", id, "error", err)
		s.recordAuditError(ctx, operation, id, duration, err)
		return res, err
	}
	for _, violation := range res.Violations {
		if violation.Severity == domain.SeverityWarn {
			s.logger.Warn("rule violation", "rule", violation.Rule, "entity_id", violation.EntityID, "message", violation.Message)
		}
	}
	s.logger.Info(operation+" completed", "entity_id", id, "violations", len(res.Violations))
	s.recordAuditSuccess(ctx, operation, id, duration)
	return res, nil
}

// stateSnapshotter is satisfied by the memory store and the durable stores
// that embed it.
type stateSnapshotter interface {
	ExportState() memory.Snapshot
	ImportState(memory.Snapshot)
}

// ExportSnapshot returns a point-in-time snapshot of the full system state.
func (s *Service) ExportSnapshot() (memory.Snapshot, error) {
	snap, ok := s.store.(stateSnapshotter)
	if !ok {
		return memory.Snapshot{}, fmt.Errorf("store %T does not support snapshots", s.store)
	}
	return snap.ExportState(), nil
}

// ImportSnapshot replaces the full system state with the provided snapshot.
func (s *Service) ImportSnapshot(snapshot memory.Snapshot) error {
	snap, ok := s.store.(stateSnapshotter)
	if !ok {
		return fmt.Errorf("store %T does not support snapshots", s.store)
	}
	snap.ImportState(snapshot)
	return nil
}

// WriteSnapshot serializes the current state as the JSON boundary format.
func (s *Service) WriteSnapshot(w io.Writer) error {
	snapshot, err := s.ExportSnapshot()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshot)
}

// ReadSnapshot loads JSON boundary-format state, replacing the current state.
func (s *Service) ReadSnapshot(r io.Reader) error {
	var snapshot memory.Snapshot
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	return s.ImportSnapshot(snapshot)
}
