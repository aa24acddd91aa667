package flow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/vakaflow-ai/vakaflow/types"
)

// Leaser establishes single-writer ownership of an execution id before any
// state transition is written. Required when orchestrators run in multiple
// processes against the same repository.
type Leaser interface {
	// Acquire takes the lease for an execution id and returns its release
	// function. A held lease returns an error.
	Acquire(ctx context.Context, executionID string) (func(), error)
}

// Metrics receives engine measurements. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ExecutionStarted(flowID string)
	ExecutionFinished(flowID string, status ExecutionStatus, duration time.Duration)
	NodeAttempt(flowID, nodeID string, success bool, duration time.Duration)
	ActionFailures(flowID string, count int)
	AdmissionRejected(flowID string)
}

type noopMetrics struct{}

func (noopMetrics) ExecutionStarted(string)                                  {}
func (noopMetrics) ExecutionFinished(string, ExecutionStatus, time.Duration) {}
func (noopMetrics) NodeAttempt(string, string, bool, time.Duration)          {}
func (noopMetrics) ActionFailures(string, int)                               {}
func (noopMetrics) AdmissionRejected(string)                                 {}

// EngineConfig holds engine-level defaults applied when a flow's own policy
// leaves a knob unset.
type EngineConfig struct {
	// DefaultExecutionTimeout bounds a whole run when timeout_seconds is 0
	DefaultExecutionTimeout time.Duration `yaml:"default_execution_timeout"`
	// DefaultNodeTimeout bounds one agent invocation when node_timeout_seconds is 0
	DefaultNodeTimeout time.Duration `yaml:"default_node_timeout"`
	// RetryBackoffInitial is the first retry interval
	RetryBackoffInitial time.Duration `yaml:"retry_backoff_initial"`
	// RetryBackoffMax caps the growing retry interval
	RetryBackoffMax time.Duration `yaml:"retry_backoff_max"`
}

// DefaultEngineConfig returns the engine defaults
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultExecutionTimeout: 10 * time.Minute,
		DefaultNodeTimeout:      60 * time.Second,
		RetryBackoffInitial:     500 * time.Millisecond,
		RetryBackoffMax:         30 * time.Second,
	}
}

func (c EngineConfig) withDefaults() EngineConfig {
	d := DefaultEngineConfig()
	if c.DefaultExecutionTimeout <= 0 {
		c.DefaultExecutionTimeout = d.DefaultExecutionTimeout
	}
	if c.DefaultNodeTimeout <= 0 {
		c.DefaultNodeTimeout = d.DefaultNodeTimeout
	}
	if c.RetryBackoffInitial <= 0 {
		c.RetryBackoffInitial = d.RetryBackoffInitial
	}
	if c.RetryBackoffMax <= 0 {
		c.RetryBackoffMax = d.RetryBackoffMax
	}
	return c
}

// OrchestratorOptions wires the orchestrator's collaborators
type OrchestratorOptions struct {
	Store      Store
	Repository Repository
	Invoker    AgentInvoker
	Dispatcher *Dispatcher
	// Leaser is optional; nil disables distributed ownership checks
	Leaser Leaser
	// Metrics is optional; nil disables measurements
	Metrics Metrics
	Logger  *zap.Logger
	Config  EngineConfig
}

// Orchestrator is the engine's state machine and scheduler. It walks the
// flow graph breadth-first, invokes nodes with the retry/timeout policy,
// dispatches integration actions around each node, gates admission per flow,
// and is the single writer of each execution record it owns.
type Orchestrator struct {
	store      Store
	repo       Repository
	invoker    AgentInvoker
	dispatcher *Dispatcher
	leaser     Leaser
	metrics    Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
	cfg        EngineConfig

	mu      sync.Mutex
	gates   map[string]*flowGate
	cancels map[string]context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

// flowGate is a per-flow admission semaphore together with the bound it was
// built for, so a definition update that changes the bound is detected.
type flowGate struct {
	sem   *semaphore.Weighted
	bound int64
}

// NewOrchestrator creates an orchestrator. Store, Repository, Invoker, and
// Dispatcher are required.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Orchestrator{
		store:      opts.Store,
		repo:       opts.Repository,
		invoker:    opts.Invoker,
		dispatcher: opts.Dispatcher,
		leaser:     opts.Leaser,
		metrics:    metrics,
		logger:     logger.With(zap.String("component", "orchestrator")),
		tracer:     otel.Tracer("vakaflow/flow"),
		cfg:        opts.Config.withDefaults(),
		gates:      make(map[string]*flowGate),
		cancels:    make(map[string]context.CancelFunc),
	}
}

// runState is the mutable state of one run. The mutex guards the record and
// the result namespace against concurrent node tasks within a wave.
type runState struct {
	mu      sync.Mutex
	rec     *ExecutionRecord
	results map[string]map[string]any
}

// snapshot freezes {result, context} for template resolution and edge
// evaluation
func (st *runState) snapshot() *Scope {
	st.mu.Lock()
	defer st.mu.Unlock()
	return NewScope(st.results, st.rec.Context)
}

// Execute admits one run of a flow and returns its execution id immediately;
// completion is observed via GetExecution. Validation failures surface
// synchronously and produce no record. When the flow's concurrency bound is
// reached, the run queues (default) or is rejected with
// CONCURRENCY_LIMIT_EXCEEDED, per the flow's admission policy.
func (o *Orchestrator) Execute(ctx context.Context, flowID string, trigger Trigger) (string, error) {
	def, err := o.loadActive(ctx, flowID)
	if err != nil {
		return "", err
	}
	rec := NewExecutionRecord(def, trigger)
	return o.admit(ctx, def, rec, nil)
}

// Retry creates a new attempt chain for a failed execution. The new record
// resumes at the first non-completed node; prior successful node results are
// carried over untouched.
func (o *Orchestrator) Retry(ctx context.Context, executionID string) (string, error) {
	old, err := o.repo.Get(ctx, executionID)
	if err != nil {
		return "", types.NewErrorf(types.ErrExecutionNotFound, "execution not found: %s", executionID).
			WithHTTPStatus(http.StatusNotFound).WithCause(err)
	}
	if old.Status != ExecStatusFailed {
		return "", types.NewErrorf(types.ErrInvalidState,
			"retry requires a failed execution, status is %s", old.Status).
			WithHTTPStatus(http.StatusConflict)
	}
	def, err := o.loadActive(ctx, old.FlowID)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	rec := &ExecutionRecord{
		ID:          newExecutionID(),
		FlowID:      old.FlowID,
		FlowVersion: def.Version,
		Status:      ExecStatusPending,
		Context:     cloneContext(old.Context),
		RetryOf:     old.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, nr := range old.NodeResults {
		if nr.Status == NodeStatusCompleted {
			copied := *nr
			rec.NodeResults = append(rec.NodeResults, &copied)
		}
	}

	return o.admit(ctx, def, rec, old.CompletedNodes())
}

// Cancel requests cooperative cancellation of a running execution. The flag
// is honored at the next suspension point; in-flight external calls are not
// force-killed.
func (o *Orchestrator) Cancel(ctx context.Context, executionID string) error {
	o.mu.Lock()
	cancel, ok := o.cancels[executionID]
	o.mu.Unlock()
	if ok {
		cancel()
		return nil
	}
	rec, err := o.repo.Get(ctx, executionID)
	if err != nil {
		return types.NewErrorf(types.ErrExecutionNotFound, "execution not found: %s", executionID).
			WithHTTPStatus(http.StatusNotFound).WithCause(err)
	}
	return types.NewErrorf(types.ErrInvalidState, "execution is not running, status is %s", rec.Status).
		WithHTTPStatus(http.StatusConflict)
}

// GetExecution returns the execution record for a status/history query
func (o *Orchestrator) GetExecution(ctx context.Context, executionID string) (*ExecutionRecord, error) {
	rec, err := o.repo.Get(ctx, executionID)
	if err != nil {
		return nil, types.NewErrorf(types.ErrExecutionNotFound, "execution not found: %s", executionID).
			WithHTTPStatus(http.StatusNotFound).WithCause(err)
	}
	return rec, nil
}

// ListExecutions returns execution history matching the filter
func (o *Orchestrator) ListExecutions(ctx context.Context, filter ListFilter) ([]*ExecutionRecord, error) {
	return o.repo.List(ctx, filter)
}

// Shutdown stops admitting new runs and waits for in-flight executions up to
// the context deadline.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown wait: %w", ctx.Err())
	}
}

// ============================================================
// Admission
// ============================================================

func (o *Orchestrator) loadActive(ctx context.Context, flowID string) (*Definition, error) {
	def, err := o.store.Get(ctx, flowID)
	if err != nil {
		return nil, types.NewErrorf(types.ErrFlowNotFound, "flow not found: %s", flowID).
			WithHTTPStatus(http.StatusNotFound).WithCause(err)
	}
	if def.Status != FlowStatusActive {
		return nil, types.NewErrorf(types.ErrFlowNotActive, "flow %s is %s, not active", flowID, def.Status).
			WithHTTPStatus(http.StatusConflict)
	}
	if err := Validate(def); err != nil {
		return nil, err
	}
	return def, nil
}

func (o *Orchestrator) admit(ctx context.Context, def *Definition, rec *ExecutionRecord, done map[string]bool) (string, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return "", types.NewError(types.ErrInvalidState, "engine is shutting down").
			WithHTTPStatus(http.StatusServiceUnavailable)
	}
	o.mu.Unlock()

	gate := o.gate(def.ID, def.Config.MaxConcurrent())

	acquired := false
	if def.Config.OnLimitExceeded == LimitPolicyReject {
		if !gate.TryAcquire(1) {
			o.metrics.AdmissionRejected(def.ID)
			return "", types.NewErrorf(types.ErrConcurrencyLimit,
				"flow %s is at its concurrency limit", def.ID).
				WithHTTPStatus(http.StatusTooManyRequests).WithRetryable(true)
		}
		acquired = true
	}

	if err := o.repo.Create(ctx, rec); err != nil {
		if acquired {
			gate.Release(1)
		}
		return "", types.NewError(types.ErrStorage, "failed to create execution record").WithCause(err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.cancels[rec.ID] = cancel
	o.mu.Unlock()

	o.wg.Add(1)
	go o.run(runCtx, def, rec, gate, acquired, done)

	o.logger.Info("execution admitted",
		zap.String("flow_id", def.ID),
		zap.String("execution_id", rec.ID),
		zap.Bool("queued", !acquired),
	)
	return rec.ID, nil
}

// gate returns the admission semaphore for a flow, rebuilding it when the
// active definition's concurrency bound has changed. Runs admitted under the
// old bound hold and release permits of the old semaphore and drain
// unaffected; the new bound governs every admission from the change onward.
func (o *Orchestrator) gate(flowID string, bound int64) *semaphore.Weighted {
	o.mu.Lock()
	defer o.mu.Unlock()
	g, ok := o.gates[flowID]
	if !ok || g.bound != bound {
		g = &flowGate{sem: semaphore.NewWeighted(bound), bound: bound}
		o.gates[flowID] = g
	}
	return g.sem
}

// ============================================================
// Run loop
// ============================================================

func (o *Orchestrator) run(parent context.Context, def *Definition, rec *ExecutionRecord, gate *semaphore.Weighted, acquired bool, done map[string]bool) {
	defer o.wg.Done()
	defer func() {
		o.mu.Lock()
		delete(o.cancels, rec.ID)
		o.mu.Unlock()
	}()

	start := time.Now()
	timeout := o.cfg.DefaultExecutionTimeout
	if def.Config.TimeoutSeconds > 0 {
		timeout = time.Duration(def.Config.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	st := &runState{rec: rec, results: rec.resultOutputs()}

	if !acquired {
		if err := gate.Acquire(ctx, 1); err != nil {
			o.finish(ctx, def, st, start, err)
			return
		}
	}
	defer gate.Release(1)

	if o.leaser != nil {
		release, err := o.leaser.Acquire(ctx, rec.ID)
		if err != nil {
			o.finish(ctx, def, st, start,
				types.NewError(types.ErrLeaseHeld, "could not acquire execution lease").WithCause(err))
			return
		}
		defer release()
	}

	ctx, span := o.tracer.Start(ctx, "flow.execute",
		trace.WithAttributes(
			attribute.String("flow.id", def.ID),
			attribute.String("execution.id", rec.ID),
		))
	defer span.End()

	o.transition(ctx, st, ExecStatusRunning)
	o.metrics.ExecutionStarted(def.ID)
	o.logger.Info("execution started",
		zap.String("flow_id", def.ID),
		zap.String("execution_id", rec.ID),
	)

	err := o.walk(ctx, def, st, done)
	o.finish(ctx, def, st, start, err)
}

func (o *Orchestrator) finish(ctx context.Context, def *Definition, st *runState, start time.Time, err error) {
	final := ExecStatusCompleted
	var detail string
	switch {
	case err == nil:
		final = ExecStatusCompleted
	case errors.Is(err, context.Canceled):
		final = ExecStatusCancelled
		detail = "execution cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		final = ExecStatusFailed
		detail = "execution exceeded its timeout budget"
	default:
		final = ExecStatusFailed
		detail = err.Error()
	}

	st.mu.Lock()
	st.rec.Status = final
	st.rec.Error = detail
	st.rec.UpdatedAt = time.Now().UTC()
	execID := st.rec.ID
	st.mu.Unlock()
	o.persistFinal(ctx, st)

	o.metrics.ExecutionFinished(def.ID, final, time.Since(start))
	o.logger.Info("execution finished",
		zap.String("flow_id", def.ID),
		zap.String("execution_id", execID),
		zap.String("status", string(final)),
		zap.Duration("duration", time.Since(start)),
	)
}

// walk runs a breadth-first traversal from the entry set. Nodes in the same
// wave run concurrently; a node joins a wave only after every incoming edge
// is resolved and at least one fired. Branches whose conditions all fail are
// marked dead and their downstream edges resolve as unfired, so the frontier
// always drains.
func (o *Orchestrator) walk(ctx context.Context, def *Definition, st *runState, done map[string]bool) error {
	incomingIdx := make(map[string][]int, len(def.Nodes))
	for i, e := range def.Edges {
		incomingIdx[e.To] = append(incomingIdx[e.To], i)
	}

	edgeResolved := make([]bool, len(def.Edges))
	edgeFired := make([]bool, len(def.Edges))
	scheduled := make(map[string]bool, len(def.Nodes))
	dead := make(map[string]bool)

	evaluateFinished := func(ids []string) {
		scope := st.snapshot()
		for _, id := range ids {
			node, ok := def.NodeByID(id)
			terminal := ok && node.Type == NodeTypeTerminal
			for i, e := range def.Edges {
				if e.From != id {
					continue
				}
				edgeResolved[i] = true
				edgeFired[i] = !terminal && EvalCondition(e.Condition, scope)
			}
		}
	}

	collectReady := func() []string {
		var ready []string
		for changed := true; changed; {
			changed = false
			for i := range def.Nodes {
				id := def.Nodes[i].ID
				if scheduled[id] || dead[id] {
					continue
				}
				in := incomingIdx[id]
				if len(in) == 0 {
					continue
				}
				allResolved, anyFired := true, false
				for _, ei := range in {
					if !edgeResolved[ei] {
						allResolved = false
						break
					}
					if edgeFired[ei] {
						anyFired = true
					}
				}
				if !allResolved {
					continue
				}
				if anyFired {
					scheduled[id] = true
					ready = append(ready, id)
				} else {
					dead[id] = true
					for ei, e := range def.Edges {
						if e.From == id {
							edgeResolved[ei] = true
						}
					}
					changed = true
				}
			}
		}
		return ready
	}

	// Seed from already-completed nodes (retry resumes at the failure
	// point, never re-running completed upstream work).
	if len(done) > 0 {
		seeded := make([]string, 0, len(done))
		for id := range done {
			scheduled[id] = true
			seeded = append(seeded, id)
		}
		evaluateFinished(seeded)
	}

	var frontier []string
	for _, id := range def.EntryNodes() {
		if !scheduled[id] {
			scheduled[id] = true
			frontier = append(frontier, id)
		}
	}
	frontier = append(frontier, collectReady()...)

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		wave := frontier
		for _, id := range wave {
			node, ok := def.NodeByID(id)
			if !ok {
				return types.NewErrorf(types.ErrInternalError, "scheduled node not in definition: %s", id)
			}
			g.Go(func() error {
				return o.runNode(gctx, def, st, node)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		evaluateFinished(wave)
		frontier = collectReady()
	}
	return nil
}

// ============================================================
// Node execution
// ============================================================

func (o *Orchestrator) runNode(ctx context.Context, def *Definition, st *runState, node *Node) error {
	ctx, span := o.tracer.Start(ctx, "flow.node",
		trace.WithAttributes(attribute.String("node.id", node.ID)))
	defer span.End()

	nr := &NodeResult{
		NodeID:    node.ID,
		Status:    NodeStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	st.mu.Lock()
	st.rec.NodeResults = append(st.rec.NodeResults, nr)
	st.mu.Unlock()
	// History is written ahead of the work it describes, so a crash
	// mid-execution leaves a resumable record.
	o.persist(ctx, st)

	patches, actionErrs := o.dispatcher.DispatchBefore(ctx, node, st.snapshot())
	if len(patches) > 0 {
		st.mu.Lock()
		ApplyPatches(st.rec.Context, patches)
		st.mu.Unlock()
	}
	o.recordActionErrors(def, st, nr, actionErrs)

	if def.Config.FailFastActions && len(actionErrs) > 0 {
		err := types.NewErrorf(types.ErrIntegrationAction,
			"%d integration action(s) failed with fail-fast enabled", len(actionErrs)).
			WithNodeID(node.ID)
		return o.failNode(ctx, def, st, node, nr, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	output := map[string]any{}
	if node.Type == NodeTypeAgent {
		input := Resolve(node.Input, st.snapshot())
		out, err := o.invokeWithRetry(ctx, def, st, node, nr, input)
		if err != nil {
			return o.failNode(ctx, def, st, node, nr, err)
		}
		output = out
	}

	st.mu.Lock()
	nr.Status = NodeStatusCompleted
	nr.Output = output
	nr.FinishedAt = time.Now().UTC()
	st.results[node.ID] = output
	st.mu.Unlock()
	o.persist(ctx, st)

	afterErrs := o.dispatcher.DispatchAfter(ctx, node, st.snapshot())
	o.recordActionErrors(def, st, nr, afterErrs)
	if def.Config.FailFastActions && len(afterErrs) > 0 {
		err := types.NewErrorf(types.ErrIntegrationAction,
			"%d integration action(s) failed with fail-fast enabled", len(afterErrs)).
			WithNodeID(node.ID)
		return o.failNode(ctx, def, st, node, nr, err)
	}
	return nil
}

// invokeWithRetry applies the node timeout and the flow's retry policy.
// Timeouts are handled identically to execution errors for retry purposes.
func (o *Orchestrator) invokeWithRetry(ctx context.Context, def *Definition, st *runState, node *Node, nr *NodeResult, input string) (map[string]any, error) {
	nodeTimeout := o.cfg.DefaultNodeTimeout
	if def.Config.NodeTimeoutSeconds > 0 {
		nodeTimeout = time.Duration(def.Config.NodeTimeoutSeconds) * time.Second
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.cfg.RetryBackoffInitial
	bo.MaxInterval = o.cfg.RetryBackoffMax

	maxAttempts := def.Config.MaxAttempts()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		st.mu.Lock()
		nr.Attempts = attempt
		st.mu.Unlock()

		attemptCtx, cancel := context.WithTimeout(ctx, nodeTimeout)
		start := time.Now()
		out, err := o.invoker.Invoke(attemptCtx, node, input)
		cancel()
		o.metrics.NodeAttempt(def.ID, node.ID, err == nil, time.Since(start))

		if err == nil {
			return out, nil
		}
		lastErr = err
		o.logger.Warn("node attempt failed",
			zap.String("flow_id", def.ID),
			zap.String("execution_id", st.executionID()),
			zap.String("node_id", node.ID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err),
		)

		// An execution-level cancel or timeout is not retryable.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if attempt < maxAttempts {
			o.transition(ctx, st, ExecStatusNodeFailed)
			o.transition(ctx, st, ExecStatusRetrying)
			select {
			case <-time.After(bo.NextBackOff()):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			o.transition(ctx, st, ExecStatusRunning)
		}
	}
	return nil, lastErr
}

// failNode finalizes a failed node result, runs the error-phase actions, and
// propagates the failure (fail-fast: downstream nodes are not invoked).
func (o *Orchestrator) failNode(ctx context.Context, def *Definition, st *runState, node *Node, nr *NodeResult, cause error) error {
	o.transition(ctx, st, ExecStatusNodeFailed)

	kind := string(types.ErrNodeExecution)
	if code := types.GetErrorCode(cause); code != "" {
		kind = string(code)
	}
	st.mu.Lock()
	nr.Status = NodeStatusFailed
	nr.ErrorKind = kind
	nr.ErrorDetail = cause.Error()
	nr.FinishedAt = time.Now().UTC()
	st.mu.Unlock()
	o.persist(ctx, st)

	// Error actions run after retries are exhausted. Cancellation skips
	// them; the run is already being torn down.
	if ctx.Err() == nil {
		errErrs := o.dispatcher.DispatchError(ctx, node, st.snapshot())
		o.recordActionErrors(def, st, nr, errErrs)
	}

	return fmt.Errorf("node %s failed: %w", node.ID, cause)
}

func (o *Orchestrator) recordActionErrors(def *Definition, st *runState, nr *NodeResult, errs []ActionError) {
	if len(errs) == 0 {
		return
	}
	st.mu.Lock()
	nr.ActionErrors = append(nr.ActionErrors, errs...)
	st.mu.Unlock()
	o.metrics.ActionFailures(def.ID, len(errs))
}

// ============================================================
// Persistence helpers
// ============================================================

func (o *Orchestrator) transition(ctx context.Context, st *runState, status ExecutionStatus) {
	st.mu.Lock()
	st.rec.Status = status
	st.rec.UpdatedAt = time.Now().UTC()
	st.mu.Unlock()
	o.persist(ctx, st)
}

// persist writes the current record snapshot. Writes survive run-context
// cancellation so terminal transitions always land.
func (o *Orchestrator) persist(ctx context.Context, st *runState) {
	st.mu.Lock()
	snap := st.rec.Clone()
	st.mu.Unlock()
	if snap == nil {
		return
	}
	if err := o.repo.Update(context.WithoutCancel(ctx), snap); err != nil {
		o.logger.Error("failed to persist execution record",
			zap.String("execution_id", snap.ID),
			zap.Error(err),
		)
	}
}

// finalPersistTries bounds the retry loop for terminal writes
const finalPersistTries = 3

// persistFinal writes the terminal record snapshot, retrying transient
// repository failures. Losing this write would strand the stored record in a
// non-terminal status after the in-memory run is gone.
func (o *Orchestrator) persistFinal(ctx context.Context, st *runState) {
	st.mu.Lock()
	snap := st.rec.Clone()
	st.mu.Unlock()
	if snap == nil {
		return
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.cfg.RetryBackoffInitial
	bo.MaxInterval = o.cfg.RetryBackoffMax

	wctx := context.WithoutCancel(ctx)
	_, err := backoff.Retry(wctx, func() (struct{}, error) {
		return struct{}{}, o.repo.Update(wctx, snap)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(finalPersistTries))
	if err != nil {
		o.logger.Error("failed to persist terminal execution state",
			zap.String("execution_id", snap.ID),
			zap.Int("attempts", finalPersistTries),
			zap.Error(err),
		)
	}
}

func (st *runState) executionID() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.rec.ID
}

func cloneContext(src map[string]any) map[string]any {
	if src == nil {
		return map[string]any{}
	}
	rec := ExecutionRecord{Context: src}
	if c := rec.Clone(); c != nil && c.Context != nil {
		return c.Context
	}
	return map[string]any{}
}

func newExecutionID() string {
	return uuid.NewString()
}
