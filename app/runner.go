package app

import (
	"context"
	"sync"

	"varexplorer/domain/core"
	"varexplorer/domain/run"
	"varexplorer/internal"
	"varexplorer/internal/errors"
)

// DefaultMaxStoredRuns bounds the in-memory run history
const DefaultMaxStoredRuns = 20

// EventPublisher receives run progress events
type EventPublisher interface {
	Publish(event run.Event)
}

// Analyzer executes one analysis request
type Analyzer interface {
	Run(ctx context.Context, runID core.RunID, req AnalysisRequest, stage StageFunc) (*AnalysisResult, error)
}

// Run is a snapshot of one background analysis
type Run struct {
	ID        core.RunID      `json:"id"`
	Request   AnalysisRequest `json:"request"`
	Status    run.Status      `json:"status"`
	Progress  float64         `json:"progress"`
	Message   string          `json:"message"`
	Error     string          `json:"error,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	Result    *AnalysisResult `json:"result,omitempty"`
	CreatedAt core.Timestamp  `json:"created_at"`
	UpdatedAt core.Timestamp  `json:"updated_at"`
}

// Runner starts analyses in the background and keeps their state in memory
type Runner struct {
	analyzer  Analyzer
	publisher EventPublisher
	maxRuns   int
	logger    *internal.Logger

	mu    sync.RWMutex
	runs  map[core.RunID]*Run
	order []core.RunID

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates a runner. A nil publisher discards events.
func NewRunner(analyzer Analyzer, publisher EventPublisher, maxRuns int) *Runner {
	if maxRuns <= 0 {
		maxRuns = DefaultMaxStoredRuns
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		analyzer:  analyzer,
		publisher: publisher,
		maxRuns:   maxRuns,
		logger:    internal.DefaultLogger.Named("runner"),
		runs:      make(map[core.RunID]*Run),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start validates req and launches it. Validation errors are returned
// synchronously and no run is created.
func (r *Runner) Start(req AnalysisRequest) (Run, error) {
	if err := req.Normalize(); err != nil {
		return Run{}, err
	}
	if r.ctx.Err() != nil {
		return Run{}, errors.Wrap(errors.InternalError("runner is shut down"), "Cannot start analysis")
	}

	now := core.Now()
	rn := &Run{
		ID:        core.NewRunID(),
		Request:   req,
		Status:    run.StatusPending,
		Message:   "Queued",
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.runs[rn.ID] = rn
	r.order = append(r.order, rn.ID)
	r.evictLocked()
	snapshot := *rn
	r.mu.Unlock()

	r.publish(snapshot)
	r.logger.Info("[%s] queued %s analysis", rn.ID, req.Mode)

	r.wg.Add(1)
	go r.execute(rn.ID, req)
	return snapshot, nil
}

func (r *Runner) execute(id core.RunID, req AnalysisRequest) {
	defer r.wg.Done()

	r.update(id, run.StatusRunning, 0, "Starting analysis", nil)
	result, err := r.analyzer.Run(r.ctx, id, req, func(fraction float64, message string) {
		r.update(id, run.StatusRunning, fraction, message, nil)
	})
	if err != nil {
		r.logger.Warn("[%s] analysis failed: %v", id, err)
		r.fail(id, err)
		return
	}

	r.mu.Lock()
	if rn, ok := r.runs[id]; ok {
		rn.Result = result
	}
	r.mu.Unlock()
	r.update(id, run.StatusComplete, 1, "Analysis complete", nil)
}

func (r *Runner) fail(id core.RunID, err error) {
	r.update(id, run.StatusFailed, -1, errors.UserMessage(err), err)
}

// update applies a status change; a negative fraction keeps the current one
func (r *Runner) update(id core.RunID, status run.Status, fraction float64, message string, err error) {
	r.mu.Lock()
	rn, ok := r.runs[id]
	if !ok || !rn.Status.CanTransition(status) {
		r.mu.Unlock()
		return
	}
	rn.Status = status
	if fraction >= 0 {
		rn.Progress = fraction
	}
	rn.Message = message
	if err != nil {
		rn.Error = errors.UserMessage(err)
		rn.ErrorCode = errors.GetCode(err)
		if detail := err.Error(); detail != rn.Error {
			rn.Detail = detail
		}
	}
	rn.UpdatedAt = core.Now()
	snapshot := *rn
	r.mu.Unlock()

	r.publish(snapshot)
}

func (r *Runner) publish(rn Run) {
	if r.publisher == nil {
		return
	}
	r.publisher.Publish(run.Event{
		RunID:     rn.ID,
		Status:    rn.Status,
		Progress:  rn.Progress,
		Message:   rn.Message,
		Error:     rn.Error,
		Timestamp: rn.UpdatedAt,
	})
}

// evictLocked drops the oldest finished runs beyond maxRuns, then the
// oldest of any state if still over
func (r *Runner) evictLocked() {
	for len(r.order) > r.maxRuns {
		victim := 0
		for i, id := range r.order {
			if r.runs[id].Status.IsTerminal() {
				victim = i
				break
			}
		}
		delete(r.runs, r.order[victim])
		r.order = append(r.order[:victim], r.order[victim+1:]...)
	}
}

// Get returns a snapshot of the run
func (r *Runner) Get(id core.RunID) (Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rn, ok := r.runs[id]
	if !ok {
		return Run{}, &errors.AppError{
			Code:    errors.CodeNotFound,
			Message: "analysis " + id.String() + " not found",
			Cause:   core.ErrRunNotFound,
		}
	}
	return *rn, nil
}

// List returns snapshots newest first
func (r *Runner) List() []Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Run, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, *r.runs[r.order[i]])
	}
	return out
}

// Wait blocks until every started run has finished
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown cancels in-flight runs and waits for them or for ctx
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
