// Package lifecycle tracks the single in-flight analysis a caller is waiting on.
//
// Submissions are numbered. Only the attempt holding the current number may write state,
// so a slow response to a superseded submission can never overwrite a newer outcome.
package lifecycle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khanhnv2901/gatespy/internal/report"
	sharederrors "github.com/khanhnv2901/gatespy/internal/shared/errors"
)

type State string

const (
	StateIdle      State = "idle"
	StateAnalyzing State = "analyzing"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Analyzer performs one analysis round trip.
type Analyzer interface {
	Analyze(ctx context.Context, req report.AnalysisRequest) (*report.AnalysisReport, error)
}

// Snapshot is an immutable view of the controller. Report is shared, never mutated.
type Snapshot struct {
	State      State                  `json:"state"`
	AttemptID  string                 `json:"attempt_id,omitempty"`
	URL        string                 `json:"url,omitempty"`
	Error      string                 `json:"error,omitempty"`
	StartedAt  *time.Time             `json:"started_at,omitempty"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
	Report     *report.AnalysisReport `json:"-"`
}

// Options tunes a Controller.
type Options struct {
	// Timeout bounds one analysis. Zero leaves the bound to the Analyzer.
	Timeout time.Duration
	Logger  *zap.Logger
}

type Controller struct {
	analyzer Analyzer
	timeout  time.Duration
	logger   *zap.Logger

	mu          sync.RWMutex
	generation  uint64
	cancel      context.CancelFunc
	snap        Snapshot
	subscribers map[chan Snapshot]struct{}
	closed      bool
	wg          sync.WaitGroup
}

// Attempt is a handle on one submission.
type Attempt struct {
	ID         string
	URL        string
	generation uint64
	done       chan struct{}
}

// Done is closed once the attempt resolved, whether or not its result was applied.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the attempt resolved or ctx ends.
func (a *Attempt) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func New(analyzer Analyzer, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		analyzer:    analyzer,
		timeout:     opts.Timeout,
		logger:      logger.With(zap.String("component", "lifecycle")),
		snap:        Snapshot{State: StateIdle},
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// Submit starts a new attempt for url with surrounding whitespace removed. An empty url is refused with ErrInvalidInput and
// leaves state untouched. Any attempt still in flight is cancelled and its result will be
// discarded.
func (c *Controller) Submit(url string) (*Attempt, error) {
	url = strings.TrimSpace(url)
	req := report.AnalysisRequest{URL: url}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, sharederrors.ErrControllerClosed
	}
	if c.cancel != nil {
		c.cancel()
	}

	c.generation++
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), c.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	c.cancel = cancel

	now := time.Now()
	attempt := &Attempt{
		ID:         uuid.NewString(),
		URL:        url,
		generation: c.generation,
		done:       make(chan struct{}),
	}
	c.snap = Snapshot{
		State:     StateAnalyzing,
		AttemptID: attempt.ID,
		URL:       url,
		StartedAt: &now,
	}
	c.broadcast(c.snap)
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Info("analysis_submitted", zap.String("attempt_id", attempt.ID), zap.String("url", url))

	go c.run(ctx, cancel, attempt, req)
	return attempt, nil
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, attempt *Attempt, req report.AnalysisRequest) {
	defer c.wg.Done()
	defer close(attempt.done)
	defer cancel()

	r, err := c.analyzer.Analyze(ctx, req)
	c.resolve(attempt, r, err)
}

func (c *Controller) resolve(attempt *Attempt, r *report.AnalysisReport, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if attempt.generation != c.generation {
		c.logger.Debug("discarding superseded result", zap.String("attempt_id", attempt.ID))
		return
	}
	c.cancel = nil

	now := time.Now()
	next := c.snap
	next.FinishedAt = &now
	if err == nil && r == nil {
		err = sharederrors.ErrNoReport
	}
	if err != nil {
		next.State = StateFailed
		next.Error = ErrorMessage(err)
		next.Report = nil
		c.logger.Warn("analysis_failed", zap.String("attempt_id", attempt.ID), zap.Error(err))
	} else {
		next.State = StateSucceeded
		next.Error = ""
		next.Report = r
		c.logger.Info("analysis_succeeded", zap.String("attempt_id", attempt.ID))
	}
	c.snap = next
	c.broadcast(c.snap)
}

// ErrorMessage turns err into the message shown to the operator.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "analysis timed out: " + err.Error()
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "analysis failed"
}

// Analyze submits url and waits for that attempt to resolve.
func (c *Controller) Analyze(ctx context.Context, url string) (Snapshot, error) {
	attempt, err := c.Submit(url)
	if err != nil {
		return c.Snapshot(), err
	}
	if err := attempt.Wait(ctx); err != nil {
		return c.Snapshot(), err
	}
	return c.Snapshot(), nil
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Subscribe returns a channel receiving every state change, starting with the current one.
// Slow subscribers miss updates rather than blocking the controller.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 10)
	c.mu.Lock()
	ch <- c.snap
	if c.closed {
		close(ch)
		c.mu.Unlock()
		return ch, func() {}
	}
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()
	return ch, func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
}

// broadcast must be called with c.mu held.
func (c *Controller) broadcast(s Snapshot) {
	for ch := range c.subscribers {
		select {
		case ch <- s:
		default:
		}
	}
}

// Close cancels the in-flight attempt, waits for it and closes all subscriptions.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	for ch := range c.subscribers {
		delete(c.subscribers, ch)
		close(ch)
	}
	c.mu.Unlock()
}
