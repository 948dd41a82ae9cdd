// Package rollover runs the daily job that materializes a pending
// completion row for every task whose cycle is still active.
//
// A run is create-if-missing, so repeating it on the same day changes
// nothing and a failed run heals on the next tick. Individual row failures
// are logged and counted; they never abort the batch.
package rollover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mesh-intelligence/rituo/internal/metrics"
	"github.com/mesh-intelligence/rituo/pkg/types"
)

// ErrRolloverRunning is returned by RunOnce while another run is active.
var ErrRolloverRunning = errors.New("rollover already running")

// DefaultSchedule fires at server-local midnight.
const DefaultSchedule = types.DefaultRolloverSchedule

// Store is the slice of the ledger the rollover needs.
type Store interface {
	ListAllActiveTasks(ctx context.Context, today types.Date) ([]types.Task, error)
	EnsureCompletion(ctx context.Context, task types.Task, date types.Date) (bool, error)
}

// State is the scheduler's position in Idle -> Running -> Idle.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Status is the outcome of a finished run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Result counts what one run did.
type Result struct {
	Active   int `json:"active"`
	Created  int `json:"created"`
	Existing int `json:"existing"`
	Failed   int `json:"failed"`
}

// Run describes the most recent finished run.
type Run struct {
	Date       types.Date `json:"date"`
	Status     Status     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Result     Result     `json:"result"`
	Error      string     `json:"error,omitempty"`
}

// Scheduler owns the cron trigger and the run state. It shares nothing
// with request handlers except the store.
type Scheduler struct {
	store    Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
	clock    func() time.Time
	schedule string
	location *time.Location
	cron     *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state State
	last  *Run
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSchedule sets the cron spec (five fields or a descriptor).
func WithSchedule(spec string) Option {
	return func(s *Scheduler) { s.schedule = spec }
}

// WithClock sets the time source used to derive "today" on each tick.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithLocation sets the zone the schedule and "today" are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.location = loc }
}

// WithMetrics records run and row counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New builds a Scheduler over store. The cron spec is validated here; the
// trigger does not fire until Start.
func New(store Store, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		store:    store,
		logger:   logger.With("component", "rollover"),
		clock:    time.Now,
		schedule: DefaultSchedule,
		location: time.Local,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	adapter := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)
	if _, err := s.cron.AddFunc(s.schedule, s.tick); err != nil {
		return nil, fmt.Errorf("%w %q: %v", types.ErrScheduleInvalid, s.schedule, err)
	}
	return s, nil
}

// Start begins firing on the schedule in a background goroutine.
func (s *Scheduler) Start() {
	s.logger.Info("rollover scheduler started", "schedule", s.schedule, "location", s.location.String())
	s.cron.Start()
}

// Stop halts the trigger and waits for an in-flight run to finish. If ctx
// ends first the in-flight run is cancelled and ctx's error returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		s.logger.Info("rollover scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

// tick is the cron job body.
func (s *Scheduler) tick() {
	today := types.DateOf(s.clock().In(s.location))
	if _, err := s.RunOnce(s.ctx, today); err != nil && !errors.Is(err, ErrRolloverRunning) {
		s.logger.Error("scheduled rollover failed", "date", today.String(), "error", err)
	}
}

// RunOnce ensures a completion row dated today exists for every active
// task. It returns ErrRolloverRunning if a run is already in progress,
// and an error when the active tasks could not be listed or every row
// failed.
func (s *Scheduler) RunOnce(ctx context.Context, today types.Date) (Result, error) {
	if !s.begin() {
		return Result{}, ErrRolloverRunning
	}

	run := &Run{Date: today, StartedAt: s.clock()}
	s.logger.Info("rollover started", "date", today.String())

	result, err := s.execute(ctx, today)

	run.FinishedAt = s.clock()
	run.Result = result
	run.Status = StatusCompleted
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
		s.logger.Error("rollover failed",
			"date", today.String(),
			"active", result.Active,
			"failed", result.Failed,
			"error", err)
	} else {
		s.logger.Info("rollover completed",
			"date", today.String(),
			"active", result.Active,
			"created", result.Created,
			"existing", result.Existing,
			"failed", result.Failed,
			"duration", run.FinishedAt.Sub(run.StartedAt))
	}
	s.observe(run)
	s.finish(run)
	return result, err
}

func (s *Scheduler) execute(ctx context.Context, today types.Date) (Result, error) {
	var result Result

	tasks, err := s.store.ListAllActiveTasks(ctx, today)
	if err != nil {
		return result, fmt.Errorf("listing active tasks: %w", err)
	}
	result.Active = len(tasks)

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("rollover interrupted after %d of %d tasks: %w",
				result.Created+result.Existing+result.Failed, result.Active, err)
		}
		created, err := s.store.EnsureCompletion(ctx, task, today)
		switch {
		case err != nil:
			result.Failed++
			s.logger.Error("rollover row failed",
				"task_id", task.TaskID,
				"user_id", task.UserID,
				"date", today.String(),
				"error", err)
		case created:
			result.Created++
		default:
			result.Existing++
		}
	}

	if result.Active > 0 && result.Failed == result.Active {
		return result, fmt.Errorf("all %d rows failed", result.Failed)
	}
	return result, nil
}

func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return false
	}
	s.state = StateRunning
	return true
}

func (s *Scheduler) finish(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.last = run
}

func (s *Scheduler) observe(run *Run) {
	if s.metrics == nil {
		return
	}
	s.metrics.RolloverRuns.WithLabelValues(string(run.Status)).Inc()
	s.metrics.RolloverRows.WithLabelValues("created").Add(float64(run.Result.Created))
	s.metrics.RolloverRows.WithLabelValues("existing").Add(float64(run.Result.Existing))
	s.metrics.RolloverRows.WithLabelValues("failed").Add(float64(run.Result.Failed))
	s.metrics.RolloverDuration.Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
}

// State reports whether a run is in progress.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastRun returns the most recent finished run, if any.
func (s *Scheduler) LastRun() (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Run{}, false
	}
	return *s.last, true
}

// Next returns the next scheduled fire time, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// cronLogger routes cron's own logging into slog. Cron's info lines are
// per-tick chatter, so they go to debug.
type cronLogger struct {
	logger *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.logger.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
