package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/slidegen/internal/redact"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// StuckTaskAge defines how long a task can be in processing state
	// before it's considered stuck and reset
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	// If zero, defaults to 5 minutes
	StuckTaskCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            4,
		QueueSize:              100,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

// TaskRunner persists submitted tasks, queues them for the worker pool
// and tracks them until they finish so they can be cancelled.
type TaskRunner struct {
	store      TaskStore
	queue      *TaskQueue
	pool       *WorkerPool
	config     TaskRunnerConfig
	logger     *slog.Logger
	rehydrator Rehydrator
	errHandler func(task Task, err error)

	mu   sync.Mutex
	live map[uuid.UUID]Task

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(store TaskStore, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "task_runner")

	ctx, cancel := context.WithCancel(context.Background())
	queue := NewTaskQueue(config.QueueSize, logger)

	return &TaskRunner{
		store:  store,
		queue:  queue,
		pool:   NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, logger),
		config: config,
		logger: logger,
		live:   make(map[uuid.UUID]Task),
		errHandler: func(task Task, err error) {
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", redact.Error(err))
		},
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// SetRehydrator sets how stored task records become executable again
// during recovery. Without one, recovered records run as stored.
func (r *TaskRunner) SetRehydrator(h Rehydrator) {
	r.rehydrator = h
}

// Submit persists task and adds it to the queue
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	r.track(task)
	if err := r.queue.Enqueue(task); err != nil {
		r.untrack(task.ID())
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			r.logger.Error("failed to mark rejected task as failed",
				"task_id", task.ID(),
				"error", updateErr)
		}
		return err
	}
	return nil
}

// Cancel requests cancellation of a queued or running task. It reports
// whether the task was known to this runner.
func (r *TaskRunner) Cancel(taskID uuid.UUID) bool {
	r.mu.Lock()
	task, ok := r.live[taskID]
	r.mu.Unlock()
	if !ok {
		return false
	}

	c, ok := task.(Canceller)
	if !ok {
		r.logger.Warn("task does not support cancellation", "task_id", taskID, "task_type", task.Type())
		return false
	}
	c.Cancel()
	r.logger.Info("task cancellation requested", "task_id", taskID)
	return true
}

// Active returns the number of queued or running tasks
func (r *TaskRunner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// CancelAll requests cancellation of every queued or running task and
// returns how many were cancelled.
func (r *TaskRunner) CancelAll() int {
	r.mu.Lock()
	tasks := make([]Task, 0, len(r.live))
	for _, task := range r.live {
		tasks = append(tasks, task)
	}
	r.mu.Unlock()

	var n int
	for _, task := range tasks {
		if c, ok := task.(Canceller); ok {
			c.Cancel()
			n++
		}
	}
	return n
}

// GlobalSignal is a process-wide cancellation request.
type GlobalSignal interface {
	IsCancelled() bool
	Clear() error
}

// ApplyCancelRequest hands a pending global cancel request to every task
// live right now, then clears it so later submissions are unaffected.
// It returns the number of tasks cancelled.
func (r *TaskRunner) ApplyCancelRequest(sig GlobalSignal) int {
	if sig == nil || !sig.IsCancelled() {
		return 0
	}
	n := r.CancelAll()
	if err := sig.Clear(); err != nil {
		r.logger.Warn("failed to clear cancel signal", "error", err)
	}
	r.logger.Info("global cancel request applied", "cancelled", n)
	return n
}

// WatchSignal applies global cancel requests as they arrive, checking
// every interval until the runner stops.
func (r *TaskRunner) WatchSignal(sig GlobalSignal, interval time.Duration) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				r.ApplyCancelRequest(sig)
			}
		}
	}()
}

// Start recovers unfinished tasks, starts the workers and the stuck task
// monitor.
func (r *TaskRunner) Start() error {
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	r.pool.Start(r.processTask)

	r.wg.Add(1)
	go r.stuckTaskMonitor()
	return nil
}

// Stop shuts the workers down. Tasks interrupted mid-run stay in the
// processing state and are picked up again by the next Recover.
func (r *TaskRunner) Stop() {
	r.cancelFunc()
	r.pool.Stop()
	r.wg.Wait()
	r.queue.Close()
}

// Recover loads any unfinished tasks from the store
func (r *TaskRunner) Recover() error {
	ctx := context.Background()

	pendingTasks, err := r.store.GetPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	// Processing tasks were interrupted by a crash or a shutdown.
	processingTasks, err := r.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pendingTasks),
		"processing_count", len(processingTasks))

	for _, task := range pendingTasks {
		r.requeue(ctx, task, "")
	}
	for _, task := range processingTasks {
		r.requeue(ctx, task, "Reset after recovery")
	}
	return nil
}

// requeue rehydrates a stored task and puts it back on the queue. A
// non-empty reason first resets the stored status to pending.
func (r *TaskRunner) requeue(ctx context.Context, record Task, reason string) {
	logger := r.logger.With("task_id", record.ID(), "task_type", record.Type())

	task := record
	if r.rehydrator != nil {
		rebuilt, err := r.rehydrator.Rehydrate(record)
		if err != nil {
			logger.Error("failed to rehydrate task, marking failed", "error", err)
			if updateErr := r.store.UpdateTaskStatus(ctx, record.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
				logger.Error("failed to mark task as failed", "error", updateErr)
			}
			return
		}
		task = rebuilt
	}

	if reason != "" {
		if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusPending, reason); err != nil {
			logger.Error("failed to reset task status", "error", err)
			return
		}
	}

	r.track(task)
	if err := r.queue.Enqueue(task); err != nil {
		r.untrack(task.ID())
		logger.Error("failed to requeue task", "error", err)
		return
	}
	logger.Info("requeued task")
}

// processTask handles execution of a single task
func (r *TaskRunner) processTask(ctx context.Context, task Task, workerID int) {
	defer r.untrack(task.ID())

	// Status writes must survive shutdown so the outcome is recorded.
	storeCtx := context.WithoutCancel(ctx)
	logger := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)

	if err := r.store.UpdateTaskStatus(storeCtx, task.ID(), TaskStatusProcessing, ""); err != nil {
		logger.Error("failed to update task status to processing", "error", err)
		return
	}

	logger.Info("processing task")
	start := time.Now()
	err := task.Execute(ctx)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		logger.Info("task completed successfully", "duration", elapsed.String())
		r.setStatus(storeCtx, logger, task, TaskStatusCompleted, "")

	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		logger.Warn("task interrupted by shutdown, leaving it for recovery")

	case errors.Is(err, ErrTaskCancelled):
		logger.Info("task cancelled", "duration", elapsed.String())
		r.setStatus(storeCtx, logger, task, TaskStatusCancelled, "cancelled")

	default:
		msg := redact.String(err.Error())
		r.setStatus(storeCtx, logger, task, TaskStatusFailed, msg)
		r.errHandler(task, err)
	}
}

func (r *TaskRunner) setStatus(ctx context.Context, logger *slog.Logger, task Task, status TaskStatus, msg string) {
	if err := r.store.UpdateTaskStatus(ctx, task.ID(), status, msg); err != nil {
		logger.Error("failed to update task status", "status", status, "error", err)
	}
}

// stuckTaskMonitor periodically resets tasks that have been processing for
// too long. Tasks still tracked by this runner are running, not stuck.
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			r.resetStuckTasks(context.Background())
		}
	}
}

func (r *TaskRunner) resetStuckTasks(ctx context.Context) {
	stuckTasks, err := r.store.GetProcessingTasks(ctx, r.config.StuckTaskAge)
	if err != nil {
		r.logger.Error("failed to check for stuck tasks", "error", err)
		return
	}

	var reset int
	for _, task := range stuckTasks {
		if r.isLive(task.ID()) {
			continue
		}
		r.requeue(ctx, task, "Reset after being stuck in processing state")
		reset++
	}
	if reset > 0 {
		r.logger.Info("reset stuck tasks", "count", reset)
	}
}

func (r *TaskRunner) track(task Task) {
	r.mu.Lock()
	r.live[task.ID()] = task
	r.mu.Unlock()
}

func (r *TaskRunner) untrack(id uuid.UUID) {
	r.mu.Lock()
	delete(r.live, id)
	r.mu.Unlock()
}

func (r *TaskRunner) isLive(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.live[id]
	return ok
}
