package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"pizzachallenge/internal/models"

	"go.uber.org/zap"
)

// Publisher is the downstream that actually delivers change events
type Publisher interface {
	Publish(ctx context.Context, event models.ChangeEvent) error
}

// PublishTask represents a change event waiting to be published
type PublishTask struct {
	Event models.ChangeEvent
}

// Key identifies the row an event is about. Events with the same key are
// published in submission order.
func (t PublishTask) Key() string {
	var row struct {
		ID uint `json:"id"`
	}
	if len(t.Event.Row) > 0 {
		_ = json.Unmarshal(t.Event.Row, &row)
	}
	return fmt.Sprintf("%s:%d", t.Event.Collection, row.ID)
}

// WorkerPool publishes change events asynchronously so mutations never wait
// on the notification channel. Each worker owns one queue and a task always
// lands on the queue its key hashes to.
type WorkerPool struct {
	jobs        []chan PublishTask
	workerCount int
	downstream  Publisher
	timeout     time.Duration
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	metrics     *PoolMetrics

	// mu guards jobs against sends after it is closed
	mu       sync.RWMutex
	shutdown bool
}

// PoolMetrics tracks worker pool performance
type PoolMetrics struct {
	mu              sync.RWMutex
	processed       int64
	failed          int64
	backpressure    int64
	totalProcessing time.Duration
}

// MetricsSnapshot is a copy of the pool counters
type MetricsSnapshot struct {
	Processed     int64
	Failed        int64
	Backpressure  int64
	AvgProcessing time.Duration
	QueueLength   int
	QueueCapacity int
}

// NewWorkerPool creates a new worker pool. queueSize is the capacity of each
// worker's queue.
func NewWorkerPool(workerCount, queueSize int, downstream Publisher) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if workerCount < 1 {
		workerCount = 1
	}
	jobs := make([]chan PublishTask, workerCount)
	for i := range jobs {
		jobs[i] = make(chan PublishTask, queueSize)
	}

	return &WorkerPool{
		jobs:        jobs,
		workerCount: workerCount,
		downstream:  downstream,
		timeout:     5 * time.Second,
		ctx:         ctx,
		cancel:      cancel,
		metrics:     &PoolMetrics{},
	}
}

// Ping checks the downstream when it supports it
func (wp *WorkerPool) Ping(ctx context.Context) error {
	if p, ok := wp.downstream.(interface {
		Ping(ctx context.Context) error
	}); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Start initializes and starts all worker goroutines
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i+1, wp.jobs[i])
	}

	zap.L().Info("worker pool started",
		zap.Int("workers", wp.workerCount),
		zap.Int("queue_size", cap(wp.jobs[0])),
	)
}

// worker is the main worker loop that processes jobs
func (wp *WorkerPool) worker(id int, jobs <-chan PublishTask) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return

		case task, ok := <-jobs:
			if !ok {
				return
			}
			wp.processTask(id, task)
		}
	}
}

// processTask publishes a single event with panic recovery
func (wp *WorkerPool) processTask(workerID int, task PublishTask) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("worker panic recovered",
				zap.Int("worker", workerID),
				zap.Any("panic", r),
				zap.String("collection", string(task.Event.Collection)),
			)
			wp.metrics.incrementFailed()
		}
	}()

	startTime := time.Now()

	ctx, cancel := context.WithTimeout(wp.ctx, wp.timeout)
	defer cancel()

	err := wp.downstream.Publish(ctx, task.Event)
	processingTime := time.Since(startTime)

	if err != nil {
		zap.L().Warn("failed to publish change event",
			zap.Int("worker", workerID),
			zap.String("collection", string(task.Event.Collection)),
			zap.String("kind", string(task.Event.Kind)),
			zap.Duration("took", processingTime),
			zap.Error(err),
		)
		wp.metrics.incrementFailed()
		return
	}

	wp.metrics.recordSuccess(processingTime)
}

// Publish queues an event. It satisfies the service publisher contract, so
// the pool can sit between the service and the real channel.
func (wp *WorkerPool) Publish(_ context.Context, event models.ChangeEvent) error {
	return wp.Submit(PublishTask{Event: event})
}

// Submit attempts to add a task to the queue with backpressure handling
func (wp *WorkerPool) Submit(task PublishTask) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.shutdown {
		return fmt.Errorf("worker pool is shut down")
	}

	select {
	case wp.queueFor(task) <- task:
		return nil

	default:
		zap.L().Warn("worker pool queue full, dropping change event",
			zap.String("collection", string(task.Event.Collection)),
		)
		wp.metrics.incrementBackpressure()
		return fmt.Errorf("worker pool queue full (backpressure)")
	}
}

func (wp *WorkerPool) queueFor(task PublishTask) chan PublishTask {
	h := fnv.New32a()
	_, _ = h.Write([]byte(task.Key()))
	return wp.jobs[h.Sum32()%uint32(len(wp.jobs))]
}

// Shutdown stops accepting events and drains the queues
func (wp *WorkerPool) Shutdown(timeout time.Duration) error {
	wp.mu.Lock()
	if !wp.shutdown {
		wp.shutdown = true
		for _, jobs := range wp.jobs {
			close(jobs)
		}
	}
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m := wp.GetMetrics()
		zap.L().Info("worker pool drained",
			zap.Int64("processed", m.Processed),
			zap.Int64("failed", m.Failed),
			zap.Int64("backpressure_events", m.Backpressure),
			zap.Duration("avg_processing", m.AvgProcessing),
		)
		return nil

	case <-time.After(timeout):
		wp.cancel()
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// GetMetrics returns a snapshot of the pool metrics
func (wp *WorkerPool) GetMetrics() MetricsSnapshot {
	wp.metrics.mu.RLock()
	defer wp.metrics.mu.RUnlock()

	avgProcessing := time.Duration(0)
	if wp.metrics.processed > 0 {
		avgProcessing = wp.metrics.totalProcessing / time.Duration(wp.metrics.processed)
	}

	snapshot := MetricsSnapshot{
		Processed:     wp.metrics.processed,
		Failed:        wp.metrics.failed,
		Backpressure:  wp.metrics.backpressure,
		AvgProcessing: avgProcessing,
	}
	for _, jobs := range wp.jobs {
		snapshot.QueueLength += len(jobs)
		snapshot.QueueCapacity += cap(jobs)
	}
	return snapshot
}

func (pm *PoolMetrics) recordSuccess(duration time.Duration) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.processed++
	pm.totalProcessing += duration
}

func (pm *PoolMetrics) incrementFailed() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.failed++
}

func (pm *PoolMetrics) incrementBackpressure() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.backpressure++
}
