package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task is one run of a periodic job. It returns how many items it affected.
type Task func(ctx context.Context) (int, error)

// PeriodicJob runs a task on a fixed interval in the background
type PeriodicJob struct {
	name    string
	task    Task
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool

	// Metrics
	runs      atomic.Int64
	affected  atomic.Int64
	failures  atomic.Int64
	startTime time.Time

	// Configuration
	interval       time.Duration
	reportInterval time.Duration
	timeout        time.Duration
}

// JobConfig holds configuration for a periodic job
type JobConfig struct {
	Name           string
	Interval       time.Duration // Default: 1m
	ReportInterval time.Duration // Default: 30m
	Timeout        time.Duration // Default: Interval
}

// NewPeriodicJob creates a job; call Start to run it
func NewPeriodicJob(config JobConfig, task Task) *PeriodicJob {
	// Apply defaults
	if config.Name == "" {
		config.Name = "periodic job"
	}
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.ReportInterval <= 0 {
		config.ReportInterval = 30 * time.Minute
	}
	if config.Timeout <= 0 {
		config.Timeout = config.Interval
	}

	return &PeriodicJob{
		name:           config.Name,
		task:           task,
		stopCh:         make(chan struct{}),
		interval:       config.Interval,
		reportInterval: config.ReportInterval,
		timeout:        config.Timeout,
	}
}

// Start begins the run loop. A job runs at most once at a time and cannot
// be restarted after Stop.
func (j *PeriodicJob) Start(ctx context.Context) error {
	select {
	case <-j.stopCh:
		return fmt.Errorf("%s was stopped", j.name)
	default:
	}
	if !j.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%s already running", j.name)
	}

	j.startTime = time.Now()

	zap.L().Info("periodic job started",
		zap.String("job", j.name),
		zap.Duration("interval", j.interval),
	)

	j.wg.Add(2)
	go j.loop(ctx)
	go j.metricsReporter(ctx)

	return nil
}

// Stop ends the loop and waits for a run in progress to finish
func (j *PeriodicJob) Stop() {
	if !j.running.CompareAndSwap(true, false) {
		return
	}

	close(j.stopCh)
	j.wg.Wait()

	zap.L().Info("periodic job stopped",
		zap.String("job", j.name),
		zap.Int64("runs", j.runs.Load()),
		zap.Int64("affected", j.affected.Load()),
		zap.Int64("failures", j.failures.Load()),
		zap.Duration("uptime", time.Since(j.startTime).Round(time.Second)),
	)
}

// IsRunning returns whether the job is currently running
func (j *PeriodicJob) IsRunning() bool {
	return j.running.Load()
}

// RunNow runs the task once in the caller's goroutine
func (j *PeriodicJob) RunNow(ctx context.Context) (int, error) {
	return j.run(ctx)
}

// GetMetrics returns current job metrics
func (j *PeriodicJob) GetMetrics() map[string]interface{} {
	uptime := time.Duration(0)
	if !j.startTime.IsZero() {
		uptime = time.Since(j.startTime)
	}

	return map[string]interface{}{
		"job":      j.name,
		"running":  j.running.Load(),
		"runs":     j.runs.Load(),
		"affected": j.affected.Load(),
		"failures": j.failures.Load(),
		"uptime":   uptime.String(),
	}
}

func (j *PeriodicJob) loop(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-j.stopCh:
			return

		case <-ticker.C:
			if _, err := j.run(ctx); err != nil {
				// Log only every 100th failure
				if j.failures.Load()%100 == 1 {
					zap.L().Warn("periodic job failed",
						zap.String("job", j.name),
						zap.Int64("failures", j.failures.Load()),
						zap.Error(err),
					)
				}
			}
		}
	}
}

func (j *PeriodicJob) run(ctx context.Context) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", j.name, r)
			j.failures.Add(1)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	j.runs.Add(1)
	n, err = j.task(runCtx)
	if err != nil {
		j.failures.Add(1)
		return n, err
	}
	j.affected.Add(int64(n))
	return n, nil
}

// metricsReporter logs metrics periodically
func (j *PeriodicJob) metricsReporter(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.reportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopCh:
			return
		case <-ticker.C:
			zap.L().Info("periodic job metrics",
				zap.String("job", j.name),
				zap.Int64("runs", j.runs.Load()),
				zap.Int64("affected", j.affected.Load()),
				zap.Int64("failures", j.failures.Load()),
				zap.Duration("uptime", time.Since(j.startTime).Round(time.Second)),
			)
		}
	}
}
