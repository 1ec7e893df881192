// Package engine dispatches scoring requests onto a bounded worker pool and
// owns the currently installed scoring service.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/fraudscore/internal/config"
	"github.com/gyaneshwarpardhi/fraudscore/internal/metrics"
	"github.com/gyaneshwarpardhi/fraudscore/internal/scoring"
	"github.com/gyaneshwarpardhi/fraudscore/internal/transaction"
)

var (
	// ErrQueueFull is returned when the scoring queue has no free slot.
	ErrQueueFull = errors.New("scoring queue full")
	// ErrTimeout is returned when a synchronous score exceeds the configured timeout.
	ErrTimeout = errors.New("scoring timeout")
)

// ResultFunc receives the outcome of an asynchronous score.
type ResultFunc func(res scoring.Result, err error)

// Engine scores transactions through the worker pool.
type Engine struct {
	svc     atomic.Pointer[scoring.Service]
	pool    *workerPool[*scoreJob]
	baseCtx context.Context
	conf    config.EngineConf
}

type scoreJob struct {
	ctx  context.Context
	tx   *transaction.Transaction
	done ResultFunc
}

// New creates an Engine with svc installed and starts the workers. ctx bounds
// the lifetime of the workers and of asynchronous jobs.
func New(ctx context.Context, svc *scoring.Service, conf config.EngineConf) *Engine {
	e := &Engine{baseCtx: ctx, conf: conf}
	e.SwapService(svc)
	e.pool = newWorkerPool[*scoreJob](ctx, conf.Workers, conf.QueueDepth, e.process)
	return e
}

// SwapService atomically installs svc (used on hot-reload). Jobs already
// running keep the service they loaded.
func (e *Engine) SwapService(svc *scoring.Service) {
	if svc == nil {
		svc = scoring.Unavailable(fmt.Errorf("no scoring service installed"))
	}
	e.svc.Store(svc)
	if svc.Available() {
		metrics.ModelLoaded.Set(1)
	} else {
		metrics.ModelLoaded.Set(0)
	}
}

// Service returns the installed service.
func (e *Engine) Service() *scoring.Service {
	return e.svc.Load()
}

// ScoreSync scores tx on a worker and waits for the result.
func (e *Engine) ScoreSync(ctx context.Context, tx *transaction.Transaction) (scoring.Result, error) {
	type outcome struct {
		res scoring.Result
		err error
	}
	resultC := make(chan outcome, 1)
	job := &scoreJob{
		ctx: ctx,
		tx:  tx,
		done: func(res scoring.Result, err error) {
			resultC <- outcome{res, err}
		},
	}
	if !e.pool.Submit(job) {
		metrics.RequestsDropped.Inc()
		return scoring.Result{}, fmt.Errorf("%w (capacity %d)", ErrQueueFull, e.conf.QueueDepth)
	}
	metrics.RequestsEnqueued.Inc()

	timeout := time.Duration(e.conf.TimeoutMs) * time.Millisecond
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-resultC:
		return o.res, o.err
	case <-timer.C:
		return scoring.Result{}, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-ctx.Done():
		return scoring.Result{}, ctx.Err()
	}
}

// ScoreAsync enqueues tx for background scoring; done, if non-nil, receives
// the outcome on the worker goroutine. Returns false if the queue is full.
func (e *Engine) ScoreAsync(tx *transaction.Transaction, done ResultFunc) bool {
	job := &scoreJob{ctx: e.baseCtx, tx: tx, done: done}
	if !e.pool.Submit(job) {
		metrics.RequestsDropped.Inc()
		return false
	}
	metrics.RequestsEnqueued.Inc()
	return true
}

// QueueUtilization returns queue used / capacity (0–1).
func (e *Engine) QueueUtilization() float64 {
	if e.pool.QueueCap() == 0 {
		return 0
	}
	return float64(e.pool.QueueLen()) / float64(e.pool.QueueCap())
}

func (e *Engine) process(_ context.Context, job *scoreJob) {
	// The caller may have given up while the job sat in the queue.
	if err := job.ctx.Err(); err != nil {
		if job.done != nil {
			job.done(scoring.Result{}, err)
		}
		return
	}
	res, err := e.svc.Load().Score(job.ctx, job.tx)
	if job.done != nil {
		job.done(res, err)
	}
}

// Shutdown stops accepting work and drains the queue.
func (e *Engine) Shutdown() {
	e.pool.Drain()
}
