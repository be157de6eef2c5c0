// Package engine implements the job orchestrator: it owns job
// lifecycle, persists job state, and executes flow steps as durable,
// independently scheduled queue tasks
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/datamill-io/datamill/internal/config"
	"github.com/datamill-io/datamill/internal/store"
	"github.com/datamill-io/datamill/pkg/log"
)

// Engine is the pipeline orchestrator. Every dependency is injected at
// construction; nothing is resolved at runtime by name
type Engine struct {
	stores   *store.Stores
	registry *Registry
	events   *Events
	cfg      *config.Config
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

const claimPollInterval = 250 * time.Millisecond

var ErrShutdownTimeout = errors.New("shutdown timeout exceeded")

// New creates an orchestrator over the given stores and step registry
func New(cfg *config.Config, stores *store.Stores, reg *Registry) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		stores:   stores,
		registry: reg,
		events:   NewEvents(),
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Events exposes the job event topic for observers
func (e *Engine) Events() *Events {
	return e.events
}

// Start launches the queue workers and the stale-claim reclaimer
func (e *Engine) Start() {
	slog.Info("Engine starting",
		slog.Int("workers", e.cfg.Workers))

	for i := range e.cfg.Workers {
		e.wg.Add(1)
		go e.workerLoop(i)
	}

	e.wg.Add(1)
	go e.reclaimLoop()
}

// Stop gracefully shuts down the engine, draining in-flight steps
func (e *Engine) Stop() error {
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.events.Close()
		slog.Info("Engine stopped")
		return nil
	case <-time.After(e.cfg.ShutdownTimeout):
		return ErrShutdownTimeout
	}
}

func (e *Engine) workerLoop(id int) {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		default:
		}

		claimed, err := e.stores.Queue.Claim(e.ctx)
		if err != nil {
			if e.ctx.Err() != nil {
				return
			}
			slog.Error("Task claim failed",
				slog.Int("worker", id),
				log.Error(err))
			e.sleep(claimPollInterval)
			continue
		}
		if claimed == nil {
			e.sleep(claimPollInterval)
			continue
		}

		e.runClaimed(claimed)
	}
}

// runClaimed executes one claimed task. Step failures are recorded in
// job state by ExecuteStep and the task is acked; only infrastructure
// errors leave the task unacked for redelivery
func (e *Engine) runClaimed(claimed *store.ClaimedTask) {
	task := claimed.Task
	if err := e.ExecuteStep(e.ctx, task); err != nil {
		slog.Error("Step task left for redelivery",
			log.JobID(task.JobID),
			log.StepID(task.StepID),
			log.Error(err))
		return
	}

	if err := e.stores.Queue.Ack(e.ctx, claimed); err != nil {
		slog.Error("Task ack failed",
			log.JobID(task.JobID),
			log.Error(err))
	}
}

func (e *Engine) reclaimLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.ReclaimAfter / 2)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			n, err := e.stores.Queue.Reclaim(e.ctx, e.cfg.ReclaimAfter)
			if err != nil {
				slog.Error("Queue reclaim failed",
					log.Error(err))
				continue
			}
			if n > 0 {
				slog.Warn("Requeued stale step tasks",
					slog.Int("count", n))
			}
		}
	}
}

func (e *Engine) sleep(d time.Duration) {
	select {
	case <-e.ctx.Done():
	case <-time.After(d):
	}
}
