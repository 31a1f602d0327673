// Package stress deliberately consumes CPU, memory, and network to a
// requested intensity for a bounded duration. Every job carries a hard
// deadline; all resources are released on every exit path, including
// client disconnect and process shutdown.
package stress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind names the resource a job saturates.
type Kind string

const (
	KindCPU       Kind = "cpu"
	KindMemory    Kind = "memory"
	KindCPUMemory Kind = "cpu-mem"
	KindAll       Kind = "all"
)

// ErrShutdown is returned when a job is requested after Close.
var ErrShutdown = errors.New("stress: manager is shut down")

// Limits caps job intensities so a single bad request cannot take the
// host down outright.
type Limits struct {
	MaxCPUWorkers int
	MaxMemoryMB   int
	MaxNetworkMB  int
	MaxDuration   time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		MaxCPUWorkers: 32,
		MaxMemoryMB:   4096,
		MaxNetworkMB:  1024,
		MaxDuration:   5 * time.Minute,
	}
}

// Job is the acknowledgment handed back when a saturation request is
// accepted. The work itself runs detached until its deadline.
type Job struct {
	ID       string    `json:"job_id"`
	Kind     Kind      `json:"kind"`
	Start    time.Time `json:"start"`
	Deadline time.Time `json:"deadline"`
}

// Manager owns every running saturation job. Jobs are bound to the
// manager's root context, not the request context, so a disconnecting
// client does not cancel them but Close releases everything.
type Manager struct {
	logger *zap.Logger
	limits Limits

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active int64
}

func NewManager(logger *zap.Logger, limits Limits) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{logger: logger, limits: limits, ctx: ctx, cancel: cancel}
}

// Limits returns the configured ceilings.
func (m *Manager) Limits() Limits { return m.limits }

// ActiveJobs returns the number of jobs currently holding resources.
func (m *Manager) ActiveJobs() int64 { return atomic.LoadInt64(&m.active) }

// Close cancels every active job and blocks until all resources are
// released.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

// StartCPU accepts a CPU burn job and returns immediately.
func (m *Manager) StartCPU(p CPUParams) (Job, error) {
	if err := p.validate(m.limits); err != nil {
		return Job{}, err
	}
	return m.launch(KindCPU, p.Duration, func(ctx context.Context) {
		iters := burnCPU(ctx, p.Workers)
		m.logger.Info("cpu job done", zap.Int("workers", p.Workers), zap.Uint64("iterations", iters))
	})
}

// StartMemory accepts a memory hold job and returns immediately.
func (m *Manager) StartMemory(p MemoryParams) (Job, error) {
	if err := p.validate(m.limits); err != nil {
		return Job{}, err
	}
	return m.launch(KindMemory, p.Hold, func(ctx context.Context) {
		allocated := holdMemory(ctx, p.MB)
		m.logger.Info("memory job done", zap.Int("requested_mb", p.MB), zap.Int("allocated_mb", allocated>>20))
	})
}

// StartCPUMemory runs CPU and memory saturation concurrently over
// overlapping windows. Network stays untouched.
func (m *Manager) StartCPUMemory(cpu CPUParams, mem MemoryParams) (Job, error) {
	return m.startCombined(KindCPUMemory, cpu, mem)
}

// StartAll is the combined profile behind the all-resources endpoint.
// Only CPU and memory detach here; network, when requested, streams
// inline on the caller's connection.
func (m *Manager) StartAll(cpu CPUParams, mem MemoryParams) (Job, error) {
	return m.startCombined(KindAll, cpu, mem)
}

func (m *Manager) startCombined(kind Kind, cpu CPUParams, mem MemoryParams) (Job, error) {
	if err := cpu.validate(m.limits); err != nil {
		return Job{}, err
	}
	if err := mem.validate(m.limits); err != nil {
		return Job{}, err
	}

	window := cpu.Duration
	if mem.Hold > window {
		window = mem.Hold
	}
	return m.launch(kind, window, func(ctx context.Context) {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			cpuCtx, stop := context.WithTimeout(ctx, cpu.Duration)
			defer stop()
			burnCPU(cpuCtx, cpu.Workers)
		}()
		go func() {
			defer wg.Done()
			memCtx, stop := context.WithTimeout(ctx, mem.Hold)
			defer stop()
			holdMemory(memCtx, mem.MB)
		}()
		wg.Wait()
	})
}

// launch registers and detaches one job. The job context expires at the
// deadline or when the manager shuts down, whichever comes first.
func (m *Manager) launch(kind Kind, window time.Duration, run func(ctx context.Context)) (Job, error) {
	if m.ctx.Err() != nil {
		return Job{}, ErrShutdown
	}

	now := time.Now()
	job := Job{
		ID:       uuid.New().String(),
		Kind:     kind,
		Start:    now,
		Deadline: now.Add(window),
	}

	ctx, cancel := context.WithDeadline(m.ctx, job.Deadline)
	m.wg.Add(1)
	atomic.AddInt64(&m.active, 1)

	m.logger.Info("saturation job accepted",
		zap.String("job_id", job.ID),
		zap.String("kind", string(kind)),
		zap.Time("deadline", job.Deadline),
	)

	go func() {
		defer func() {
			cancel()
			atomic.AddInt64(&m.active, -1)
			m.wg.Done()
		}()
		run(ctx)
	}()

	return job, nil
}

func checkWindow(d time.Duration, limit time.Duration, what string) error {
	if d <= 0 {
		return fmt.Errorf("stress: %s must be positive, got %s", what, d)
	}
	if d > limit {
		return fmt.Errorf("stress: %s %s exceeds ceiling %s", what, d, limit)
	}
	return nil
}
