package stress

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// CPUParams sizes a CPU burn: Workers parallel spinners for Duration.
type CPUParams struct {
	Duration time.Duration
	Workers  int
}

func (p CPUParams) validate(l Limits) error {
	if err := checkWindow(p.Duration, l.MaxDuration, "cpu duration"); err != nil {
		return err
	}
	if p.Workers < 1 || p.Workers > l.MaxCPUWorkers {
		return fmt.Errorf("stress: cpu workers must be between 1 and %d, got %d", l.MaxCPUWorkers, p.Workers)
	}
	return nil
}

// spinSink absorbs the spin results so the loop cannot be elided.
var spinSink uint64

// burnCPU spins the given number of workers until ctx expires and returns
// the total iteration count. Workers genuinely compute; the only yield
// point is the deadline check every batch.
func burnCPU(ctx context.Context, workers int) uint64 {
	var total uint64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			atomic.AddUint64(&total, spin(ctx, seed))
		}(int64(i))
	}
	wg.Wait()
	return total
}

func spin(ctx context.Context, seed int64) uint64 {
	rng := rand.New(rand.NewSource(seed))
	var iters uint64
	var acc float64
	for {
		for i := 0; i < 1024; i++ {
			acc += math.Sqrt(rng.Float64() * 99999)
		}
		iters += 1024

		select {
		case <-ctx.Done():
			atomic.StoreUint64(&spinSink, math.Float64bits(acc))
			return iters
		default:
		}
	}
}
