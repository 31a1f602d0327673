package stress

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
)

// MemoryParams sizes a memory hold: MB megabytes kept resident for Hold.
type MemoryParams struct {
	MB   int
	Hold time.Duration
}

func (p MemoryParams) validate(l Limits) error {
	if p.MB <= 0 || p.MB > l.MaxMemoryMB {
		return fmt.Errorf("stress: memory mb must be between 1 and %d, got %d", l.MaxMemoryMB, p.MB)
	}
	if p.Hold < 0 {
		return fmt.Errorf("stress: memory hold must not be negative, got %s", p.Hold)
	}
	if p.Hold > l.MaxDuration {
		return fmt.Errorf("stress: memory hold %s exceeds ceiling %s", p.Hold, l.MaxDuration)
	}
	return nil
}

const memChunkBytes = 64 << 20

// memSink keeps the held chunks observable so they stay resident.
var memSink uint64

// holdMemory allocates mb megabytes in chunks, touches each chunk's first
// and last page, keeps everything resident until ctx expires, then
// releases unconditionally. Returns the byte count that was held.
func holdMemory(ctx context.Context, mb int) int {
	remaining := mb << 20
	chunks := make([][]byte, 0, (remaining+memChunkBytes-1)/memChunkBytes)

	allocated := 0
	for remaining > 0 {
		size := memChunkBytes
		if remaining < size {
			size = remaining
		}
		c := make([]byte, size)
		c[0] = 1
		c[len(c)-1] = 1
		chunks = append(chunks, c)
		allocated += size
		remaining -= size
	}

	<-ctx.Done()

	var sum uint64
	for i := range chunks {
		sum += uint64(chunks[i][0])
		chunks[i] = nil
	}
	atomic.AddUint64(&memSink, sum)

	// Hand the pages back promptly rather than waiting for the next
	// GC cycle; repeated jobs must not look like a leak.
	runtime.GC()
	return allocated
}
