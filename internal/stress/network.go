package stress

import (
	"context"
	"fmt"
	"io"
)

// NetworkParams sizes a network payload in megabytes. The payload is the
// response body itself; concurrent callers are the saturation mechanism.
type NetworkParams struct {
	MB int
}

// ValidateNetwork checks payload parameters against the ceilings.
func (m *Manager) ValidateNetwork(p NetworkParams) error {
	if p.MB <= 0 || p.MB > m.limits.MaxNetworkMB {
		return fmt.Errorf("stress: network mb must be between 1 and %d, got %d", m.limits.MaxNetworkMB, p.MB)
	}
	return nil
}

const netChunkBytes = 256 << 10

// WritePayload streams mb megabytes of filler to w in fixed chunks,
// stopping early if ctx is cancelled (client gone). Returns the number of
// bytes written.
func WritePayload(ctx context.Context, w io.Writer, mb int) (int64, error) {
	chunk := make([]byte, netChunkBytes)
	for i := range chunk {
		chunk[i] = 'X'
	}

	total := int64(mb) << 20
	var sent int64
	for sent < total {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		n := int64(len(chunk))
		if total-sent < n {
			n = total - sent
		}
		written, err := w.Write(chunk[:n])
		sent += int64(written)
		if err != nil {
			return sent, err
		}
		if f, ok := w.(interface{ Flush() }); ok {
			f.Flush()
		}
	}
	return sent, nil
}
