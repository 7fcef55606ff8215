package engine

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// NewBWLimiter creates a rate.Limiter that caps copy throughput to
// bytesPerSec. The burst is 1 MB, or the rate itself when that is smaller.
func NewBWLimiter(bytesPerSec int64) *rate.Limiter {
	burst := 1 << 20 // 1 MB
	if bytesPerSec < int64(burst) {
		burst = int(bytesPerSec)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// rateLimitedWriter throttles writes through a shared limiter. Each Write
// reaches the underlying writer whole; when it is larger than the limiter's
// burst the tokens are waited for in burst-sized pieces first, since WaitN
// rejects n > burst.
type rateLimitedWriter struct {
	ctx     context.Context //nolint:containedctx // scoped to a single copy
	w       io.Writer
	limiter *rate.Limiter
}

func newRateLimitedWriter(ctx context.Context, w io.Writer, limiter *rate.Limiter) io.Writer {
	if limiter == nil {
		return w
	}
	return &rateLimitedWriter{ctx: ctx, w: w, limiter: limiter}
}

func (rw *rateLimitedWriter) Write(p []byte) (int, error) {
	burst := rw.limiter.Burst()
	if burst <= 0 {
		burst = len(p)
	}
	for left := len(p); left > 0; {
		n := min(left, burst)
		if err := rw.limiter.WaitN(rw.ctx, n); err != nil {
			return 0, err
		}
		left -= n
	}
	return rw.w.Write(p)
}
