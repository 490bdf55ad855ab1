package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Yousefhamdy22/ProjectGradution/detections"
)

// Used when the configured pool size or acquire timeout is not positive
const (
	DefaultPoolSize       = 4
	DefaultAcquireTimeout = 5 * time.Second
)

var (
	ErrPoolTimeout = errors.New("timeout waiting for available session")
	ErrPoolClosed  = errors.New("pool is closed")
)

// session is a single engine instance. A session is only ever used by one caller at a time.
type session interface {
	run(input *detections.Tensor) ([]float32, error)
	destroy()
}

// ModelSessionPool hands out sessions so that concurrent requests never share one.
type ModelSessionPool struct {
	sessions chan session
	done     chan struct{}
	size     int
	timeout  time.Duration
	mu       sync.RWMutex
	closed   bool
	metrics  poolMetrics
}

type poolMetrics struct {
	mu              sync.Mutex
	inUse           int
	totalAcquired   int64
	totalReleased   int64
	acquireFailures int64
	waitTime        time.Duration
}

type PoolMetrics struct {
	Size            int     `json:"pool_size"`
	InUse           int     `json:"sessions_in_use"`
	TotalAcquired   int64   `json:"total_acquired"`
	TotalReleased   int64   `json:"total_released"`
	AcquireFailures int64   `json:"acquire_failures"`
	AverageWaitMS   float64 `json:"average_wait_ms"`
}

func newModelSessionPool(size int, timeout time.Duration, newSession func(i int) (session, error)) (*ModelSessionPool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}

	pool := &ModelSessionPool{
		sessions: make(chan session, size),
		done:     make(chan struct{}),
		size:     size,
		timeout:  timeout,
	}

	for i := 0; i < size; i++ {
		s, err := newSession(i)
		if err != nil {
			pool.Destroy()
			return nil, fmt.Errorf("failed to initialize session %d: %w", i, err)
		}
		pool.sessions <- s
	}

	return pool, nil
}

func (p *ModelSessionPool) Size() int {
	return p.size
}

func (p *ModelSessionPool) Acquire(ctx context.Context) (session, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}

	start := time.Now()
	defer func() {
		p.metrics.mu.Lock()
		p.metrics.waitTime += time.Since(start)
		p.metrics.mu.Unlock()
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case s := <-p.sessions:
		p.metrics.mu.Lock()
		p.metrics.inUse++
		p.metrics.totalAcquired++
		p.metrics.mu.Unlock()
		return s, nil
	case <-timer.C:
		p.metrics.mu.Lock()
		p.metrics.acquireFailures++
		p.metrics.mu.Unlock()
		return nil, ErrPoolTimeout
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		p.metrics.mu.Lock()
		p.metrics.acquireFailures++
		p.metrics.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (p *ModelSessionPool) Release(s session) {
	p.metrics.mu.Lock()
	p.metrics.inUse--
	p.metrics.totalReleased++
	p.metrics.mu.Unlock()

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		s.destroy()
		return
	}
	// Never blocks: capacity equals the number of sessions the pool created
	p.sessions <- s
}

// Destroy releases idle sessions immediately. Sessions still in use are destroyed
// when they are released.
func (p *ModelSessionPool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.done)

	for {
		select {
		case s := <-p.sessions:
			s.destroy()
		default:
			return
		}
	}
}

func (p *ModelSessionPool) Metrics() PoolMetrics {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()
	m := PoolMetrics{
		Size:            p.size,
		InUse:           p.metrics.inUse,
		TotalAcquired:   p.metrics.totalAcquired,
		TotalReleased:   p.metrics.totalReleased,
		AcquireFailures: p.metrics.acquireFailures,
	}
	if attempts := p.metrics.totalAcquired + p.metrics.acquireFailures; attempts > 0 {
		m.AverageWaitMS = float64(p.metrics.waitTime.Microseconds()) / 1000 / float64(attempts)
	}
	return m
}
