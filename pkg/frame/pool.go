package frame

import (
	"sync"
	"sync/atomic"
	"time"
)

// Pool hands out frame buffers and recycles their plane memory.
//
// Plane slices are recycled per byte size, so streams with different
// geometries can share one Pool.
type Pool struct {
	mu      sync.Mutex
	buckets map[int]*sync.Pool

	allocated atomic.Int64
	reused    atomic.Int64
	inUse     atomic.Int64
}

// NewPool creates an empty Pool.
func NewPool() *Pool {
	return &Pool{buckets: make(map[int]*sync.Pool)}
}

// defaultPool backs New.
var defaultPool = NewPool()

// New allocates a buffer from the process-wide pool.
func New(f Format, pts time.Duration) (*Buffer, error) {
	return defaultPool.Get(f, pts)
}

// Get allocates a buffer for format f. Plane contents are not cleared.
func (p *Pool) Get(f Format, pts time.Duration) (*Buffer, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	sizes := f.PlaneSizes()
	strides := f.Strides()
	planes := make([]Plane, len(sizes))
	for i, size := range sizes {
		planes[i] = Plane{Data: p.take(size), Stride: strides[i]}
	}
	p.inUse.Add(1)
	return &Buffer{Format: f, PTS: pts, planes: planes, pool: p}, nil
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	Allocated int64 // plane slices created
	Reused    int64 // plane slices served from the free list
	InUse     int64 // buffers handed out and not yet released
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Allocated: p.allocated.Load(),
		Reused:    p.reused.Load(),
		InUse:     p.inUse.Load(),
	}
}

func (p *Pool) bucket(size int) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.buckets[size]
	if !ok {
		b = &sync.Pool{}
		p.buckets[size] = b
	}
	return b
}

func (p *Pool) take(size int) []byte {
	if v := p.bucket(size).Get(); v != nil {
		p.reused.Add(1)
		return *(v.(*[]byte))
	}
	p.allocated.Add(1)
	return make([]byte, size)
}

func (p *Pool) put(planes []Plane) {
	p.inUse.Add(-1)
	for _, pl := range planes {
		data := pl.Data[:cap(pl.Data)]
		p.bucket(len(data)).Put(&data)
	}
}
