package imagestats

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

type frameKey struct {
	rows    int
	cols    int
	matType gocv.MatType
}

// PoolStats counts frame allocations.
type PoolStats struct {
	Allocated   int64 // Mats created
	Reused      int64 // Gets served from the pool
	Closed      int64 // Mats closed by Put or Close
	ActiveBytes int64 // bytes held by Mats handed out and not returned
}

// FramePool recycles frame buffers of the same shape, keeping at most
// perShape idle Mats for each. Safe for concurrent use.
type FramePool struct {
	perShape int

	mu     sync.Mutex
	idle   map[frameKey][]gocv.Mat
	stats  PoolStats
	closed bool
}

func NewFramePool(perShape int) *FramePool {
	if perShape < 1 {
		perShape = 1
	}
	return &FramePool{perShape: perShape, idle: make(map[frameKey][]gocv.Mat)}
}

// Get returns a rows x cols Mat of matType. Its contents are undefined.
func (p *FramePool) Get(rows, cols int, matType gocv.MatType) (gocv.Mat, error) {
	if rows <= 0 || cols <= 0 {
		return gocv.Mat{}, fmt.Errorf("invalid frame size %dx%d", cols, rows)
	}
	key := frameKey{rows: rows, cols: cols, matType: matType}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return gocv.Mat{}, fmt.Errorf("frame pool closed")
	}

	if mats := p.idle[key]; len(mats) > 0 {
		mat := mats[len(mats)-1]
		p.idle[key] = mats[:len(mats)-1]
		p.stats.Reused++
		p.stats.ActiveBytes += frameBytes(key)
		return mat, nil
	}

	p.stats.Allocated++
	p.stats.ActiveBytes += frameBytes(key)
	return gocv.NewMatWithSize(rows, cols, matType), nil
}

// Put hands mat back. It is closed instead when its shape already has
// perShape idle Mats or the pool is closed.
func (p *FramePool) Put(mat gocv.Mat) {
	if mat.Empty() {
		mat.Close()
		return
	}
	key := frameKey{rows: mat.Rows(), cols: mat.Cols(), matType: mat.Type()}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.ActiveBytes -= frameBytes(key)
	if p.closed || len(p.idle[key]) >= p.perShape {
		mat.Close()
		p.stats.Closed++
		return
	}
	p.idle[key] = append(p.idle[key], mat)
}

// Close releases every idle Mat. Later Gets fail; later Puts close.
func (p *FramePool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, mats := range p.idle {
		for _, m := range mats {
			m.Close()
			p.stats.Closed++
		}
		delete(p.idle, key)
	}
	p.closed = true
}

func (p *FramePool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func frameBytes(k frameKey) int64 {
	return int64(k.rows) * int64(k.cols) * int64(bytesPerPixel(k.matType))
}

func bytesPerPixel(t gocv.MatType) int {
	switch t {
	case gocv.MatTypeCV8UC1:
		return 1
	case gocv.MatTypeCV8UC3:
		return 3
	case gocv.MatTypeCV8UC4:
		return 4
	case gocv.MatTypeCV16UC1:
		return 2
	case gocv.MatTypeCV16UC3:
		return 6
	case gocv.MatTypeCV32FC1:
		return 4
	case gocv.MatTypeCV32FC3:
		return 12
	default:
		return 1
	}
}
