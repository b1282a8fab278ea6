package strategy

import (
	"sync"
	"time"

	"futures-trader/internal/domain"
)

// DefaultMemoDepth is the number of bars remembered per timeframe.
const DefaultMemoDepth = 16

// Memo caches per-bar results per timeframe. Indicator values of a closed
// bar never change, so a bar is scored once. Entries are dropped only when a
// strictly newer bar pushes them past the depth.
type Memo struct {
	mu     sync.Mutex
	depth  int
	frames map[domain.Timeframe]*memoFrame
}

type memoFrame struct {
	newest  time.Time
	order   []time.Time
	results map[time.Time]Result
}

// NewMemo creates a memo keeping depth bars per timeframe.
func NewMemo(depth int) *Memo {
	if depth <= 0 {
		depth = DefaultMemoDepth
	}
	return &Memo{depth: depth, frames: make(map[domain.Timeframe]*memoFrame)}
}

// Resolve returns the cached result of the bar or computes it with eval.
// Errors are not cached.
func (m *Memo) Resolve(tf domain.Timeframe, barTime time.Time, eval func() (Result, error)) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.frames[tf]
	if !ok {
		f = &memoFrame{results: make(map[time.Time]Result)}
		m.frames[tf] = f
	}
	key := barTime.UTC()
	if r, ok := f.results[key]; ok {
		return r, nil
	}

	r, err := eval()
	if err != nil {
		return Result{}, err
	}

	f.results[key] = r
	f.order = append(f.order, key)
	if key.After(f.newest) {
		f.newest = key
		m.prune(f)
	}
	return r, nil
}

// prune drops the oldest entries beyond depth.
func (m *Memo) prune(f *memoFrame) {
	for len(f.order) > m.depth {
		oldest := 0
		for i, t := range f.order {
			if t.Before(f.order[oldest]) {
				oldest = i
			}
		}
		delete(f.results, f.order[oldest])
		f.order = append(f.order[:oldest], f.order[oldest+1:]...)
	}
}

// Len returns the number of cached bars of tf.
func (m *Memo) Len(tf domain.Timeframe) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.frames[tf]; ok {
		return len(f.results)
	}
	return 0
}
