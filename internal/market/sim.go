package market

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"futures-trader/internal/domain"
)

type seriesKey struct {
	symbol string
	tf     domain.Timeframe
}

// SimFeed is an in-memory feed. In live mode data is pushed with AddBars,
// SetQuote and Publish. In replay mode every WaitUpdate advances the clock by
// one step and reveals the bars opened at or before the new time.
type SimFeed struct {
	mu       sync.Mutex
	bars     map[seriesKey][]domain.Bar
	quotes   map[string]domain.Quote
	schedule map[string][]scheduledQuote // sorted by from
	expiry   map[string]time.Time
	lastSeen map[seriesKey]time.Time
	changed  chan struct{} // closed and replaced by Publish

	now  time.Time
	step time.Duration // zero in live mode
	end  time.Time
}

// NewSimFeed creates a live-mode feed whose clock is set by SetNow.
func NewSimFeed(now time.Time) *SimFeed {
	return &SimFeed{
		bars:     make(map[seriesKey][]domain.Bar),
		quotes:   make(map[string]domain.Quote),
		schedule: make(map[string][]scheduledQuote),
		expiry:   make(map[string]time.Time),
		lastSeen: make(map[seriesKey]time.Time),
		changed:  make(chan struct{}),
		now:      now,
	}
}

// NewReplayFeed creates a feed replaying loaded bars from start to end.
func NewReplayFeed(start, end time.Time, step time.Duration) *SimFeed {
	f := NewSimFeed(start)
	f.step = step
	f.end = end
	return f
}

// AddBars merges bars into a series. A bar with an existing time replaces it.
func (f *SimFeed) AddBars(symbol string, tf domain.Timeframe, bars ...domain.Bar) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := seriesKey{symbol, tf}
	series := f.bars[key]
	for _, b := range bars {
		i := sort.Search(len(series), func(i int) bool { return !series[i].Time.Before(b.Time) })
		switch {
		case i < len(series) && series[i].Time.Equal(b.Time):
			series[i] = b
		case i == len(series):
			series = append(series, b)
		default:
			series = append(series, domain.Bar{})
			copy(series[i+1:], series[i:])
			series[i] = b
		}
	}
	f.bars[key] = series
}

// SetQuote stores the static part of a quote. In replay mode LastPrice and
// Datetime follow the clock.
func (f *SimFeed) SetQuote(q domain.Quote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[q.Symbol] = q
}

type scheduledQuote struct {
	from  time.Time
	quote domain.Quote
}

// ScheduleQuote replaces the static quote of q.Symbol once the clock reaches
// from. It models the broker remapping a continuous symbol.
func (f *SimFeed) ScheduleQuote(from time.Time, q domain.Quote) {
	f.mu.Lock()
	defer f.mu.Unlock()

	list := f.schedule[q.Symbol]
	i := sort.Search(len(list), func(i int) bool { return list[i].from.After(from) })
	list = append(list, scheduledQuote{})
	copy(list[i+1:], list[i:])
	list[i] = scheduledQuote{from: from, quote: q}
	f.schedule[q.Symbol] = list
}

// SetExpiry makes ExpireRestDays of symbol count down to the expiry date.
func (f *SimFeed) SetExpiry(symbol string, expiry time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expiry[symbol] = expiry
}

// staticQuote returns the quote in effect at the clock.
func (f *SimFeed) staticQuote(symbol string) (domain.Quote, bool) {
	q, ok := f.quotes[symbol]
	for _, s := range f.schedule[symbol] {
		if s.from.After(f.now) {
			break
		}
		q, ok = s.quote, true
	}
	return q, ok
}

// SetNow moves the live-mode clock.
func (f *SimFeed) SetNow(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Publish wakes every pending WaitUpdate.
func (f *SimFeed) Publish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.changed)
	f.changed = make(chan struct{})
}

// Now returns the feed clock.
func (f *SimFeed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// visible returns the bars of key opened at or before the clock.
func (f *SimFeed) visible(key seriesKey) []domain.Bar {
	series := f.bars[key]
	if f.step == 0 {
		return series
	}
	n := sort.Search(len(series), func(i int) bool { return series[i].Time.After(f.now) })
	return series[:n]
}

// Bars returns the newest length visible bars.
func (f *SimFeed) Bars(_ context.Context, symbol string, tf domain.Timeframe, length int) ([]domain.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.bars[seriesKey{symbol, tf}]; !ok {
		return nil, fmt.Errorf("%s %s: %w", symbol, tf, ErrUnknownSymbol)
	}
	series := f.visible(seriesKey{symbol, tf})
	if length > 0 && len(series) > length {
		series = series[len(series)-length:]
	}
	return append([]domain.Bar(nil), series...), nil
}

// Quote returns the quote of symbol. In replay mode the price is the close of
// the newest visible 5-minute bar and the market trades while that bar
// covers the clock.
func (f *SimFeed) Quote(_ context.Context, symbol string) (domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q, ok := f.staticQuote(symbol)
	if !ok {
		return domain.Quote{}, fmt.Errorf("%s: %w", symbol, ErrUnknownSymbol)
	}
	if exp, ok := f.expiry[symbol]; ok {
		q.ExpireRestDays = int(exp.Sub(f.now).Hours() / 24)
	}
	if f.step > 0 {
		q.Datetime = f.now
		q.TradingStatus = domain.TradingStatusClosed
		if bars := f.visible(seriesKey{symbol, domain.TimeframeFiveMinute}); len(bars) > 0 {
			last := bars[len(bars)-1]
			q.LastPrice = last.Close
			if f.now.Before(last.Time.Add(domain.TimeframeFiveMinute.Duration())) {
				q.TradingStatus = domain.TradingStatusContinuous
			}
		}
	}
	return q, nil
}

// BarChanged reports whether the newest visible bar differs from the one
// seen by the previous call.
func (f *SimFeed) BarChanged(symbol string, tf domain.Timeframe) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := seriesKey{symbol, tf}
	bars := f.visible(key)
	if len(bars) == 0 {
		return false
	}
	newest := bars[len(bars)-1].Time
	if last, ok := f.lastSeen[key]; ok && last.Equal(newest) {
		return false
	}
	f.lastSeen[key] = newest
	return true
}

// WaitUpdate advances the replay clock, or blocks for a published update in
// live mode.
func (f *SimFeed) WaitUpdate(ctx context.Context, timeout time.Duration) error {
	if f.step > 0 {
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.now.Before(f.end) {
			return ErrFeedExhausted
		}
		f.now = f.now.Add(f.step)
		return ctx.Err()
	}

	f.mu.Lock()
	changed := f.changed
	f.mu.Unlock()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-changed:
		return nil
	case <-expired:
		return ErrWaitTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Feed = (*SimFeed)(nil)
