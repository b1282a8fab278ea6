package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"futures-trader/internal/domain"
)

var open0 = time.Date(2023, 9, 4, 9, 0, 0, 0, domain.ExchangeTZ)

func fiveMinuteBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = domain.Bar{ID: int64(i), Time: open0.Add(time.Duration(i) * 5 * time.Minute), Close: 100 + float64(i)}
	}
	return bars
}

func TestSimFeed_ReplayRevealsBars(t *testing.T) {
	feed := NewReplayFeed(open0, open0.Add(20*time.Minute), 5*time.Minute)
	feed.AddBars("SHFE.rb2310", domain.TimeframeFiveMinute, fiveMinuteBars(10)...)
	feed.SetQuote(domain.Quote{Symbol: "SHFE.rb2310", TradingStatus: domain.TradingStatusContinuous})
	ctx := context.Background()

	bars, err := feed.Bars(ctx, "SHFE.rb2310", domain.TimeframeFiveMinute, 200)
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected 1 visible bar at start, got %d", len(bars))
	}

	for i := 0; i < 4; i++ {
		if err := feed.WaitUpdate(ctx, 0); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	bars, _ = feed.Bars(ctx, "SHFE.rb2310", domain.TimeframeFiveMinute, 3)
	if len(bars) != 3 || bars[2].ID != 4 {
		t.Errorf("unexpected window %+v", bars)
	}

	q, _ := feed.Quote(ctx, "SHFE.rb2310")
	if q.LastPrice != 104 || !q.Datetime.Equal(open0.Add(20*time.Minute)) {
		t.Errorf("quote does not follow the clock: %+v", q)
	}
	if !q.IsTrading() {
		t.Errorf("expected trading while the newest bar covers the clock")
	}

	if err := feed.WaitUpdate(ctx, 0); !errors.Is(err, ErrFeedExhausted) {
		t.Errorf("expected ErrFeedExhausted, got %v", err)
	}
}

func TestSimFeed_ReplayMarketClosesWithoutBars(t *testing.T) {
	feed := NewReplayFeed(open0, open0.Add(time.Hour), 5*time.Minute)
	feed.AddBars("SHFE.rb2310", domain.TimeframeFiveMinute, fiveMinuteBars(2)...)
	feed.SetQuote(domain.Quote{Symbol: "SHFE.rb2310", TradingStatus: domain.TradingStatusContinuous})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := feed.WaitUpdate(ctx, 0); err != nil {
			t.Fatal(err)
		}
	}
	q, _ := feed.Quote(ctx, "SHFE.rb2310")
	if q.IsTrading() {
		t.Errorf("expected closed market past the last bar, got %s", q.TradingStatus)
	}
}

func TestSimFeed_ScheduledQuoteAndExpiry(t *testing.T) {
	feed := NewReplayFeed(open0, open0.Add(48*time.Hour), 24*time.Hour)
	feed.SetQuote(domain.Quote{Symbol: "KQ.m@SHFE.rb", UnderlyingSymbol: "SHFE.rb2310"})
	feed.ScheduleQuote(open0.Add(24*time.Hour), domain.Quote{Symbol: "KQ.m@SHFE.rb", UnderlyingSymbol: "SHFE.rb2401"})
	feed.SetQuote(domain.Quote{Symbol: "SHFE.rb2310"})
	feed.SetExpiry("SHFE.rb2310", open0.Add(10*24*time.Hour))
	ctx := context.Background()

	q, err := feed.Quote(ctx, "KQ.m@SHFE.rb")
	if err != nil {
		t.Fatal(err)
	}
	if q.UnderlyingSymbol != "SHFE.rb2310" {
		t.Errorf("expected initial underlying 2310, got %s", q.UnderlyingSymbol)
	}
	if q, _ := feed.Quote(ctx, "SHFE.rb2310"); q.ExpireRestDays != 10 {
		t.Errorf("expected 10 days to expiry, got %d", q.ExpireRestDays)
	}

	if err := feed.WaitUpdate(ctx, 0); err != nil {
		t.Fatal(err)
	}
	q, _ = feed.Quote(ctx, "KQ.m@SHFE.rb")
	if q.UnderlyingSymbol != "SHFE.rb2401" {
		t.Errorf("expected remapped underlying 2401, got %s", q.UnderlyingSymbol)
	}
	if q, _ := feed.Quote(ctx, "SHFE.rb2310"); q.ExpireRestDays != 9 {
		t.Errorf("expected 9 days to expiry, got %d", q.ExpireRestDays)
	}
}

func TestSimFeed_BarChanged(t *testing.T) {
	feed := NewSimFeed(open0)
	feed.AddBars("DCE.a2311", domain.TimeframeThirtyMinute, domain.Bar{Time: open0})

	if !feed.BarChanged("DCE.a2311", domain.TimeframeThirtyMinute) {
		t.Error("first observation must report a change")
	}
	if feed.BarChanged("DCE.a2311", domain.TimeframeThirtyMinute) {
		t.Error("unchanged series reported a change")
	}
	feed.AddBars("DCE.a2311", domain.TimeframeThirtyMinute, domain.Bar{Time: open0.Add(30 * time.Minute)})
	if !feed.BarChanged("DCE.a2311", domain.TimeframeThirtyMinute) {
		t.Error("new bar not reported")
	}
}

func TestSimFeed_AddBarsKeepsOrder(t *testing.T) {
	feed := NewSimFeed(open0)
	bars := fiveMinuteBars(3)
	feed.AddBars("DCE.a2311", domain.TimeframeFiveMinute, bars[2], bars[0])
	feed.AddBars("DCE.a2311", domain.TimeframeFiveMinute, bars[1], domain.Bar{ID: 9, Time: bars[0].Time})

	got, _ := feed.Bars(context.Background(), "DCE.a2311", domain.TimeframeFiveMinute, 0)
	if len(got) != 3 || got[0].ID != 9 || got[1].ID != 1 || got[2].ID != 2 {
		t.Errorf("unexpected series %+v", got)
	}
}

func TestSimFeed_WaitUpdate(t *testing.T) {
	feed := NewSimFeed(open0)
	ctx := context.Background()

	if err := feed.WaitUpdate(ctx, 10*time.Millisecond); !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("expected ErrWaitTimeout, got %v", err)
	}

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { done <- feed.WaitUpdate(ctx, time.Second) }()
	}
	time.Sleep(20 * time.Millisecond)
	feed.Publish()
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Errorf("waiter %d: %v", i, err)
		}
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := feed.WaitUpdate(cctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSimFeed_UnknownSymbol(t *testing.T) {
	feed := NewSimFeed(open0)
	if _, err := feed.Bars(context.Background(), "X", domain.TimeframeDaily, 1); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("expected ErrUnknownSymbol, got %v", err)
	}
	if _, err := feed.Quote(context.Background(), "X"); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("expected ErrUnknownSymbol, got %v", err)
	}
}

func TestSimGateway_FillsOnPoll(t *testing.T) {
	feed := NewSimFeed(open0)
	feed.SetQuote(domain.Quote{Symbol: "SHFE.rb2310", LastPrice: 3500, Datetime: open0})
	gw := NewSimGateway(feed)
	ctx := context.Background()

	o, err := gw.Submit(ctx, OrderRequest{Symbol: "SHFE.rb2310", Side: domain.SideBuy, Offset: domain.OffsetOpen, Volume: 2})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if o.Finished() {
		t.Error("order must start alive")
	}

	got, err := gw.Order(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Finished() || got.Filled() != 2 || got.TradePrice != 3500 {
		t.Errorf("unexpected fill %+v", got)
	}
	if rec := got.Record(); rec.PriceType != domain.PriceTypeAny || rec.LimitPrice != nil {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestSimGateway_Rejections(t *testing.T) {
	feed := NewSimFeed(open0)
	feed.SetQuote(domain.Quote{Symbol: "CZCE.MA309", LastPrice: 2500})
	gw := NewSimGateway(feed)
	gw.RejectMarketOrders("CZCE.MA309")
	ctx := context.Background()

	req := OrderRequest{Symbol: "CZCE.MA309", Side: domain.SideSell, Offset: domain.OffsetOpen, Volume: 1}
	if _, err := gw.Submit(ctx, req); !errors.Is(err, ErrMarketOrderUnsupported) {
		t.Errorf("expected ErrMarketOrderUnsupported, got %v", err)
	}

	price := 2490.0
	req.LimitPrice = &price
	o, err := gw.Submit(ctx, req)
	if err != nil {
		t.Fatalf("limit order rejected: %v", err)
	}
	if o.PriceType != domain.PriceTypeLimit || o.TradePrice != 2490 {
		t.Errorf("unexpected limit order %+v", o)
	}

	boom := errors.New("gateway down")
	gw.FailNext(boom)
	if _, err := gw.Submit(ctx, req); !errors.Is(err, boom) {
		t.Errorf("expected injected error, got %v", err)
	}
	if _, err := gw.Order(ctx, "nope"); !errors.Is(err, ErrUnknownOrder) {
		t.Errorf("expected ErrUnknownOrder, got %v", err)
	}
}
