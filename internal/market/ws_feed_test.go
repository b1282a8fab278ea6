package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"futures-trader/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// bridgeServer answers subscribe with one quote and one bar, and fills every
// inserted order.
func bridgeServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var req wsRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				t.Errorf("unmarshal request: %v", err)
				return
			}

			switch req.Op {
			case "subscribe":
				c.WriteJSON(map[string]interface{}{
					"type": "quote",
					"quote": map[string]interface{}{
						"instrument_id":     "SHFE.rb2310",
						"last_price":        3500.0,
						"underlying_symbol": "",
						"trade_status":      domain.TradingStatusContinuous,
						"datetime":          "2023-09-04T09:30:00+08:00",
						"expire_rest_days":  20,
					},
				})
				c.WriteJSON(map[string]interface{}{
					"type":      "bar",
					"symbol":    "SHFE.rb2310",
					"timeframe": "5m",
					"bar":       map[string]interface{}{"id": 7, "datetime": "2023-09-04T09:25:00+08:00", "close": 3500.0},
				})
			case "insert_order":
				o := req.Order
				o.Status = domain.OrderFinished
				o.VolumeLeft = 0
				o.TradePrice = 3501
				c.WriteJSON(map[string]interface{}{"type": "order", "order": o})
			}
		}
	}))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWSFeed_SubscribeAndOrders(t *testing.T) {
	server := bridgeServer(t)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ctx := context.Background()

	feed, err := NewWSFeed(ctx, wsURL, nil, nil)
	if err != nil {
		t.Fatalf("NewWSFeed: %v", err)
	}
	defer feed.Close()

	if err := feed.Subscribe(ctx, []string{"SHFE.rb2310"}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	waitFor(t, func() bool {
		bars, err := feed.Bars(ctx, "SHFE.rb2310", domain.TimeframeFiveMinute, 10)
		return err == nil && len(bars) == 1
	})

	q, err := feed.Quote(ctx, "SHFE.rb2310")
	if err != nil {
		t.Fatal(err)
	}
	if q.LastPrice != 3500 || !q.IsTrading() || q.ExpireRestDays != 20 {
		t.Errorf("unexpected quote %+v", q)
	}
	if feed.Now().Hour() != 9 {
		t.Errorf("feed clock should follow quotes, got %v", feed.Now())
	}

	gw := NewWSGateway(feed)
	o, err := gw.Submit(ctx, OrderRequest{Symbol: "SHFE.rb2310", Side: domain.SideBuy, Offset: domain.OffsetOpen, Volume: 1})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool {
		got, err := gw.Order(ctx, o.ID)
		return err == nil && got.Finished()
	})
	got, _ := gw.Order(ctx, o.ID)
	if got.TradePrice != 3501 || got.Filled() != 1 {
		t.Errorf("unexpected order %+v", got)
	}
}

func TestWSFeed_Close(t *testing.T) {
	server := bridgeServer(t)
	defer server.Close()

	feed, err := NewWSFeed(context.Background(), "ws"+strings.TrimPrefix(server.URL, "http"), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := feed.Close(); err != nil {
		t.Fatal(err)
	}
	if err := feed.Close(); err != nil {
		t.Error("second close must be a no-op")
	}
	if err := feed.WaitUpdate(context.Background(), time.Millisecond); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
