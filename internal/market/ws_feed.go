package market

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"futures-trader/internal/domain"
	"futures-trader/internal/logger"
)

// WSConfig configures the websocket bridge connection.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default websocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSFeed streams bars, quotes and order updates from a market bridge over a
// websocket and serves them through the Feed interface. Received data is kept
// in a live-mode SimFeed.
type WSFeed struct {
	endpoint string
	config   WSConfig
	log      *logger.Logger
	book     *SimFeed

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	symbolsMu sync.RWMutex
	symbols   []string // resubscribed after reconnect

	ordersMu sync.RWMutex
	orders   map[string]*Order

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewWSFeed connects to endpoint and starts the reader.
func NewWSFeed(ctx context.Context, endpoint string, config *WSConfig, log *logger.Logger) (*WSFeed, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if log == nil {
		log = logger.Nop()
	}

	f := &WSFeed{
		endpoint: endpoint,
		config:   cfg,
		log:      log.With("component", "ws_feed"),
		book:     NewSimFeed(time.Now().In(domain.ExchangeTZ)),
		orders:   make(map[string]*Order),
		done:     make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	f.wg.Add(1)
	go f.readLoop()

	f.wg.Add(1)
	go f.pingLoop()

	return f, nil
}

func (f *WSFeed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	f.conn = conn
	return nil
}

// send writes one request frame.
func (f *WSFeed) send(req wsRequest) error {
	if f.closed.Load() {
		return ErrClosed
	}
	req.ReqID = f.requestID.Add(1)
	data, err := sonic.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s: %w", req.Op, err)
	}

	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
	if err := f.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", req.Op, err)
	}
	return nil
}

// Subscribe asks the bridge to stream symbols. Symbols are resubscribed after
// a reconnect.
func (f *WSFeed) Subscribe(_ context.Context, symbols []string) error {
	if err := f.send(wsRequest{Op: "subscribe", Symbols: symbols}); err != nil {
		return err
	}
	f.symbolsMu.Lock()
	f.symbols = append(f.symbols, symbols...)
	f.symbolsMu.Unlock()
	return nil
}

// Bars returns the streamed bars of symbol.
func (f *WSFeed) Bars(ctx context.Context, symbol string, tf domain.Timeframe, length int) ([]domain.Bar, error) {
	return f.book.Bars(ctx, symbol, tf, length)
}

// Quote returns the latest streamed quote of symbol.
func (f *WSFeed) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	return f.book.Quote(ctx, symbol)
}

// WaitUpdate blocks until the next frame carrying data arrives.
func (f *WSFeed) WaitUpdate(ctx context.Context, timeout time.Duration) error {
	if f.closed.Load() {
		return ErrClosed
	}
	return f.book.WaitUpdate(ctx, timeout)
}

// BarChanged reports whether a new bar arrived since the previous call.
func (f *WSFeed) BarChanged(symbol string, tf domain.Timeframe) bool {
	return f.book.BarChanged(symbol, tf)
}

// Now returns the datetime of the newest quote.
func (f *WSFeed) Now() time.Time {
	return f.book.Now()
}

// Close closes the websocket connection.
func (f *WSFeed) Close() error {
	if f.closed.Swap(true) {
		return nil
	}

	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	return nil
}

func (f *WSFeed) readLoop() {
	defer f.wg.Done()

	reconnectDelay := f.config.ReconnectDelay

	for !f.closed.Load() {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}

			if !f.reconnecting.Swap(true) {
				go f.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > f.config.MaxReconnectDelay {
				reconnectDelay = f.config.MaxReconnectDelay
			}

			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = f.config.ReconnectDelay

		f.handleMessage(message)
	}
}

func (f *WSFeed) reconnect(delay time.Duration) {
	defer f.reconnecting.Store(false)

	if f.closed.Load() {
		return
	}

	select {
	case <-f.done:
		return
	case <-time.After(delay):
	}

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := f.connect(ctx); err != nil {
		f.log.Warnf("reconnect failed: %v", err)
		return
	}

	f.symbolsMu.RLock()
	symbols := append([]string(nil), f.symbols...)
	f.symbolsMu.RUnlock()
	if len(symbols) > 0 {
		if err := f.send(wsRequest{Op: "subscribe", Symbols: symbols}); err != nil {
			f.log.Warnf("resubscribe failed: %v", err)
		}
	}
}

// handleMessage applies one frame to the book.
func (f *WSFeed) handleMessage(message []byte) {
	var msg wsMessage
	if err := sonic.Unmarshal(message, &msg); err != nil {
		f.log.Warnf("undecodable frame: %v", err)
		return
	}

	switch msg.Type {
	case "bar":
		tf, ok := domain.ParseTimeframe(msg.Timeframe)
		if !ok || msg.Bar == nil {
			return
		}
		f.book.AddBars(msg.Symbol, tf, msg.Bar.toDomain())
	case "quote":
		if msg.Quote == nil {
			return
		}
		q := msg.Quote.toDomain()
		f.book.SetQuote(q)
		if q.Datetime.After(f.book.Now()) {
			f.book.SetNow(q.Datetime)
		}
	case "order":
		if msg.Order == nil {
			return
		}
		f.ordersMu.Lock()
		f.orders[msg.Order.ID] = msg.Order.Clone()
		f.ordersMu.Unlock()
	case "error":
		f.log.Warnf("bridge error for request %d: %s", msg.ReqID, msg.Message)
		return
	default:
		return
	}
	f.book.Publish()
}

func (f *WSFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
				f.conn.WriteMessage(websocket.PingMessage, nil)
			}
			f.connMu.Unlock()
		}
	}
}

// WSGateway submits orders through the bridge of a WSFeed. Order state
// arrives asynchronously as order frames.
type WSGateway struct {
	feed *WSFeed
}

// NewWSGateway creates a gateway sharing the feed connection.
func NewWSGateway(feed *WSFeed) *WSGateway {
	return &WSGateway{feed: feed}
}

// Submit sends an insert_order request. A rejection arrives later as a
// finished order with IsError set.
func (g *WSGateway) Submit(_ context.Context, req OrderRequest) (*Order, error) {
	o := &Order{
		ID:           newOrderID(),
		Symbol:       req.Symbol,
		Side:         req.Side,
		Offset:       req.Offset,
		VolumeOrigin: req.Volume,
		VolumeLeft:   req.Volume,
		LimitPrice:   req.LimitPrice,
		PriceType:    domain.PriceTypeAny,
		Status:       domain.OrderAlive,
		InsertTime:   g.feed.Now(),
	}
	if req.LimitPrice != nil {
		o.PriceType = domain.PriceTypeLimit
	}

	g.feed.ordersMu.Lock()
	g.feed.orders[o.ID] = o
	g.feed.ordersMu.Unlock()

	if err := g.feed.send(wsRequest{Op: "insert_order", Order: o}); err != nil {
		g.feed.ordersMu.Lock()
		delete(g.feed.orders, o.ID)
		g.feed.ordersMu.Unlock()
		return nil, err
	}
	return o.Clone(), nil
}

// Order returns the latest known state of an order.
func (g *WSGateway) Order(_ context.Context, orderID string) (*Order, error) {
	g.feed.ordersMu.RLock()
	defer g.feed.ordersMu.RUnlock()

	o, ok := g.feed.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", orderID, ErrUnknownOrder)
	}
	return o.Clone(), nil
}

var (
	_ Feed       = (*WSFeed)(nil)
	_ Subscriber = (*WSFeed)(nil)
	_ Gateway    = (*WSGateway)(nil)
)

// Bridge message types

type wsRequest struct {
	Op      string   `json:"op"`
	ReqID   uint64   `json:"req_id"`
	Symbols []string `json:"symbols,omitempty"`
	Order   *Order   `json:"order,omitempty"`
}

type wsMessage struct {
	Type      string   `json:"type"`
	ReqID     uint64   `json:"req_id,omitempty"`
	Symbol    string   `json:"symbol,omitempty"`
	Timeframe string   `json:"timeframe,omitempty"`
	Bar       *wsBar   `json:"bar,omitempty"`
	Quote     *wsQuote `json:"quote,omitempty"`
	Order     *Order   `json:"order,omitempty"`
	Message   string   `json:"message,omitempty"`
}

type wsBar struct {
	ID       int64     `json:"id"`
	Datetime time.Time `json:"datetime"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

func (b *wsBar) toDomain() domain.Bar {
	return domain.Bar{
		ID:     b.ID,
		Time:   b.Datetime.In(domain.ExchangeTZ),
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
	}
}

type wsQuote struct {
	Symbol           string    `json:"instrument_id"`
	LastPrice        float64   `json:"last_price"`
	UnderlyingSymbol string    `json:"underlying_symbol"`
	TradingStatus    string    `json:"trade_status"`
	Datetime         time.Time `json:"datetime"`
	ExpireRestDays   int       `json:"expire_rest_days"`
}

func (q *wsQuote) toDomain() domain.Quote {
	return domain.Quote{
		Symbol:           q.Symbol,
		LastPrice:        q.LastPrice,
		UnderlyingSymbol: q.UnderlyingSymbol,
		TradingStatus:    q.TradingStatus,
		Datetime:         q.Datetime.In(domain.ExchangeTZ),
		ExpireRestDays:   q.ExpireRestDays,
	}
}
