// Package notify delivers trade notifications. Delivery is fire-and-forget:
// failures are logged and counted, never returned to the trading path.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/logger"
	"futures-trader/internal/observability"
)

// Event is one notification.
type Event struct {
	Title string
	Body  string
	Data  map[string]string
}

// Notifier sends an event to one destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev Event) error
}

// Sink fans events out to notifiers and swallows their errors.
type Sink struct {
	env       string
	notifiers []Notifier
	log       *logger.Logger
	metrics   *observability.Metrics
}

// NewSink creates a sink. env prefixes every title. With no notifiers the
// sink only logs.
func NewSink(env string, log *logger.Logger, metrics *observability.Metrics, notifiers ...Notifier) *Sink {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = observability.Discard()
	}
	return &Sink{env: env, notifiers: notifiers, log: log.With("component", "notify"), metrics: metrics}
}

// Send delivers ev to every notifier.
func (s *Sink) Send(ctx context.Context, ev Event) {
	if s == nil {
		return
	}
	if s.env != "" {
		ev.Title = fmt.Sprintf("%s %s", s.env, ev.Title)
	}
	s.log.Infof("%s: %s", ev.Title, ev.Body)

	for _, n := range s.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			s.metrics.NotificationFailures.WithLabelValues(n.Name()).Inc()
			s.log.Warnf("notification via %s failed: %v", n.Name(), err)
		}
	}
}

// PositionEvent describes an executed open or close.
func PositionEvent(customSymbol, symbol string, side domain.OrderSide, volume int, price float64, at time.Time) Event {
	action := "buy"
	if side == domain.SideSell {
		action = "sell"
	}
	return Event{
		Title: fmt.Sprintf("%s %s", customSymbol, action),
		Body: fmt.Sprintf("%s %s %s %d lots at %.2f",
			at.In(domain.ExchangeTZ).Format("2006-01-02 15:04:05"), symbol, action, volume, price),
		Data: map[string]string{
			"custom_symbol": customSymbol,
			"symbol":        symbol,
			"side":          string(side),
			"volume":        fmt.Sprint(volume),
			"price":         fmt.Sprintf("%.2f", price),
		},
	}
}

// StartupEvent announces a trading process.
func StartupEvent(kinds []domain.StrategyKind, dir domain.TradeDirection, at time.Time) Event {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return Event{
		Title: "trader started",
		Body: fmt.Sprintf("strategies %s, direction %s, started %s",
			strings.Join(names, ","), dir, at.In(domain.ExchangeTZ).Format("2006-01-02 15:04:05")),
	}
}
