package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/logger"
)

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Notify(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestSink_SwallowsFailures(t *testing.T) {
	var buf bytes.Buffer
	failing := &recorder{err: errors.New("push service down")}
	ok := &recorder{}
	sink := NewSink("sim", logger.NewWithWriter(&buf, "info", "json"), nil, failing, ok)

	sink.Send(context.Background(), Event{Title: "t", Body: "b"})

	if len(ok.events) != 1 || ok.events[0].Title != "sim t" {
		t.Errorf("unexpected events %+v", ok.events)
	}
	if !strings.Contains(buf.String(), "push service down") {
		t.Error("failure was not logged")
	}
}

func TestSink_NilIsNoop(t *testing.T) {
	var sink *Sink
	sink.Send(context.Background(), Event{Title: "ignored"})
}

func TestPositionEvent(t *testing.T) {
	at := time.Date(2023, 9, 4, 9, 30, 0, 0, domain.ExchangeTZ)
	ev := PositionEvent("SHFE_rb_main_long", "SHFE.rb2310", domain.SideBuy, 3, 3500, at)

	if ev.Title != "SHFE_rb_main_long buy" {
		t.Errorf("unexpected title %q", ev.Title)
	}
	if ev.Body != "2023-09-04 09:30:00 SHFE.rb2310 buy 3 lots at 3500.00" {
		t.Errorf("unexpected body %q", ev.Body)
	}
	if ev.Data["volume"] != "3" {
		t.Errorf("unexpected data %+v", ev.Data)
	}
}

func TestFCMConfig_Enabled(t *testing.T) {
	if (FCMConfig{}).Enabled() {
		t.Error("empty config must be disabled")
	}
	if (FCMConfig{CredentialsFile: "creds.json"}).Enabled() {
		t.Error("config without tokens must be disabled")
	}
	if !(FCMConfig{CredentialsJSON: "{}", Tokens: []string{"a"}}).Enabled() {
		t.Error("expected enabled")
	}
	if _, err := NewFCM(context.Background(), FCMConfig{}); err == nil {
		t.Error("expected error for disabled config")
	}
}
