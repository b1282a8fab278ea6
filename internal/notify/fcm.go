package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMConfig configures Firebase Cloud Messaging. Either CredentialsFile or
// CredentialsJSON enables it.
type FCMConfig struct {
	CredentialsFile string
	CredentialsJSON string
	Tokens          []string // device tokens receiving trade events
}

// Enabled reports whether credentials and receivers are configured.
func (c FCMConfig) Enabled() bool {
	return (c.CredentialsFile != "" || c.CredentialsJSON != "") && len(c.Tokens) > 0
}

// FCM pushes events to a fixed set of devices.
type FCM struct {
	client *messaging.Client
	tokens []string
}

// NewFCM initializes the messaging client.
func NewFCM(ctx context.Context, cfg FCMConfig) (*FCM, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("fcm: credentials and device tokens required")
	}

	opt := option.WithCredentialsFile(cfg.CredentialsFile)
	if cfg.CredentialsJSON != "" {
		opt = option.WithCredentialsJSON([]byte(cfg.CredentialsJSON))
	}
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}
	return &FCM{client: client, tokens: cfg.Tokens}, nil
}

// Name identifies the notifier in logs and metrics.
func (f *FCM) Name() string { return "fcm" }

// Notify sends ev to every device token.
func (f *FCM) Notify(ctx context.Context, ev Event) error {
	message := &messaging.MulticastMessage{
		Tokens: f.tokens,
		Notification: &messaging.Notification{
			Title: ev.Title,
			Body:  ev.Body,
		},
		Data: ev.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "trade_events",
				Priority:  messaging.PriorityHigh,
			},
		},
	}

	response, err := f.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending multicast: %w", err)
	}
	if response.FailureCount > 0 {
		return fmt.Errorf("%d of %d messages failed", response.FailureCount, len(f.tokens))
	}
	return nil
}

var _ Notifier = (*FCM)(nil)
