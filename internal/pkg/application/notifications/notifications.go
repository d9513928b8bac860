package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/logging"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/metrics"
	"github.com/diwise/alert-engine/pkg/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sys/unix"
)

const (
	ChannelWebhook string = "webhook"
	ChannelLog     string = "log"

	NotificationEventType string = "alert-engine.alert.notification"
	eventSource           string = "github.com/diwise/alert-engine"
)

// Message is a single delivery of an alert to one recipient on one channel.
type Message struct {
	Channel   string      `json:"channel"`
	Recipient string      `json:"recipient"`
	Subject   string      `json:"subject"`
	Body      string      `json:"body"`
	Alert     types.Alert `json:"alert"`
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

//go:generate moq -rm -out dispatcher_mock.go . Dispatcher

type Dispatcher interface {
	// Send delivers a message through the sender registered for its channel.
	Send(ctx context.Context, m Message) error
	// Publish hands the alert to every configured subscriber.
	Publish(ctx context.Context, alert types.Alert) error
}

type dispatcher struct {
	senders     map[string]Sender
	fallback    Sender
	subscribers []SubscriberConfig
}

func New(cfg *Config) (Dispatcher, error) {
	webhook, err := newWebhookSender()
	if err != nil {
		return nil, err
	}

	d := &dispatcher{
		senders: map[string]Sender{
			ChannelWebhook: webhook,
			ChannelLog:     &logSender{},
		},
		fallback: &logSender{},
	}

	if cfg != nil {
		for _, n := range cfg.Notifications {
			if n.Type == NotificationEventType {
				d.subscribers = append(d.subscribers, n.Subscribers...)
			}
		}
	}

	return d, nil
}

func (d *dispatcher) Send(ctx context.Context, m Message) error {
	sender, ok := d.senders[m.Channel]
	if !ok {
		sender = d.fallback
	}

	err := sender.Send(ctx, m)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(m.Channel, "failed").Inc()
		return fmt.Errorf("failed to send notification on %s: %w", m.Channel, err)
	}

	metrics.NotificationsTotal.WithLabelValues(m.Channel, "sent").Inc()

	return nil
}

func (d *dispatcher) Publish(ctx context.Context, alert types.Alert) error {
	var errs []error

	for _, s := range d.subscribers {
		if !s.accepts(alert.OrganizationID, string(alert.CurrentSeverity())) {
			continue
		}

		errs = append(errs, d.Send(ctx, Message{
			Channel:   ChannelWebhook,
			Recipient: s.Endpoint,
			Subject:   Subject(alert),
			Body:      alert.Message,
			Alert:     alert,
		}))
	}

	return errors.Join(errs...)
}

func Subject(alert types.Alert) string {
	return fmt.Sprintf("[%s] %s", alert.CurrentSeverity(), alert.RuleName)
}

type webhookSender struct {
	client cloudevents.Client
}

func newWebhookSender() (*webhookSender, error) {
	c, err := cloudevents.NewClientHTTP(
		cehttp.WithRoundTripper(otelhttp.NewTransport(http.DefaultTransport)),
	)
	if err != nil {
		return nil, err
	}

	return &webhookSender{client: c}, nil
}

func (w *webhookSender) Send(ctx context.Context, m Message) error {
	if m.Recipient == "" {
		return errors.New("webhook recipient has no endpoint")
	}

	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetTime(time.Now().UTC())
	event.SetSource(eventSource)
	event.SetType(NotificationEventType)
	event.SetSubject(m.Alert.ID)

	err := event.SetData(cloudevents.ApplicationJSON, m)
	if err != nil {
		return err
	}

	result := w.client.Send(cloudevents.ContextWithTarget(ctx, m.Recipient), event)
	if cloudevents.IsUndelivered(result) || errors.Is(result, unix.ECONNREFUSED) {
		return fmt.Errorf("failed to deliver event to %s: %w", m.Recipient, result)
	}

	if !cloudevents.IsACK(result) {
		return fmt.Errorf("event rejected by %s: %w", m.Recipient, result)
	}

	return nil
}

type logSender struct{}

func (logSender) Send(ctx context.Context, m Message) error {
	logger := logging.GetFromContext(ctx)
	logger.Info().
		Str("channel", m.Channel).
		Str("recipient", m.Recipient).
		Str("alert_id", m.Alert.ID).
		Str("severity", string(m.Alert.CurrentSeverity())).
		Msg(m.Subject)

	return nil
}
