package broadcast

import (
	"context"
	"time"

	"github.com/diwise/alert-engine/internal/pkg/infrastructure/logging"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/messaging"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/metrics"
	"github.com/diwise/alert-engine/pkg/types"
)

//go:generate moq -rm -out broadcaster_mock.go . Broadcaster

// Broadcaster pushes alert changes to realtime listeners. Delivery is best
// effort and failures are only logged.
type Broadcaster interface {
	BroadcastAlert(ctx context.Context, alert types.Alert)
}

type Sink interface {
	Name() string
	Publish(ctx context.Context, b types.AlertBroadcast) error
}

type broadcaster struct {
	sinks []Sink
	now   func() time.Time
}

func New(sinks ...Sink) Broadcaster {
	return &broadcaster{
		sinks: sinks,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (b *broadcaster) BroadcastAlert(ctx context.Context, alert types.Alert) {
	payload := types.NewAlertBroadcast(alert, b.now())

	for _, s := range b.sinks {
		err := s.Publish(ctx, payload)
		if err != nil {
			metrics.BroadcastsTotal.WithLabelValues(s.Name(), "failed").Inc()
			logger := logging.GetFromContext(ctx)
			logger.Error().Err(err).
				Str("sink", s.Name()).
				Str("alert_id", alert.ID).
				Msg("failed to broadcast alert")
			continue
		}

		metrics.BroadcastsTotal.WithLabelValues(s.Name(), "sent").Inc()
	}
}

type topicSink struct {
	publisher messaging.Publisher
}

// NewTopicSink publishes alerts on the message broker, routed by status.
func NewTopicSink(p messaging.Publisher) Sink {
	return &topicSink{publisher: p}
}

func (t *topicSink) Name() string {
	return "amqp"
}

func (t *topicSink) Publish(ctx context.Context, b types.AlertBroadcast) error {
	return t.publisher.PublishOnTopic(ctx, &b)
}
