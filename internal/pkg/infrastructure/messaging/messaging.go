package messaging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/diwise/alert-engine/internal/pkg/infrastructure/logging"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

var ErrNotConnected = errors.New("not connected to message broker")

type TopicMessage interface {
	ContentType() string
	TopicName() string
	Body() []byte
}

//go:generate moq -rm -out publisher_mock.go . Publisher
type Publisher interface {
	PublishOnTopic(ctx context.Context, message TopicMessage) error
	Close()
}

type Config struct {
	ServiceName string
	Host        string
	Port        string
	User        string
	Password    string
	Exchange    string
}

func LoadConfiguration(serviceName string) Config {
	return Config{
		ServiceName: serviceName,
		Host:        os.Getenv("RABBITMQ_HOST"),
		Port:        envOrDefault("RABBITMQ_PORT", "5672"),
		User:        os.Getenv("RABBITMQ_USER"),
		Password:    os.Getenv("RABBITMQ_PASS"),
		Exchange:    envOrDefault("RABBITMQ_EXCHANGE", "alert-engine-topic"),
	}
}

func (c Config) url() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.User, c.Password, c.Host, c.Port)
}

type publisher struct {
	mu      sync.Mutex
	cfg     Config
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  zerolog.Logger
}

// Initialize connects to the broker and declares a durable topic exchange
// that all messages are published on.
func Initialize(ctx context.Context, cfg Config) (Publisher, error) {
	logger := logging.GetFromContext(ctx).With().
		Str("host", cfg.Host).
		Str("exchange", cfg.Exchange).
		Logger()

	p := &publisher{cfg: cfg, logger: logger}

	if err := p.connect(); err != nil {
		return nil, err
	}

	logger.Info().Msg("connected to message broker")

	return p, nil
}

func (p *publisher) connect() error {
	conn, err := amqp.Dial(p.cfg.url())
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", p.cfg.Host, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(p.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", p.cfg.Exchange, err)
	}

	p.conn = conn
	p.channel = ch

	return nil
}

func (p *publisher) PublishOnTopic(ctx context.Context, message TopicMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() {
		p.logger.Warn().Msg("connection to message broker lost, reconnecting")
		if err := p.connect(); err != nil {
			return fmt.Errorf("%w: %s", ErrNotConnected, err.Error())
		}
	}

	msg := amqp.Publishing{
		ContentType:  message.ContentType(),
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		AppId:        p.cfg.ServiceName,
		Body:         message.Body(),
	}

	err := p.channel.PublishWithContext(ctx, p.cfg.Exchange, message.TopicName(), false, false, msg)
	if err != nil {
		return fmt.Errorf("failed to publish on topic %s: %w", message.TopicName(), err)
	}

	return nil
}

func (p *publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

func envOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
