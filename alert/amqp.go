package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goSession "github.com/MrEthical07/goSession"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is satisfied by *amqp.Channel.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Config struct {
	Exchange string
	// RoutingPrefix defaults to "gosession.audit".
	RoutingPrefix string
	// Events limits which event types are published. Empty means
	// [DefaultEvents].
	Events []string
	// PublishTimeout bounds one publish. Defaults to 5s.
	PublishTimeout time.Duration
}

// DefaultEvents are the event types worth alerting on.
var DefaultEvents = []string{
	goSession.AuditReplayDetected,
	goSession.AuditLoginRateLimited,
	goSession.AuditRefreshRateLimited,
	goSession.AuditPasswordChangeSuccess,
	goSession.AuditLogoutAll,
}

// AMQPSink publishes selected audit events. Publishing failures are logged
// and never reach the engine.
type AMQPSink struct {
	pub     Publisher
	cfg     Config
	allowed map[string]struct{}
	logger  *slog.Logger
}

func NewAMQPSink(pub Publisher, cfg Config, logger *slog.Logger) *AMQPSink {
	if cfg.RoutingPrefix == "" {
		cfg.RoutingPrefix = "gosession.audit"
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	events := cfg.Events
	if len(events) == 0 {
		events = DefaultEvents
	}
	allowed := make(map[string]struct{}, len(events))
	for _, e := range events {
		allowed[e] = struct{}{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPSink{pub: pub, cfg: cfg, allowed: allowed, logger: logger}
}

// Emit implements goSession.AuditSink.
func (s *AMQPSink) Emit(ctx context.Context, event goSession.AuditEvent) {
	if s == nil || s.pub == nil {
		return
	}
	if _, ok := s.allowed[event.EventType]; !ok {
		return
	}
	if err := s.publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "goSession: alert publish failed",
			"event_type", event.EventType, "event_id", event.ID, "error", err)
	}
}

func (s *AMQPSink) publish(ctx context.Context, event goSession.AuditEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PublishTimeout)
	defer cancel()

	return s.pub.PublishWithContext(ctx,
		s.cfg.Exchange,
		s.cfg.RoutingPrefix+"."+event.EventType,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Timestamp:    event.Timestamp,
			Type:         event.EventType,
			AppId:        "goSession",
			Body:         body,
		},
	)
}

// Connection owns the AMQP connection and channel behind a sink.
type Connection struct {
	conn    *amqp.Connection
	Channel *amqp.Channel
}

// Dial connects to url and declares exchange as a durable topic exchange.
func Dial(url, exchange string) (*Connection, error) {
	if exchange == "" {
		return nil, errors.New("alert: exchange required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("alert: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("alert: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("alert: declare exchange %q: %w", exchange, err)
	}
	return &Connection{conn: conn, Channel: ch}, nil
}

func (c *Connection) Close() error {
	if c == nil {
		return nil
	}
	return errors.Join(c.Channel.Close(), c.conn.Close())
}
