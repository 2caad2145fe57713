package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Security event types
const (
	TypeRefreshTokenReuse = "refresh_token_reuse"
	TypeLogoutAll         = "logout_all"
)

// SecurityEvent is emitted when the auth core observes something an
// operator may need to react to.
type SecurityEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	TokenID    string    `json:"token_id,omitempty"`
	RevokedAll bool      `json:"revoked_all,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers security events.
type Publisher interface {
	Publish(ctx context.Context, event SecurityEvent) error
	Close() error
}

// Writer is the subset of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes security events as JSON keyed by user id.
type KafkaPublisher struct {
	writer Writer
	logger *slog.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return NewKafkaPublisherWithWriter(w, logger)
}

// NewKafkaPublisherWithWriter allows injecting a test writer.
func NewKafkaPublisherWithWriter(w Writer, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event SecurityEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("❌ [Events] Failed to marshal security event", "type", event.Type, "error", err)
		return err
	}

	msg := kafka.Message{Key: []byte(event.UserID), Value: value}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("❌ [Events] Failed to publish security event", "type", event.Type, "error", err)
		return err
	}

	p.logger.Debug("📣 [Events] Security event published", "type", event.Type, "user_id", event.UserID)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher records security events in the application log only.
// Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event SecurityEvent) error {
	p.logger.Warn("🚨 [Security] "+event.Type,
		"user_id", event.UserID,
		"token_id", event.TokenID,
		"revoked_all", event.RevokedAll,
		"occurred_at", event.OccurredAt,
	)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
