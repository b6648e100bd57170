package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"signalwatch/internal/signal"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// TextSender delivers text to a chat (pkg/telegram.Client).
type TextSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// ChatChannel replies in the subscriber's own chat.
type ChatChannel struct {
	sender TextSender
}

func NewChatChannel(sender TextSender) *ChatChannel {
	return &ChatChannel{sender: sender}
}

func (c *ChatChannel) Name() string { return "chat" }

func (c *ChatChannel) Send(ctx context.Context, ev signal.AlertEvent, message string) error {
	return c.sender.SendMessage(ctx, string(ev.Subscriber), message)
}

// ErrNoRecipients is returned by a channel that has nobody to deliver to.
var ErrNoRecipients = errors.New("no destination numbers")

// SMSSender delivers one SMS (pkg/twilio.Client).
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// SMSChannel texts every configured number. Numbers are tried independently.
type SMSChannel struct {
	sender  SMSSender
	numbers []string
}

func NewSMSChannel(sender SMSSender, numbers []string) *SMSChannel {
	return &SMSChannel{sender: sender, numbers: append([]string(nil), numbers...)}
}

func (c *SMSChannel) Name() string { return "sms" }

func (c *SMSChannel) Send(ctx context.Context, _ signal.AlertEvent, message string) error {
	if len(c.numbers) == 0 {
		return ErrNoRecipients
	}
	var errs []error
	for _, to := range c.numbers {
		if _, err := c.sender.SendSMS(ctx, to, message); err != nil {
			errs = append(errs, fmt.Errorf("sms to %s: %w", to, err))
		}
	}
	return errors.Join(errs...)
}

// Publisher pushes a JSON value downstream (pkg/wsrelay.Client).
type Publisher interface {
	Publish(ctx context.Context, v any) error
}

// Payload is the structured alert sent to machine consumers.
type Payload struct {
	signal.AlertEvent
	Message string `json:"message"`
}

// RelayChannel forwards alerts over a websocket relay.
type RelayChannel struct {
	publisher Publisher
}

func NewRelayChannel(p Publisher) *RelayChannel {
	return &RelayChannel{publisher: p}
}

func (c *RelayChannel) Name() string { return "relay" }

func (c *RelayChannel) Send(ctx context.Context, ev signal.AlertEvent, message string) error {
	return c.publisher.Publish(ctx, Payload{AlertEvent: ev, Message: message})
}

// MessageWriter is the part of *kafka.Writer the channel needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaChannel writes alerts to a topic keyed by subscriber.
type KafkaChannel struct {
	writer MessageWriter
}

func NewKafkaChannel(w MessageWriter) *KafkaChannel {
	return &KafkaChannel{writer: w}
}

// NewKafkaWriter builds a synchronous writer; the topic is fixed on the writer.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  1,
	}
}

func (c *KafkaChannel) Name() string { return "kafka" }

func (c *KafkaChannel) Send(ctx context.Context, ev signal.AlertEvent, message string) error {
	value, err := json.Marshal(Payload{AlertEvent: ev, Message: message})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return c.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Subscriber),
		Value: value,
		Time:  ev.Timestamp,
	})
}

// LogChannel writes alerts to the service log.
type LogChannel struct {
	logger *zap.Logger
}

func NewLogChannel(l *zap.Logger) *LogChannel {
	if l == nil {
		l = zap.NewNop()
	}
	return &LogChannel{logger: l}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(_ context.Context, ev signal.AlertEvent, message string) error {
	c.logger.Info(message,
		zap.String("subscriber", string(ev.Subscriber)),
		zap.String("symbol", string(ev.Symbol)),
		zap.String("classification", ev.Classification.String()),
		zap.String("venue", ev.Venue),
		zap.Time("at", ev.Timestamp),
	)
	return nil
}
