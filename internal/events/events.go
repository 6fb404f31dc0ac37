package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"studio-booking-backend/config"
	"studio-booking-backend/internal/model"
)

// Type names a booking lifecycle transition.
type Type string

const (
	BookingCreated   Type = "booking.created"
	BookingCancelled Type = "booking.cancelled"
	BookingCompleted Type = "booking.completed"
)

// Event is the payload published for every booking transition.
type Event struct {
	Type       Type                `json:"type"`
	BookingID  string              `json:"bookingId"`
	OwnerID    string              `json:"ownerId"`
	StudioID   int64               `json:"studioId"`
	Unit       string              `json:"unit"`
	Start      time.Time           `json:"start"`
	End        time.Time           `json:"end"`
	Status     model.BookingStatus `json:"status"`
	Reason     *string             `json:"reason,omitempty"`
	OccurredAt time.Time           `json:"occurredAt"`
}

// FromBooking builds the event of type t for b.
func FromBooking(t Type, b *model.Booking, at time.Time) Event {
	return Event{
		Type:       t,
		BookingID:  b.ID.String(),
		OwnerID:    b.OwnerID,
		StudioID:   b.StudioID,
		Unit:       b.Unit,
		Start:      b.StartAt.UTC(),
		End:        b.EndAt.UTC(),
		Status:     b.Status,
		Reason:     b.CancellationReason,
		OccurredAt: at.UTC(),
	}
}

// Key orders events of one unit on one partition.
func (e Event) Key() string {
	return fmt.Sprintf("%d/%s", e.StudioID, e.Unit)
}

// Publisher delivers booking events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// New returns a Kafka publisher, or a no-op one when no brokers are configured.
func New(cfg config.KafkaConfig, log *slog.Logger) Publisher {
	if len(cfg.Brokers) == 0 {
		log.Info("kafka brokers not configured, booking events are not published")
		return Nop{}
	}
	return NewKafkaPublisher(cfg, log)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to a single topic.
type KafkaPublisher struct {
	writer messageWriter
	log    *slog.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, log *slog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 2 * time.Second,
		MaxAttempts:  3,
		Logger:       kafka.LoggerFunc(func(msg string, args ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			log.Error(fmt.Sprintf(msg, args...), "component", "kafka")
		}),
	}
	return &KafkaPublisher{writer: w, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := Message(e)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for booking %s: %w", e.Type, e.BookingID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Message encodes e as a kafka message.
func Message(e Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(e.Key()),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}, nil
}
