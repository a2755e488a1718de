// Package events publishes vendor lifecycle events to Kafka. Publishing is
// fire-and-forget: events go through a bounded queue and are dropped with a
// warning when it is full, so request handling never waits on the broker.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gartstein/onboard/internal/onboarding/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var jsonMarshal = json.Marshal

type EventType string

const (
	VendorCreated  EventType = "vendor_created"
	VendorApproved EventType = "vendor_approved"
	VendorRejected EventType = "vendor_rejected"
)

// DefaultTopic receives all vendor lifecycle events.
const DefaultTopic = "vendor.lifecycle"

type Event struct {
	Type       EventType
	Vendor     *models.Vendor
	OccurredAt time.Time
}

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer    KafkaWriter
	events    chan Event
	logger    *zap.Logger
	closeChan chan struct{}
	done      chan struct{}
}

// NewProducer starts a producer writing to topic on brokers.
func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	p := &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			Topic:                  topic,
			AllowAutoTopicCreation: true,
		},
		events:    make(chan Event, 1000),
		logger:    logger.Named("kafka_producer"),
		closeChan: make(chan struct{}),
		done:      make(chan struct{}),
	}

	go p.eventLoop()
	return p
}

// EnsureTopic creates topic on the first broker. An existing topic is not an error.
func EnsureTopic(brokers []string, topic string, logger *zap.Logger) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Warn("failed to create topic (may already exist)", zap.String("topic", topic), zap.Error(err))
	}
	return nil
}

func (p *Producer) Produce(eventType EventType, vendor *models.Vendor) {
	select {
	case p.events <- Event{Type: eventType, Vendor: vendor, OccurredAt: time.Now().UTC()}:
	default:
		p.logger.Warn("Kafka producer queue full, dropping event",
			zap.String("event_type", string(eventType)),
			zap.String("vendor_id", vendor.ID.String()),
		)
	}
}

func (p *Producer) eventLoop() {
	defer close(p.done)
	for {
		select {
		case event := <-p.events:
			p.sendEvent(context.Background(), event)
		case <-p.closeChan:
			return
		}
	}
}

func (p *Producer) sendEvent(ctx context.Context, event Event) {
	value, err := jsonMarshal(event)
	if err != nil {
		p.logger.Error("Failed to serialize event",
			zap.Error(err),
			zap.String("vendor_id", event.Vendor.ID.String()),
		)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Vendor.ID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		p.logger.Error("Failed to produce event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.String("vendor_id", event.Vendor.ID.String()),
		)
	}
}

// Close stops the event loop and closes the writer. Queued events that were
// not yet picked up are discarded.
func (p *Producer) Close() {
	close(p.closeChan)
	if p.done != nil {
		<-p.done
	}
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}

// Nop discards events. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Produce(EventType, *models.Vendor) {}

func (Nop) Close() {}
