package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/aq2208/gcart-api/internal/usecase"
)

// Publisher writes cart events keyed by session id, so one session's events
// stay ordered within a partition.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	observe  func(direction string, err error) // optional
}

func NewPublisher(p sarama.SyncProducer, topic string, observe func(string, error)) *Publisher {
	return &Publisher{producer: p, topic: topic, observe: observe}
}

func (p *Publisher) PublishCartEvent(ctx context.Context, ev usecase.CartEventMsg) (err error) {
	if p.observe != nil {
		defer func() { p.observe("out", err) }()
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal cart event: %w", err)
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.SessionID),
		Value: sarama.ByteEncoder(b),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-id"), Value: []byte(ev.EventID)},
			{Key: []byte("tool"), Value: []byte(ev.Tool)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish cart event %s: %w", ev.EventID, err)
	}
	return nil
}

func (p *Publisher) Close() error { return p.producer.Close() }

var _ usecase.EventPublisher = (*Publisher)(nil)
