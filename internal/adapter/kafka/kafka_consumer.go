package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"github.com/aq2208/gcart-api/internal/usecase"
	"go.uber.org/zap"
)

// HandlerFunc processes a decoded event.
type HandlerFunc func(ctx context.Context, ev usecase.CartEventMsg) error

// Consumer consumes a topic with a single handler.
type Consumer struct {
	Group  sarama.ConsumerGroup
	Topics []string
	Handle HandlerFunc
	Logger *zap.Logger // optional
}

func NewConsumer(group sarama.ConsumerGroup, topics []string, h HandlerFunc) *Consumer {
	return &Consumer{
		Group:  group,
		Topics: topics,
		Handle: h,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	l := c.Logger
	if l == nil {
		l = zap.NewNop()
	}
	handler := &cgHandler{handle: c.Handle, log: l}
	for {
		if err := c.Group.Consume(ctx, c.Topics, handler); err != nil {
			return err
		}
		// When Consume returns, it’s because ctx was cancelled or a rebalance happened.
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

type cgHandler struct {
	handle HandlerFunc
	log    *zap.Logger
}

func (h *cgHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *cgHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *cgHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.consume(sess.Context(), sess, msg)
	}
	return nil
}

// marker is the part of sarama.ConsumerGroupSession consume needs.
type marker interface {
	MarkMessage(msg *sarama.ConsumerMessage, metadata string)
}

func (h *cgHandler) consume(ctx context.Context, sess marker, msg *sarama.ConsumerMessage) {
	var ev usecase.CartEventMsg
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		h.log.Warn("kafka decode error", zap.Error(err), zap.Int64("offset", msg.Offset))
		// mark to avoid reprocessing poison
		sess.MarkMessage(msg, "decode-error")
		return
	}
	if err := h.handle(ctx, ev); err != nil {
		h.log.Error("handler error",
			zap.Error(err),
			zap.String("key", string(msg.Key)),
			zap.Int64("offset", msg.Offset))
		// not marked; redelivered after the next rebalance
		return
	}
	sess.MarkMessage(msg, "")
}
