package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// JSONHandler decodes a delivery into T and hands it to HandleFunc.
// Wrong content types, undecodable bodies and messages rejected by Validate
// are reported as ErrPoison.
type JSONHandler[T any] struct {
	HandleFunc func(ctx context.Context, msg T) error
	Validate   func(msg T) error // optional
}

func (h JSONHandler[T]) Handle(ctx context.Context, d amqp.Delivery) error {
	if d.ContentType != "" && d.ContentType != "application/json" {
		return fmt.Errorf("%w: content type %q", ErrPoison, d.ContentType)
	}
	var v T
	if err := json.Unmarshal(d.Body, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrPoison, err)
	}
	if h.Validate != nil {
		if err := h.Validate(v); err != nil {
			return fmt.Errorf("%w: %v", ErrPoison, err)
		}
	}
	return h.HandleFunc(ctx, v)
}
