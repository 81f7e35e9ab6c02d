package handler

import (
	"context"
	"errors"

	"github.com/goevery/ridepush/internal/broadcaster"
)

type SubscribeHandlerInterface interface {
	Handle(ctx context.Context, frame SubscribeFrame) (*broadcaster.Message, error)
}

type SubscriptionResponse struct {
	Topic string `json:"topic"`
}

type SubscribeHandler struct {
	topicValidator *TopicValidator
	registry       broadcaster.Registry
}

func NewSubscribeHandler(
	topicValidator *TopicValidator,
	registry broadcaster.Registry,
) *SubscribeHandler {
	return &SubscribeHandler{
		topicValidator,
		registry,
	}
}

// Handle returns no reply when the connection was evicted concurrently.
func (h *SubscribeHandler) Handle(ctx context.Context, frame SubscribeFrame) (*broadcaster.Message, error) {
	err := h.topicValidator.Validate(frame.Topic)
	if err != nil {
		return nil, err
	}

	connection, ok := broadcaster.ConnectionFromContext(ctx)
	if !ok {
		return nil, errors.New("connection not found in context")
	}

	err = h.registry.Subscribe(connection.Id(), frame.Topic)
	if errors.Is(err, broadcaster.ErrUnknownConnection) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	message := broadcaster.NewMessage(
		broadcaster.MessageTypeSubscriptionConfirmed,
		SubscriptionResponse{Topic: frame.Topic},
	)

	return &message, nil
}
