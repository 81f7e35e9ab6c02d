package handler

import (
	"context"
	"errors"

	"github.com/goevery/ridepush/internal/broadcaster"
)

type UnsubscribeHandlerInterface interface {
	Handle(ctx context.Context, frame UnsubscribeFrame) (*broadcaster.Message, error)
}

type UnsubscribeHandler struct {
	topicValidator *TopicValidator
	registry       broadcaster.Registry
}

func NewUnsubscribeHandler(
	topicValidator *TopicValidator,
	registry broadcaster.Registry,
) *UnsubscribeHandler {
	return &UnsubscribeHandler{
		topicValidator,
		registry,
	}
}

func (h *UnsubscribeHandler) Handle(ctx context.Context, frame UnsubscribeFrame) (*broadcaster.Message, error) {
	err := h.topicValidator.Validate(frame.Topic)
	if err != nil {
		return nil, err
	}

	connection, ok := broadcaster.ConnectionFromContext(ctx)
	if !ok {
		return nil, errors.New("connection not found in context")
	}

	err = h.registry.Unsubscribe(connection.Id(), frame.Topic)
	if errors.Is(err, broadcaster.ErrUnknownConnection) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	message := broadcaster.NewMessage(
		broadcaster.MessageTypeUnsubscriptionConfirmed,
		SubscriptionResponse{Topic: frame.Topic},
	)

	return &message, nil
}
