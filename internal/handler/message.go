package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/goevery/ridepush/internal/broadcaster"
	"github.com/goevery/ridepush/internal/ierr"
	"github.com/goevery/ridepush/internal/persistence"
)

type ChatMessageHandlerInterface interface {
	Handle(ctx context.Context, frame ChatMessageFrame) (broadcaster.Message, error)
}

type ChatMessageHandler struct {
	chatDirectory  persistence.ChatDirectory
	chatRepository persistence.ChatRepository
	deliverer      UserDeliverer
}

func NewChatMessageHandler(
	chatDirectory persistence.ChatDirectory,
	chatRepository persistence.ChatRepository,
	deliverer UserDeliverer,
) *ChatMessageHandler {
	return &ChatMessageHandler{
		chatDirectory,
		chatRepository,
		deliverer,
	}
}

// Handle persists the message and only then pushes it to the recipient, so a
// recipient never sees a message that failed to persist.
func (h *ChatMessageHandler) Handle(ctx context.Context, frame ChatMessageFrame) (broadcaster.Message, error) {
	userId, recipientId, err := chatParticipants(ctx, h.chatDirectory, frame.ChatId)
	if err != nil {
		return broadcaster.Message{}, err
	}

	message, err := h.chatRepository.SendMessage(ctx, frame.ChatId, userId, frame.Text)
	if errors.Is(err, persistence.ErrChatNotFound) {
		return broadcaster.Message{}, ierr.New(ierr.ErrorCodeNotFound, err)
	}
	if err != nil {
		return broadcaster.Message{}, fmt.Errorf("send message to chat %d: %w", frame.ChatId, err)
	}

	h.deliverer.DeliverToUser(recipientId, broadcaster.NewMessage(broadcaster.MessageTypeNewMessage, message))

	return broadcaster.NewMessage(broadcaster.MessageTypeMessageSent, message), nil
}
