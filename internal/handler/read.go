package handler

import (
	"context"
	"fmt"

	"github.com/goevery/ridepush/internal/broadcaster"
	"github.com/goevery/ridepush/internal/persistence"
)

type ReadHandlerInterface interface {
	Handle(ctx context.Context, frame ReadFrame) error
}

type MessagesReadEvent struct {
	ChatId   int64 `json:"chatId"`
	ReaderId int64 `json:"readerId"`
	Count    int64 `json:"count"`
}

type ReadHandler struct {
	chatDirectory  persistence.ChatDirectory
	chatRepository persistence.ChatRepository
	deliverer      UserDeliverer
}

func NewReadHandler(
	chatDirectory persistence.ChatDirectory,
	chatRepository persistence.ChatRepository,
	deliverer UserDeliverer,
) *ReadHandler {
	return &ReadHandler{
		chatDirectory,
		chatRepository,
		deliverer,
	}
}

func (h *ReadHandler) Handle(ctx context.Context, frame ReadFrame) error {
	userId, senderId, err := chatParticipants(ctx, h.chatDirectory, frame.ChatId)
	if err != nil {
		return err
	}

	count, err := h.chatRepository.MarkRead(ctx, frame.ChatId, userId)
	if err != nil {
		return fmt.Errorf("mark chat %d read: %w", frame.ChatId, err)
	}

	if count == 0 {
		return nil
	}

	h.deliverer.DeliverToUser(senderId, broadcaster.NewMessage(broadcaster.MessageTypeMessagesRead, MessagesReadEvent{
		ChatId:   frame.ChatId,
		ReaderId: userId,
		Count:    count,
	}))

	return nil
}
