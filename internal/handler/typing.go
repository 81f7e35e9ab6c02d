package handler

import (
	"context"

	"github.com/goevery/ridepush/internal/broadcaster"
	"github.com/goevery/ridepush/internal/persistence"
)

type TypingHandlerInterface interface {
	Handle(ctx context.Context, frame TypingFrame) error
}

type TypingEvent struct {
	ChatId   int64 `json:"chatId"`
	UserId   int64 `json:"userId"`
	IsTyping bool  `json:"isTyping"`
}

type TypingHandler struct {
	chatDirectory persistence.ChatDirectory
	deliverer     UserDeliverer
}

func NewTypingHandler(
	chatDirectory persistence.ChatDirectory,
	deliverer UserDeliverer,
) *TypingHandler {
	return &TypingHandler{
		chatDirectory,
		deliverer,
	}
}

// Handle forwards the signal without persisting anything. It is dropped when
// the other participant is offline.
func (h *TypingHandler) Handle(ctx context.Context, frame TypingFrame) error {
	userId, recipientId, err := chatParticipants(ctx, h.chatDirectory, frame.ChatId)
	if err != nil {
		return err
	}

	h.deliverer.DeliverToUser(recipientId, broadcaster.NewMessage(broadcaster.MessageTypeTyping, TypingEvent{
		ChatId:   frame.ChatId,
		UserId:   userId,
		IsTyping: frame.IsTyping,
	}))

	return nil
}
