package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/goevery/ridepush/internal/broadcaster"
	"github.com/goevery/ridepush/internal/ierr"
	"github.com/goevery/ridepush/internal/persistence"
)

type UserDeliverer interface {
	DeliverToUser(userId int64, message broadcaster.Message) broadcaster.DeliveryResult
}

// chatParticipants returns the sending user and the other participant of chatId.
func chatParticipants(
	ctx context.Context,
	directory persistence.ChatDirectory,
	chatId int64,
) (int64, int64, error) {
	connection, ok := broadcaster.ConnectionFromContext(ctx)
	if !ok {
		return 0, 0, errors.New("connection not found in context")
	}

	userId, ok := connection.UserId()
	if !ok {
		return 0, 0, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("chat requires an authenticated connection"))
	}

	chat, err := directory.GetChat(ctx, chatId, userId)
	if errors.Is(err, persistence.ErrChatNotFound) {
		return 0, 0, ierr.New(ierr.ErrorCodeNotFound, err)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("get chat %d: %w", chatId, err)
	}

	recipientId, ok := chat.OtherParticipant(userId)
	if !ok {
		return 0, 0, ierr.New(ierr.ErrorCodePermissionDenied, errors.New("user is not a participant of this chat"))
	}

	return userId, recipientId, nil
}
