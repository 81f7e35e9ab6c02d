package persistence

import (
	"context"
	"errors"
	"time"
)

var ErrChatNotFound = errors.New("chat not found")

type Chat struct {
	Id      int64
	User1Id int64
	User2Id int64
}

// OtherParticipant returns the participant that is not userId.
func (c Chat) OtherParticipant(userId int64) (int64, bool) {
	switch userId {
	case c.User1Id:
		return c.User2Id, true
	case c.User2Id:
		return c.User1Id, true
	default:
		return 0, false
	}
}

type ChatMessage struct {
	Id         string    `json:"id"`
	ChatId     int64     `json:"chatId"`
	SenderId   int64     `json:"senderId"`
	Text       string    `json:"text"`
	CreateTime time.Time `json:"createTime"`
	Read       bool      `json:"read"`
}

// ChatRepository persists chat state. Typing signals never reach it.
type ChatRepository interface {
	SendMessage(ctx context.Context, chatId int64, fromUserId int64, text string) (ChatMessage, error)
	MarkRead(ctx context.Context, chatId int64, userId int64) (int64, error)
}

type ChatDirectory interface {
	// GetChat returns ErrChatNotFound when the chat does not exist or userId is not a participant.
	GetChat(ctx context.Context, chatId int64, userId int64) (Chat, error)
}

type NotificationLogEntry struct {
	UserId  int64
	Type    string
	Title   string
	Body    string
	Success bool
	Error   string
}

type NotificationLog interface {
	LogNotification(ctx context.Context, entry NotificationLogEntry) error
}

type Engine interface {
	ChatRepository
	ChatDirectory
	NotificationLog

	Setup(ctx context.Context) error
}
