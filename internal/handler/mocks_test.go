package handler

import (
	"context"
	"time"

	"github.com/goevery/ridepush/internal/broadcaster"
	"github.com/goevery/ridepush/internal/persistence"
	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) SendMessage(ctx context.Context, chatId int64, fromUserId int64, text string) (persistence.ChatMessage, error) {
	args := m.Called(ctx, chatId, fromUserId, text)
	return args.Get(0).(persistence.ChatMessage), args.Error(1)
}

func (m *MockChatRepository) MarkRead(ctx context.Context, chatId int64, userId int64) (int64, error) {
	args := m.Called(ctx, chatId, userId)
	return args.Get(0).(int64), args.Error(1)
}

type MockChatDirectory struct {
	mock.Mock
}

func (m *MockChatDirectory) GetChat(ctx context.Context, chatId int64, userId int64) (persistence.Chat, error) {
	args := m.Called(ctx, chatId, userId)
	return args.Get(0).(persistence.Chat), args.Error(1)
}

type MockNotificationLog struct {
	mock.Mock
}

func (m *MockNotificationLog) LogNotification(ctx context.Context, entry persistence.NotificationLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type MockUserDeliverer struct {
	mock.Mock
}

func (m *MockUserDeliverer) DeliverToUser(userId int64, message broadcaster.Message) broadcaster.DeliveryResult {
	args := m.Called(userId, message)
	return args.Get(0).(broadcaster.DeliveryResult)
}

type MockNotificationDeliverer struct {
	mock.Mock
}

func (m *MockNotificationDeliverer) Deliver(notification broadcaster.Notification) (broadcaster.DeliveryResult, error) {
	args := m.Called(notification)
	return args.Get(0).(broadcaster.DeliveryResult), args.Error(1)
}

type nopSocket struct{}

func (nopSocket) WriteJSON(any) error              { return nil }
func (nopSocket) SetWriteDeadline(time.Time) error { return nil }
func (nopSocket) Close() error                     { return nil }

func connectionContext(opts ...broadcaster.ConnectionOption) (context.Context, *broadcaster.Connection) {
	connection := broadcaster.NewConnection(nopSocket{}, opts...)

	return broadcaster.WithConnection(context.Background(), connection), connection
}
