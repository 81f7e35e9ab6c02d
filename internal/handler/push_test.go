package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/goevery/ridepush/internal/auth"
	"github.com/goevery/ridepush/internal/broadcaster"
	"github.com/goevery/ridepush/internal/ierr"
	"github.com/goevery/ridepush/internal/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func publisherContext() context.Context {
	return auth.WithAuthentication(context.Background(), &auth.Authentication{
		Scope:   []string{"publish"},
		IsAdmin: true,
	})
}

func targetIs(target broadcaster.Target) any {
	return mock.MatchedBy(func(notification broadcaster.Notification) bool {
		return notification.Target == target
	})
}

func TestPushHandler(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	userId := int64(5)
	zeroUserId := int64(0)
	negativeUserId := int64(-3)

	t.Run("user target is delivered and logged", func(t *testing.T) {
		deliverer := &MockNotificationDeliverer{}
		notificationLog := &MockNotificationLog{}
		handler := NewPushHandler(logger, NewTopicValidator(), deliverer, notificationLog)
		ctx := publisherContext()

		deliverer.On("Deliver", targetIs(broadcaster.ToUser(5))).
			Return(broadcaster.DeliveryResult{Attempted: 2, Delivered: 2}, nil)
		notificationLog.On("LogNotification", ctx, persistence.NotificationLogEntry{
			UserId:  5,
			Type:    "booking_confirmed",
			Title:   "Booking confirmed",
			Body:    "Your seat is reserved",
			Success: true,
		}).Return(nil)

		response, err := handler.Handle(ctx, PushRequest{
			UserId: &userId,
			Type:   broadcaster.MessageTypeBookingConfirmed,
			Title:  "Booking confirmed",
			Body:   "Your seat is reserved",
		})

		require.NoError(t, err)
		assert.Equal(t, PushResponse{Attempted: 2, Delivered: 2}, response)
		deliverer.AssertExpectations(t)
		notificationLog.AssertExpectations(t)
	})

	t.Run("partial failure is logged as unsuccessful", func(t *testing.T) {
		deliverer := &MockNotificationDeliverer{}
		notificationLog := &MockNotificationLog{}
		handler := NewPushHandler(logger, NewTopicValidator(), deliverer, notificationLog)
		ctx := publisherContext()

		deliverer.On("Deliver", targetIs(broadcaster.ToUser(5))).
			Return(broadcaster.DeliveryResult{Attempted: 2, Delivered: 1, Failed: []string{"c2"}}, nil)
		notificationLog.On("LogNotification", ctx, mock.MatchedBy(func(entry persistence.NotificationLogEntry) bool {
			return !entry.Success && entry.Error != ""
		})).Return(errors.New("mongo unavailable"))

		response, err := handler.Handle(ctx, PushRequest{UserId: &userId, Type: broadcaster.MessageTypeRideCancelled})

		require.NoError(t, err, "a log failure must not fail the push")
		assert.Equal(t, 1, response.Failed)
		notificationLog.AssertExpectations(t)
	})

	t.Run("topic and broadcast targets are not logged", func(t *testing.T) {
		deliverer := &MockNotificationDeliverer{}
		notificationLog := &MockNotificationLog{}
		handler := NewPushHandler(logger, NewTopicValidator(), deliverer, notificationLog)

		deliverer.On("Deliver", targetIs(broadcaster.ToTopic("ride_42"))).
			Return(broadcaster.DeliveryResult{Attempted: 1, Delivered: 1}, nil)
		deliverer.On("Deliver", targetIs(broadcaster.ToEveryone())).
			Return(broadcaster.DeliveryResult{Attempted: 3, Delivered: 3}, nil)

		_, err := handler.Handle(publisherContext(), PushRequest{Topic: "ride_42", Type: broadcaster.MessageTypeRideReminder})
		require.NoError(t, err)

		_, err = handler.Handle(publisherContext(), PushRequest{Broadcast: true, Type: broadcaster.MessageTypeWarning})
		require.NoError(t, err)

		deliverer.AssertExpectations(t)
		notificationLog.AssertNotCalled(t, "LogNotification", mock.Anything, mock.Anything)
	})

	t.Run("rejected requests", func(t *testing.T) {
		tests := []struct {
			name string
			ctx  context.Context
			req  PushRequest
			code ierr.ErrorCode
		}{
			{
				name: "unauthenticated",
				ctx:  context.Background(),
				req:  PushRequest{UserId: &userId, Type: broadcaster.MessageTypeInfo},
				code: ierr.ErrorCodeUnauthenticated,
			},
			{
				name: "socket user cannot publish",
				ctx:  auth.WithAuthentication(context.Background(), &auth.Authentication{UserId: 5}),
				req:  PushRequest{UserId: &userId, Type: broadcaster.MessageTypeInfo},
				code: ierr.ErrorCodePermissionDenied,
			},
			{
				name: "no target",
				ctx:  publisherContext(),
				req:  PushRequest{Type: broadcaster.MessageTypeInfo},
				code: ierr.ErrorCodeInvalidArgument,
			},
			{
				name: "two targets",
				ctx:  publisherContext(),
				req:  PushRequest{UserId: &userId, Broadcast: true, Type: broadcaster.MessageTypeInfo},
				code: ierr.ErrorCodeInvalidArgument,
			},
			{
				name: "invalid topic",
				ctx:  publisherContext(),
				req:  PushRequest{Topic: "ride 42", Type: broadcaster.MessageTypeInfo},
				code: ierr.ErrorCodeInvalidArgument,
			},
			{
				name: "zero user id",
				ctx:  publisherContext(),
				req:  PushRequest{UserId: &zeroUserId, Type: broadcaster.MessageTypeInfo},
				code: ierr.ErrorCodeInvalidArgument,
			},
			{
				name: "negative user id",
				ctx:  publisherContext(),
				req:  PushRequest{UserId: &negativeUserId, Type: broadcaster.MessageTypeInfo},
				code: ierr.ErrorCodeInvalidArgument,
			},
			{
				name: "protocol type",
				ctx:  publisherContext(),
				req:  PushRequest{UserId: &userId, Type: broadcaster.MessageTypePong},
				code: ierr.ErrorCodeInvalidArgument,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				deliverer := &MockNotificationDeliverer{}
				notificationLog := &MockNotificationLog{}
				handler := NewPushHandler(logger, NewTopicValidator(), deliverer, notificationLog)

				_, err := handler.Handle(tt.ctx, tt.req)

				require.Error(t, err)
				assert.Equal(t, tt.code, ierr.CodeOf(err))
				deliverer.AssertNotCalled(t, "Deliver", mock.Anything)
				notificationLog.AssertNotCalled(t, "LogNotification", mock.Anything, mock.Anything)
			})
		}
	})
}
