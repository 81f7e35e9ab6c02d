package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goevery/ridepush/internal/auth"
	"github.com/goevery/ridepush/internal/broadcaster"
	"github.com/goevery/ridepush/internal/ierr"
	"github.com/goevery/ridepush/internal/persistence"
	"go.uber.org/zap"
)

// PushRequest is a notification record produced by a business service.
// Exactly one of UserId, Topic and Broadcast must be set.
type PushRequest struct {
	UserId    *int64 `json:"userId,omitempty"`
	Topic     string `json:"topic,omitempty"`
	Broadcast bool   `json:"broadcast,omitempty"`

	Type  broadcaster.MessageType `json:"type"`
	Title string                  `json:"title"`
	Body  string                  `json:"body"`
	Data  any                     `json:"data,omitempty"`
}

type PushResponse struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

type NotificationDeliverer interface {
	Deliver(notification broadcaster.Notification) (broadcaster.DeliveryResult, error)
}

type PushHandlerInterface interface {
	Handle(ctx context.Context, req PushRequest) (PushResponse, error)
}

type PushHandler struct {
	logger          *zap.Logger
	topicValidator  *TopicValidator
	deliverer       NotificationDeliverer
	notificationLog persistence.NotificationLog
}

func NewPushHandler(
	logger *zap.Logger,
	topicValidator *TopicValidator,
	deliverer NotificationDeliverer,
	notificationLog persistence.NotificationLog,
) *PushHandler {
	return &PushHandler{
		logger,
		topicValidator,
		deliverer,
		notificationLog,
	}
}

func (h *PushHandler) Handle(ctx context.Context, req PushRequest) (PushResponse, error) {
	authentication, ok := auth.AuthenticationFromContext(ctx)
	if !ok {
		return PushResponse{}, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("caller not authenticated"))
	}

	if !authentication.IsPublisher() {
		return PushResponse{},
			ierr.New(ierr.ErrorCodePermissionDenied, errors.New("caller not authorized to push notifications"))
	}

	target, err := h.target(req)
	if err != nil {
		return PushResponse{}, err
	}

	if !req.Type.IsBusiness() {
		return PushResponse{},
			ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("unsupported notification type: "+string(req.Type)))
	}

	notification := broadcaster.Notification{
		Target: target,
		Message: broadcaster.Message{
			Type:      req.Type,
			Title:     req.Title,
			Body:      req.Body,
			Data:      req.Data,
			Timestamp: time.Now(),
		},
	}

	result, err := h.deliverer.Deliver(notification)
	if err != nil {
		return PushResponse{}, ierr.New(ierr.ErrorCodeInvalidArgument, err)
	}

	if req.UserId != nil {
		h.log(ctx, *req.UserId, req, result)
	}

	return PushResponse{
		Attempted: result.Attempted,
		Delivered: result.Delivered,
		Failed:    len(result.Failed),
	}, nil
}

func (h *PushHandler) target(req PushRequest) (broadcaster.Target, error) {
	modes := 0
	if req.UserId != nil {
		modes++
	}
	if req.Topic != "" {
		modes++
	}
	if req.Broadcast {
		modes++
	}

	if modes != 1 {
		return broadcaster.Target{},
			ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("exactly one of userId, topic or broadcast must be set"))
	}

	switch {
	case req.UserId != nil:
		if *req.UserId <= 0 {
			return broadcaster.Target{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid user id"))
		}

		return broadcaster.ToUser(*req.UserId), nil
	case req.Topic != "":
		if err := h.topicValidator.Validate(req.Topic); err != nil {
			return broadcaster.Target{}, err
		}

		return broadcaster.ToTopic(req.Topic), nil
	default:
		return broadcaster.ToEveryone(), nil
	}
}

// log records a user-targeted notification. A user without connections is
// logged as a success because there is nothing to retry.
func (h *PushHandler) log(ctx context.Context, userId int64, req PushRequest, result broadcaster.DeliveryResult) {
	entry := persistence.NotificationLogEntry{
		UserId:  userId,
		Type:    string(req.Type),
		Title:   req.Title,
		Body:    req.Body,
		Success: !result.HasFailures(),
	}

	if result.HasFailures() {
		entry.Error = fmt.Sprintf("delivery failed on %d of %d connections", len(result.Failed), result.Attempted)
	}

	if err := h.notificationLog.LogNotification(ctx, entry); err != nil {
		h.logger.Error("failed to log notification",
			zap.Int64("userId", userId),
			zap.String("type", string(req.Type)),
			zap.Error(err))
	}
}
