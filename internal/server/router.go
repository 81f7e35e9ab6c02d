package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/goevery/ridepush/internal/broadcaster"
	"github.com/goevery/ridepush/internal/handler"
	"github.com/goevery/ridepush/internal/ierr"
	"github.com/goevery/ridepush/internal/metrics"
	"go.uber.org/zap"
)

type Router struct {
	logger  *zap.Logger
	metrics *metrics.Metrics

	heartbeatHandler   handler.HeartbeatHandlerInterface
	subscribeHandler   handler.SubscribeHandlerInterface
	unsubscribeHandler handler.UnsubscribeHandlerInterface
	chatMessageHandler handler.ChatMessageHandlerInterface
	typingHandler      handler.TypingHandlerInterface
	readHandler        handler.ReadHandlerInterface
}

func NewRouter(
	logger *zap.Logger,
	metrics *metrics.Metrics,
	heartbeatHandler handler.HeartbeatHandlerInterface,
	subscribeHandler handler.SubscribeHandlerInterface,
	unsubscribeHandler handler.UnsubscribeHandlerInterface,
	chatMessageHandler handler.ChatMessageHandlerInterface,
	typingHandler handler.TypingHandlerInterface,
	readHandler handler.ReadHandlerInterface,
) *Router {
	return &Router{
		logger,
		metrics,
		heartbeatHandler,
		subscribeHandler,
		unsubscribeHandler,
		chatMessageHandler,
		typingHandler,
		readHandler,
	}
}

// Route handles one inbound frame for connection. Protocol and collaborator
// errors are answered with an error frame; the returned error is only set when
// the reply could not be written, which ends the connection.
func (r *Router) Route(
	ctx context.Context,
	connection *broadcaster.Connection,
	vocabulary handler.Vocabulary,
	data []byte,
) error {
	if connection.State() != broadcaster.StateServing {
		return nil
	}

	connection.Touch()

	frame, err := handler.ParseFrame(data, vocabulary)
	if err != nil {
		r.metrics.FrameReceived("invalid")

		return connection.Send(errorMessage(r.mapError(err)))
	}

	r.metrics.FrameReceived(string(frame.Kind()))

	r.logger.Debug("frame received",
		zap.String("connectionId", connection.Id()),
		zap.String("kind", string(frame.Kind())))

	reply, err := r.Handle(ctx, frame)
	if err != nil {
		return connection.Send(errorMessage(r.mapError(err)))
	}

	if reply == nil {
		return nil
	}

	return connection.Send(*reply)
}

func (r *Router) Handle(ctx context.Context, frame handler.Frame) (*broadcaster.Message, error) {
	switch f := frame.(type) {
	case handler.PingFrame:
		reply := r.heartbeatHandler.Handle()

		return &reply, nil
	case handler.SubscribeFrame:
		return r.subscribeHandler.Handle(ctx, f)
	case handler.UnsubscribeFrame:
		return r.unsubscribeHandler.Handle(ctx, f)
	case handler.ChatMessageFrame:
		reply, err := r.chatMessageHandler.Handle(ctx, f)
		if err != nil {
			return nil, err
		}

		return &reply, nil
	case handler.TypingFrame:
		return nil, r.typingHandler.Handle(ctx, f)
	case handler.ReadFrame:
		return nil, r.readHandler.Handle(ctx, f)
	default:
		return nil, ierr.New(ierr.ErrorCodeInvalidArgument, fmt.Errorf("unsupported frame type: %s", frame.Kind()))
	}
}

func (r *Router) mapError(err error) ierr.Error {
	var handlerErr ierr.Error
	if errors.As(err, &handlerErr) {
		return handlerErr
	}

	r.logger.Error("error in frame handler", zap.Error(err))

	return ierr.New(ierr.ErrorCodeInternal, errors.New("internal error"))
}

func errorMessage(err ierr.Error) broadcaster.Message {
	message := broadcaster.NewMessage(broadcaster.MessageTypeError, err)
	message.Body = err.Message

	return message
}
