package handler

import "github.com/goevery/ridepush/internal/broadcaster"

type HeartbeatHandlerInterface interface {
	Handle() broadcaster.Message
}

type HeartbeatHandler struct{}

func NewHeartbeatHandler() *HeartbeatHandler {
	return &HeartbeatHandler{}
}

func (h *HeartbeatHandler) Handle() broadcaster.Message {
	return broadcaster.NewMessage(broadcaster.MessageTypePong, nil)
}
