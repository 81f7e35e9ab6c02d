package handler

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/goevery/ridepush/internal/ierr"
)

type FrameKind string

const (
	FrameKindSubscribe   FrameKind = "subscribe"
	FrameKindUnsubscribe FrameKind = "unsubscribe"
	FrameKindPing        FrameKind = "ping"
	FrameKindMessage     FrameKind = "message"
	FrameKindTyping      FrameKind = "typing"
	FrameKindRead        FrameKind = "read"
)

// Frame is one parsed inbound frame. The concrete type is one of the *Frame
// structs below and is decided once, at parse time.
type Frame interface {
	Kind() FrameKind
}

type SubscribeFrame struct {
	Topic string
}

type UnsubscribeFrame struct {
	Topic string
}

type PingFrame struct{}

type ChatMessageFrame struct {
	ChatId int64
	Text   string
}

type TypingFrame struct {
	ChatId   int64
	IsTyping bool
}

type ReadFrame struct {
	ChatId int64
}

func (SubscribeFrame) Kind() FrameKind   { return FrameKindSubscribe }
func (UnsubscribeFrame) Kind() FrameKind { return FrameKindUnsubscribe }
func (PingFrame) Kind() FrameKind        { return FrameKindPing }
func (ChatMessageFrame) Kind() FrameKind { return FrameKindMessage }
func (TypingFrame) Kind() FrameKind      { return FrameKindTyping }
func (ReadFrame) Kind() FrameKind        { return FrameKindRead }

// Vocabulary is the set of frame kinds an endpoint accepts.
type Vocabulary map[FrameKind]struct{}

var (
	NotificationVocabulary = Vocabulary{
		FrameKindSubscribe:   {},
		FrameKindUnsubscribe: {},
		FrameKindPing:        {},
	}
	ChatVocabulary = Vocabulary{
		FrameKindMessage: {},
		FrameKindTyping:  {},
		FrameKindRead:    {},
		FrameKindPing:    {},
	}
)

type rawFrame struct {
	Type     FrameKind `json:"type"`
	Kind     FrameKind `json:"kind"`
	Topic    string    `json:"topic"`
	ChatId   int64     `json:"chatId"`
	Text     string    `json:"text"`
	IsTyping *bool     `json:"isTyping"`
}

func invalidFrame(message string) error {
	return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New(message))
}

func ParseFrame(data []byte, vocabulary Vocabulary) (Frame, error) {
	var raw rawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, invalidFrame("malformed frame: " + err.Error())
	}

	kind := raw.Type
	if kind == "" {
		kind = raw.Kind
	}

	if kind == "" {
		return nil, invalidFrame("frame type is required")
	}

	if _, ok := vocabulary[kind]; !ok {
		return nil, invalidFrame("unsupported frame type: " + string(kind))
	}

	switch kind {
	case FrameKindSubscribe:
		return SubscribeFrame{Topic: raw.Topic}, nil
	case FrameKindUnsubscribe:
		return UnsubscribeFrame{Topic: raw.Topic}, nil
	case FrameKindPing:
		return PingFrame{}, nil
	case FrameKindMessage:
		if raw.ChatId <= 0 {
			return nil, invalidFrame("chatId is required")
		}

		text := strings.TrimSpace(raw.Text)
		if text == "" {
			return nil, invalidFrame("message text cannot be empty")
		}

		return ChatMessageFrame{ChatId: raw.ChatId, Text: text}, nil
	case FrameKindTyping:
		if raw.ChatId <= 0 {
			return nil, invalidFrame("chatId is required")
		}

		isTyping := true
		if raw.IsTyping != nil {
			isTyping = *raw.IsTyping
		}

		return TypingFrame{ChatId: raw.ChatId, IsTyping: isTyping}, nil
	case FrameKindRead:
		if raw.ChatId <= 0 {
			return nil, invalidFrame("chatId is required")
		}

		return ReadFrame{ChatId: raw.ChatId}, nil
	default:
		return nil, invalidFrame("unsupported frame type: " + string(kind))
	}
}
