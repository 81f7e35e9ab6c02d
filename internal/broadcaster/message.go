package broadcaster

import (
	"errors"
	"time"
)

type MessageType string

const (
	MessageTypeNewMessage              MessageType = "new_message"
	MessageTypeMessageSent             MessageType = "message_sent"
	MessageTypeError                   MessageType = "error"
	MessageTypeTyping                  MessageType = "typing"
	MessageTypeMessagesRead            MessageType = "messages_read"
	MessageTypeSubscriptionConfirmed   MessageType = "subscription_confirmed"
	MessageTypeUnsubscriptionConfirmed MessageType = "unsubscription_confirmed"
	MessageTypePong                    MessageType = "pong"

	MessageTypeInfo             MessageType = "info"
	MessageTypeSuccess          MessageType = "success"
	MessageTypeWarning          MessageType = "warning"
	MessageTypeSecurity         MessageType = "security"
	MessageTypeNewRide          MessageType = "new_ride"
	MessageTypeRideReminder     MessageType = "ride_reminder"
	MessageTypeRideCancelled    MessageType = "ride_cancelled"
	MessageTypeBookingConfirmed MessageType = "booking_confirmed"
	MessageTypeNewPassenger     MessageType = "new_passenger"
)

var businessMessageTypes = map[MessageType]struct{}{
	MessageTypeInfo:             {},
	MessageTypeSuccess:          {},
	MessageTypeWarning:          {},
	MessageTypeError:            {},
	MessageTypeSecurity:         {},
	MessageTypeNewRide:          {},
	MessageTypeRideReminder:     {},
	MessageTypeRideCancelled:    {},
	MessageTypeBookingConfirmed: {},
	MessageTypeNewPassenger:     {},
}

// IsBusiness reports whether t may be produced by an external notification collaborator.
func (t MessageType) IsBusiness() bool {
	_, ok := businessMessageTypes[t]

	return ok
}

// Message is one outbound frame. Data is passed through to the client untouched.
type Message struct {
	Type      MessageType `json:"type"`
	Title     string      `json:"title,omitempty"`
	Body      string      `json:"body,omitempty"`
	Data      any         `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewMessage(messageType MessageType, data any) Message {
	return Message{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now(),
	}
}

type targetKind int

const (
	targetKindNone targetKind = iota
	targetKindUser
	targetKindTopic
	targetKindEveryone
)

// Target selects recipients. Only ToUser, ToTopic and ToEveryone build a usable value.
type Target struct {
	kind   targetKind
	userId int64
	topic  string
}

func ToUser(userId int64) Target {
	return Target{kind: targetKindUser, userId: userId}
}

func ToTopic(topic string) Target {
	return Target{kind: targetKindTopic, topic: topic}
}

func ToEveryone() Target {
	return Target{kind: targetKindEveryone}
}

func (t Target) UserId() (int64, bool) {
	return t.userId, t.kind == targetKindUser
}

func (t Target) Topic() (string, bool) {
	return t.topic, t.kind == targetKindTopic
}

func (t Target) IsEveryone() bool {
	return t.kind == targetKindEveryone
}

var ErrInvalidTarget = errors.New("notification has no delivery target")

type Notification struct {
	Target  Target
	Message Message
}
