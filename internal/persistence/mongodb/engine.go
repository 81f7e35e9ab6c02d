package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/goevery/ridepush/internal/persistence"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const notificationLogTTL = 30 * 24 * 60 * 60

type Chat struct {
	Id      int64 `bson:"_id"`
	User1Id int64 `bson:"user1Id"`
	User2Id int64 `bson:"user2Id"`
}

type Message struct {
	Id         bson.ObjectID `bson:"_id"`
	ChatId     int64         `bson:"chatId"`
	SenderId   int64         `bson:"senderId"`
	Text       string        `bson:"text"`
	CreateTime time.Time     `bson:"createTime"`
	Read       bool          `bson:"read"`
}

type PersistenceEngine struct {
	chats         *mongo.Collection
	messages      *mongo.Collection
	notifications *mongo.Collection
}

func NewPersistenceEngine(client *mongo.Client, databaseName string) *PersistenceEngine {
	database := client.Database(databaseName)

	return &PersistenceEngine{
		chats:         database.Collection("chats"),
		messages:      database.Collection("chat_messages"),
		notifications: database.Collection("notification_logs"),
	}
}

func (e *PersistenceEngine) Setup(ctx context.Context) error {
	chatIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "chatId", Value: 1},
			{Key: "read", Value: 1},
			{Key: "senderId", Value: 1},
		},
	}

	_, err := e.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{chatIndexModel})
	if err != nil {
		return err
	}

	ttlIndexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "createTime", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(notificationLogTTL),
	}

	userIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "userId", Value: 1},
			{Key: "_id", Value: -1},
		},
	}

	_, err = e.notifications.Indexes().CreateMany(ctx, []mongo.IndexModel{ttlIndexModel, userIndexModel})

	return err
}

func (e *PersistenceEngine) GetChat(ctx context.Context, chatId int64, userId int64) (persistence.Chat, error) {
	filter := bson.M{
		"_id": chatId,
		"$or": bson.A{
			bson.M{"user1Id": userId},
			bson.M{"user2Id": userId},
		},
	}

	var chat Chat
	err := e.chats.FindOne(ctx, filter).Decode(&chat)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return persistence.Chat{}, persistence.ErrChatNotFound
	}
	if err != nil {
		return persistence.Chat{}, err
	}

	return persistence.Chat{
		Id:      chat.Id,
		User1Id: chat.User1Id,
		User2Id: chat.User2Id,
	}, nil
}

func (e *PersistenceEngine) SendMessage(
	ctx context.Context,
	chatId int64,
	fromUserId int64,
	text string,
) (persistence.ChatMessage, error) {
	if _, err := e.GetChat(ctx, chatId, fromUserId); err != nil {
		return persistence.ChatMessage{}, err
	}

	message := Message{
		Id:         bson.NewObjectID(),
		ChatId:     chatId,
		SenderId:   fromUserId,
		Text:       text,
		CreateTime: time.Now(),
	}

	_, err := e.messages.InsertOne(ctx, message)
	if err != nil {
		return persistence.ChatMessage{}, err
	}

	return persistence.ChatMessage{
		Id:         message.Id.Hex(),
		ChatId:     message.ChatId,
		SenderId:   message.SenderId,
		Text:       message.Text,
		CreateTime: message.CreateTime,
	}, nil
}

// MarkRead marks every unread message sent to userId in the chat as read.
func (e *PersistenceEngine) MarkRead(ctx context.Context, chatId int64, userId int64) (int64, error) {
	filter := bson.M{
		"chatId":   chatId,
		"senderId": bson.M{"$ne": userId},
		"read":     false,
	}
	update := bson.M{"$set": bson.M{"read": true}}

	result, err := e.messages.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}

	return result.ModifiedCount, nil
}

func (e *PersistenceEngine) LogNotification(ctx context.Context, entry persistence.NotificationLogEntry) error {
	_, err := e.notifications.InsertOne(ctx, bson.D{
		{Key: "createTime", Value: time.Now()},
		{Key: "userId", Value: entry.UserId},
		{Key: "type", Value: entry.Type},
		{Key: "title", Value: entry.Title},
		{Key: "body", Value: entry.Body},
		{Key: "success", Value: entry.Success},
		{Key: "error", Value: entry.Error},
	})

	return err
}
