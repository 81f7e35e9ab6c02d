package server

import (
	"context"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/goevery/ridepush/internal/auth"
	"github.com/goevery/ridepush/internal/broadcaster"
	"github.com/goevery/ridepush/internal/handler"
	"github.com/goevery/ridepush/internal/persistence"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecret = "test-secret"
	testAPIKey = "test-api-key"
)

// memoryChats is a persistence engine kept in memory for end to end tests.
type memoryChats struct {
	mu       sync.Mutex
	chats    map[int64]persistence.Chat
	messages []persistence.ChatMessage
	logs     []persistence.NotificationLogEntry
	sends    int
}

func newMemoryChats(chats ...persistence.Chat) *memoryChats {
	m := &memoryChats{chats: make(map[int64]persistence.Chat)}
	for _, chat := range chats {
		m.chats[chat.Id] = chat
	}

	return m
}

func (m *memoryChats) GetChat(_ context.Context, chatId int64, userId int64) (persistence.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat, ok := m.chats[chatId]
	if !ok {
		return persistence.Chat{}, persistence.ErrChatNotFound
	}
	if _, ok := chat.OtherParticipant(userId); !ok {
		return persistence.Chat{}, persistence.ErrChatNotFound
	}

	return chat, nil
}

func (m *memoryChats) SendMessage(_ context.Context, chatId int64, fromUserId int64, text string) (persistence.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sends++
	message := persistence.ChatMessage{
		Id:         gonanoid.Must(),
		ChatId:     chatId,
		SenderId:   fromUserId,
		Text:       text,
		CreateTime: time.Now(),
	}
	m.messages = append(m.messages, message)

	return message, nil
}

func (m *memoryChats) MarkRead(_ context.Context, chatId int64, userId int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for i := range m.messages {
		message := &m.messages[i]
		if message.ChatId == chatId && message.SenderId != userId && !message.Read {
			message.Read = true
			count++
		}
	}

	return count, nil
}

func (m *memoryChats) LogNotification(_ context.Context, entry persistence.NotificationLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logs = append(m.logs, entry)

	return nil
}

func (m *memoryChats) sendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sends
}

func (m *memoryChats) notificationLogs() []persistence.NotificationLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]persistence.NotificationLogEntry(nil), m.logs...)
}

type testServer struct {
	*httptest.Server

	registry   *broadcaster.InMemoryRegistry
	supervisor *broadcaster.Supervisor
	dispatcher *broadcaster.Dispatcher
	chats      *memoryChats
	cancel     context.CancelFunc
}

func newTestServer(t *testing.T, options WebSocketOptions, chats ...persistence.Chat) *testServer {
	t.Helper()

	logger, _ := zap.NewDevelopment()
	engine := newMemoryChats(chats...)

	registry := broadcaster.NewInMemoryRegistry(logger)
	supervisor := broadcaster.NewSupervisor(logger, registry, nil)
	dispatcher := broadcaster.NewDispatcher(logger, registry, supervisor, nil)
	authenticator := auth.NewAuthenticator(testSecret, "", []string{testAPIKey})

	topicValidator := handler.NewTopicValidator()
	router := NewRouter(
		logger,
		nil,
		handler.NewHeartbeatHandler(),
		handler.NewSubscribeHandler(topicValidator, registry),
		handler.NewUnsubscribeHandler(topicValidator, registry),
		handler.NewChatMessageHandler(engine, engine, dispatcher),
		handler.NewTypingHandler(engine, dispatcher),
		handler.NewReadHandler(engine, engine, dispatcher),
	)

	upgrader := &websocket.Upgrader{CheckOrigin: NewOriginChecker(nil).Check}
	wsServer := NewWebSocketServer(logger, upgrader, authenticator, supervisor, router, options)
	restServer := NewRESTServer(
		logger,
		handler.NewPushHandler(logger, topicValidator, dispatcher, engine),
		authenticator,
		registry,
	)

	ctx, cancel := context.WithCancel(context.Background())

	mainRouter := mux.NewRouter()
	wsServer.Register(ctx, mainRouter)
	restServer.Register(mainRouter)

	server := httptest.NewServer(mainRouter)
	t.Cleanup(func() {
		supervisor.Shutdown()
		server.Close()
		cancel()
	})

	return &testServer{
		Server:     server,
		registry:   registry,
		supervisor: supervisor,
		dispatcher: dispatcher,
		chats:      engine,
		cancel:     cancel,
	}
}

func signToken(t *testing.T, subject string) string {
	t.Helper()

	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{auth.DefaultAudience},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	return tokenString
}

func (s *testServer) socketURL(path string) string {
	return "ws" + s.URL[len("http"):] + path
}

// dial opens a socket for userId on endpoint and waits until it is serving.
func (s *testServer) dial(t *testing.T, endpoint string, userId int64) *websocket.Conn {
	t.Helper()

	id := strconv.FormatInt(userId, 10)
	conn, _, err := websocket.DefaultDialer.Dial(
		s.socketURL("/ws/"+endpoint+"/"+id+"?token="+signToken(t, id)), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	require.Equal(t, broadcaster.MessageTypePong, readMessage(t, conn).Type)

	return conn
}

type receivedMessage struct {
	Type  broadcaster.MessageType `json:"type"`
	Title string                  `json:"title"`
	Body  string                  `json:"body"`
	Data  map[string]any          `json:"data"`
}

func readMessage(t *testing.T, conn *websocket.Conn) receivedMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var message receivedMessage
	require.NoError(t, conn.ReadJSON(&message))

	return message
}
