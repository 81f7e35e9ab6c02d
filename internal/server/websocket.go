package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/goevery/ridepush/internal/auth"
	"github.com/goevery/ridepush/internal/broadcaster"
	"github.com/goevery/ridepush/internal/handler"
	"github.com/goevery/ridepush/internal/ierr"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Endpoint struct {
	Name       string
	Vocabulary handler.Vocabulary
}

var (
	NotificationsEndpoint = Endpoint{Name: "notifications", Vocabulary: handler.NotificationVocabulary}
	ChatEndpoint          = Endpoint{Name: "chat", Vocabulary: handler.ChatVocabulary}
)

type WebSocketOptions struct {
	AllowAnonymous bool
	MaxFrameSize   int64
	WriteTimeout   time.Duration
}

type WebSocketServer struct {
	logger        *zap.Logger
	upgrader      *websocket.Upgrader
	authenticator *auth.Authenticator
	supervisor    *broadcaster.Supervisor
	router        *Router
	options       WebSocketOptions
}

func NewWebSocketServer(
	logger *zap.Logger,
	upgrader *websocket.Upgrader,
	authenticator *auth.Authenticator,
	supervisor *broadcaster.Supervisor,
	router *Router,
	options WebSocketOptions,
) *WebSocketServer {
	if options.MaxFrameSize <= 0 {
		options.MaxFrameSize = 4096
	}

	return &WebSocketServer{
		logger,
		upgrader,
		authenticator,
		supervisor,
		router,
		options,
	}
}

func (s *WebSocketServer) Register(ctx context.Context, router *mux.Router) {
	router.HandleFunc("/ws/notifications/{userId}", s.userHandler(ctx, NotificationsEndpoint)).Methods("GET")
	router.HandleFunc("/ws/chat/{userId}", s.userHandler(ctx, ChatEndpoint)).Methods("GET")

	if s.options.AllowAnonymous {
		router.HandleFunc("/ws/notifications", func(w http.ResponseWriter, r *http.Request) {
			s.serve(ctx, w, r, NotificationsEndpoint)
		}).Methods("GET")
	}
}

// userHandler admits a connection only after its token resolves to the user
// id in the path.
func (s *WebSocketServer) userHandler(ctx context.Context, endpoint Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userId, err := strconv.ParseInt(mux.Vars(r)["userId"], 10, 64)
		if err != nil || userId <= 0 {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}

		authentication, err := s.authenticator.AuthenticateJWT(auth.TokenFromRequest(r))
		if err != nil {
			s.logger.Info("websocket authentication failed",
				zap.String("endpoint", endpoint.Name),
				zap.Error(err))
			http.Error(w, "unauthenticated", httpStatus(ierr.ErrorCodeUnauthenticated))
			return
		}

		if authentication.UserId != userId {
			http.Error(w, "token does not belong to this user", httpStatus(ierr.ErrorCodePermissionDenied))
			return
		}

		s.serve(ctx, w, r, endpoint, broadcaster.WithUserId(userId))
	}
}

func (s *WebSocketServer) serve(
	ctx context.Context,
	w http.ResponseWriter,
	r *http.Request,
	endpoint Endpoint,
	opts ...broadcaster.ConnectionOption,
) {
	if ctx.Err() != nil {
		http.Error(w, "server is shutting down", httpStatus(ierr.ErrorCodeUnavailable))
		return
	}

	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	socket.SetReadLimit(s.options.MaxFrameSize)

	opts = append(opts, broadcaster.WithWriteTimeout(s.options.WriteTimeout))
	connection := broadcaster.NewConnection(socket, opts...)

	s.supervisor.Admit(connection, endpoint.Name)
	defer s.supervisor.Release(connection)

	// admitted after shutdown started, so the supervisor may not have seen it
	if ctx.Err() != nil {
		return
	}

	connection.Advance(broadcaster.StateServing)

	logger := s.logger.With(
		zap.String("connectionId", connection.Id()),
		zap.String("endpoint", endpoint.Name))
	connectionCtx := broadcaster.WithConnection(ctx, connection)

	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			if connection.State() == broadcaster.StateServing &&
				websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", zap.Error(err))
			}

			return
		}

		if err := s.router.Route(connectionCtx, connection, endpoint.Vocabulary, data); err != nil {
			logger.Info("failed to reply, closing connection", zap.Error(err))

			return
		}
	}
}
