package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/goevery/ridepush/internal/auth"
	"github.com/goevery/ridepush/internal/broadcaster"
	"github.com/goevery/ridepush/internal/handler"
	"github.com/goevery/ridepush/internal/ierr"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type StatsProvider interface {
	Stats() broadcaster.RegistryStats
}

type RESTServer struct {
	logger *zap.Logger

	pushHandler   handler.PushHandlerInterface
	authenticator *auth.Authenticator
	stats         StatsProvider
}

func NewRESTServer(
	logger *zap.Logger,
	pushHandler handler.PushHandlerInterface,
	authenticator *auth.Authenticator,
	stats StatsProvider,
) *RESTServer {
	return &RESTServer{
		logger,
		pushHandler,
		authenticator,
		stats,
	}
}

func (s *RESTServer) Register(router *mux.Router) {
	router.HandleFunc("/notifications", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			return
		}

		authentication, err := s.authenticator.AuthenticateAPIKey(auth.TokenFromRequest(r))
		if err != nil {
			writeError(w, ierr.New(ierr.ErrorCodeUnauthenticated, err))
			return
		}

		var pushRequest handler.PushRequest
		err = json.NewDecoder(r.Body).Decode(&pushRequest)
		if err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx := auth.WithAuthentication(r.Context(), authentication)

		pushResponse, err := s.pushHandler.Handle(ctx, pushRequest)
		if err != nil {
			var handlerErr ierr.Error
			if !errors.As(err, &handlerErr) {
				s.logger.Error("failed to handle push request", zap.Error(err))
				http.Error(w, "failed to handle push request", http.StatusInternalServerError)
				return
			}

			writeError(w, handlerErr)
			return
		}

		writeJSON(w, http.StatusOK, pushResponse)
	}).Methods("POST", "OPTIONS")

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.stats.Stats())
	}).Methods("GET")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err ierr.Error) {
	writeJSON(w, httpStatus(err.Code), err)
}

func httpStatus(code ierr.ErrorCode) int {
	switch code {
	case ierr.ErrorCodeInvalidArgument:
		return http.StatusBadRequest
	case ierr.ErrorCodeNotFound:
		return http.StatusNotFound
	case ierr.ErrorCodePermissionDenied:
		return http.StatusForbidden
	case ierr.ErrorCodeUnauthenticated:
		return http.StatusUnauthorized
	case ierr.ErrorCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
