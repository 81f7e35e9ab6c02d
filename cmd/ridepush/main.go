package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/goevery/ridepush/internal/auth"
	"github.com/goevery/ridepush/internal/broadcaster"
	"github.com/goevery/ridepush/internal/handler"
	"github.com/goevery/ridepush/internal/metrics"
	"github.com/goevery/ridepush/internal/persistence"
	"github.com/goevery/ridepush/internal/persistence/mongodb"
	"github.com/goevery/ridepush/internal/server"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

type App struct {
	logger          *zap.Logger
	settings        Settings
	promRegistry    *prometheus.Registry
	supervisor      *broadcaster.Supervisor
	websocketServer *server.WebSocketServer
	restServer      *server.RESTServer
}

func NewApp(logger *zap.Logger, settings Settings, engine persistence.Engine) *App {
	originChecker := server.NewOriginChecker(settings.AllowedOriginList())
	websocketUpgrader := &websocket.Upgrader{
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		CheckOrigin:       originChecker.Check,
		EnableCompression: true,
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deliveryMetrics := metrics.New(promRegistry)

	authenticator := auth.NewAuthenticator(settings.JWTSecret, settings.JWTAudience, settings.APIKeyList())

	registry := broadcaster.NewInMemoryRegistry(logger)

	var supervisorOpts []broadcaster.SupervisorOption
	if idleTimeout := settings.IdleTimeout(); idleTimeout > 0 {
		supervisorOpts = append(supervisorOpts,
			broadcaster.WithIdlePolicy(broadcaster.IdleTimeout(idleTimeout), settings.IdleCheckInterval()))
	}

	supervisor := broadcaster.NewSupervisor(logger, registry, deliveryMetrics, supervisorOpts...)
	dispatcher := broadcaster.NewDispatcher(logger, registry, supervisor, deliveryMetrics)

	topicValidator := handler.NewTopicValidator()

	heartbeatHandler := handler.NewHeartbeatHandler()
	subscribeHandler := handler.NewSubscribeHandler(topicValidator, registry)
	unsubscribeHandler := handler.NewUnsubscribeHandler(topicValidator, registry)
	chatMessageHandler := handler.NewChatMessageHandler(engine, engine, dispatcher)
	typingHandler := handler.NewTypingHandler(engine, dispatcher)
	readHandler := handler.NewReadHandler(engine, engine, dispatcher)
	pushHandler := handler.NewPushHandler(logger, topicValidator, dispatcher, engine)

	router := server.NewRouter(
		logger,
		deliveryMetrics,
		heartbeatHandler,
		subscribeHandler,
		unsubscribeHandler,
		chatMessageHandler,
		typingHandler,
		readHandler,
	)

	websocketServer := server.NewWebSocketServer(
		logger,
		websocketUpgrader,
		authenticator,
		supervisor,
		router,
		server.WebSocketOptions{
			AllowAnonymous: settings.AllowAnonymous,
			MaxFrameSize:   settings.MaxFrameSize,
			WriteTimeout:   settings.WriteTimeout(),
		},
	)
	restServer := server.NewRESTServer(
		logger,
		pushHandler,
		authenticator,
		registry,
	)

	return &App{
		logger,
		settings,
		promRegistry,
		supervisor,
		websocketServer,
		restServer,
	}
}

func (a *App) setup(ctx context.Context) error {
	a.startHttpServer(ctx)

	return nil
}

func (a *App) startHttpServer(ctx context.Context) {
	notifyCtx, notifyCtxCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer notifyCtxCancel()

	address := fmt.Sprintf("0.0.0.0:%d", a.settings.Port)

	rootRouter := mux.NewRouter()
	rootRouter.Handle("/metrics", promhttp.HandlerFor(a.promRegistry, promhttp.HandlerOpts{}))

	router := rootRouter.
		PathPrefix(a.settings.BasePath).
		Subrouter()

	a.websocketServer.Register(notifyCtx, router)
	a.restServer.Register(router)

	httpServer := &http.Server{
		Addr:    address,
		Handler: rootRouter,
	}

	go a.supervisor.Run(notifyCtx)

	a.logger.Info("starting http server",
		zap.String("address", address))

	go func() {
		err := httpServer.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("failed to start http server",
				zap.Error(err))
		}
	}()

	<-notifyCtx.Done()

	a.logger.Info("stopping http server")

	shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCtxCancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Fatal("http server shutdown failed",
			zap.Error(err))
	}

	// hijacked websocket connections are not tracked by http.Server
	a.supervisor.Shutdown()

	a.logger.Info("http server stopped")
}

func connectMongo(ctx context.Context, settings Settings) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(settings.MongoURI))
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, err
	}

	return client, nil
}

func main() {
	ctx := context.Background()

	var settings Settings
	_, err := env.UnmarshalFromEnviron(&settings)
	if err != nil {
		log.Fatalf("failed to parse settings from environment: %v", err)
	}

	logger, err := buildZapLogger(settings.LogEncoding, settings.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	mongoClient, err := connectMongo(ctx, settings)
	if err != nil {
		logger.Fatal("failed to connect to mongodb", zap.Error(err))
	}
	defer mongoClient.Disconnect(context.Background())

	engine := mongodb.NewPersistenceEngine(mongoClient, settings.MongoDatabase)
	if err := engine.Setup(ctx); err != nil {
		logger.Fatal("failed to setup persistence", zap.Error(err))
	}

	app := NewApp(logger, settings, engine)

	err = app.setup(ctx)
	if err != nil {
		logger.Fatal("failed to setup", zap.Error(err))
	}
}
