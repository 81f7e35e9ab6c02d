package broadcaster

import (
	"context"
	"time"

	"github.com/goevery/ridepush/internal/metrics"
	"go.uber.org/zap"
)

// IdlePolicy decides whether an idle connection should be closed.
type IdlePolicy interface {
	ShouldReap(connection *Connection, now time.Time) bool
}

// IdleTimeout reaps connections without activity for longer than its value.
type IdleTimeout time.Duration

func (t IdleTimeout) ShouldReap(connection *Connection, now time.Time) bool {
	return now.Sub(connection.LastActivityAt()) > time.Duration(t)
}

// Supervisor owns connection lifetimes: it is the only caller of Admit and Evict.
type Supervisor struct {
	logger   *zap.Logger
	registry Registry
	metrics  *metrics.Metrics

	idlePolicy        IdlePolicy
	idleCheckInterval time.Duration
}

type SupervisorOption func(*Supervisor)

// WithIdlePolicy enables idle reaping in Run. Without it Run only waits for ctx.
// A non-positive checkInterval keeps the default of one minute.
func WithIdlePolicy(policy IdlePolicy, checkInterval time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.idlePolicy = policy
		if checkInterval > 0 {
			s.idleCheckInterval = checkInterval
		}
	}
}

func NewSupervisor(
	logger *zap.Logger,
	registry Registry,
	metrics *metrics.Metrics,
	opts ...SupervisorOption,
) *Supervisor {
	s := &Supervisor{
		logger:            logger,
		registry:          registry,
		metrics:           metrics,
		idleCheckInterval: time.Minute,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Supervisor) Admit(connection *Connection, endpoint string) string {
	connectionId := s.registry.Admit(connection)
	connection.Advance(StateAdmitted)

	s.metrics.ConnectionAdmitted(endpoint)

	userId, _ := connection.UserId()
	s.logger.Info("connection admitted",
		zap.String("connectionId", connectionId),
		zap.Int64("userId", userId),
		zap.String("endpoint", endpoint))

	return connectionId
}

// Release evicts the connection and closes its socket. Only the first call
// for a connection has any effect.
func (s *Supervisor) Release(connection *Connection) {
	if !connection.claimRelease() {
		return
	}

	connection.Advance(StateClosing)

	if _, evicted := s.registry.Evict(connection.Id()); evicted {
		s.metrics.ConnectionEvicted()
	}

	if err := connection.Close(); err != nil {
		s.logger.Debug("error closing socket",
			zap.String("connectionId", connection.Id()),
			zap.Error(err))
	}

	connection.Advance(StateClosed)

	s.logger.Info("connection released",
		zap.String("connectionId", connection.Id()),
		zap.Duration("connectedFor", time.Since(connection.ConnectedAt())))
}

func (s *Supervisor) ReportFailure(connection *Connection, err error) {
	s.logger.Info("evicting connection after failed send",
		zap.String("connectionId", connection.Id()),
		zap.Error(err))

	s.Release(connection)
}

// Shutdown releases every admitted connection.
func (s *Supervisor) Shutdown() {
	connections := s.registry.AllConnections()

	s.logger.Info("closing all connections", zap.Int("count", len(connections)))

	for _, connection := range connections {
		s.Release(connection)
	}
}

func (s *Supervisor) Run(ctx context.Context) {
	if s.idlePolicy == nil {
		<-ctx.Done()

		return
	}

	ticker := time.NewTicker(s.idleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.ReapIdle(now)
		}
	}
}

// ReapIdle releases the connections the idle policy selects and returns how many.
func (s *Supervisor) ReapIdle(now time.Time) int {
	if s.idlePolicy == nil {
		return 0
	}

	reaped := 0
	for _, connection := range s.registry.AllConnections() {
		if !s.idlePolicy.ShouldReap(connection, now) {
			continue
		}

		s.logger.Info("reaping idle connection",
			zap.String("connectionId", connection.Id()),
			zap.Duration("idleFor", now.Sub(connection.LastActivityAt())))

		s.Release(connection)
		reaped++
	}

	return reaped
}
