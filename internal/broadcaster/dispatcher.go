package broadcaster

import (
	"github.com/goevery/ridepush/internal/metrics"
	"go.uber.org/zap"
)

// FailureReporter is told about every connection a send failed on. The
// dispatcher never evicts by itself.
type FailureReporter interface {
	ReportFailure(connection *Connection, err error)
}

type DeliveryResult struct {
	Attempted int
	Delivered int
	Failed    []string
}

func (r DeliveryResult) HasFailures() bool {
	return len(r.Failed) > 0
}

type Dispatcher struct {
	logger   *zap.Logger
	registry Registry
	reporter FailureReporter
	metrics  *metrics.Metrics
}

func NewDispatcher(
	logger *zap.Logger,
	registry Registry,
	reporter FailureReporter,
	metrics *metrics.Metrics,
) *Dispatcher {
	return &Dispatcher{
		logger,
		registry,
		reporter,
		metrics,
	}
}

// DeliverToUser sends message to every connection of userId. A user without
// connections is not an error; nothing is queued for later.
func (d *Dispatcher) DeliverToUser(userId int64, message Message) DeliveryResult {
	return d.fanOut(d.registry.ConnectionsForUser(userId), message)
}

func (d *Dispatcher) DeliverToTopic(topic string, message Message) DeliveryResult {
	return d.fanOut(d.registry.ConnectionsForTopic(topic), message)
}

func (d *Dispatcher) Broadcast(message Message) DeliveryResult {
	return d.fanOut(d.registry.AllConnections(), message)
}

func (d *Dispatcher) Deliver(notification Notification) (DeliveryResult, error) {
	target := notification.Target

	if userId, ok := target.UserId(); ok {
		return d.DeliverToUser(userId, notification.Message), nil
	}

	if topic, ok := target.Topic(); ok {
		return d.DeliverToTopic(topic, notification.Message), nil
	}

	if target.IsEveryone() {
		return d.Broadcast(notification.Message), nil
	}

	return DeliveryResult{}, ErrInvalidTarget
}

func (d *Dispatcher) fanOut(connections []*Connection, message Message) DeliveryResult {
	result := DeliveryResult{
		Attempted: len(connections),
	}

	for _, connection := range connections {
		err := connection.Send(message)
		d.metrics.DeliveryAttempted(err == nil)

		if err != nil {
			d.logger.Warn("failed to deliver message",
				zap.String("connectionId", connection.Id()),
				zap.String("type", string(message.Type)),
				zap.Error(err))

			result.Failed = append(result.Failed, connection.Id())
			d.reporter.ReportFailure(connection, err)

			continue
		}

		result.Delivered++
	}

	return result
}
