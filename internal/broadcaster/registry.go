package broadcaster

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrUnknownConnection = errors.New("unknown connection")

type Registry interface {
	Admit(connection *Connection) string
	Evict(connectionId string) (*Connection, bool)
	Subscribe(connectionId string, topic string) error
	Unsubscribe(connectionId string, topic string) error
	ConnectionsForUser(userId int64) []*Connection
	ConnectionsForTopic(topic string) []*Connection
	AllConnections() []*Connection
	Stats() RegistryStats
}

type RegistryStats struct {
	Connections int `json:"connections"`
	Users       int `json:"users"`
	Topics      int `json:"topics"`
}

type InMemoryRegistry struct {
	logger *zap.Logger
	mu     sync.RWMutex

	connections        map[string]*Connection
	connectionsByUser  map[int64]map[string]struct{}
	connectionsByTopic map[string]map[string]struct{}
	topicsByConnection map[string]map[string]struct{}
}

func NewInMemoryRegistry(
	logger *zap.Logger,
) *InMemoryRegistry {
	return &InMemoryRegistry{
		logger:             logger,
		connections:        make(map[string]*Connection),
		connectionsByUser:  make(map[int64]map[string]struct{}),
		connectionsByTopic: make(map[string]map[string]struct{}),
		topicsByConnection: make(map[string]map[string]struct{}),
	}
}

// Admit panics when the id is already registered, ids are generated per connection.
func (r *InMemoryRegistry) Admit(connection *Connection) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	connectionId := connection.Id()
	if _, ok := r.connections[connectionId]; ok {
		panic("inconsistent state: connection " + connectionId + " admitted twice")
	}

	r.connections[connectionId] = connection

	if userId, ok := connection.UserId(); ok {
		if _, ok := r.connectionsByUser[userId]; !ok {
			r.connectionsByUser[userId] = make(map[string]struct{})
		}

		r.connectionsByUser[userId][connectionId] = struct{}{}
	}

	return connectionId
}

func (r *InMemoryRegistry) Evict(connectionId string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connection, ok := r.connections[connectionId]
	if !ok {
		return nil, false
	}

	for topic := range r.topicsByConnection[connectionId] {
		topicConnections, ok := r.connectionsByTopic[topic]
		if !ok {
			panic("inconsistent state: topic not found in connectionsByTopic")
		}

		delete(topicConnections, connectionId)
		if len(topicConnections) == 0 {
			delete(r.connectionsByTopic, topic)
		}
	}
	delete(r.topicsByConnection, connectionId)

	if userId, ok := connection.UserId(); ok {
		userConnections := r.connectionsByUser[userId]
		delete(userConnections, connectionId)
		if len(userConnections) == 0 {
			delete(r.connectionsByUser, userId)
		}
	}

	delete(r.connections, connectionId)

	return connection, true
}

func (r *InMemoryRegistry) Subscribe(connectionId string, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	connection, ok := r.connections[connectionId]
	if !ok {
		return ErrUnknownConnection
	}

	if _, ok := r.connectionsByTopic[topic]; !ok {
		r.connectionsByTopic[topic] = make(map[string]struct{})
	}
	r.connectionsByTopic[topic][connectionId] = struct{}{}

	if _, ok := r.topicsByConnection[connectionId]; !ok {
		r.topicsByConnection[connectionId] = make(map[string]struct{})
	}
	r.topicsByConnection[connectionId][topic] = struct{}{}

	connection.AddSubscription(topic)

	return nil
}

func (r *InMemoryRegistry) Unsubscribe(connectionId string, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	connection, ok := r.connections[connectionId]
	if !ok {
		return ErrUnknownConnection
	}

	if connectionTopics, ok := r.topicsByConnection[connectionId]; ok {
		delete(connectionTopics, topic)
		if len(connectionTopics) == 0 {
			delete(r.topicsByConnection, connectionId)
		}
	}

	if topicConnections, ok := r.connectionsByTopic[topic]; ok {
		delete(topicConnections, connectionId)
		if len(topicConnections) == 0 {
			delete(r.connectionsByTopic, topic)
		}
	}

	connection.RemoveSubscription(topic)

	return nil
}

func (r *InMemoryRegistry) ConnectionsForUser(userId int64) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collectLocked(r.connectionsByUser[userId])
}

func (r *InMemoryRegistry) ConnectionsForTopic(topic string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collectLocked(r.connectionsByTopic[topic])
}

func (r *InMemoryRegistry) AllConnections() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connections := make([]*Connection, 0, len(r.connections))
	for _, connection := range r.connections {
		connections = append(connections, connection)
	}

	return connections
}

func (r *InMemoryRegistry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RegistryStats{
		Connections: len(r.connections),
		Users:       len(r.connectionsByUser),
		Topics:      len(r.connectionsByTopic),
	}
}

// IMPORTANT: It must be called only when a lock is already held.
func (r *InMemoryRegistry) collectLocked(connectionIds map[string]struct{}) []*Connection {
	if len(connectionIds) == 0 {
		return nil
	}

	connections := make([]*Connection, 0, len(connectionIds))
	for connectionId := range connectionIds {
		connection, ok := r.connections[connectionId]
		if !ok {
			r.logger.Error("dangling connection reference in index",
				zap.String("connectionId", connectionId))

			continue
		}

		connections = append(connections, connection)
	}

	return connections
}
