package events

import (
	"log/slog"
	"sync"
	"time"
)

// Broker fans one analysis run's event stream out to many SSE clients. It
// implements Sink so the engine can target it directly.
type Broker struct {
	clients      map[chan Event]struct{}
	clientsMutex sync.RWMutex
	logger       *slog.Logger
}

// NewBroker creates an empty Broker.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		clients: make(map[chan Event]struct{}),
		logger:  logger,
	}
}

// Subscribe registers a new client and returns its event channel.
func (b *Broker) Subscribe() chan Event {
	b.clientsMutex.Lock()
	defer b.clientsMutex.Unlock()

	client := make(chan Event, 32)
	b.clients[client] = struct{}{}
	b.logger.Debug("client subscribed to analysis events", "total_clients", len(b.clients))
	return client
}

// Unsubscribe removes and closes a client's channel.
func (b *Broker) Unsubscribe(client chan Event) {
	b.clientsMutex.Lock()
	defer b.clientsMutex.Unlock()

	if _, ok := b.clients[client]; !ok {
		return
	}
	delete(b.clients, client)
	close(client)
	b.logger.Debug("client unsubscribed from analysis events", "total_clients", len(b.clients))
}

// Emit implements Sink by broadcasting to every subscribed client.
func (b *Broker) Emit(e Event) error {
	b.clientsMutex.RLock()
	defer b.clientsMutex.RUnlock()

	for client := range b.clients {
		select {
		case client <- e:
		case <-time.After(100 * time.Millisecond):
			b.logger.Warn("client not reading analysis events, skipping", "type", e.Type)
		}
	}
	return nil
}

// ClientCount reports the number of currently subscribed clients.
func (b *Broker) ClientCount() int {
	b.clientsMutex.RLock()
	defer b.clientsMutex.RUnlock()
	return len(b.clients)
}
