package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/nbsync/sync-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	SessionCode string
	Events      chan Event
	Done        chan struct{}
}

// Broker bridges the per-session Redis pubsub channel to connected SSE
// clients. It is a delivery optimization layered on the ledger contract:
// a follower that never connects still discovers updates by polling.
type Broker struct {
	redis   *redisclient.Client
	clients map[string]map[*Client]bool // session code -> set of clients
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[string]map[*Client]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(sessionCode string) *Client {
	client := &Client{
		SessionCode: sessionCode,
		Events:      make(chan Event, 100),
		Done:        make(chan struct{}),
	}

	b.mu.Lock()
	if b.clients[sessionCode] == nil {
		b.clients[sessionCode] = make(map[*Client]bool)
		go b.subscribeToRedis(sessionCode)
	}
	b.clients[sessionCode][client] = true
	clientCount := len(b.clients[sessionCode])
	b.mu.Unlock()

	log.Info().
		Str("code", sessionCode).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[client.SessionCode]; ok {
		delete(clients, client)
		close(client.Done)

		if len(clients) == 0 {
			delete(b.clients, client.SessionCode)
		}

		log.Info().
			Str("code", client.SessionCode).
			Int("clientCount", len(clients)).
			Msg("sse client unsubscribed")
	}
}

// Publish satisfies service.EventPublisher.
func (b *Broker) Publish(ctx context.Context, sessionCode, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	event := Event{Type: eventType, Data: payload}
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.EventChannel(sessionCode)
	return b.redis.Publish(ctx, channel, raw).Err()
}

func (b *Broker) subscribeToRedis(sessionCode string) {
	channel := redisclient.EventChannel(sessionCode)
	pubsub := b.redis.Subscribe(b.ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("code", sessionCode).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-b.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(sessionCode, event)
		}
	}
}

func (b *Broker) broadcast(sessionCode string, event Event) {
	b.mu.RLock()
	clients := b.clients[sessionCode]
	b.mu.RUnlock()

	for client := range clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("code", sessionCode).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
	}
	b.clients = make(map[string]map[*Client]bool)
}

func (b *Broker) ClientCount(sessionCode string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[sessionCode])
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, clients := range b.clients {
		total += len(clients)
	}
	return total
}
