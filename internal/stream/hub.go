package stream

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Hub fans quest events out to connected viewers. Subscribers are keyed by
// quest id; delivery is best-effort, at-most-once, with no buffering or
// replay. When a redis client is present, events also cross process
// boundaries via pub/sub.
type Hub struct {
	redis   *redis.Client
	log     *zap.Logger
	origin  string
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

// envelope wraps payloads on the redis channel. Local subscribers already
// got the event from Publish, so the subscription drops messages carrying
// this hub's own origin; without that, each local subscriber would see
// every event twice.
type envelope struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

type Client struct {
	QuestID string
	Send    chan []byte
}

func NewHub(redisClient *redis.Client, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		redis:   redisClient,
		log:     log,
		origin:  uuid.NewString(),
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(questID string) *Client {
	client := &Client{
		QuestID: questID,
		Send:    make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[questID] == nil {
		h.clients[questID] = map[*Client]struct{}{}
	}
	h.clients[questID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if questClients, ok := h.clients[client.QuestID]; ok {
		delete(questClients, client)
		if len(questClients) == 0 {
			delete(h.clients, client.QuestID)
		}
	}
	close(client.Send)
}

// Publish marshals event and delivers it to every subscriber of the quest.
// A subscriber with a full send buffer is skipped rather than blocking the
// publisher. With no subscribers the event is dropped.
func (h *Hub) Publish(questID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("event marshal failed", zap.String("quest_id", questID), zap.Error(err))
		return
	}
	h.fanOut(questID, payload)

	if h.redis != nil {
		wire, err := json.Marshal(envelope{Origin: h.origin, Payload: payload})
		if err != nil {
			h.log.Error("envelope marshal failed", zap.String("quest_id", questID), zap.Error(err))
			return
		}
		if err := h.redis.Publish(context.Background(), redisChannel(questID), wire).Err(); err != nil {
			h.log.Warn("redis publish failed", zap.String("quest_id", questID), zap.Error(err))
		}
	}
}

func (h *Hub) fanOut(questID string, payload []byte) {
	// Sends are non-blocking, so the read lock is held across them. That
	// keeps Unregister's close() from racing an in-flight send.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[questID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis() {
	pubsub := h.redis.PSubscribe(context.Background(), "quests:*:events")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		questID := questIDFromChannel(msg.Channel)
		if questID == "" {
			continue
		}

		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			h.log.Warn("malformed stream message", zap.String("channel", msg.Channel), zap.Error(err))
			continue
		}
		if env.Origin == h.origin || len(env.Payload) == 0 {
			continue
		}
		h.fanOut(questID, env.Payload)
	}
}

func redisChannel(questID string) string {
	return "quests:" + questID + ":events"
}

func questIDFromChannel(ch string) string {
	// quests:{quest}:events
	trimmed, ok := strings.CutPrefix(ch, "quests:")
	if !ok {
		return ""
	}
	trimmed, ok = strings.CutSuffix(trimmed, ":events")
	if !ok {
		return ""
	}
	return trimmed
}
