package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/seekhub/translator/internal/model"
)

const (
	relayChannelPrefix = "progress:"
	relayPublishWait   = time.Second
)

type relayEnvelope struct {
	Origin string              `json:"origin"`
	Event  model.ProgressEvent `json:"event"`
}

// RedisRelay shares progress events between processes. Publish delivers to
// the local hub and broadcasts on progress:<subject>; Run feeds events from
// other processes into the local hub.
type RedisRelay struct {
	rdb    *redis.Client
	hub    *Hub
	origin string
	logger zerolog.Logger
}

// NewRedisRelay creates a relay. hub may be nil in processes that only publish.
func NewRedisRelay(rdb *redis.Client, hub *Hub, logger zerolog.Logger) *RedisRelay {
	return &RedisRelay{
		rdb:    rdb,
		hub:    hub,
		origin: uuid.New().String(),
		logger: logger.With().Str("component", "relay").Logger(),
	}
}

func (r *RedisRelay) Publish(subjectID string, event model.ProgressEvent) {
	if r.hub != nil {
		r.hub.Publish(subjectID, event)
	}

	data, err := json.Marshal(relayEnvelope{Origin: r.origin, Event: event})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to marshal relay envelope")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), relayPublishWait)
	defer cancel()
	if err := r.rdb.Publish(ctx, relayChannelPrefix+subjectID, data).Err(); err != nil {
		r.logger.Warn().Err(err).Str("subject_id", subjectID).Msg("failed to relay progress event")
	}
}

// Run subscribes to every subject channel until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.rdb.PSubscribe(ctx, relayChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg)
		}
	}
}

func (r *RedisRelay) handle(msg *redis.Message) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		r.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("invalid relay message")
		return
	}
	if env.Origin == r.origin || r.hub == nil {
		return
	}
	subjectID := strings.TrimPrefix(msg.Channel, relayChannelPrefix)
	r.hub.Publish(subjectID, env.Event)
}
