package hub

import (
	"context"

	"patchpilot/backend/global"

	"github.com/redis/go-redis/v9"
)

const channel = "patchpilot:commands"

// RedisNotifier fans "commands available" events out to every server
// instance sharing the Redis, each of which wakes its own Hub.
type RedisNotifier struct {
	rdb   *redis.Client
	local *Hub
}

func NewRedisNotifier(rdb *redis.Client, local *Hub) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, local: local}
}

func (n *RedisNotifier) Notify(deviceIDs ...string) {
	ctx := context.Background()
	for _, id := range deviceIDs {
		if err := n.rdb.Publish(ctx, channel, id).Err(); err != nil {
			global.Logger.Warn().Err(err).Str("device_id", id).Msg("redis publish failed, notifying locally")
			n.local.Notify(id)
		}
	}
}

// Run relays published events to the local hub until ctx is done.
func (n *RedisNotifier) Run(ctx context.Context) {
	sub := n.rdb.Subscribe(ctx, channel)
	defer sub.Close()
	n.relay(ctx, sub.Channel())
}

func (n *RedisNotifier) relay(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			n.local.Notify(msg.Payload)
		}
	}
}
