package gateway

import (
	"context"
	"log"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// RelayPattern matches every series channel published by store/redis.
const RelayPattern = "pub:series:*"

// Relay feeds the hub from Redis PubSub instead of the local store. With it
// several analysisd instances can serve the same WS stream.
type Relay struct {
	hub *Hub
	rdb *goredis.Client
}

// NewRelay creates a relay from rdb into hub.
func NewRelay(hub *Hub, rdb *goredis.Client) *Relay {
	return &Relay{hub: hub, rdb: rdb}
}

// Run pattern-subscribes to RelayPattern and broadcasts every message on
// its hub channel. Blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	pubsub := r.rdb.PSubscribe(ctx, RelayPattern)
	defer pubsub.Close()

	log.Printf("[gateway] relaying redis %s to ws clients", RelayPattern)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			channel, ok := hubChannel(msg.Channel)
			if !ok {
				continue
			}
			r.hub.Broadcaster.Broadcast(channel, []byte(msg.Payload), time.Time{})
		}
	}
}

// hubChannel maps "pub:series:<id>" to "series:<id>".
func hubChannel(pubsubChannel string) (string, bool) {
	rest, ok := strings.CutPrefix(pubsubChannel, "pub:")
	if !ok || !strings.HasPrefix(rest, "series:") || rest == "series:" {
		return "", false
	}
	return rest, true
}
