package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/erazemk/knjiznica/internal/model"
)

// DefaultRedisChannel is the pub/sub channel announcements are published to.
const DefaultRedisChannel = "knjiznica:borrowings"

// Redis publishes announcements to a Redis pub/sub channel.
type Redis struct {
	Client  *redis.Client
	Channel string
}

// Notify publishes the borrowing message.
func (r *Redis) Notify(ctx context.Context, b model.Borrowing) error {
	channel := r.Channel
	if channel == "" {
		channel = DefaultRedisChannel
	}

	receivers, err := r.Client.Publish(ctx, channel, Message(b)).Result()
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", channel, err)
	}
	if receivers == 0 {
		slog.Warn("borrowing announcement had no subscribers", "channel", channel, "borrowing", b.ID)
	}
	return nil
}
