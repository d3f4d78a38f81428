package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connections kept aside from the ingestion workers for locks, refresh
// tokens and publishes on the queue client.
const queueHeadroom = 10

// RedisClients splits blocking queue traffic (BLPOP, locks, tokens) from
// long-lived pub/sub subscriptions so one cannot starve the other.
type RedisClients struct {
	Queue  *redis.Client
	PubSub *redis.Client
}

// NewRedisClients connects both clients. Each ingestion worker parks one
// queue connection in BLPOP, so the queue pool grows with workerCount.
func NewRedisClients(redisURL string, workerCount int) (*RedisClients, error) {
	base, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	queueOpt := *base
	queueOpt.PoolSize = workerCount + queueHeadroom
	queueOpt.MinIdleConns = workerCount

	pubsubOpt := *base

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clients := &RedisClients{
		Queue:  redis.NewClient(&queueOpt),
		PubSub: redis.NewClient(&pubsubOpt),
	}
	for name, c := range map[string]*redis.Client{"queue": clients.Queue, "pubsub": clients.PubSub} {
		if err := c.Ping(ctx).Err(); err != nil {
			clients.Close()
			return nil, fmt.Errorf("ping redis (%s): %w", name, err)
		}
	}
	return clients, nil
}

func (r *RedisClients) Close() {
	r.Queue.Close()
	r.PubSub.Close()
}
