package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis list holding queued job ids.
const DefaultKey = "prepflow:jobs"

// RedisQueue implements Queue and Consumer on a Redis list. Producers LPUSH,
// workers BRPOP, so ids are delivered in enqueue order.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// RedisConfig holds connection settings for the queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string // list key; DefaultKey when empty
}

// NewRedisQueue connects to Redis and verifies the connection with a ping.
func NewRedisQueue(cfg RedisConfig) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	key := cfg.Key
	if key == "" {
		key = DefaultKey
	}

	return &RedisQueue{client: client, key: key}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	return q.client.LPush(ctx, q.key, jobID).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrEmpty
		}
		return "", err
	}
	// BRPop returns [key, value].
	if len(res) != 2 {
		return "", ErrEmpty
	}
	return res[1], nil
}

// Close closes the underlying Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

var (
	_ Queue    = (*RedisQueue)(nil)
	_ Consumer = (*RedisQueue)(nil)
)
