package cleanup

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue keeps jobs in a sorted set scored by due time (unix millis).
// Leases are plain keys set with NX and a TTL, so a crashed worker's claim
// expires on its own.
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// NewRedisQueue connects to redisURL and checks the connection.
func NewRedisQueue(redisURL string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisQueueWithClient(client), nil
}

func NewRedisQueueWithClient(client *redis.Client) *RedisQueue {
	return &RedisQueue{
		client: client,
		prefix: "taskboard:cleanup:",
	}
}

func (q *RedisQueue) dueKey() string      { return q.prefix + "due" }
func (q *RedisQueue) attemptsKey() string { return q.prefix + "attempts" }
func (q *RedisQueue) deadKey() string     { return q.prefix + "dead" }
func (q *RedisQueue) leaseKey(projectID string) string {
	return q.prefix + "lease:" + projectID
}

func (q *RedisQueue) Enqueue(ctx context.Context, projectID string, due time.Time) error {
	err := q.client.ZAdd(ctx, q.dueKey(), redis.Z{Score: float64(due.UnixMilli()), Member: projectID}).Err()
	if err != nil {
		return fmt.Errorf("enqueue cleanup %s: %w", projectID, err)
	}
	return nil
}

func (q *RedisQueue) Due(ctx context.Context, now time.Time, limit int) ([]string, error) {
	ids, err := q.client.ZRangeByScore(ctx, q.dueKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list due cleanups: %w", err)
	}
	return ids, nil
}

func (q *RedisQueue) Claim(ctx context.Context, projectID string, lease time.Duration) (bool, error) {
	ok, err := q.client.SetNX(ctx, q.leaseKey(projectID), "1", lease).Result()
	if err != nil {
		return false, fmt.Errorf("claim cleanup %s: %w", projectID, err)
	}
	return ok, nil
}

func (q *RedisQueue) Complete(ctx context.Context, projectID string) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, q.dueKey(), projectID)
		pipe.HDel(ctx, q.attemptsKey(), projectID)
		pipe.Del(ctx, q.leaseKey(projectID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("complete cleanup %s: %w", projectID, err)
	}
	return nil
}

func (q *RedisQueue) Fail(ctx context.Context, projectID string) (int, error) {
	var incr *redis.IntCmd
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, q.attemptsKey(), projectID, 1)
		pipe.Del(ctx, q.leaseKey(projectID))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("record cleanup failure %s: %w", projectID, err)
	}
	return int(incr.Val()), nil
}

func (q *RedisQueue) Bury(ctx context.Context, projectID string) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, q.dueKey(), projectID)
		pipe.HDel(ctx, q.attemptsKey(), projectID)
		pipe.SAdd(ctx, q.deadKey(), projectID)
		pipe.Del(ctx, q.leaseKey(projectID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("bury cleanup %s: %w", projectID, err)
	}
	return nil
}

func (q *RedisQueue) Dead(ctx context.Context) ([]string, error) {
	ids, err := q.client.SMembers(ctx, q.deadKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list dead cleanups: %w", err)
	}
	return ids, nil
}

// Close closes the Redis connection
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Ping checks if Redis is reachable
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
