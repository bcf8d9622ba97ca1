package progress

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const cancelKey = "sessions:cancelled:set"

// Redis is a Store backed by redis hashes with a TTL, so progress survives
// process restarts for the lifetime of a session.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects and pings.
func NewRedis(redisURL string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: c, ttl: ttl}, nil
}

func (r *Redis) Close() error { return r.client.Close() }

// Ping checks redis connectivity.
func (r *Redis) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *Redis) key(sessionID string) string {
	return fmt.Sprintf("session:%s:progress", sessionID)
}

func (r *Redis) Set(ctx context.Context, sessionID string, rec Record) error {
	m := map[string]interface{}{
		"op":      rec.Op,
		"state":   rec.State,
		"done":    rec.Done,
		"skipped": rec.Skipped,
		"failed":  rec.Failed,
		"total":   rec.Total,
		"message": rec.Message,
	}
	if rec.Start != nil {
		m["start"] = rec.Start.Format(time.RFC3339Nano)
	}
	if rec.End != nil {
		m["end"] = rec.End.Format(time.RFC3339Nano)
	}
	key := r.key(sessionID)
	if err := r.client.HSet(ctx, key, m).Err(); err != nil {
		return err
	}
	return r.client.Expire(ctx, key, r.ttl).Err()
}

func (r *Redis) Get(ctx context.Context, sessionID string) (Record, bool, error) {
	res, err := r.client.HGetAll(ctx, r.key(sessionID)).Result()
	if err != nil {
		return Record{}, false, err
	}
	if len(res) == 0 {
		return Record{}, false, nil
	}
	rec := Record{
		Op:      res["op"],
		State:   res["state"],
		Message: res["message"],
	}
	fmt.Sscan(res["done"], &rec.Done)
	fmt.Sscan(res["skipped"], &rec.Skipped)
	fmt.Sscan(res["failed"], &rec.Failed)
	fmt.Sscan(res["total"], &rec.Total)
	if v := res["start"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			rec.Start = &t
		}
	}
	if v := res["end"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			rec.End = &t
		}
	}
	return rec, true, nil
}

func (r *Redis) MarkCancel(ctx context.Context, sessionID string) error {
	return r.client.SAdd(ctx, cancelKey, sessionID).Err()
}

func (r *Redis) IsCancelled(ctx context.Context, sessionID string) (bool, error) {
	return r.client.SIsMember(ctx, cancelKey, sessionID).Result()
}

func (r *Redis) ClearCancel(ctx context.Context, sessionID string) error {
	return r.client.SRem(ctx, cancelKey, sessionID).Err()
}
