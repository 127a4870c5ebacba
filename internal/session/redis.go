package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ocrd/pkg/types"
)

const defaultRedisKey = "ocrd:sessions"

// RedisStore keeps sessions in a hash (id -> JSON) plus a sorted set ordered
// by save time.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to addr and verifies the connection with PING.
func NewRedisStore(ctx context.Context, addr string, db int, key string) (*RedisStore, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "",
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return newRedisStore(client, key), nil
}

func newRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) dataKey() string  { return s.key + ":data" }
func (s *RedisStore) orderKey() string { return s.key + ":order" }

func score(ts string) float64 {
	t, err := time.ParseInLocation(TimestampLayout, ts, time.Local)
	if err != nil {
		return 0
	}
	return float64(t.Unix())
}

func (s *RedisStore) Save(ctx context.Context, sess types.Session) error {
	id, err := SanitizeID(sess.ID)
	if err != nil {
		return err
	}
	sess.ID = id
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.dataKey(), id, b)
		p.ZAdd(ctx, s.orderKey(), redis.Z{Score: score(sess.Timestamp), Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]types.Session, error) {
	ids, err := s.client.ZRevRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]types.Session, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	vals, err := s.client.HMGet(ctx, s.dataKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			zlog.Warn().Str("id", ids[i]).Msg("session missing from hash")
			continue
		}
		var sess types.Session
		if err := json.Unmarshal([]byte(str), &sess); err != nil {
			zlog.Warn().Err(err).Str("id", ids[i]).Msg("skip malformed session")
			continue
		}
		out = append(out, sess)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	id, err := SanitizeID(id)
	if err != nil {
		return err
	}
	var del *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.HDel(ctx, s.dataKey(), id)
		p.ZRem(ctx, s.orderKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
