package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	logx "sptlb/pkg/logx"
)

var (
	ErrRedisURL      = errors.New("storage: invalid redis url")
	ErrRedisNotReady = errors.New("storage: redis not ready")
)

const (
	redisConnectAttempts = 3
	redisRetryInterval   = time.Second
	redisConnectTimeout  = 10 * time.Second
)

type redisStore struct {
	client *redis.Client
	prefix string
	log    logx.Logger
}

func openRedis(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	client, err := connectRedis(ctx, cfg.URL, redisConnectAttempts, redisRetryInterval, redisConnectTimeout)
	if err != nil {
		return nil, err
	}
	return newRedisStore(client, cfg.KeyPrefix, log), nil
}

func newRedisStore(client *redis.Client, prefix string, log logx.Logger) *redisStore {
	if strings.TrimSpace(prefix) == "" {
		prefix = "sptlb:"
	}
	return &redisStore{client: client, prefix: prefix, log: log}
}

// connectRedis pings until the server answers, retrying a few times so the
// service can start alongside a redis container that is still booting.
func connectRedis(ctx context.Context, url string, attempts int, interval, timeout time.Duration) (*redis.Client, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(url))
	if err != nil {
		return nil, errors.Join(ErrRedisURL, err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for i := 0; i < max(1, attempts); i++ {
		client := redis.NewClient(opt)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-t.C:
		}
	}
	return nil, errors.Join(ErrRedisNotReady, lastErr)
}

func (s *redisStore) suppressKey(key string) string { return s.prefix + "suppress:" + key }
func (s *redisStore) historyKey() string            { return s.prefix + "history" }

func (s *redisStore) PutSuppression(ctx context.Context, key string, until time.Time) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return s.client.Del(ctx, s.suppressKey(key)).Err()
	}
	return s.client.Set(ctx, s.suppressKey(key), "1", ttl).Err()
}

func (s *redisStore) GetSuppression(ctx context.Context, key string) (time.Time, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return time.Time{}, false, nil
	}
	ttl, err := s.client.PTTL(ctx, s.suppressKey(key)).Result()
	if err != nil {
		return time.Time{}, false, err
	}
	switch {
	case ttl == -2:
		return time.Time{}, false, nil
	case ttl < 0:
		// Written without expiry by someone else; treat as suppressed for a day.
		return time.Now().Add(24 * time.Hour), true, nil
	default:
		return time.Now().Add(ttl), true, nil
	}
}

func (s *redisStore) AppendHistory(ctx context.Context, e HistoryEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, s.historyKey(), b)
		p.LTrim(ctx, s.historyKey(), 0, historyCap-1)
		return nil
	})
	return err
}

func (s *redisStore) RecentHistory(ctx context.Context, n int) ([]HistoryEntry, error) {
	if n <= 0 || n > historyCap {
		n = historyCap
	}
	raw, err := s.client.LRange(ctx, s.historyKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(raw))
	for _, r := range raw {
		var e HistoryEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			s.log.Debug("skipping malformed history entry", logx.Err(err))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *redisStore) Close() error { return s.client.Close() }
