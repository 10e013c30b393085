// Package redis is the shared dedup backend for multi-instance deployments.
// Each destination is a Redis set of visitor states whose TTL is set by the
// first member only.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wadjakorntonsri/go-callback-links/pkg/core/domain"
)

const DefaultKeyPrefix = "links:"

// recordVisit adds ARGV[1] to the set and sets the expiry only when the set
// has none yet. Returns 1 for a new member, 0 otherwise.
var recordVisit = redis.NewScript(`
local added = redis.call('SADD', KEYS[1], ARGV[1])
if redis.call('PTTL', KEYS[1]) == -1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return added
`)

type VisitStore struct {
	client    redis.UniversalClient
	retention time.Duration
	prefix    string
}

// NewVisitStore connects to redisURL (redis:// or rediss://) and pings it.
func NewVisitStore(ctx context.Context, redisURL, prefix string, retention time.Duration) (*VisitStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis options: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w: %v", domain.ErrBackendUnavailable, err)
	}
	return NewVisitStoreWithClient(client, prefix, retention), nil
}

func NewVisitStoreWithClient(client redis.UniversalClient, prefix string, retention time.Duration) *VisitStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &VisitStore{client: client, retention: retention, prefix: prefix}
}

func (s *VisitStore) key(k domain.VisitKey) string {
	return s.prefix + "visit:" + k.String()
}

func (s *VisitStore) TryRecordFirstVisit(ctx context.Context, destination, origin, state string) (bool, error) {
	key := s.key(domain.NewVisitKey(origin, destination))
	ttl := s.retention.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}

	added, err := recordVisit.Run(ctx, s.client, []string{key}, state, ttl).Int64()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false, err
		}
		return false, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	return added == 1, nil
}

func (s *VisitStore) Close() error {
	return s.client.Close()
}
