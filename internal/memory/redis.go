package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// SnapshotStore persists memory snapshots in Redis, one versioned hash
// per senator. It plays the persistence-collaborator role: the core
// only ever hands it ToDict/FromDict mappings.
type SnapshotStore struct {
	mu      sync.Mutex
	client  *redis.Client
	options *redis.Options
	logger  *log.Logger
	prefix  string
}

// NewSnapshotStore returns a store using the given Redis options.
func NewSnapshotStore(opts *redis.Options, logger *log.Logger) *SnapshotStore {
	if logger == nil {
		logger = log.Default()
	}
	return &SnapshotStore{
		client:  redis.NewClient(opts),
		options: opts,
		logger:  logger,
		prefix:  "senate:memory:",
	}
}

// ensureConnection pings Redis and reconnects if needed.
func (s *SnapshotStore) ensureConnection(ctx context.Context) {
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.logger.Println("memory snapshot reconnecting to Redis", err)
		s.client = redis.NewClient(s.options)
	}
}

// Save writes the store's snapshot under senatorID and returns the new
// version.
func (s *SnapshotStore) Save(ctx context.Context, senatorID string, store *Store) (int64, error) {
	s.ensureConnection(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(store.ToDict())
	if err != nil {
		return 0, fmt.Errorf("memory snapshot encode: %w", err)
	}
	key := s.prefix + senatorID
	var ver int64 = 1
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		res, _ := tx.HGet(ctx, key, "version").Int64()
		ver = res + 1
		pipe := tx.TxPipeline()
		pipe.HSet(ctx, key, "value", data, "version", ver)
		_, err := pipe.Exec(ctx)
		return err
	}, key)
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Load replaces store's contents from the snapshot under senatorID and
// returns the stored version. A missing snapshot returns version zero
// and leaves the store untouched.
func (s *SnapshotStore) Load(ctx context.Context, senatorID string, store *Store) (int64, error) {
	s.ensureConnection(ctx)
	key := s.prefix + senatorID
	res, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if len(res) == 0 {
		return 0, nil
	}
	var d map[string]interface{}
	if err := json.Unmarshal([]byte(res["value"]), &d); err != nil {
		return 0, fmt.Errorf("memory snapshot decode: %w", err)
	}
	if err := store.FromDict(d); err != nil {
		return 0, err
	}
	ver, _ := strconv.ParseInt(res["version"], 10, 64)
	return ver, nil
}

// Delete removes the snapshot stored under senatorID.
func (s *SnapshotStore) Delete(ctx context.Context, senatorID string) error {
	s.ensureConnection(ctx)
	return s.client.Del(ctx, s.prefix+senatorID).Err()
}

// Close closes the Redis connection.
func (s *SnapshotStore) Close() error {
	return s.client.Close()
}
