package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCorruptSnapshot is returned by a store whose persisted snapshot cannot be decoded.
var ErrCorruptSnapshot = errors.New("corrupt rate limit snapshot")

// Snapshot maps a principal to its event times in epoch milliseconds.
type Snapshot map[string][]int64

// Store persists limiter snapshots between runs.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// FileStore handles JSON persistence of limiter snapshots.
type FileStore struct {
	filePath string
}

// NewFileStore creates a new store for the given file path.
func NewFileStore(filePath string) *FileStore {
	return &FileStore{filePath: filePath}
}

// Path returns the snapshot file path.
func (s *FileStore) Path() string {
	return s.filePath
}

// Save writes the snapshot to a temporary file and renames it into place.
func (s *FileStore) Save(ctx context.Context, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot. A missing file is an empty snapshot. An
// undecodable file is moved to <path>.corrupt and ErrCorruptSnapshot is returned.
func (s *FileStore) Load(ctx context.Context) (Snapshot, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	snap := Snapshot{}
	if err := json.Unmarshal(data, &snap); err != nil {
		if renameErr := os.Rename(s.filePath, s.filePath+".corrupt"); renameErr != nil {
			return nil, fmt.Errorf("%w: %v (move aside failed: %v)", ErrCorruptSnapshot, err, renameErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return snap, nil
}

// RedisStore keeps the snapshot under a single key so cooperating
// processes can pick up each other's state at load and flush time.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore constructs a Redis-backed snapshot store. Entries expire
// after ttl so an abandoned snapshot does not linger.
func NewRedisStore(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, key: key, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return s.client.Set(ctx, s.key, data, s.ttl).Err()
}

func (s *RedisStore) Load(ctx context.Context) (Snapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	snap := Snapshot{}
	if err := json.Unmarshal(data, &snap); err != nil {
		s.client.Del(ctx, s.key)
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return snap, nil
}

// NewRedisClient dials addr and pings it. addr may be host:port or a redis:// URL.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
