// Package redispersist implements persist.Store on top of Redis, grounded
// on the connection-pool/Get/Set shape of the teacher's cache package.
package redispersist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/workflowforge/engine/internal/persist"
)

// Config mirrors the pool/timeout tuning of the teacher's cache.Config.
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int

	// TTL bounds how long a checkpoint survives after its last write. Zero
	// means no expiration.
	TTL time.Duration
}

// Store persists Artifacts as JSON strings under "workflow:checkpoint:<runID>".
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New dials Redis with the same pool/retry tuning the teacher's cache
// package uses, and pings once to fail fast on misconfiguration.
func New(cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     25,
		MinIdleConns: 5,
		MaxIdleConns: 10,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redispersist: failed to ping redis: %w", err)
	}

	return &Store{client: client, ttl: cfg.TTL}, nil
}

func key(runID string) string {
	return "workflow:checkpoint:" + runID
}

const checkpointPattern = "workflow:checkpoint:*"

func runIDFromKey(k string) string {
	return k[len("workflow:checkpoint:"):]
}

// Save implements persist.Store.
func (s *Store) Save(runID string, a persist.Artifact) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("redispersist: failed to marshal artifact: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, key(runID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redispersist: failed to set checkpoint for %s: %w", runID, err)
	}
	return nil
}

// Load implements persist.Store.
func (s *Store) Load(runID string) (*persist.Artifact, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	val, err := s.client.Get(ctx, key(runID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redispersist: failed to get checkpoint for %s: %w", runID, err)
	}

	var a persist.Artifact
	if err := json.Unmarshal([]byte(val), &a); err != nil {
		return nil, false, fmt.Errorf("redispersist: failed to unmarshal checkpoint for %s: %w", runID, err)
	}
	return &a, true, nil
}

// StaleRunIDs implements sweep.ScanStore, scanning checkpoint keys with
// the cursor-based SCAN the teacher's cache.DeletePattern uses, then
// filtering by each artifact's UpdatedAt.
func (s *Store) StaleRunIDs(olderThan time.Duration) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-olderThan)
	var stale []string

	iter := s.client.Scan(ctx, 0, checkpointPattern, 0).Iterator()
	for iter.Next(ctx) {
		runID := runIDFromKey(iter.Val())
		artifact, found, err := s.Load(runID)
		if err != nil || !found {
			continue
		}
		if artifact.UpdatedAt.Before(cutoff) {
			stale = append(stale, runID)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redispersist: failed to scan checkpoint keys: %w", err)
	}
	return stale, nil
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
