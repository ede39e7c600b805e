package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix      = "ytdl:artifact:"
	connectTimeout = 2 * time.Second
)

// RedisCatalog implements Catalog on Redis. Entries expire after the file
// retention window so the index never outlives the files it describes.
type RedisCatalog struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCatalog connects to url and verifies the connection
func NewRedisCatalog(url string, ttl time.Duration) (*RedisCatalog, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisCatalog{client: client, ttl: ttl}, nil
}

// Put stores entry under its id
func (c *RedisCatalog) Put(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		return errors.New("catalog entry without id")
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := c.client.Set(ctx, key(entry.ID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("store entry: %w", err)
	}
	return nil
}

// Get returns the entry for id, or ErrNotFound
func (c *RedisCatalog) Get(ctx context.Context, id string) (Entry, error) {
	data, err := c.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("load entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, fmt.Errorf("decode entry: %w", err)
	}
	return entry, nil
}

// Forget removes the entry for id; a missing entry is not an error
func (c *RedisCatalog) Forget(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// Close closes the underlying Redis client
func (c *RedisCatalog) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func key(id string) string {
	return keyPrefix + id
}
