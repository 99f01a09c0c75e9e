// Package cloudstore is the cloud-synced key-value backend, backed by Redis.
// It mirrors the wallet keys across devices; a second device writing the same
// keys shows up here as an external change notification.
//
// Every operation is best-effort from the wallet's point of view: errors are
// reported to the dual store, which degrades to local-only rather than
// failing the mutation.
package cloudstore

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// changeChannel carries cross-device change notifications. Each publisher
// tags messages with its instance ID so it can ignore its own writes.
const changeChannel = "blossom:wallet:changes"

// Config defines the Redis connection settings.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string // empty if none
	DB       int

	// Namespace prefixes every key so several wallets can share a server.
	Namespace string
}

// Store implements domain.WatchableBackend on a Redis connection.
type Store struct {
	rdb       *redis.Client
	namespace string
	id        string // this process's publisher identity
}

// New connects and verifies the connection with a ping.
func New(cfg Config) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	ns := cfg.Namespace
	if ns == "" {
		ns = "blossom"
	}

	return &Store{rdb: rdb, namespace: ns, id: uuid.NewString()}, nil
}

// Close releases the connection.
func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) key(k string) string { return s.namespace + ":" + k }

// Get returns the stored value and whether the key exists.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set writes the key and announces the change to other devices.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return err
	}
	s.announce(ctx)
	return nil
}

// Delete removes the key and announces the change.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return err
	}
	s.announce(ctx)
	return nil
}

// Keys lists stored keys with the given prefix, namespace stripped. Used
// by the dual store's reset sweep.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, s.key(prefix)+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.namespace+":"))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// announce publishes a change marker. Failures are logged, not returned —
// a missed notification only delays the next reconciled read.
func (s *Store) announce(ctx context.Context) {
	if err := s.rdb.Publish(ctx, changeChannel, s.id).Err(); err != nil {
		log.Printf("[cloudstore] publish change: %v", err)
	}
}

// Watch delivers a signal whenever another device announces a change.
// Messages published by this process are filtered out. The channel closes
// when ctx is done.
func (s *Store) Watch(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	sub := s.rdb.Subscribe(ctx, changeChannel)

	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload == s.id {
					continue // our own write
				}
				select {
				case out <- struct{}{}:
				default: // a signal is already pending
				}
			}
		}
	}()

	return out
}
