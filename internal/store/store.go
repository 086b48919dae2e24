// Package store implements the keyed JSON state store on Redis.
// Every document is a JSON value under a well-known key; list keys hold
// newest-first arrays. Update performs an optimistic WATCH/MULTI
// read-modify-write so concurrent writers cannot lose updates.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	connectionTimeout = 2 * time.Second
	maxUpdateRetries  = 5
)

// Store is a keyed JSON document store backed by Redis.
type Store struct {
	client *redis.Client
}

// New wraps an existing Redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Connect creates a Redis client, verifies connectivity, and returns a
// Store using it.
func Connect(addr, password string, db int) (*Store, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, nil, fmt.Errorf("connect to Redis: %w", err)
	}

	return New(client), client, nil
}

// Ping verifies the backing connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Read unmarshals the document at key into T. A missing key yields the
// zero value of T without error, matching the store contract that
// absent state reads as empty.
func Read[T any](ctx context.Context, s *Store, key Key) (T, error) {
	var out T

	raw, err := s.client.Get(ctx, string(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("read %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

// Write marshals value and stores it at key, replacing any previous
// document.
func Write[T any](ctx context.Context, s *Store, key Key, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	if err := s.client.Set(ctx, string(key), raw, 0).Err(); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Update applies fn to the current document at key and writes the
// result back under a WATCH, retrying on write conflicts. fn receives
// the zero value of T when the key does not exist yet.
func Update[T any](ctx context.Context, s *Store, key Key, fn func(T) (T, error)) error {
	txf := func(tx *redis.Tx) error {
		var current T

		raw, err := tx.Get(ctx, string(key)).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			// Key absent: fn starts from the zero value.
		case err != nil:
			return fmt.Errorf("read %s: %w", key, err)
		default:
			if err := json.Unmarshal(raw, &current); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, string(key), encoded, 0)
			return nil
		})
		return err
	}

	for range maxUpdateRetries {
		err := s.client.Watch(ctx, txf, string(key))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	return fmt.Errorf("update %s: too many write conflicts", key)
}

// Append prepends item to the list document at key; lists are kept
// newest first throughout the store.
func Append[T any](ctx context.Context, s *Store, key Key, item T) error {
	return Update(ctx, s, key, func(list []T) ([]T, error) {
		return append([]T{item}, list...), nil
	})
}
