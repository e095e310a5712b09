// Package kvstore provides the durable key-value backends of the editor:
// a NATS JetStream key-value bucket and a SQLite file.
package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/book-expert/tts-editor/internal/core"
)

// NatsKV implements core.KVStore using a NATS JetStream key-value bucket.
type NatsKV struct {
	bucket string
	kv     nats.KeyValue
}

// NewNatsKV creates the bucket or binds to it when it already exists.
func NewNatsKV(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsKV, error) {
	kv, err := jetstreamContext.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Editor records in the %s bucket.", bucketName),
		History:     1,
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create key-value bucket '%s': %w", bucketName, err)
		}

		kv, err = jetstreamContext.KeyValue(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing key-value bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsKV{bucket: bucketName, kv: kv}, nil
}

// Get returns the value stored under key.
func (n *NatsKV) Get(_ context.Context, key string) ([]byte, error) {
	entry, err := n.kv.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, core.NotFoundf("key '%s' in bucket '%s'", key, n.bucket)
		}

		return nil, core.StorageErrorf(err, "failed to get key '%s' from bucket '%s'", key, n.bucket)
	}

	return entry.Value(), nil
}

// Set stores value under key.
func (n *NatsKV) Set(_ context.Context, key string, value []byte) error {
	_, err := n.kv.Put(key, value)
	if err != nil {
		return core.StorageErrorf(err, "failed to put key '%s' to bucket '%s'", key, n.bucket)
	}

	return nil
}

// Remove deletes key and its history. Removing an absent key is not an error.
func (n *NatsKV) Remove(_ context.Context, key string) error {
	err := n.kv.Purge(key)
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return core.StorageErrorf(err, "failed to remove key '%s' from bucket '%s'", key, n.bucket)
	}

	return nil
}

// Keys lists every live key.
func (n *NatsKV) Keys(_ context.Context) ([]string, error) {
	keys, err := n.kv.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return []string{}, nil
		}

		return nil, core.StorageErrorf(err, "failed to list keys of bucket '%s'", n.bucket)
	}

	return keys, nil
}

// Clear removes every key of the bucket.
func (n *NatsKV) Clear(ctx context.Context) error {
	keys, err := n.Keys(ctx)
	if err != nil {
		return err
	}

	for _, key := range keys {
		removeErr := n.Remove(ctx, key)
		if removeErr != nil {
			return removeErr
		}
	}

	return nil
}

// Close is a no-op; the NATS connection is owned by the caller.
func (n *NatsKV) Close() error {
	return nil
}
