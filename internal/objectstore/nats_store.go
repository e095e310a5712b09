// Package objectstore provides a NATS-based implementation of the ObjectStore interface.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/book-expert/tts-editor/internal/core"
)

// NatsObjectStore implements the core.ObjectStore interface using NATS JetStream.
type NatsObjectStore struct {
	bucket string
	store  nats.ObjectStore
}

// New creates and initializes a new NatsObjectStore.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsObjectStore, error) {
	// Use a "create-first" approach.
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Storage for the %s bucket.", bucketName),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})

	// If the bucket already exists, bind to it.
	if err != nil {
		if errors.Is(err, jetstream.ErrBucketExists) || errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			store, err = jetstreamContext.ObjectStore(bucketName)
			if err != nil {
				return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
			}
		} else {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsObjectStore{
		bucket: bucketName,
		store:  store,
	}, nil
}

// Download retrieves an object from the NATS object store.
func (n *NatsObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	obj, err := n.store.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, core.NotFoundf("object '%s' in bucket '%s'", key, n.bucket)
		}

		return nil, core.StorageErrorf(err, "failed to get object '%s' from bucket '%s'", key, n.bucket)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, core.StorageErrorf(readErr, "failed to read object '%s'", key)
	}

	if closeErr != nil {
		return data, core.StorageErrorf(closeErr, "failed to close object '%s'", key)
	}

	return data, nil
}

// Upload saves an object to the NATS object store.
func (n *NatsObjectStore) Upload(_ context.Context, key string, data []byte) error {
	reader := bytes.NewReader(data)

	_, err := n.store.Put(&nats.ObjectMeta{Name: key}, reader)
	if err != nil {
		return core.StorageErrorf(err, "failed to put object '%s' to bucket '%s'", key, n.bucket)
	}

	return nil
}

// Delete removes an object. Deleting an absent object is not an error.
func (n *NatsObjectStore) Delete(_ context.Context, key string) error {
	err := n.store.Delete(key)
	if err != nil && !errors.Is(err, nats.ErrObjectNotFound) {
		return core.StorageErrorf(err, "failed to delete object '%s' from bucket '%s'", key, n.bucket)
	}

	return nil
}

// Clear removes every object of the bucket.
func (n *NatsObjectStore) Clear(ctx context.Context) error {
	infos, err := n.store.List()
	if err != nil {
		if errors.Is(err, nats.ErrNoObjectsFound) {
			return nil
		}

		return core.StorageErrorf(err, "failed to list bucket '%s'", n.bucket)
	}

	for _, info := range infos {
		deleteErr := n.Delete(ctx, info.Name)
		if deleteErr != nil {
			return deleteErr
		}
	}

	return nil
}
