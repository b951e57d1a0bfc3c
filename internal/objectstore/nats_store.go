// Package objectstore provides a NATS JetStream implementation of the
// core.ObjectStore interface, used by the NATS worker to archive generated
// audio under its job key.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// ErrKeyEmpty indicates an upload or download with an empty key.
var ErrKeyEmpty = errors.New("object key cannot be empty")

// AudioStore stores audio blobs in a JetStream object store bucket.
type AudioStore struct {
	bucket string
	store  nats.ObjectStore
}

// New creates an AudioStore bound to the named bucket, creating the bucket
// when it does not exist yet.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*AudioStore, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Generated audio artifacts for the %s bucket.", bucketName),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf(
				"failed to create object store bucket '%s': %w",
				bucketName,
				err,
			)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf(
				"failed to bind to existing object store bucket '%s': %w",
				bucketName,
				err,
			)
		}
	}

	return &AudioStore{
		bucket: bucketName,
		store:  store,
	}, nil
}

// Download retrieves an audio object by key.
func (s *AudioStore) Download(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}

	obj, getErr := s.store.Get(key)
	if getErr != nil {
		return nil, fmt.Errorf(
			"failed to get object '%s' from bucket '%s': %w",
			key,
			s.bucket,
			getErr,
		)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	return data, nil
}

// Upload saves an audio object under key.
func (s *AudioStore) Upload(_ context.Context, key string, data []byte) error {
	if key == "" {
		return ErrKeyEmpty
	}

	_, putErr := s.store.Put(&nats.ObjectMeta{Name: key}, bytes.NewReader(data))
	if putErr != nil {
		return fmt.Errorf(
			"failed to put object '%s' to bucket '%s': %w",
			key,
			s.bucket,
			putErr,
		)
	}

	return nil
}
