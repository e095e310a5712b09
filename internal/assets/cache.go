// Package assets fetches the engine's dictionary and model files. Every file
// is cached in an object store under its URL so the network is only hit once.
package assets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/book-expert/logger"

	"github.com/book-expert/tts-editor/internal/core"
)

// Downloader fetches a resource by URL.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Cache is a URL-keyed asset cache. Content is stored base64 encoded.
type Cache struct {
	store      core.ObjectStore
	downloader Downloader
	log        *logger.Logger
}

// NewCache creates a cache over store, filling misses with downloader.
func NewCache(store core.ObjectStore, downloader Downloader, log *logger.Logger) *Cache {
	return &Cache{
		store:      store,
		downloader: downloader,
		log:        log,
	}
}

// Fetch returns the content of url, from the store when cached.
func (c *Cache) Fetch(ctx context.Context, url string) ([]byte, error) {
	encoded, err := c.store.Download(ctx, url)
	if err == nil {
		data, decodeErr := base64.StdEncoding.DecodeString(string(encoded))
		if decodeErr == nil {
			return data, nil
		}

		c.log.Warn("Discarding corrupt cached asset %s: %v", url, decodeErr)
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("failed to read cached asset %s: %w", url, err)
	}

	data, err := c.downloader.Download(ctx, url)
	if err != nil {
		return nil, err
	}

	err = c.store.Upload(ctx, url, []byte(base64.StdEncoding.EncodeToString(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to cache asset %s: %w", url, err)
	}

	c.log.Info("Cached asset %s (%d bytes)", url, len(data))

	return data, nil
}

// Clear drops every cached asset.
func (c *Cache) Clear(ctx context.Context) error {
	err := c.store.Clear(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear asset cache: %w", err)
	}

	return nil
}
