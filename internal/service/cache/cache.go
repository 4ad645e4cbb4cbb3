package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	apperrors "github.com/Taichi-iskw/yt-skip/internal/errors"
	"github.com/Taichi-iskw/yt-skip/internal/model"
	"github.com/Taichi-iskw/yt-skip/internal/repository"
)

// Persisted key layout
const (
	KeyPrefix = "rskip_cache_v1_"
	LegacyKey = "rskip_cache_v1"
)

// Key returns the per-video key for id
func Key(id model.VideoID) string {
	return KeyPrefix + string(id)
}

// isCacheKey reports whether key belongs to the cache, in either schema
func isCacheKey(key string) bool {
	return key == LegacyKey || strings.HasPrefix(key, KeyPrefix)
}

// Cache maps a video to its analysis artifact
type Cache interface {
	// Get never fails: storage and decoding errors are logged and reported as a miss
	Get(ctx context.Context, id model.VideoID) (model.Artifact, bool)
	Put(ctx context.Context, id model.VideoID, artifact model.Artifact) error
	ClearAll(ctx context.Context) (int, error)
	List(ctx context.Context) ([]model.VideoID, error)
}

// cacheStore implements Cache on top of a key/value store
type cacheStore struct {
	kv     repository.Store
	logger *slog.Logger
}

// New creates a Cache backed by kv
func New(kv repository.Store, logger *slog.Logger) Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &cacheStore{
		kv:     kv,
		logger: logger.With("component", "cache"),
	}
}

func (c *cacheStore) Get(ctx context.Context, id model.VideoID) (model.Artifact, bool) {
	raw, ok, err := c.kv.Get(ctx, Key(id))
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss", "video_id", id, "error", err)
		return nil, false
	}
	if ok {
		artifact, err := decodeArtifact(raw)
		if err != nil {
			c.logger.Warn("cache entry unreadable, treating as miss", "video_id", id, "error", err)
			return nil, false
		}
		return artifact, true
	}

	return c.getLegacy(ctx, id)
}

// getLegacy falls back to the aggregate blob and migrates a hit forward
func (c *cacheStore) getLegacy(ctx context.Context, id model.VideoID) (model.Artifact, bool) {
	blob, ok, err := c.kv.Get(ctx, LegacyKey)
	if err != nil {
		c.logger.Warn("legacy cache read failed, treating as miss", "video_id", id, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	artifact, found, err := legacyLookup(blob, id)
	if err != nil {
		c.logger.Warn("legacy cache unreadable, treating as miss", "video_id", id, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	if err := c.Put(ctx, id, artifact); err != nil {
		c.logger.Warn("legacy cache migration failed", "video_id", id, "error", err)
	} else {
		c.logger.Debug("migrated legacy cache entry", "video_id", id)
	}
	return artifact, true
}

func (c *cacheStore) Put(ctx context.Context, id model.VideoID, artifact model.Artifact) error {
	if err := id.Validate(); err != nil {
		return err
	}
	if artifact == nil {
		artifact = model.Artifact{}
	}

	raw, err := json.Marshal(artifact)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorage, "failed to encode artifact")
	}

	if err := c.kv.Set(ctx, Key(id), raw); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorage, "failed to write cache entry")
	}
	return nil
}

func (c *cacheStore) ClearAll(ctx context.Context) (int, error) {
	keys, err := c.kv.Keys(ctx)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeStorage, "failed to list cache keys")
	}

	var toRemove []string
	for _, key := range keys {
		if isCacheKey(key) {
			toRemove = append(toRemove, key)
		}
	}

	if len(toRemove) == 0 {
		return 0, nil
	}

	if err := c.kv.Remove(ctx, toRemove...); err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeStorage, "failed to remove cache keys")
	}

	c.logger.Info("cache cleared", "removed", len(toRemove))
	return len(toRemove), nil
}

func (c *cacheStore) List(ctx context.Context) ([]model.VideoID, error) {
	keys, err := c.kv.Keys(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorage, "failed to list cache keys")
	}

	ids := []model.VideoID{}
	for _, key := range keys {
		if strings.HasPrefix(key, KeyPrefix) {
			ids = append(ids, model.VideoID(strings.TrimPrefix(key, KeyPrefix)))
		}
	}
	return ids, nil
}
