// Package querycache caches WFS GetFeature pages in Redis, zstd-compressed.
package querycache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/mohammed-shakir/geoview/internal/core/executor"
	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/core/observability"
	"github.com/mohammed-shakir/geoview/internal/core/ogc"
	"github.com/mohammed-shakir/geoview/internal/querycache/keys"
)

// Store is the subset of redisstore.Client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Executor serves GetFeature pages from the cache and fills it on a miss.
// Cache errors degrade to upstream calls.
type Executor struct {
	next   executor.Interface
	store  Store
	ttl    time.Duration
	logger *slog.Logger
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

var _ executor.Interface = (*Executor)(nil)

const cachedContentType = "application/json"

func New(next executor.Interface, store Store, ttl time.Duration, logger *slog.Logger) (*Executor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Executor{next: next, store: store, ttl: ttl, logger: logger, enc: enc, dec: dec}, nil
}

// KeyFor returns the cache key of q.
func KeyFor(q model.QueryRequest) (string, error) {
	spatial := ""
	switch {
	case q.Polygon != nil:
		f, err := ogc.IntersectsFilter(q.Polygon, q.GeometryField)
		if err != nil {
			return "", err
		}
		spatial = f
	case q.BBox != nil:
		spatial = q.BBox.String()
	}
	return keys.Key(keys.Page{
		Layer:      q.Layer,
		SRS:        q.SRSName,
		Spatial:    spatial,
		Filter:     q.Filters,
		StartIndex: q.StartIndex,
		Count:      q.Count,
	}), nil
}

func (e *Executor) FetchGetFeature(ctx context.Context, q model.QueryRequest) ([]byte, string, error) {
	key, err := KeyFor(q)
	if err != nil {
		return nil, "", err
	}

	if raw, ok, err := e.store.Get(ctx, key); err != nil {
		e.logger.Warn("query cache read failed", "key", key, "err", err)
	} else if ok {
		body, derr := e.dec.DecodeAll(raw, nil)
		if derr == nil {
			observability.AddCacheHits(1)
			return body, cachedContentType, nil
		}
		e.logger.Warn("query cache entry unreadable", "key", key, "err", derr)
	}
	observability.AddCacheMisses(1)

	body, ct, err := e.next.FetchGetFeature(ctx, q)
	if err != nil {
		return nil, "", err
	}
	if err := e.store.Set(ctx, key, e.enc.EncodeAll(body, nil), e.ttl); err != nil {
		e.logger.Warn("query cache write failed", "key", key, "err", err)
	}
	return body, ct, nil
}

// InvalidateLayer drops every cached page of the WFS type name layer.
func (e *Executor) InvalidateLayer(ctx context.Context, layer string) (int, error) {
	n, err := e.store.DeletePrefix(ctx, keys.LayerPrefix(layer))
	if err != nil {
		return n, fmt.Errorf("invalidate %s: %w", layer, err)
	}
	e.logger.InfoContext(ctx, "query cache invalidated", "layer", layer, "entries", n)
	return n, nil
}
