// Package waveform defines the waveform-extraction collaborator contract
// and a caching wrapper. Actual peak extraction belongs to the external
// media engine.
package waveform

import (
	"context"
	"sync"
)

// Request identifies the media to extract peaks from.
type Request struct {
	MediaPath        string
	ProjectID        string
	SamplesPerSecond int
}

// Result carries normalized peak values for rendering.
type Result struct {
	Peaks            []float64
	SamplesPerSecond int
	DurationMs       int64
}

// Extractor produces waveform peaks for a media file.
type Extractor interface {
	Extract(ctx context.Context, req Request) (Result, error)
}

type cacheKey struct {
	mediaPath string
	projectID string
}

// CachingExtractor memoizes extraction results by (mediaPath, projectID).
// Extraction is idempotent for a given pair, so a hit never needs
// invalidation while the project is open.
type CachingExtractor struct {
	inner Extractor

	mu    sync.Mutex
	cache map[cacheKey]Result
}

func NewCachingExtractor(inner Extractor) *CachingExtractor {
	return &CachingExtractor{inner: inner, cache: make(map[cacheKey]Result)}
}

func (c *CachingExtractor) Extract(ctx context.Context, req Request) (Result, error) {
	key := cacheKey{mediaPath: req.MediaPath, projectID: req.ProjectID}

	c.mu.Lock()
	if res, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return res, nil
	}
	c.mu.Unlock()

	res, err := c.inner.Extract(ctx, req)
	if err != nil {
		return Result{}, err
	}

	c.mu.Lock()
	c.cache[key] = res
	c.mu.Unlock()
	return res, nil
}
