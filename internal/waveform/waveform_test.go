package waveform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingExtractor struct {
	calls int
	err   error
}

func (c *countingExtractor) Extract(_ context.Context, req Request) (Result, error) {
	c.calls++
	if c.err != nil {
		return Result{}, c.err
	}
	return Result{
		Peaks:            []float64{0.1, 0.9, 0.4},
		SamplesPerSecond: req.SamplesPerSecond,
		DurationMs:       30000,
	}, nil
}

func TestCachingExtractor_SecondCallIsHit(t *testing.T) {
	inner := &countingExtractor{}
	c := NewCachingExtractor(inner)
	req := Request{MediaPath: "/media/a.mp4", ProjectID: "p1", SamplesPerSecond: 50}

	first, err := c.Extract(context.Background(), req)
	require.NoError(t, err)
	second, err := c.Extract(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 1, inner.calls)
	require.Equal(t, first, second)
}

func TestCachingExtractor_DistinctKeysMiss(t *testing.T) {
	inner := &countingExtractor{}
	c := NewCachingExtractor(inner)

	_, err := c.Extract(context.Background(), Request{MediaPath: "/media/a.mp4", ProjectID: "p1"})
	require.NoError(t, err)
	_, err = c.Extract(context.Background(), Request{MediaPath: "/media/a.mp4", ProjectID: "p2"})
	require.NoError(t, err)
	_, err = c.Extract(context.Background(), Request{MediaPath: "/media/b.mp4", ProjectID: "p1"})
	require.NoError(t, err)

	require.Equal(t, 3, inner.calls)
}

func TestCachingExtractor_ErrorsAreNotCached(t *testing.T) {
	inner := &countingExtractor{err: errors.New("decode failed")}
	c := NewCachingExtractor(inner)
	req := Request{MediaPath: "/media/a.mp4", ProjectID: "p1"}

	_, err := c.Extract(context.Background(), req)
	require.Error(t, err)

	inner.err = nil
	_, err = c.Extract(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}
