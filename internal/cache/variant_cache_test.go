package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	catalogdomain "github.com/smallbiznis/posbridge/internal/catalog/domain"
	"github.com/smallbiznis/posbridge/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls    int
	variants map[int64]*catalogdomain.Variant
	err      error
}

func (s *countingSource) FindByVariantID(_ context.Context, id int64) (*catalogdomain.Variant, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.variants[id], nil
}

func TestTTLCacheExpires(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewTTLCache[string, int](clk)

	c.Set("a", 1, time.Minute)
	c.Set("skip", 2, 0)

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, got)
	_, ok = c.Get("skip")
	assert.False(t, ok)

	clk.Advance(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestVariantCacheServesHitsAndMisses(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	barcode := "B1"
	source := &countingSource{variants: map[int64]*catalogdomain.Variant{
		11: {VariantID: 11, Barcode: &barcode},
	}}
	c := NewVariantCacheWithTTL(source, clk, 10*time.Minute, time.Minute)
	ctx := context.Background()

	v, err := c.FindByVariantID(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, "B1", v.ItemCode())
	v.VariantID = 999

	v, err = c.FindByVariantID(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, int64(11), v.VariantID)
	assert.Equal(t, 1, source.calls)

	missing, err := c.FindByVariantID(ctx, 12)
	require.NoError(t, err)
	assert.Nil(t, missing)
	_, _ = c.FindByVariantID(ctx, 12)
	assert.Equal(t, 2, source.calls)

	clk.Advance(2 * time.Minute)
	_, _ = c.FindByVariantID(ctx, 12)
	_, _ = c.FindByVariantID(ctx, 11)
	assert.Equal(t, 3, source.calls)

	c.Purge()
	_, _ = c.FindByVariantID(ctx, 11)
	assert.Equal(t, 4, source.calls)
}

func TestVariantCacheDoesNotCacheErrors(t *testing.T) {
	source := &countingSource{err: errors.New("db down")}
	c := NewVariantCacheWithTTL(source, clock.SystemClock{}, time.Minute, time.Minute)

	_, err := c.FindByVariantID(context.Background(), 1)
	require.Error(t, err)
	_, err = c.FindByVariantID(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, 2, source.calls)
}
