package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wincodesign/authenticode/lib/pkcs7"
	"github.com/wincodesign/authenticode/lib/pkcs9"
)

type countingTimestamper struct {
	calls int
}

func (c *countingTimestamper) Timestamp(ctx context.Context, req *pkcs9.Request) (*pkcs7.ContentInfoSignedData, error) {
	c.calls++
	return &pkcs7.ContentInfoSignedData{}, nil
}

func TestNewWithZeroRateIsPassthrough(t *testing.T) {
	inner := &countingTimestamper{}
	t2 := New(inner, 0, 0)
	assert.Same(t, pkcs9.Timestamper(inner), t2)
}

func TestLimiterDelaysRequestsPastBurst(t *testing.T) {
	inner := &countingTimestamper{}
	t2 := New(inner, 2, 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := t2.Timestamp(context.Background(), &pkcs9.Request{})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, inner.calls)
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
}

func TestLimiterRespectsCancelledContext(t *testing.T) {
	inner := &countingTimestamper{}
	t2 := New(inner, 0.001, 1)
	_, err := t2.Timestamp(context.Background(), &pkcs9.Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = t2.Timestamp(ctx, &pkcs9.Request{})
	assert.Error(t, err)
}
