package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket(t *testing.T) {
	bucket := NewTokenBucket(3, 3*time.Second)
	start := bucket.last

	for i := 0; i < 3; i++ {
		assert.True(t, bucket.AllowAt(start), "frame %d", i)
	}
	assert.False(t, bucket.AllowAt(start))
	assert.Zero(t, bucket.Remaining())

	// Partial intervals accumulate.
	assert.False(t, bucket.AllowAt(start.Add(600*time.Millisecond)))
	assert.True(t, bucket.AllowAt(start.Add(1200*time.Millisecond)))
	assert.False(t, bucket.AllowAt(start.Add(1900*time.Millisecond)))
	assert.True(t, bucket.AllowAt(start.Add(2*time.Second)))

	// A long idle period refills only up to capacity.
	later := start.Add(time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, bucket.AllowAt(later))
	}
	assert.False(t, bucket.AllowAt(later))
}

func TestTokenBucket_MinimumBurst(t *testing.T) {
	bucket := NewTokenBucket(0, time.Second)
	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow())
}
