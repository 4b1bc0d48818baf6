package security

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowWithinWindow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 2, time.Minute)

	key := "ratelimit:booking:user:user_1"

	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectExpire(key, time.Minute).SetVal(true)
	ok, err := limiter.allow(context.Background(), "user:user_1")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectIncr(key).SetVal(2)
	ok, err = limiter.allow(context.Background(), "user:user_1")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectIncr(key).SetVal(3)
	ok, err = limiter.allow(context.Background(), "user:user_1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllowRedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 2, time.Minute)

	mock.ExpectIncr("ratelimit:booking:1.2.3.4").SetErr(assert.AnError)

	_, err := limiter.allow(context.Background(), "1.2.3.4")
	assert.Error(t, err)
}

func TestSuspiciousUserAgent(t *testing.T) {
	limiter := NewRateLimiter(nil, 10, time.Minute)

	assert.True(t, limiter.isSuspiciousUserAgent("Googlebot/2.1"))
	assert.True(t, limiter.isSuspiciousUserAgent("my-web-CRAWLER"))
	assert.False(t, limiter.isSuspiciousUserAgent("Mozilla/5.0 (Macintosh)"))
	assert.False(t, limiter.isSuspiciousUserAgent(""))
}
