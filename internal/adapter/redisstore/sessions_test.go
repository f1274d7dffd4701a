package redisstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "quakesync:session:abc", sessionKey("abc"))
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "http://not-redis")

	assert.ErrorContains(t, err, "parse REDIS_URL")
}
