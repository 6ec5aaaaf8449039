package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qutab/affiliate-ledger/pkg/cache"
)

func setupTestRedis(t *testing.T) (*cache.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := cache.NewClient("redis://" + mr.Addr())
	require.NoError(t, err)

	return client, mr
}

func TestTokenBlacklist_Add(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	blacklist := NewTokenBlacklist(client)
	ctx := context.Background()

	err := blacklist.Add(ctx, "test.jwt.token", 1*time.Hour)
	assert.NoError(t, err)

	isBlacklisted, err := blacklist.IsBlacklisted(ctx, "test.jwt.token")
	assert.NoError(t, err)
	assert.True(t, isBlacklisted, "Token should be blacklisted")
}

func TestTokenBlacklist_NotFound(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	blacklist := NewTokenBlacklist(client)
	ctx := context.Background()

	isBlacklisted, err := blacklist.IsBlacklisted(ctx, "nonexistent.jwt.token")
	assert.NoError(t, err)
	assert.False(t, isBlacklisted)
}

func TestTokenBlacklist_Expiration(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	blacklist := NewTokenBlacklist(client)
	ctx := context.Background()

	err := blacklist.Add(ctx, "expiring.jwt.token", 1*time.Second)
	assert.NoError(t, err)

	isBlacklisted, err := blacklist.IsBlacklisted(ctx, "expiring.jwt.token")
	assert.NoError(t, err)
	assert.True(t, isBlacklisted)

	// Fast forward time in miniredis
	mr.FastForward(2 * time.Second)

	isBlacklisted, err = blacklist.IsBlacklisted(ctx, "expiring.jwt.token")
	assert.NoError(t, err)
	assert.False(t, isBlacklisted, "Token should expire after TTL")
}

func TestTokenBlacklist_DistinctTokens(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	blacklist := NewTokenBlacklist(client)
	ctx := context.Background()

	err := blacklist.Add(ctx, "revoked.token", 1*time.Hour)
	assert.NoError(t, err)

	isBlacklisted, err := blacklist.IsBlacklisted(ctx, "revoked.token")
	assert.NoError(t, err)
	assert.True(t, isBlacklisted)

	isBlacklisted, err = blacklist.IsBlacklisted(ctx, "still.valid.token")
	assert.NoError(t, err)
	assert.False(t, isBlacklisted, "Different tokens should have different hashes")
}

func TestValidateJWTWithBlacklist(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	blacklist := NewTokenBlacklist(client)
	ctx := context.Background()

	token, err := GenerateJWT(42, "Budi Santoso", RoleAffiliate, testSecret, 24)
	require.NoError(t, err)

	t.Run("Success - Valid token not blacklisted", func(t *testing.T) {
		claims, err := ValidateJWTWithBlacklist(ctx, token, testSecret, blacklist)

		require.NoError(t, err)
		assert.Equal(t, uint(42), claims.AffiliateID)
	})

	t.Run("Failure - Revoked token", func(t *testing.T) {
		require.NoError(t, blacklist.Add(ctx, token, 1*time.Hour))

		_, err := ValidateJWTWithBlacklist(ctx, token, testSecret, blacklist)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "revoked")
	})
}
