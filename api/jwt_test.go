package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParseJWT(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	token, err := signJWT([]byte("k"), "u1", "joana", now, time.Hour)
	require.NoError(t, err)

	claims, err := parseJWT([]byte("k"), token, func() time.Time { return now.Add(30 * time.Minute) })

	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "joana", claims.Username)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, now.Add(time.Hour).Unix(), claims.Expires.Unix())
}

func TestParseJWTExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	token, err := signJWT([]byte("k"), "u1", "joana", now, time.Hour)
	require.NoError(t, err)

	_, err = parseJWT([]byte("k"), token, func() time.Time { return now.Add(2 * time.Hour) })

	assert.EqualError(t, err, "invalid token")
}

func TestSignJWTUniqueIDs(t *testing.T) {
	now := time.Now()
	a, _ := signJWT([]byte("k"), "u1", "joana", now, time.Hour)
	b, _ := signJWT([]byte("k"), "u1", "joana", now, time.Hour)
	assert.NotEqual(t, a, b)
}
