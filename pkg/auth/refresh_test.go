package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRefreshToken(t *testing.T) {
	raw, hashed, err := GenerateRefreshToken()
	require.NoError(t, err)

	// 40 random bytes, hex-encoded.
	assert.Len(t, raw, 80)
	_, err = hex.DecodeString(raw)
	assert.NoError(t, err)

	sum := sha256.Sum256([]byte(raw))
	assert.Equal(t, hex.EncodeToString(sum[:]), hashed)
}

func TestGenerateRefreshToken_Unique(t *testing.T) {
	first, _, err := GenerateRefreshToken()
	require.NoError(t, err)
	second, _, err := GenerateRefreshToken()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestHashToken_Deterministic(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
}
