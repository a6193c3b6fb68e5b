package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "correct horse battery staple"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("wrong password", hash)
	req.NoError(err)
	req.False(match)
}

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("alice", time.Hour)
	req.NoError(err)

	claims, err := ValidateToken(token)
	req.NoError(err)
	req.Equal("alice", claims.Username)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("alice", -time.Minute)
	req.NoError(err)

	_, err = ValidateToken(token)
	req.Error(err)
}

func TestNewKeyPair_Stays_In_Demo_Ranges(t *testing.T) {
	req := require.New(t)

	for i := 0; i < 200; i++ {
		privateKey, publicKey := NewKeyPair()
		req.GreaterOrEqual(privateKey, int64(2))
		req.LessOrEqual(privateKey, int64(15))

		// The public key follows the display formula exactly
		expected := (powMod(DemoBase, privateKey, DemoPrime) * DemoSeed) % DemoPrime
		req.Equal(expected, publicKey)
	}
}

func TestValidateLogin(t *testing.T) {
	tests := []struct {
		name    string
		req     LoginRequest
		wantErr bool
	}{
		{"valid request", LoginRequest{"alice", "secret"}, false},
		{"blank username", LoginRequest{"", "secret"}, true},
		{"blank password", LoginRequest{"alice", ""}, true},
		{"username too long", LoginRequest{strings.Repeat("a", 33), "secret"}, true},
		{"password too long", LoginRequest{"alice", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLogin(tt.req)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
