package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/tasktracker/internal/infrastructure/auth"
)

const testKeyID = "test-key-id"

func jwksServer(t *testing.T, key *rsa.PrivateKey) *httptest.Server {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"kid": testKeyID,
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			},
		},
	})
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func signRS256(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestJWKSValidator(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	server := jwksServer(t, key)

	validator, err := auth.NewJWKSValidator(auth.JWKSConfig{
		URL:     server.URL,
		Options: auth.Options{Issuer: "https://id.example.com", Audience: "tasktracker"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = validator.Close() })

	now := time.Now()
	claims := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub":  "42",
			"name": "John Doe",
			"iss":  "https://id.example.com",
			"aud":  "tasktracker",
			"iat":  now.Unix(),
			"exp":  now.Add(time.Hour).Unix(),
		}
	}

	t.Run("valid token", func(t *testing.T) {
		got, err := validator.Validate(context.Background(), signRS256(t, key, claims()))
		require.NoError(t, err)
		assert.Equal(t, int64(42), got.UserID)
		assert.Equal(t, "John Doe", got.Name)
	})

	t.Run("wrong audience", func(t *testing.T) {
		c := claims()
		c["aud"] = "other"
		_, err := validator.Validate(context.Background(), signRS256(t, key, c))
		require.ErrorIs(t, err, auth.ErrInvalidAudience)
	})

	t.Run("signed by unknown key", func(t *testing.T) {
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		_, err = validator.Validate(context.Background(), signRS256(t, other, claims()))
		require.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("hmac token rejected", func(t *testing.T) {
		_, err := validator.Validate(context.Background(), signHS256(t, testSecret, claims()))
		require.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

func TestNewJWKSValidator_RequiresURL(t *testing.T) {
	_, err := auth.NewJWKSValidator(auth.JWKSConfig{})
	require.ErrorIs(t, err, auth.ErrJWKSFetchFailed)
}
