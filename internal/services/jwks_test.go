package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKeyID  = "test-key"
	testIssuer = "https://idp.test/realms/geekshub"
)

func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": kid,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	}
	data, _ := json.Marshal(jwks)
	return data
}

func newTestVerifier(t *testing.T, rolesClaim string) (*JWKSVerifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	require.NoError(t, err)
	return NewJWKSVerifierWithKeyfunc(kf, testIssuer, rolesClaim), key
}

func signRS256(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func baseClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":                "ext-42",
		"iss":                testIssuer,
		"email":              "kim@uni.test",
		"preferred_username": "kim",
		"exp":                jwt.NewNumericDate(time.Now().Add(time.Hour)),
		"iat":                jwt.NewNumericDate(time.Now()),
	}
}

func TestJWKSVerifier_ValidToken(t *testing.T) {
	v, key := newTestVerifier(t, "realm_access.roles")
	claims := baseClaims()
	claims["realm_access"] = map[string]any{"roles": []string{"moderator", "offline_access"}}

	identity, err := v.Verify(context.Background(), signRS256(t, key, claims))
	require.NoError(t, err)
	assert.Equal(t, "ext-42", identity.Subject)
	assert.Equal(t, "kim@uni.test", identity.Email)
	assert.Equal(t, "kim", identity.Name)
	assert.Equal(t, []string{"MODERATOR", "OFFLINE_ACCESS"}, identity.Roles)
}

func TestJWKSVerifier_FlatRolesClaim(t *testing.T) {
	v, key := newTestVerifier(t, "")
	claims := baseClaims()
	claims["name"] = "Kim Lee"
	claims["roles"] = "admin"

	identity, err := v.Verify(context.Background(), signRS256(t, key, claims))
	require.NoError(t, err)
	assert.Equal(t, "Kim Lee", identity.Name)
	assert.Equal(t, []string{"ADMIN"}, identity.Roles)
}

func TestJWKSVerifier_Rejects(t *testing.T) {
	v, key := newTestVerifier(t, "roles")
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	expired := baseClaims()
	expired["exp"] = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	wrongIssuer := baseClaims()
	wrongIssuer["iss"] = "https://evil.test"

	noExp := baseClaims()
	delete(noExp, "exp")

	noSubject := baseClaims()
	delete(noSubject, "sub")

	tests := map[string]string{
		"expired":      signRS256(t, key, expired),
		"wrong issuer": signRS256(t, key, wrongIssuer),
		"no exp":       signRS256(t, key, noExp),
		"no subject":   signRS256(t, key, noSubject),
		"wrong key":    signRS256(t, other, baseClaims()),
		"garbage":      "not-a-token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), token)
			assert.Error(t, err)
		})
	}
}

func TestJWKSVerifier_RejectsHS256(t *testing.T) {
	v, _ := newTestVerifier(t, "roles")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, baseClaims())
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), signed)
	assert.Error(t, err)
}
