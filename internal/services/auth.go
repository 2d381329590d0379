package services

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// Claims are the claims carried by locally issued tokens.
type Claims struct {
	Type  string   `json:"typ"`
	Email string   `json:"email,omitempty"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

type TokenService struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (t TokenService) HashPassword(raw string) (string, error) {
	return hashArgon2id(raw)
}

// VerifyPassword accepts argon2id hashes and falls back to bcrypt for
// accounts imported from older systems.
func (t TokenService) VerifyPassword(raw, hashed string) bool {
	if strings.HasPrefix(hashed, "$argon2") {
		return verifyArgon2id(raw, hashed)
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(raw)) == nil
}

func (t TokenService) sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
}

func (t TokenService) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now().UTC()
	return jwt.RegisteredClaims{
		Issuer:    t.Issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (t TokenService) CreateAccessToken(userID, email, name string, roles []string) (string, int64, error) {
	claims := Claims{
		Type:             TokenTypeAccess,
		Email:            email,
		Name:             name,
		Roles:            roles,
		RegisteredClaims: t.registered(userID, t.AccessTTL),
	}
	signed, err := t.sign(claims)
	return signed, claims.ExpiresAt.Unix(), err
}

func (t TokenService) CreateRefreshToken(userID string) (string, error) {
	return t.sign(Claims{Type: TokenTypeRefresh, RegisteredClaims: t.registered(userID, t.RefreshTTL)})
}

func (t TokenService) IssuePair(userID, email, name string, roles []string) (TokenPair, error) {
	access, exp, err := t.CreateAccessToken(userID, email, name, roles)
	if err != nil {
		return TokenPair{}, errors.Wrap(err, "sign access token")
	}
	refresh, err := t.CreateRefreshToken(userID)
	if err != nil {
		return TokenPair{}, errors.Wrap(err, "sign refresh token")
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, nil
}

// ParseToken verifies signature, issuer and expiry, and that the token is
// of the wanted type.
func (t TokenService) ParseToken(tokenStr, wantType string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return t.Secret, nil
	}, jwt.WithIssuer(t.Issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims.Type != wantType {
		return nil, fmt.Errorf("unexpected token type %q", claims.Type)
	}
	return claims, nil
}

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	saltLength  int
	keyLength   int
}

var defaultArgon2 = argon2Params{memory: 64 * 1024, iterations: 3, parallelism: 1, saltLength: 16, keyLength: 32}

func hashArgon2id(raw string) (string, error) {
	p := defaultArgon2
	salt := make([]byte, p.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(raw), salt, p.iterations, p.memory, p.parallelism, uint32(p.keyLength))
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.iterations, p.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

func verifyArgon2id(raw, encoded string) bool {
	p, salt, hash, err := decodeArgon2id(encoded)
	if err != nil {
		return false
	}
	key := argon2.IDKey([]byte(raw), salt, p.iterations, p.memory, p.parallelism, uint32(p.keyLength))
	return subtle.ConstantTimeCompare(hash, key) == 1
}

func decodeArgon2id(encoded string) (argon2Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return argon2Params{}, nil, nil, errors.New("invalid argon2id hash")
	}
	var p argon2Params
	for _, kv := range strings.Split(parts[3], ",") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return argon2Params{}, nil, nil, errors.Wrapf(err, "argon2 param %s", key)
		}
		switch key {
		case "m":
			p.memory = uint32(n)
		case "t":
			p.iterations = uint32(n)
		case "p":
			p.parallelism = uint8(n)
		}
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return argon2Params{}, nil, nil, err
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return argon2Params{}, nil, nil, err
	}
	p.saltLength = len(salt)
	p.keyLength = len(hash)
	return p, salt, hash, nil
}
