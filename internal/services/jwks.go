package services

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// ExternalIdentity is what an identity provider token tells us about a user.
type ExternalIdentity struct {
	Subject string
	Email   string
	Name    string
	Roles   []string
}

// JWKSVerifier validates RS256 tokens from an external identity provider
// against its published key set.
type JWKSVerifier struct {
	jwks       keyfunc.Keyfunc
	issuer     string
	rolesClaim string
	leeway     time.Duration
}

// NewJWKSVerifier starts a background refresh of the key set at jwksURL.
// Startup does not fail if the provider is briefly unreachable.
func NewJWKSVerifier(jwksURL, issuer, rolesClaim string, refresh time.Duration) (*JWKSVerifier, error) {
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: 10 * time.Second},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refresh,
		RefreshErrorHandler: func(_ context.Context, err error) {
			slog.Error("jwks refresh failed", "url", jwksURL, "error", err)
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create jwks storage")
	}
	kf, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, errors.Wrap(err, "create keyfunc")
	}
	return NewJWKSVerifierWithKeyfunc(kf, issuer, rolesClaim), nil
}

func NewJWKSVerifierWithKeyfunc(kf keyfunc.Keyfunc, issuer, rolesClaim string) *JWKSVerifier {
	if rolesClaim == "" {
		rolesClaim = "roles"
	}
	return &JWKSVerifier{jwks: kf, issuer: issuer, rolesClaim: rolesClaim, leeway: 30 * time.Second}
}

func (v *JWKSVerifier) Verify(ctx context.Context, tokenStr string) (ExternalIdentity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(tokenStr, claims, v.jwks.KeyfuncCtx(ctx), opts...); err != nil {
		return ExternalIdentity{}, err
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return ExternalIdentity{}, errors.New("token has no subject")
	}
	identity := ExternalIdentity{
		Subject: subject,
		Email:   stringClaim(claims, "email"),
		Name:    stringClaim(claims, "name"),
		Roles:   stringsClaim(lookupClaim(claims, v.rolesClaim)),
	}
	if identity.Name == "" {
		identity.Name = stringClaim(claims, "preferred_username")
	}
	return identity, nil
}

// lookupClaim resolves a claim by exact name first, then as a dotted path
// such as realm_access.roles.
func lookupClaim(claims jwt.MapClaims, name string) interface{} {
	if value, ok := claims[name]; ok {
		return value
	}
	var current interface{} = map[string]interface{}(claims)
	for _, part := range strings.Split(name, ".") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = obj[part]
	}
	return current
}

func stringClaim(claims jwt.MapClaims, name string) string {
	value, _ := claims[name].(string)
	return value
}

func stringsClaim(value interface{}) []string {
	switch typed := value.(type) {
	case []interface{}:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, strings.ToUpper(s))
			}
		}
		return out
	case string:
		if typed == "" {
			return nil
		}
		return []string{strings.ToUpper(typed)}
	default:
		return nil
	}
}
