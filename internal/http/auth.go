package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"geekshub-backend-go/internal/services"
)

type contextKey string

const ctxPrincipal contextKey = "principal"

var errNoToken = errors.New("missing bearer token")

// authenticate accepts locally issued access tokens first and, when a JWKS
// verifier is configured, tokens from the external identity provider.
func (s *Server) authenticate(ctx context.Context, tokenStr string) (services.Principal, error) {
	if tokenStr == "" {
		return services.Principal{}, errNoToken
	}
	claims, err := s.Tokens.ParseToken(tokenStr, services.TokenTypeAccess)
	if err == nil {
		return services.Principal{UserID: claims.Subject, Email: claims.Email, Name: claims.Name, Roles: claims.Roles}, nil
	}
	if s.JWKS == nil {
		return services.Principal{}, err
	}
	identity, jerr := s.JWKS.Verify(ctx, tokenStr)
	if jerr != nil {
		return services.Principal{}, jerr
	}
	return s.Accounts.ResolveExternal(ctx, identity)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

func (s *Server) WithAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := s.authenticate(r.Context(), bearerToken(r))
		if err != nil {
			WriteError(w, http.StatusUnauthorized, "Authentication failed")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxPrincipal, principal)))
	})
}

func CurrentPrincipal(r *http.Request) (services.Principal, bool) {
	principal, ok := r.Context().Value(ctxPrincipal).(services.Principal)
	return principal, ok
}

func currentPrincipal(r *http.Request) services.Principal {
	principal, _ := CurrentPrincipal(r)
	return principal
}

func RequireRole(role string) func(http.Handler) http.Handler {
	return RequireAnyRole(role)
}

func RequireAnyRole(roles ...string) func(http.Handler) http.Handler {
	for i, role := range roles {
		roles[i] = strings.ToUpper(role)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if currentPrincipal(r).HasAnyRole(roles...) {
				next.ServeHTTP(w, r)
				return
			}
			WriteError(w, http.StatusForbidden, "Not allowed")
		})
	}
}
