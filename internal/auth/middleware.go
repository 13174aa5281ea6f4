package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ms-topup/internal/logger"
	"ms-topup/internal/models"
	"ms-topup/internal/utils"
)

type contextKey string

const principalKey contextKey = "principal"

// Resolver turns a request into the caller's verified identity.
type Resolver interface {
	Resolve(r *http.Request) (models.Principal, error)
}

// Resolvers tries each resolver in order and returns the first success.
type Resolvers []Resolver

func (rs Resolvers) Resolve(r *http.Request) (models.Principal, error) {
	err := ErrMissingToken
	for _, res := range rs {
		p, rerr := res.Resolve(r)
		if rerr == nil {
			return p, nil
		}
		if !errors.Is(rerr, ErrMissingToken) {
			err = rerr
		}
	}
	return models.Principal{}, err
}

// Middleware rejects unauthenticated requests with a 401 envelope and
// stores the principal in the request context otherwise.
func Middleware(resolver Resolver, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := resolver.Resolve(r)
			if err != nil {
				log.LogSecurity("AUTH", fmt.Sprintf("%s %s rejected: %v", r.Method, r.URL.Path, err))
				msg := "invalid or expired token"
				if errors.Is(err, ErrMissingToken) {
					msg = "authentication required"
				}
				_ = utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("UNAUTHORIZED", msg))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the caller stored by Middleware.
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}
