package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"ms-topup/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("authentication token is missing")
	ErrInvalidRole  = errors.New("token carries an unknown role")
	ErrInvalidUser  = errors.New("token carries no usable user id")
)

// ExtractTokenFromRequest reads a bearer token from the Authorization
// header, falling back to the session cookie when cookieName is set.
func ExtractTokenFromRequest(r *http.Request, cookieName string) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		// Bearer token format: "Bearer {token}"
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", errors.New("authorization header format must be 'Bearer {token}'")
		}
		return parts[1], nil
	}
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", ErrMissingToken
}

// SessionClaims is the payload of a storefront session token.
type SessionClaims struct {
	UserID int64  `json:"id,omitempty"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTResolver verifies HMAC-signed session tokens with an injected secret.
type JWTResolver struct {
	secret     []byte
	cookieName string
}

func NewJWTResolver(secret, cookieName string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), cookieName: cookieName}
}

func (j *JWTResolver) Resolve(r *http.Request) (models.Principal, error) {
	raw, err := ExtractTokenFromRequest(r, j.cookieName)
	if err != nil {
		return models.Principal{}, err
	}

	var claims SessionClaims
	_, err = jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}), jwt.WithExpirationRequired())
	if err != nil {
		return models.Principal{}, fmt.Errorf("invalid token: %w", err)
	}
	return principalFromClaims(claims.UserID, claims.Subject, claims.Role)
}

// Sign issues a session token for p. The storefront login flow lives
// elsewhere; this is used by tooling and tests.
func (j *JWTResolver) Sign(p models.Principal, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = strconv.FormatInt(p.ID, 10)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		UserID:           p.ID,
		Role:             string(p.Role),
		RegisteredClaims: claims,
	})
	return token.SignedString(j.secret)
}

func principalFromClaims(id int64, sub, role string) (models.Principal, error) {
	if id == 0 && sub != "" {
		parsed, err := strconv.ParseInt(sub, 10, 64)
		if err != nil {
			return models.Principal{}, ErrInvalidUser
		}
		id = parsed
	}
	if id <= 0 {
		return models.Principal{}, ErrInvalidUser
	}
	r, ok := models.ParseRole(role)
	if !ok {
		return models.Principal{}, ErrInvalidRole
	}
	return models.Principal{ID: id, Role: r}, nil
}
