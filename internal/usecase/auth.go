package usecase

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService verifies bearer tokens minted by the storefront's session
// layer. Only the user id claim matters here; session lifecycle lives
// elsewhere.
type AuthService struct {
	JWTSecret string
}

func (s *AuthService) Verify(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return []byte(s.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return "", ErrBadRequest("invalid token")
	}
	m, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrBadRequest("invalid claims")
	}
	uid, _ := m["user_id"].(string)
	if uid == "" {
		return "", ErrBadRequest("token missing user id")
	}
	return uid, nil
}

// Issue mints a short-lived token; used by dev tooling and tests.
func (s *AuthService) Issue(userID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.JWTSecret))
}
