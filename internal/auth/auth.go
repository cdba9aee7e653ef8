package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Ошибки авторизации.
var (
	// ErrMissingToken — в запросе нет bearer токена.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken — токен не прошёл проверку.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims — полезная нагрузка токена.
type Claims struct {
	// Email — email субъекта, попадает в логи API.
	Email string `json:"email,omitempty"`

	jwt.RegisteredClaims
}

// Verifier проверяет HS256 bearer токены.
type Verifier struct {
	secret []byte
}

// NewVerifier создаёт Verifier с указанным секретом.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// SecretFromEnv читает секрет из переменной окружения AUTH_SECRET.
// Пустое значение означает, что авторизация выключена.
func SecretFromEnv() string {
	return os.Getenv("AUTH_SECRET")
}

// Verify разбирает и проверяет токен, возвращая его claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Sign выпускает токен с указанным субъектом и сроком жизни.
// Используется CLI и тестами; API токены не выпускает.
func (v *Verifier) Sign(subject, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// BearerToken извлекает токен из заголовка Authorization.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrMissingToken
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// --- Context ---

type ctxKey struct{}

// WithClaims добавляет claims в контекст запроса.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, claims)
}

// ClaimsFromContext извлекает claims из контекста.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ctxKey{}).(*Claims)
	return claims, ok
}
