package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/senyabanana/engagement-service/internal/utils"

	"github.com/golang-jwt/jwt/v5"
)

// Identity - участник, от имени которого выполняется запрос.
type Identity struct {
	ActorID string
	Roles   []string
	Source  string
}

type identityKey struct{}

// Config - настройки аутентификации.
type Config struct {
	JWTSecret        string
	AllowActorHeader bool
	Logger           *log.Logger
}

type claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

// WithIdentity кладёт участника в контекст.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// ActorFromContext возвращает идентификатор участника из контекста.
func ActorFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.ActorID == "" {
		return "", false
	}
	return id.ActorID, true
}

// ParseToken проверяет HS256-токен и возвращает участника из claim sub.
func ParseToken(token, secret string) (Identity, error) {
	if strings.TrimSpace(secret) == "" {
		return Identity{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	c := &claims{}
	parsed, err := parser.ParseWithClaims(token, c, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Identity{}, err
	}
	if !parsed.Valid {
		return Identity{}, errors.New("invalid token")
	}
	if c.Subject == "" {
		return Identity{}, errors.New("subject claim required")
	}
	return Identity{ActorID: c.Subject, Roles: c.Roles, Source: "jwt"}, nil
}

// IssueToken подписывает токен для участника. Используется CLI и тестами.
func IssueToken(actorID, secret string, ttl time.Duration, roles ...string) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: roles,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// Middleware определяет участника по заголовку Authorization или, если разрешено, X-Actor-Id.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			actorHeader := strings.TrimSpace(r.Header.Get("X-Actor-Id"))

			if authz != "" {
				token, ok := bearerToken(authz)
				if !ok {
					utils.SendErrorResponse(w, http.StatusUnauthorized, "invalid credentials")
					return
				}
				id, err := ParseToken(token, cfg.JWTSecret)
				if err != nil {
					utils.SendErrorResponse(w, http.StatusUnauthorized, "invalid credentials")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
				return
			}

			if actorHeader != "" && cfg.AllowActorHeader {
				logger.Printf("WARN: X-Actor-Id header used without a token (actor_id=%s)", actorHeader)
				id := Identity{ActorID: actorHeader, Source: "header"}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
				return
			}

			utils.SendErrorResponse(w, http.StatusUnauthorized, "authentication required")
		})
	}
}
