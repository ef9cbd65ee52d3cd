// Package auth validates the JWTs issued by the external identity service.
// Token issuance and login flows live outside this service; only the
// bearer-validation boundary is needed here.
package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDKey is the fiber locals key holding the authenticated user id.
const UserIDKey = "user_id"

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

var parseClaimsFn = jwt.ParseWithClaims

// Middleware validates bearer tokens and stores user_id in locals.
func Middleware(secret string) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		userID, err := validate(token, secretBytes)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		c.Locals(UserIDKey, userID)
		return c.Next()
	}
}

// Optional stores user_id when a valid bearer token is present and
// continues anonymously otherwise. Used on routes that accept either an
// owner session or a share token.
func Optional(secret string) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token != "" {
			if userID, err := validate(token, secretBytes); err == nil {
				c.Locals(UserIDKey, userID)
			}
		}
		return c.Next()
	}
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDKey).(string)
	return id
}

// Sign issues a token for userID. The production issuer is external; this
// exists for tooling and tests.
func Sign(secret, userID string, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func validate(token string, secret []byte) (string, error) {
	parsed, err := parseClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.UserID, nil
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
