package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/env"
	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/router"
)

const chatlogAudience = "chatlog"

// ChatlogTokenClaims represents the claims in a chat-log access token
type ChatlogTokenClaims struct {
	jwt.RegisteredClaims
}

// GenerateChatlogToken creates a short-lived JWT granting access to the
// chat-log query endpoints. Lifetime defaults to 1h (JWT_TOKEN_TTL).
func GenerateChatlogToken() (string, time.Time, error) {
	secretKey := jwtSecretKey()
	if secretKey == "" {
		return "", time.Time{}, errors.New("JWT_SECRET_KEY not configured")
	}

	ttl := env.GetEnvDurationOrDefault("JWT_TOKEN_TTL", time.Hour)
	expiresAt := time.Now().Add(ttl)

	claims := ChatlogTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			Audience:  jwt.ClaimStrings{chatlogAudience},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateChatlogToken validates a chat-log access token
func ValidateChatlogToken(tokenString string) (*ChatlogTokenClaims, error) {
	secretKey := jwtSecretKey()
	if secretKey == "" {
		return nil, errors.New("JWT_SECRET_KEY not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &ChatlogTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(secretKey), nil
	}, jwt.WithAudience(chatlogAudience))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*ChatlogTokenClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token claims")
}

// ChatlogAuth validates the Bearer token from the Authorization header
func ChatlogAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return router.ResponseUnauthorized(c, "Missing Authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return router.ResponseUnauthorized(c, "Invalid Authorization header format. Use: Bearer <token>")
		}

		tokenString := parts[1]
		if tokenString == "" {
			return router.ResponseUnauthorized(c, "Missing token")
		}

		if _, err := ValidateChatlogToken(tokenString); err != nil {
			return router.ResponseUnauthorized(c, "Invalid or expired token")
		}

		return c.Next()
	}
}
