package auth

import (
	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/env"
)

// adminSecretKey protects the session-control endpoints and the token
// exchange. Requests fail when it is not configured.
func adminSecretKey() string {
	return env.GetEnvStringOrDefault("ADMIN_SECRET_KEY", "")
}

// jwtSecretKey signs chat-log access tokens.
func jwtSecretKey() string {
	return env.GetEnvStringOrDefault("JWT_SECRET_KEY", "")
}
