package router

import (
	"strconv"
	"strings"

	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/env"
)

// HTTP surface knobs, resolved once at startup.
var (
	BaseURL         string
	CORSOrigin      string
	BodyLimit       string
	GZipLevel       int
	CacheTTLSeconds int

	bodyLimitBytes int
)

func init() {
	BaseURL = normalizeBaseURL(env.GetEnvStringOrDefault("HTTP_BASE_URL", ""))
	CORSOrigin = env.GetEnvStringOrDefault("HTTP_CORS_ORIGIN", "*")
	BodyLimit = env.GetEnvStringOrDefault("HTTP_BODY_LIMIT_SIZE", "8M")
	bodyLimitBytes = parseBodyLimit(BodyLimit)
	GZipLevel = env.GetEnvIntOrDefault("HTTP_GZIP_LEVEL", 1)
	CacheTTLSeconds = env.GetEnvIntOrDefault("HTTP_CACHE_TTL_SECONDS", 5)
}

// normalizeBaseURL yields "" or a "/prefix" without a trailing slash.
func normalizeBaseURL(base string) string {
	base = strings.TrimSpace(base)
	base = strings.Trim(base, "/")
	if base == "" {
		return ""
	}
	return "/" + base
}

func BodyLimitBytes() int {
	return bodyLimitBytes
}

func parseBodyLimit(limit string) int {
	const defaultLimit = 8 * 1024 * 1024
	limit = strings.TrimSpace(strings.ToUpper(limit))
	if limit == "" {
		return defaultLimit
	}
	multiplier := 1
	switch {
	case strings.HasSuffix(limit, "K"):
		multiplier = 1024
		limit = strings.TrimSuffix(limit, "K")
	case strings.HasSuffix(limit, "M"):
		multiplier = 1024 * 1024
		limit = strings.TrimSuffix(limit, "M")
	case strings.HasSuffix(limit, "G"):
		multiplier = 1024 * 1024 * 1024
		limit = strings.TrimSuffix(limit, "G")
	}
	value, err := strconv.Atoi(strings.TrimSpace(limit))
	if err != nil || value <= 0 {
		return defaultLimit
	}
	return value * multiplier
}
