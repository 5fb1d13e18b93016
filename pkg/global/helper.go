package global

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultRequestTimeout bounds every backend call that does not set its own.
const DefaultRequestTimeout = 10 * time.Second

// DefaultStateTTL is how long idle shopper state is kept by durable persisters.
const DefaultStateTTL = 30 * 24 * time.Hour

func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// GetEnvList splits a comma separated variable, dropping blanks.
func GetEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// WithTimer derives a request context from parent, using DefaultRequestTimeout when d is zero.
func WithTimer(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultRequestTimeout
	}
	return context.WithTimeout(parent, d)
}

func GetAPIBaseURL() string {
	return strings.TrimRight(GetEnvOrDefault("STOREFRONT_API_URL", "http://localhost:8000"), "/")
}

func GetMongoURI() (string, error) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		return "", errors.New("MONGODB_URI is not set in environment variables")
	}
	return mongoURI, nil
}

func GetDatabaseName() string {
	return GetEnvOrDefault("MONGODB_DATABASE", "pasargad_storefront")
}

// GetStateTTL reads STATE_TTL_DAYS.
func GetStateTTL() time.Duration {
	days := GetEnvIntOrDefault("STATE_TTL_DAYS", 0)
	if days <= 0 {
		return DefaultStateTTL
	}
	return time.Duration(days) * 24 * time.Hour
}
