package global

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_ProductionFieldNames(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "debug", "production")
	log.WithField("path", "/app/cart").Info("request")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "request", line["message"])
	assert.Equal(t, "info", line["severity"])
	assert.Equal(t, "/app/cart", line["path"])
	assert.Contains(t, line, "timestamp")
}

func TestNewLogger_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "loud", "development")
	log.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("STOREFRONT_TEST_LIST", " a, ,b ")
	t.Setenv("STOREFRONT_TEST_INT", "x")
	t.Setenv("STATE_TTL_DAYS", "2")

	assert.Equal(t, []string{"a", "b"}, GetEnvList("STOREFRONT_TEST_LIST", nil))
	assert.Equal(t, 7, GetEnvIntOrDefault("STOREFRONT_TEST_INT", 7))
	assert.Equal(t, "fallback", GetEnvOrDefault("STOREFRONT_TEST_UNSET", "fallback"))
	assert.Equal(t, 48*time.Hour, GetStateTTL())

	t.Setenv("STATE_TTL_DAYS", "")
	assert.Equal(t, DefaultStateTTL, GetStateTTL())
}

func TestResponseDecode_EmptyBody(t *testing.T) {
	var out struct{ A int }
	out.A = 3
	require.NoError(t, (&Response{}).Decode(&out))
	assert.Equal(t, 3, out.A)
}
