package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/entitlement/pkg/logger"
)

func TestNewJSONDefaults(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithAttr(slog.String("service", "entitlement")))

	log.Debug("hidden at default level")
	log.Info("visible", slog.String("k", "v"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "visible", record["msg"])
	assert.Equal(t, "entitlement", record["service"])
	assert.Equal(t, "v", record["k"])
}

func TestWithDevelopment(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithDevelopment("entitlement"), logger.WithOutput(&buf))

	log.Debug("debug is on")
	assert.Contains(t, buf.String(), "debug is on")
	assert.False(t, strings.HasPrefix(buf.String(), "{"), "development output is text, not JSON")
}

func TestWithFormatPanicsOnUnknown(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { logger.New(logger.WithFormat("xml")) })
}

func TestErrorAttr(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.Error(nil))
	attr := logger.Error(errors.New("boom"))
	assert.Equal(t, "error", attr.Key)
}
