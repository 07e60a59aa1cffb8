package trial

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelemetryPayloadApproximatesSize(t *testing.T) {
	for _, size := range []int{100, 1024, 60000} {
		body := telemetryPayload(size)
		assert.InDelta(t, size, len(body), 8, "size %d", size)
	}
}

func TestTelemetryPayloadIsValidJSON(t *testing.T) {
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(telemetryPayload(512), &decoded))
	assert.Equal(t, "telemetry burst", decoded["status"])
	assert.True(t, strings.HasPrefix(decoded["data"], "X"))
}

func TestTelemetryPayloadTinySize(t *testing.T) {
	// Sizes below the fixed JSON overhead still produce a valid body.
	var decoded map[string]string
	body := telemetryPayload(1)
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "X", decoded["data"])
}
