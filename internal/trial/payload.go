package trial

import (
	"encoding/json"
	"strings"
)

// telemetryPayload builds the JSON telemetry message published by every
// trial. The data field is padded so the body approximates size bytes, a
// stand-in for the bulky sensor payloads real devices push. Large bodies
// keep the publish phase honest: a one-byte ping would mostly measure
// broker scheduling, not transfer.
func telemetryPayload(size int) []byte {
	const overhead = len(`{"data":"","status":"telemetry burst"}`)
	pad := size - overhead
	if pad < 1 {
		pad = 1
	}
	body := map[string]string{
		"data":   strings.Repeat("X", pad),
		"status": "telemetry burst",
	}
	out, _ := json.Marshal(body)
	return out
}
