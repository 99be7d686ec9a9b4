package timeseries

import (
	"encoding/json"
	"fmt"
)

// MaxValueBytes is the store's VARCHAR measure-value ceiling. Values above
// it are replaced by a minimized projection; the write itself is never
// dropped.
const MaxValueBytes = 2048

// Guard serializes payload and enforces the value-size ceiling. Payloads
// within the limit pass through unchanged. Oversized payloads are reduced to
// the essential summary: metadata, the step total, the heart-rate summary
// when it still fits the ceiling, and the blob pointer when the full payload
// was offloaded.
func Guard(payload map[string]any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("payload cannot be serialized to JSON: %w", err)
	}
	if len(raw) <= MaxValueBytes {
		return string(raw), nil
	}

	minimal := map[string]any{}
	if md, ok := payload["metadata"]; ok {
		minimal["metadata"] = md
	} else {
		minimal["metadata"] = map[string]any{}
	}

	if dd, ok := payload["distance_data"].(map[string]any); ok {
		steps, ok := dd["steps"]
		if !ok {
			steps = 0
		}
		minimal["distance_data"] = map[string]any{"steps": steps}
	}

	// The heart-rate summary is re-checked against the full ceiling before
	// it is admitted.
	if hrd, ok := payload["heart_rate_data"].(map[string]any); ok {
		summary, ok := hrd["summary"]
		if !ok {
			summary = map[string]any{}
		}
		probe := make(map[string]any, len(minimal)+1)
		for k, v := range minimal {
			probe[k] = v
		}
		probe["heart_rate_data"] = map[string]any{"summary": summary}
		if enc, err := json.Marshal(probe); err == nil && len(enc) <= MaxValueBytes {
			minimal["heart_rate_data"] = map[string]any{"summary": summary}
		}
	}

	if key, ok := payload["payload_s3_key"]; ok {
		minimal["payload_s3_key"] = key
	}

	enc, err := json.Marshal(minimal)
	if err != nil {
		return "", fmt.Errorf("minimized payload cannot be serialized: %w", err)
	}
	return string(enc), nil
}
