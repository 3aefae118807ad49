package monday

import (
	"encoding/json"
	"fmt"

	"intake/internal/catalog"
)

// decodeLinkedIDs normalizes a relation payload to a slice of item ids.
//
// The service has returned relation links in three shapes over time:
//   - a JSON array of ids: [123, "456"]
//   - a JSON string containing such an array: "[123,456]"
//   - the column's stored value object: {"linkedPulseIds":[{"linkedPulseId":123}]}
//
// Absent or null payloads decode to nil. Anything else is a decode error;
// callers degrade to the empty slice rather than failing the fetch.
func decodeLinkedIDs(raw json.RawMessage) ([]catalog.ItemID, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	// String-encoded payloads unwrap one level and recurse.
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if text == "" {
			return nil, nil
		}
		return decodeLinkedIDs(json.RawMessage(text))
	}

	var ids []idScalar
	if err := json.Unmarshal(raw, &ids); err == nil {
		out := make([]catalog.ItemID, len(ids))
		for i, id := range ids {
			out[i] = catalog.ItemID(id)
		}
		return out, nil
	}

	var stored struct {
		LinkedPulseIDs []struct {
			LinkedPulseID idScalar `json:"linkedPulseId"`
		} `json:"linkedPulseIds"`
	}
	if err := json.Unmarshal(raw, &stored); err == nil && stored.LinkedPulseIDs != nil {
		out := make([]catalog.ItemID, len(stored.LinkedPulseIDs))
		for i, lp := range stored.LinkedPulseIDs {
			out[i] = catalog.ItemID(lp.LinkedPulseID)
		}
		return out, nil
	}

	return nil, fmt.Errorf("relation payload %q is neither an id array nor a stored value", truncate(raw, 80))
}

// idScalar accepts an id serialized as either a JSON number or string.
type idScalar string

func (s *idScalar) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = idScalar(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*s = idScalar(num.String())
		return nil
	}
	return fmt.Errorf("id is neither string nor number: %s", data)
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}
