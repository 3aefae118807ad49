package catalog

import (
	"encoding/json"
	"strconv"
)

// Relation builds a board-relation column payload linking the given items.
// The remote service expects numeric ids under "item_ids"; ids that are not
// numeric strings are passed through unchanged so the service can reject
// them with a meaningful error.
func Relation(ids ...ItemID) any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
			out = append(out, n)
			continue
		}
		out = append(out, string(id))
	}
	return map[string]any{"item_ids": out}
}

// Phone builds a phone column payload with its country code.
func Phone(number, countryShort string) any {
	return map[string]string{"phone": number, "countryShortName": countryShort}
}

// Email builds an email column payload. The service requires the display
// text alongside the address.
func Email(address string) any {
	return map[string]string{"email": address, "text": address}
}

// RawValue passes an opaque, already-encoded column payload through
// untouched. Used for attachment references the core does not inspect.
func RawValue(raw json.RawMessage) any {
	return raw
}
