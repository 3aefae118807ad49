package monday

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/catalog"
)

func TestDecodeLinkedIDs(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    []catalog.ItemID
		wantErr bool
	}{
		{name: "absent", raw: "", want: nil},
		{name: "null", raw: "null", want: nil},
		{name: "array of numbers", raw: `[123, 456]`, want: []catalog.ItemID{"123", "456"}},
		{name: "array of strings", raw: `["123", "456"]`, want: []catalog.ItemID{"123", "456"}},
		{name: "mixed array", raw: `[123, "456"]`, want: []catalog.ItemID{"123", "456"}},
		{name: "empty array", raw: `[]`, want: []catalog.ItemID{}},
		{name: "string-encoded array", raw: `"[123,456]"`, want: []catalog.ItemID{"123", "456"}},
		{name: "empty string", raw: `""`, want: nil},
		{name: "stored value object", raw: `{"linkedPulseIds":[{"linkedPulseId":123},{"linkedPulseId":456}]}`, want: []catalog.ItemID{"123", "456"}},
		{name: "string-encoded stored value", raw: `"{\"linkedPulseIds\":[{\"linkedPulseId\":789}]}"`, want: []catalog.ItemID{"789"}},
		{name: "garbage", raw: `{"changed_at":"2024-01-01"}`, wantErr: true},
		{name: "scalar", raw: `42`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeLinkedIDs(json.RawMessage(tc.raw))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if len(tc.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}
