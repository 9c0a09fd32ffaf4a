package keeper

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionAddress(t *testing.T) {
	cond := NewCondition("escrow", "seq", []byte{0, 0, 0, 0, 0, 0, 0, 1})
	addr := cond.Address()
	require.NoError(t, addr.Validate())
	assert.Len(t, []byte(addr), AddressLength)

	// Derivation is deterministic.
	again := NewCondition("escrow", "seq", []byte{0, 0, 0, 0, 0, 0, 0, 1}).Address()
	assert.True(t, addr.Equals(again))

	// Different data, different account.
	other := NewCondition("escrow", "seq", []byte{0, 0, 0, 0, 0, 0, 0, 2}).Address()
	assert.False(t, addr.Equals(other))
}

func TestConditionParse(t *testing.T) {
	cond := NewCondition("escrow", "fees", []byte("arbitration"))
	ext, typ, data, err := cond.Parse()
	require.NoError(t, err)
	assert.Equal(t, "escrow", ext)
	assert.Equal(t, "fees", typ)
	assert.Equal(t, []byte("arbitration"), data)

	_, _, _, err = Condition("garbage").Parse()
	assert.Error(t, err)
}

func TestParseAddress(t *testing.T) {
	cases := map[string]struct {
		enc     string
		wantErr bool
	}{
		"plain hex":      {enc: "1234567890123456789012345678901234567890"},
		"0x prefix":      {enc: "0x1234567890123456789012345678901234567890"},
		"too short":      {enc: "12345678", wantErr: true},
		"not hex at all": {enc: "zzzz567890123456789012345678901234567890", wantErr: true},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			addr, err := ParseAddress(tc.enc)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, addr.Validate())
		})
	}
}

func TestAddressJSONRoundTrip(t *testing.T) {
	addr, err := ParseAddress("abcdefabcdefabcdefabcdefabcdefabcdefabcd")
	require.NoError(t, err)

	raw, err := json.Marshal(addr)
	require.NoError(t, err)

	var loaded Address
	require.NoError(t, json.Unmarshal(raw, &loaded))
	assert.True(t, addr.Equals(loaded))
}
