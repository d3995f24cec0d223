package packet

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBSSID(t *testing.T) {
	tests := []struct {
		in      string
		want    BSSID
		wantErr bool
	}{
		{in: "aa:bb:cc:dd:ee:ff", want: BSSID{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}},
		{in: "AA-BB-CC-DD-EE-01", want: BSSID{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0x01}},
		{in: "aabb.ccdd.eeff", want: BSSID{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}},
		{in: "not a mac", wantErr: true},
		{in: "00:00:5e:00:53:01:02:03", wantErr: true}, // EUI-64
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBSSID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBSSIDString(t *testing.T) {
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", testBSSID.String())
	assert.Equal(t, "00:00:00:00:00:00", BSSID{}.String())
	assert.True(t, BSSID{}.IsZero())
	assert.False(t, testBSSID.IsZero())
}

func TestBSSIDFromBytes(t *testing.T) {
	assert.Equal(t, testBSSID, BSSIDFromBytes([]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x99}))
	assert.Equal(t, BSSID{1, 2}, BSSIDFromBytes([]byte{1, 2}))
}

func TestBSSIDJSON(t *testing.T) {
	type wrapper struct {
		BSSID BSSID `json:"bssid"`
	}
	data, err := json.Marshal(wrapper{BSSID: testBSSID})
	require.NoError(t, err)
	assert.JSONEq(t, `{"bssid":"AA:BB:CC:DD:EE:FF"}`, string(data))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"bssid":"01:02:03:04:05:06"}`), &w))
	assert.Equal(t, BSSID{1, 2, 3, 4, 5, 6}, w.BSSID)

	assert.Error(t, json.Unmarshal([]byte(`{"bssid":"zz"}`), &w))
}
