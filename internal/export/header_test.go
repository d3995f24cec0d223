package export

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/catfinder/internal/packet"
)

func TestWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	err := WriteHeader(&buf, []packet.BSSID{
		{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF},
		{0x00, 0x01, 0x02, 0x0a, 0x0b, 0x0c},
	})
	require.NoError(t, err)

	want := "#ifndef BSSID_LIST_H\n" +
		"#define BSSID_LIST_H\n" +
		"\n" +
		"const char* bssid_list[][6] = {\n" +
		"    {0xAA,0xBB,0xCC,0xDD,0xEE,0xFF},\n" +
		"    {0x00,0x01,0x02,0x0A,0x0B,0x0C},\n" +
		"};\n" +
		"\n" +
		"#endif // BSSID_LIST_H\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteHeaderEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, nil))
	assert.Contains(t, buf.String(), "bssid_list[][6] = {\n};")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteHeaderPropagatesErrors(t *testing.T) {
	assert.EqualError(t, WriteHeader(failingWriter{}, []packet.BSSID{{1}}), "disk full")
}
