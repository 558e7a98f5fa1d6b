package feed

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatProbe(t *testing.T) {
	line := FormatProbe(0x10A3, 1700000000123, 42, 1.25, -3.5, 0.0625)
	s := string(line)

	assert.True(t, strings.HasPrefix(s, "field:"))
	assert.True(t, strings.HasSuffix(s, "\r\n"))

	fields := strings.Split(strings.TrimSuffix(s, "\r\n"), ",")
	require.Len(t, fields, 7)
	assert.Equal(t, "00000000000010A3", fields[1])
	assert.Equal(t, "42", fields[2])
	assert.Equal(t, "1.25", fields[4])
	assert.Equal(t, "-3.50", fields[5])
	assert.Equal(t, "0.0625", fields[6])
}

func TestFormatProbeLengthField(t *testing.T) {
	line := FormatProbe(1, 1700000000000, 1, 0, 0, 1)

	// Bytes 8..10 carry the decimal message length for stream framing.
	got, err := strconv.Atoi(strings.TrimSpace(string(line[8:11])))
	require.NoError(t, err)
	assert.Equal(t, len(line), got)
}
