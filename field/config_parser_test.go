package field

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLayoutXML = `<?xml version="1.0" encoding="UTF-8"?>
<config>
  <landmarklist>
    <deviceItem id="A01" pos="1000,250"/>
    <deviceItem id="A02" pos="-500, 1200"/>
    <deviceItem id="A03" pos="broken"/>
    <deviceItem id="xyz" pos="100,100"/>
    <deviceItem pos="100,100"/>
  </landmarklist>
  <txlist>
    <transferItem addr="10.0.0.5" port="9001" type="udp" data="1"/>
    <transferItem addr="10.0.0.6" port="9002" type="tcpclient" data="7"/>
  </txlist>
</config>
`

func writeTempLayout(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layout.xml")
	require.NoError(t, os.WriteFile(path, []byte(testLayoutXML), 0644))
	return path
}

func TestParseLayoutLandmarks(t *testing.T) {
	lms := ParseLayoutLandmarks(writeTempLayout(t))

	// Malformed items are skipped; coordinates convert cm to m.
	require.Len(t, lms, 2)
	assert.Equal(t, 0xA01, lms[0].ID)
	assert.InDelta(t, 10.0, lms[0].X, 1e-12)
	assert.InDelta(t, 2.5, lms[0].Y, 1e-12)
	assert.Equal(t, 0xA02, lms[1].ID)
	assert.InDelta(t, -5.0, lms[1].X, 1e-12)
	assert.InDelta(t, 12.0, lms[1].Y, 1e-12)
}

func TestParseFeedTargets(t *testing.T) {
	targets := ParseFeedTargets(writeTempLayout(t))

	require.Len(t, targets, 2)
	assert.Equal(t, FeedTarget{Addr: "10.0.0.5", Port: 9001, Type: "udp", Mask: 1}, targets[0])
	assert.Equal(t, FeedTarget{Addr: "10.0.0.6", Port: 9002, Type: "tcpclient", Mask: 7}, targets[1])
}

func TestParseMissingFile(t *testing.T) {
	assert.Empty(t, ParseLayoutLandmarks("/nonexistent/layout.xml"))
	assert.Empty(t, ParseFeedTargets("/nonexistent/layout.xml"))
}
