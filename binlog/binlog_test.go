package binlog_test

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interfield/binlog"
	"interfield/server"
)

func TestCaptureRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")

	w, err := binlog.NewWriter(path)
	require.NoError(t, err)

	layout := [][2]float64{{10, 0}, {-10, 0}, {0, 12.5}}
	require.NoError(t, w.WriteLayout(layout))

	addr := &net.UDPAddr{IP: net.IPv4(192, 168, 1, 10), Port: 5555}

	lmPkt, err := server.EncodeLandmarkFrame(0x42, []server.LandmarkPoint{{X: 1.5, Y: -2.25}})
	require.NoError(t, err)
	require.NoError(t, w.WritePacket(binlog.FlagData, addr, lmPkt))

	obsPkt := server.EncodeObservationFrame(0x42, 0.5, 0.75)
	require.NoError(t, w.WritePacket(binlog.FlagData, addr, obsPkt))

	probePkt, err := server.EncodeProbeFrame(0x42, []server.Probe{{X: 0, Y: 0}, {X: 5, Y: 5}})
	require.NoError(t, err)
	require.NoError(t, w.WritePacket(binlog.FlagData, addr, probePkt))

	require.NoError(t, w.Close())

	p := binlog.NewParser(path)
	require.NoError(t, p.Parse())

	require.Len(t, p.Layout, 3)
	assert.Equal(t, [2]float64{10, 0}, p.Layout[0])
	assert.Equal(t, [2]float64{0, 12.5}, p.Layout[2])

	require.Len(t, p.Events, 3)

	lm := p.Events[0].Frames[0]
	assert.Equal(t, uint32(0x42), lm.Source)
	assert.Equal(t, uint8(binlog.TypeLandmark), lm.Type)
	assert.Equal(t, [][2]float64{{1.5, -2.25}}, lm.Points)

	obs := p.Events[1].Frames[0]
	assert.Equal(t, uint8(binlog.TypeObservation), obs.Type)
	assert.Equal(t, [][2]float64{{0.5, 0.75}}, obs.Points)

	probe := p.Events[2].Frames[0]
	assert.Equal(t, uint8(binlog.TypeProbe), probe.Type)
	assert.Len(t, probe.Points, 2)

	assert.Greater(t, p.Events[0].Timestamp, 0.0)
}

func TestCaptureConcatenatedFramesInOneRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")

	w, err := binlog.NewWriter(path)
	require.NoError(t, err)

	lmPkt, err := server.EncodeLandmarkFrame(1, []server.LandmarkPoint{{X: 3, Y: 4}})
	require.NoError(t, err)
	obsPkt := server.EncodeObservationFrame(1, 0, 0)
	packet := append(append([]byte{}, lmPkt...), obsPkt...)
	require.NoError(t, w.WritePacket(binlog.FlagData, nil, packet))
	require.NoError(t, w.Close())

	p := binlog.NewParser(path)
	require.NoError(t, p.Parse())

	require.Len(t, p.Events, 1)
	require.Len(t, p.Events[0].Frames, 2)
	assert.Equal(t, uint8(binlog.TypeLandmark), p.Events[0].Frames[0].Type)
	assert.Equal(t, uint8(binlog.TypeObservation), p.Events[0].Frames[1].Type)
}

func TestReadRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")

	w, err := binlog.NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteLayout([][2]float64{{10, 0}}))

	addr := &net.UDPAddr{IP: net.IPv4(192, 168, 1, 10), Port: 5555}
	payload := server.EncodeObservationFrame(1, 0, 0)
	require.NoError(t, w.WritePacket(binlog.FlagData, addr, payload))
	require.NoError(t, w.Close())

	var recs []binlog.RawRecord
	require.NoError(t, binlog.ReadRaw(path, func(r binlog.RawRecord) error {
		recs = append(recs, r)
		return nil
	}))

	require.Len(t, recs, 2)
	assert.Equal(t, uint16(binlog.FlagLayout), recs[0].Flag)
	assert.Nil(t, recs[0].Addr)

	assert.Equal(t, uint16(binlog.FlagData), recs[1].Flag)
	require.NotNil(t, recs[1].Addr)
	assert.Equal(t, 5555, recs[1].Addr.Port)
	assert.True(t, recs[1].Addr.IP.Equal(net.IPv4(192, 168, 1, 10)))
	assert.Equal(t, payload, recs[1].Payload)
	assert.Greater(t, recs[1].Timestamp, 0.0)
}

func TestParseMissingFile(t *testing.T) {
	p := binlog.NewParser("/nonexistent/capture.pcap")
	assert.Error(t, p.Parse())
}
