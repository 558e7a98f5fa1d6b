package server

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interfield/binlog"
	"interfield/field"
)

func newTestServer(t *testing.T, seed []field.LayoutLandmark) *UdpServer {
	t.Helper()
	return &UdpServer{
		waveNumber: 10.0,
		seed:       seed,
		sources:    make(map[uint32]*field.SharedEstimator),
		lastProbe:  make(map[uint32]*wsProbe),
		lastAddr:   make(map[uint32]*net.UDPAddr),
		seq:        make(map[uint32]uint16),
	}
}

func TestIngestBuildsPerSourceEstimators(t *testing.T) {
	s := newTestServer(t, nil)

	lmPkt, err := EncodeLandmarkFrame(1, []LandmarkPoint{{X: 0, Y: 10}, {X: -10, Y: -10}, {X: 10, Y: -10}})
	require.NoError(t, err)
	s.handlePacket(lmPkt, nil, 1000)

	lmPkt2, err := EncodeLandmarkFrame(2, []LandmarkPoint{{X: 5, Y: 5}})
	require.NoError(t, err)
	s.handlePacket(lmPkt2, nil, 1001)

	est1 := s.Estimator(1)
	require.NotNil(t, est1)
	assert.Equal(t, 3, est1.LandmarkCount())

	est2 := s.Estimator(2)
	require.NotNil(t, est2)
	assert.Equal(t, 1, est2.LandmarkCount())

	assert.Nil(t, s.Estimator(3))
}

func TestIngestSeedsNewSources(t *testing.T) {
	seed := []field.LayoutLandmark{{ID: 1, X: 10, Y: 0}, {ID: 2, X: -10, Y: 0}}
	s := newTestServer(t, seed)

	s.handlePacket(EncodeObservationFrame(7, 0, 0), nil, 1000)

	est := s.Estimator(7)
	require.NotNil(t, est)
	assert.Equal(t, 2, est.LandmarkCount())

	// The seeded landmarks carry reference distances from the observation.
	v, err := est.Probability(0, 0)
	require.NoError(t, err)
	assert.Greater(t, v, 0.0)
}

func TestIngestConcatenatedPacket(t *testing.T) {
	s := newTestServer(t, nil)

	lmPkt, err := EncodeLandmarkFrame(1, []LandmarkPoint{{X: 10, Y: 0}})
	require.NoError(t, err)
	obsPkt := EncodeObservationFrame(1, 0, 0)
	packet := append(append([]byte{}, lmPkt...), obsPkt...)

	s.handlePacket(packet, nil, 1000)

	est := s.Estimator(1)
	require.NotNil(t, est)
	assert.Equal(t, 1, est.LandmarkCount())
	v, err := est.Probability(0, 0)
	require.NoError(t, err)
	assert.Greater(t, v, 0.0)
}

func TestIngestSkipsGarbagePrefix(t *testing.T) {
	s := newTestServer(t, nil)

	lmPkt, err := EncodeLandmarkFrame(1, []LandmarkPoint{{X: 1, Y: 1}})
	require.NoError(t, err)
	packet := append([]byte{0xFF, 0x00, 0x13}, lmPkt...)

	s.handlePacket(packet, nil, 1000)

	est := s.Estimator(1)
	require.NotNil(t, est)
	assert.Equal(t, 1, est.LandmarkCount())
}

func TestProbeRecordsLastResult(t *testing.T) {
	s := newTestServer(t, nil)

	lmPkt, err := EncodeLandmarkFrame(1, []LandmarkPoint{{X: 10, Y: 0}, {X: -10, Y: 0}})
	require.NoError(t, err)
	s.handlePacket(lmPkt, nil, 1000)
	s.handlePacket(EncodeObservationFrame(1, 0, 0), nil, 1001)

	probePkt, err := EncodeProbeFrame(1, []Probe{{X: 0, Y: 0}})
	require.NoError(t, err)
	s.handlePacket(probePkt, nil, 1002)

	probes := s.GetProbes().([]*wsProbe)
	require.Len(t, probes, 1)
	assert.Equal(t, int64(1), probes[0].Source)
	assert.Equal(t, int64(1002), probes[0].TS)
	assert.Greater(t, probes[0].Intensity, 0.0)

	// Sequence numbers advance per published result.
	s.handlePacket(probePkt, nil, 1003)
	s.mu.Lock()
	assert.Equal(t, uint16(2), s.seq[1])
	s.mu.Unlock()
}

func TestProbeReplyFallsBackToLastKnownAddr(t *testing.T) {
	recv, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer recv.Close()

	send, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer send.Close()

	s := newTestServer(t, nil)
	s.conn = send

	raddr := recv.LocalAddr().(*net.UDPAddr)
	lmPkt, err := EncodeLandmarkFrame(1, []LandmarkPoint{{X: 10, Y: 0}})
	require.NoError(t, err)
	s.handlePacket(lmPkt, raddr, 1000)
	s.handlePacket(EncodeObservationFrame(1, 0, 0), raddr, 1001)

	// A probe without a reply address is answered at the source's last
	// known address.
	probePkt, err := EncodeProbeFrame(1, []Probe{{X: 0, Y: 0}})
	require.NoError(t, err)
	s.handlePacket(probePkt, nil, 1002)

	recv.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, MaxPacketSize)
	n, _, err := recv.ReadFromUDP(buf)
	require.NoError(t, err)

	hdr, err := ParseHeader(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, uint8(TypeProbeResultFrame), hdr.Type)
	results, err := ParseProbeResultFrame(buf[FrameHdrLen : FrameHdrLen+hdr.BodyLen])
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Greater(t, results[0].Intensity, 0.0)
}

func TestReplayFeedsHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")
	w, err := binlog.NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteLayout([][2]float64{{1, 1}}))
	lmPkt, err := EncodeLandmarkFrame(1, []LandmarkPoint{{X: 10, Y: 0}})
	require.NoError(t, err)
	require.NoError(t, w.WritePacket(binlog.FlagData, nil, lmPkt))
	require.NoError(t, w.WritePacket(binlog.FlagData, nil, EncodeObservationFrame(1, 0, 0)))
	require.NoError(t, w.Close())

	s := newTestServer(t, nil)
	require.NoError(t, s.Replay(path, 0))

	est := s.Estimator(1)
	require.NotNil(t, est)
	// The layout metadata record is configuration, not ingest.
	assert.Equal(t, 1, est.LandmarkCount())
	v, err := est.Probability(0, 0)
	require.NoError(t, err)
	assert.Greater(t, v, 0.0)
}

func TestSendProbe(t *testing.T) {
	s := newTestServer(t, nil)

	_, err := s.SendProbe(1, 0, 0)
	assert.Error(t, err)

	lmPkt, err := EncodeLandmarkFrame(1, []LandmarkPoint{{X: 3, Y: 4}})
	require.NoError(t, err)
	s.handlePacket(lmPkt, nil, 1000)
	s.handlePacket(EncodeObservationFrame(1, 0, 0), nil, 1001)

	v, err := s.SendProbe(1, 0, 0)
	require.NoError(t, err)
	assert.Greater(t, v, 0.0)
}
