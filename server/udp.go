package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"interfield/binlog"
	"interfield/feed"
	"interfield/field"
	"interfield/web"
)

const (
	DefaultPort   = 44433
	MaxPacketSize = 65535
)

type wsProbe struct {
	Source    int64   `json:"source"`
	TS        int64   `json:"ts"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Intensity float64 `json:"intensity"`
}

// UdpServer ingests protocol frames and maintains one shared estimator per
// source id. Landmark frames register wave sources, observation frames
// record reference phases, probe frames are answered with field intensities.
type UdpServer struct {
	conn       *net.UDPConn
	waveNumber float64
	seed       []field.LayoutLandmark

	capture *binlog.Writer
	sender  *feed.Sender
	webHub  *web.Hub
	running bool

	sources map[uint32]*field.SharedEstimator
	// Map Source -> Last Probe Result / reply addr / feed sequence
	lastProbe map[uint32]*wsProbe
	lastAddr  map[uint32]*net.UDPAddr
	seq       map[uint32]uint16
	mu        sync.Mutex
}

// NewUdpServer listens on port. Every new source starts with the seed
// landmarks from the layout file (may be empty).
func NewUdpServer(port int, waveNumber float64, seed []field.LayoutLandmark) (*UdpServer, error) {
	if port == 0 {
		port = DefaultPort
	}
	if _, err := field.NewShared(waveNumber); err != nil {
		return nil, err
	}
	addr := net.UDPAddr{
		Port: port,
		IP:   net.ParseIP("0.0.0.0"),
	}
	conn, err := net.ListenUDP("udp", &addr)
	if err != nil {
		return nil, err
	}

	conn.SetReadBuffer(256 * 1024)

	return &UdpServer{
		conn:       conn,
		waveNumber: waveNumber,
		seed:       seed,
		sources:    make(map[uint32]*field.SharedEstimator),
		lastProbe:  make(map[uint32]*wsProbe),
		lastAddr:   make(map[uint32]*net.UDPAddr),
		seq:        make(map[uint32]uint16),
	}, nil
}

func (s *UdpServer) SetCaptureWriter(bw *binlog.Writer) {
	s.capture = bw
}

func (s *UdpServer) SetFeedSender(snd *feed.Sender) {
	s.sender = snd
}

func (s *UdpServer) SetWebHub(h *web.Hub) {
	s.webHub = h
}

// Estimator returns the shared estimator for a source, or nil if the source
// has not been seen. Used by the web /grid endpoint.
func (s *UdpServer) Estimator(source uint32) *field.SharedEstimator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sources[source]
}

func (s *UdpServer) GetProbes() interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	probes := make([]*wsProbe, 0, len(s.lastProbe))
	for _, p := range s.lastProbe {
		probes = append(probes, p)
	}
	return probes
}

func (s *UdpServer) Start() {
	s.running = true
	buf := make([]byte, MaxPacketSize)
	log.Printf("UDP Server listening on %s", s.conn.LocalAddr().String())

	for s.running {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if s.running {
				log.Printf("Read error: %v", err)
			}
			continue
		}

		// Copy before parsing; the handler may outlive this iteration.
		data := make([]byte, n)
		copy(data, buf[:n])

		s.handlePacket(data, addr, time.Now().UnixMilli())
	}
}

func (s *UdpServer) Stop() {
	s.running = false
	s.conn.Close()
}

func (s *UdpServer) estimatorFor(source uint32) *field.SharedEstimator {
	s.mu.Lock()
	defer s.mu.Unlock()
	if est, ok := s.sources[source]; ok {
		return est
	}
	est, err := field.NewShared(s.waveNumber)
	if err != nil {
		// wave number was validated at construction
		log.Printf("estimator for source %x: %v", source, err)
		return nil
	}
	for _, lm := range s.seed {
		if _, err := est.AddLandmark(lm.X, lm.Y); err != nil {
			log.Printf("seed landmark %x: %v", lm.ID, err)
		}
	}
	s.sources[source] = est
	return est
}

func (s *UdpServer) handlePacket(data []byte, addr *net.UDPAddr, ts int64) {
	offset := 0
	for offset < len(data) {
		if len(data)-offset < FrameHdrLen {
			break
		}

		hdr, err := ParseHeader(data[offset:])
		if err != nil {
			offset++
			continue
		}

		totalLen := FrameHdrLen + hdr.BodyLen
		if offset+totalLen > len(data) {
			break
		}

		pktData := data[offset : offset+totalLen]

		if s.capture != nil {
			_ = s.capture.WritePacket(binlog.FlagData, addr, pktData)
		}

		body := data[offset+FrameHdrLen : offset+totalLen]

		if addr != nil {
			s.mu.Lock()
			s.lastAddr[hdr.Source] = addr
			s.mu.Unlock()
		}

		s.processFrame(hdr, body, addr, ts)

		offset += totalLen
	}
}

func (s *UdpServer) processFrame(hdr *FrameHeader, body []byte, addr *net.UDPAddr, ts int64) {
	est := s.estimatorFor(hdr.Source)
	if est == nil {
		return
	}

	switch hdr.Type {
	case TypeLandmarkFrame:
		pts, err := ParseLandmarkFrame(body)
		if err != nil {
			log.Printf("ParseLandmarkFrame error: %v", err)
			return
		}
		for _, p := range pts {
			if _, err := est.AddLandmark(p.X, p.Y); err != nil {
				log.Printf("AddLandmark (%v, %v): %v", p.X, p.Y, err)
			}
		}

	case TypeObservationFrame:
		x, y, err := ParseObservationFrame(body)
		if err != nil {
			log.Printf("ParseObservationFrame error: %v", err)
			return
		}
		if err := est.UpdateObservation(x, y); err != nil {
			log.Printf("UpdateObservation (%v, %v): %v", x, y, err)
		}

	case TypeProbeFrame:
		probes, err := ParseProbeFrame(body)
		if err != nil {
			log.Printf("ParseProbeFrame error: %v", err)
			return
		}
		s.answerProbes(hdr.Source, est, probes, addr, ts)
	}
}

func (s *UdpServer) answerProbes(source uint32, est *field.SharedEstimator, probes []Probe, addr *net.UDPAddr, ts int64) {
	results := make([]ProbeResult, 0, len(probes))
	for _, p := range probes {
		intensity, err := est.Probability(p.X, p.Y)
		if err != nil {
			log.Printf("Probability (%v, %v): %v", p.X, p.Y, err)
			continue
		}
		results = append(results, ProbeResult{X: p.X, Y: p.Y, Intensity: intensity})
	}
	if len(results) == 0 {
		return
	}

	// Answers to probes without a reply address (replayed records, local
	// tooling) go to the source's last known address.
	if addr == nil {
		s.mu.Lock()
		addr = s.lastAddr[source]
		s.mu.Unlock()
	}

	if addr != nil {
		if reply, err := EncodeProbeResultFrame(source, results); err == nil {
			if _, err := s.conn.WriteToUDP(reply, addr); err != nil {
				log.Printf("probe reply to %s: %v", addr, err)
			}
		}
	}

	for _, r := range results {
		s.publishResult(source, ts, r)
	}
}

func (s *UdpServer) publishResult(source uint32, ts int64, r ProbeResult) {
	s.mu.Lock()
	s.seq[source]++
	seq := s.seq[source]
	probe := &wsProbe{
		Source:    int64(source),
		TS:        ts,
		X:         r.X,
		Y:         r.Y,
		Intensity: r.Intensity,
	}
	s.lastProbe[source] = probe
	s.mu.Unlock()

	if s.sender != nil {
		msg := feed.FormatProbe(int(source), ts, seq, r.X, r.Y, r.Intensity)
		s.sender.Send(msg, feed.FlagProbe)
	}

	if s.webHub != nil {
		b, _ := json.Marshal(probe)
		s.webHub.Broadcast(b)
	}
}

// SendProbe lets local tooling query a source the way a remote unit would.
func (s *UdpServer) SendProbe(source uint32, x, y float64) (float64, error) {
	s.mu.Lock()
	est, ok := s.sources[source]
	s.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("source %x not found", source)
	}
	return est.Probability(x, y)
}
