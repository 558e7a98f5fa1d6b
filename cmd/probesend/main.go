package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"interfield/field"
	"interfield/server"
)

// Test client: registers landmarks, records an observation and probes the
// field, printing the intensities the server answers with.
func main() {
	destAddr := flag.String("dest", "127.0.0.1:44433", "Destination UDP address")
	source := flag.Uint("source", 1, "Source ID")
	layoutXML := flag.String("layout", "", "Optional layout.xml with landmarks to register")
	obs := flag.String("obs", "0,0", "Observation point x,y (m)")
	probes := flag.String("probes", "0,0;5,5", "Probe points x,y;x,y... (m)")
	timeout := flag.Duration("timeout", 2*time.Second, "Reply wait timeout")
	flag.Parse()

	raddr, err := net.ResolveUDPAddr("udp", *destAddr)
	if err != nil {
		log.Fatalf("Invalid dest address: %v", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	src := uint32(*source)

	if *layoutXML != "" {
		lms := field.ParseLayoutLandmarks(*layoutXML)
		pts := make([]server.LandmarkPoint, 0, len(lms))
		for _, lm := range lms {
			pts = append(pts, server.LandmarkPoint{X: lm.X, Y: lm.Y})
		}
		pkt, err := server.EncodeLandmarkFrame(src, pts)
		if err != nil {
			log.Fatalf("Encode landmarks failed: %v", err)
		}
		if _, err := conn.Write(pkt); err != nil {
			log.Fatalf("Send landmarks failed: %v", err)
		}
		log.Printf("Registered %d landmarks", len(pts))
	}

	ox, oy, err := parsePoint(*obs)
	if err != nil {
		log.Fatalf("Invalid --obs: %v", err)
	}
	if _, err := conn.Write(server.EncodeObservationFrame(src, ox, oy)); err != nil {
		log.Fatalf("Send observation failed: %v", err)
	}
	log.Printf("Recorded observation at (%.2f, %.2f)", ox, oy)

	probeList := []server.Probe{}
	for _, p := range strings.Split(*probes, ";") {
		if p == "" {
			continue
		}
		x, y, err := parsePoint(p)
		if err != nil {
			log.Fatalf("Invalid probe %q: %v", p, err)
		}
		probeList = append(probeList, server.Probe{X: x, Y: y})
	}
	pkt, err := server.EncodeProbeFrame(src, probeList)
	if err != nil {
		log.Fatalf("Encode probes failed: %v", err)
	}
	if _, err := conn.Write(pkt); err != nil {
		log.Fatalf("Send probes failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(*timeout))
	buf := make([]byte, server.MaxPacketSize)
	n, err := conn.Read(buf)
	if err != nil {
		log.Fatalf("No reply: %v", err)
	}

	hdr, err := server.ParseHeader(buf[:n])
	if err != nil || hdr.Type != server.TypeProbeResultFrame {
		log.Fatalf("Unexpected reply (%d bytes)", n)
	}
	if server.FrameHdrLen+hdr.BodyLen > n {
		log.Fatalf("Truncated reply (%d of %d bytes)", n, server.FrameHdrLen+hdr.BodyLen)
	}
	results, err := server.ParseProbeResultFrame(buf[server.FrameHdrLen : server.FrameHdrLen+hdr.BodyLen])
	if err != nil {
		log.Fatalf("Parse reply failed: %v", err)
	}
	for _, r := range results {
		fmt.Printf("(%.2f, %.2f) -> %.6g\n", r.X, r.Y, r.Intensity)
	}
}

func parsePoint(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want x,y")
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
