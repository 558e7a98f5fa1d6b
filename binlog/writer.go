package binlog

import (
	"encoding/binary"
	"io"
	"math"
	"net"
	"os"
	"sync"
	"time"
)

const (
	PcapMagic = 0xA1B2C3D4

	// phdr2 flag values. Data records hold raw protocol frames; layout
	// records are metadata blocks with landmark positions.
	FlagData   = 0x109
	FlagLayout = 0x04
)

// Writer appends ingest packets to a pcap-style capture log. Records carry
// an 8-byte phdr2 (flag, source port, source ip) between the standard pcap
// record header and the payload.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	bw := &Writer{
		w:   f,
		buf: make([]byte, 32), // reused buffer for headers
	}

	if err := bw.writeGlobalHeader(); err != nil {
		f.Close()
		return nil, err
	}

	return bw, nil
}

func (bw *Writer) writeGlobalHeader() error {
	// Global Header: 24 bytes
	// Magic(4), Major(2), Minor(2), Zone(4), Sig(4), Snap(4), Link(4)
	b := make([]byte, 24)
	binary.LittleEndian.PutUint32(b[0:], PcapMagic)
	binary.LittleEndian.PutUint16(b[4:], 2)
	binary.LittleEndian.PutUint16(b[6:], 4)
	binary.LittleEndian.PutUint32(b[16:], 65535) // SnapLen
	binary.LittleEndian.PutUint32(b[20:], 1)     // LinkType

	_, err := bw.w.Write(b)
	return err
}

// WritePacket appends one raw packet with the current wall-clock timestamp.
func (bw *Writer) WritePacket(flag uint16, addr *net.UDPAddr, data []byte) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.writeRecord(flag, addr, data)
}

// WriteLayout appends a metadata record holding landmark positions so the
// capture can be evaluated offline without the layout file.
// Payload: count(2), then per landmark float32 x, y.
func (bw *Writer) WriteLayout(points [][2]float64) error {
	payload := make([]byte, 2+8*len(points))
	binary.LittleEndian.PutUint16(payload[0:], uint16(len(points)))
	for i, p := range points {
		binary.LittleEndian.PutUint32(payload[2+8*i:], math.Float32bits(float32(p[0])))
		binary.LittleEndian.PutUint32(payload[6+8*i:], math.Float32bits(float32(p[1])))
	}
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.writeRecord(FlagLayout, nil, payload)
}

func (bw *Writer) writeRecord(flag uint16, addr *net.UDPAddr, data []byte) error {
	now := time.Now()
	tsSec := uint32(now.Unix())
	tsUsec := uint32(now.Nanosecond() / 1000)

	totalLen := uint32(len(data) + phdr2Len)

	// 1. Standard record header (16 bytes)
	binary.LittleEndian.PutUint32(bw.buf[0:], tsSec)
	binary.LittleEndian.PutUint32(bw.buf[4:], tsUsec)
	binary.LittleEndian.PutUint32(bw.buf[8:], totalLen)
	binary.LittleEndian.PutUint32(bw.buf[12:], totalLen)

	if _, err := bw.w.Write(bw.buf[:16]); err != nil {
		return err
	}

	// 2. phdr2 (8 bytes): flag(2), port(2), ip(4)
	binary.LittleEndian.PutUint16(bw.buf[0:], flag)

	port := uint16(0)
	var ip4 net.IP
	if addr != nil {
		port = uint16(addr.Port)
		ip4 = addr.IP.To4()
	}
	binary.LittleEndian.PutUint16(bw.buf[2:], port)

	if ip4 != nil && len(ip4) == 4 {
		// Network byte order preserved for external tooling.
		copy(bw.buf[4:8], ip4)
	} else {
		binary.LittleEndian.PutUint32(bw.buf[4:], 0)
	}

	if _, err := bw.w.Write(bw.buf[:8]); err != nil {
		return err
	}

	// 3. Payload
	_, err := bw.w.Write(data)
	return err
}

func (bw *Writer) Close() error {
	if c, ok := bw.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
