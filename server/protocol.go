package server

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	FrameMagic  = 0x4657 // little endian 'W' 'F'
	FrameHdrLen = 9      // magic(2) source(4) type(1) len(2)

	TypeLandmarkFrame    = 0x10
	TypeObservationFrame = 0x20
	TypeProbeFrame       = 0x30
	TypeProbeResultFrame = 0x31

	// A landmark/probe frame carries at most 255 points (count byte).
	MaxFramePoints = 255
)

// FrameHeader prefixes every frame. Source identifies the emitting unit;
// frames from different sources feed independent estimators.
type FrameHeader struct {
	Source  uint32
	Type    uint8
	BodyLen int
}

type LandmarkPoint struct {
	X, Y float64
}

type Probe struct {
	X, Y float64
}

type ProbeResult struct {
	X, Y      float64
	Intensity float64
}

// ParseHeader parses a frame header from the beginning of data.
func ParseHeader(data []byte) (*FrameHeader, error) {
	if len(data) < FrameHdrLen {
		return nil, fmt.Errorf("frame too short")
	}
	magic := binary.LittleEndian.Uint16(data[0:2])
	if magic != FrameMagic {
		return nil, fmt.Errorf("invalid magic: 0x%x", magic)
	}
	return &FrameHeader{
		Source:  binary.LittleEndian.Uint32(data[2:6]),
		Type:    data[6],
		BodyLen: int(binary.LittleEndian.Uint16(data[7:9])),
	}, nil
}

func encodeFrame(source uint32, typ uint8, body []byte) []byte {
	pkt := make([]byte, FrameHdrLen+len(body))
	binary.LittleEndian.PutUint16(pkt[0:2], FrameMagic)
	binary.LittleEndian.PutUint32(pkt[2:6], source)
	pkt[6] = typ
	binary.LittleEndian.PutUint16(pkt[7:9], uint16(len(body)))
	copy(pkt[FrameHdrLen:], body)
	return pkt
}

func putF32(b []byte, v float64) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
}

func getF32(b []byte) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
}

// EncodeLandmarkFrame builds a full packet registering landmarks.
// Body: count(1), then per landmark float32 x, y.
func EncodeLandmarkFrame(source uint32, pts []LandmarkPoint) ([]byte, error) {
	if len(pts) > MaxFramePoints {
		return nil, fmt.Errorf("too many landmarks: %d", len(pts))
	}
	body := make([]byte, 1+8*len(pts))
	body[0] = uint8(len(pts))
	for i, p := range pts {
		putF32(body[1+8*i:], p.X)
		putF32(body[5+8*i:], p.Y)
	}
	return encodeFrame(source, TypeLandmarkFrame, body), nil
}

func ParseLandmarkFrame(body []byte) ([]LandmarkPoint, error) {
	if len(body) < 1 {
		return nil, fmt.Errorf("landmark frame too short")
	}
	num := int(body[0])
	if len(body) < 1+8*num {
		return nil, fmt.Errorf("landmark frame truncated")
	}
	pts := make([]LandmarkPoint, num)
	for i := 0; i < num; i++ {
		pts[i] = LandmarkPoint{X: getF32(body[1+8*i:]), Y: getF32(body[5+8*i:])}
	}
	return pts, nil
}

// EncodeObservationFrame builds a full packet recording an observation.
// Body: float32 x, y.
func EncodeObservationFrame(source uint32, x, y float64) []byte {
	body := make([]byte, 8)
	putF32(body[0:], x)
	putF32(body[4:], y)
	return encodeFrame(source, TypeObservationFrame, body)
}

func ParseObservationFrame(body []byte) (x, y float64, err error) {
	if len(body) < 8 {
		return 0, 0, fmt.Errorf("observation frame too short")
	}
	return getF32(body[0:]), getF32(body[4:]), nil
}

// EncodeProbeFrame builds a full packet querying the field at points.
// Body: count(1), then per probe float32 x, y.
func EncodeProbeFrame(source uint32, probes []Probe) ([]byte, error) {
	if len(probes) > MaxFramePoints {
		return nil, fmt.Errorf("too many probes: %d", len(probes))
	}
	body := make([]byte, 1+8*len(probes))
	body[0] = uint8(len(probes))
	for i, p := range probes {
		putF32(body[1+8*i:], p.X)
		putF32(body[5+8*i:], p.Y)
	}
	return encodeFrame(source, TypeProbeFrame, body), nil
}

func ParseProbeFrame(body []byte) ([]Probe, error) {
	if len(body) < 1 {
		return nil, fmt.Errorf("probe frame too short")
	}
	num := int(body[0])
	if len(body) < 1+8*num {
		return nil, fmt.Errorf("probe frame truncated")
	}
	probes := make([]Probe, num)
	for i := 0; i < num; i++ {
		probes[i] = Probe{X: getF32(body[1+8*i:]), Y: getF32(body[5+8*i:])}
	}
	return probes, nil
}

// EncodeProbeResultFrame builds the answer to a probe frame.
// Body: count(1), then per result float32 x, y, intensity.
func EncodeProbeResultFrame(source uint32, results []ProbeResult) ([]byte, error) {
	if len(results) > MaxFramePoints {
		return nil, fmt.Errorf("too many results: %d", len(results))
	}
	body := make([]byte, 1+12*len(results))
	body[0] = uint8(len(results))
	for i, r := range results {
		putF32(body[1+12*i:], r.X)
		putF32(body[5+12*i:], r.Y)
		putF32(body[9+12*i:], r.Intensity)
	}
	return encodeFrame(source, TypeProbeResultFrame, body), nil
}

func ParseProbeResultFrame(body []byte) ([]ProbeResult, error) {
	if len(body) < 1 {
		return nil, fmt.Errorf("probe result frame too short")
	}
	num := int(body[0])
	if len(body) < 1+12*num {
		return nil, fmt.Errorf("probe result frame truncated")
	}
	results := make([]ProbeResult, num)
	for i := 0; i < num; i++ {
		results[i] = ProbeResult{
			X:         getF32(body[1+12*i:]),
			Y:         getF32(body[5+12*i:]),
			Intensity: getF32(body[9+12*i:]),
		}
	}
	return results, nil
}
