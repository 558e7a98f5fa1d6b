package binlog

import (
	"encoding/binary"
	"math"
)

const (
	pcapGlobalLen = 24
	pcapRecordLen = 16
	phdr2Len      = 8

	frameMagic  = 0x4657
	frameHdrLen = 9

	TypeLandmark    = 0x10
	TypeObservation = 0x20
	TypeProbe       = 0x30
)

// Frame is one decoded protocol frame from a capture record. Points holds
// the frame's coordinate pairs: registered landmarks, probe queries, or a
// single observation point.
type Frame struct {
	Source uint32
	Type   uint8
	Points [][2]float64
}

// Event is one capture record with its decoded frames.
type Event struct {
	Timestamp float64
	Frames    []Frame
}

// Parser reads a capture log written by Writer. Layout metadata records and
// data records are collected separately.
type Parser struct {
	Path string

	Layout [][2]float64
	Events []Event
}

func NewParser(path string) *Parser {
	return &Parser{Path: path}
}

func (p *Parser) Parse() error {
	return ReadRaw(p.Path, func(rec RawRecord) error {
		if rec.Flag == FlagLayout {
			p.parseLayout(rec.Payload)
			return nil
		}
		frames := parseFrames(rec.Payload)
		if len(frames) > 0 {
			p.Events = append(p.Events, Event{Timestamp: rec.Timestamp, Frames: frames})
		}
		return nil
	})
}

func (p *Parser) parseLayout(payload []byte) {
	if len(payload) < 2 {
		return
	}
	num := int(binary.LittleEndian.Uint16(payload[0:2]))
	if len(payload) < 2+8*num {
		return
	}
	for i := 0; i < num; i++ {
		x := f32at(payload, 2+8*i)
		y := f32at(payload, 6+8*i)
		p.Layout = append(p.Layout, [2]float64{x, y})
	}
}

// parseFrames walks concatenated frames in one packet. The frame layout is
// duplicated from the server package to keep this package importable from
// both sides.
func parseFrames(data []byte) []Frame {
	frames := []Frame{}
	offset := 0
	for offset < len(data) {
		if len(data)-offset < frameHdrLen {
			break
		}
		if binary.LittleEndian.Uint16(data[offset:]) != frameMagic {
			offset++
			continue
		}
		source := binary.LittleEndian.Uint32(data[offset+2:])
		typ := data[offset+6]
		bodyLen := int(binary.LittleEndian.Uint16(data[offset+7:]))
		if offset+frameHdrLen+bodyLen > len(data) {
			break
		}
		body := data[offset+frameHdrLen : offset+frameHdrLen+bodyLen]
		if pts, ok := decodeBody(typ, body); ok {
			frames = append(frames, Frame{Source: source, Type: typ, Points: pts})
		}
		offset += frameHdrLen + bodyLen
	}
	return frames
}

func decodeBody(typ uint8, body []byte) ([][2]float64, bool) {
	switch typ {
	case TypeLandmark, TypeProbe:
		if len(body) < 1 {
			return nil, false
		}
		num := int(body[0])
		if len(body) < 1+8*num {
			return nil, false
		}
		pts := make([][2]float64, num)
		for i := 0; i < num; i++ {
			pts[i] = [2]float64{f32at(body, 1+8*i), f32at(body, 5+8*i)}
		}
		return pts, true
	case TypeObservation:
		if len(body) < 8 {
			return nil, false
		}
		return [][2]float64{{f32at(body, 0), f32at(body, 4)}}, true
	default:
		return nil, false
	}
}

func f32at(b []byte, off int) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b[off:])))
}
