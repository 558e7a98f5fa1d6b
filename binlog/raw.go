package binlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
)

// RawRecord is one capture record with its payload left undecoded. Addr is
// nil when the record carries no sender address.
type RawRecord struct {
	Timestamp float64
	Flag      uint16
	Addr      *net.UDPAddr
	Payload   []byte
}

// ReadRaw walks a capture file record by record without decoding payloads.
// An error from fn stops the walk and is returned unchanged. A truncated
// trailing record ends the walk cleanly.
func ReadRaw(path string, fn func(RawRecord) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	hdr := make([]byte, pcapGlobalLen)
	if _, err := io.ReadFull(f, hdr); err != nil {
		return fmt.Errorf("capture header: %w", err)
	}

	rec := make([]byte, pcapRecordLen)
	phdr := make([]byte, phdr2Len)
	for {
		if _, err := io.ReadFull(f, rec); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("capture record: %w", err)
		}
		tsSec := binary.LittleEndian.Uint32(rec[0:4])
		tsUsec := binary.LittleEndian.Uint32(rec[4:8])
		inclLen := binary.LittleEndian.Uint32(rec[8:12])
		if inclLen < phdr2Len {
			// malformed record, skip the stated length
			if _, err := f.Seek(int64(inclLen), io.SeekCurrent); err != nil {
				return fmt.Errorf("skip malformed record: %w", err)
			}
			continue
		}

		if _, err := io.ReadFull(f, phdr); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("capture phdr2: %w", err)
		}
		payload := make([]byte, int(inclLen)-phdr2Len)
		if _, err := io.ReadFull(f, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("capture payload: %w", err)
		}

		r := RawRecord{
			Timestamp: float64(tsSec) + float64(tsUsec)/1e6,
			Flag:      binary.LittleEndian.Uint16(phdr[0:2]),
			Payload:   payload,
		}
		if port := binary.LittleEndian.Uint16(phdr[2:4]); port != 0 {
			ip := make(net.IP, 4)
			copy(ip, phdr[4:8])
			r.Addr = &net.UDPAddr{IP: ip, Port: int(port)}
		}
		if err := fn(r); err != nil {
			return err
		}
	}
}
