package server

import (
	"errors"
	"log"
	"time"

	"interfield/binlog"
)

var errReplayStopped = errors.New("replay stopped")

// pacer spaces replayed packets to their recorded timestamps, scaled by a
// speed multiplier. Zero or negative speed disables pacing.
type pacer struct {
	firstTs float64
	start   time.Time
}

func (p *pacer) wait(ts, speed float64) {
	if p.start.IsZero() {
		p.firstTs = ts
		p.start = time.Now()
		return
	}
	if speed <= 0 {
		return
	}
	target := time.Duration((ts - p.firstTs) / speed * float64(time.Second))
	if d := target - time.Since(p.start); d > 0 {
		time.Sleep(d)
	}
}

// Replay feeds a capture log through the live packet handler. Layout
// metadata records are skipped; seed landmarks come from the server's own
// configuration. Stop interrupts a running replay.
func (s *UdpServer) Replay(path string, speed float64) error {
	s.running = true
	log.Printf("Replaying %s at %.1fx speed...", path, speed)

	var p pacer
	count := 0
	err := binlog.ReadRaw(path, func(rec binlog.RawRecord) error {
		if !s.running {
			return errReplayStopped
		}
		if rec.Flag == binlog.FlagLayout {
			return nil
		}
		p.wait(rec.Timestamp, speed)
		s.handlePacket(rec.Payload, rec.Addr, int64(rec.Timestamp*1000))
		count++
		return nil
	})
	if err != nil && !errors.Is(err, errReplayStopped) {
		return err
	}
	log.Printf("Replay done, %d packets", count)
	return nil
}
