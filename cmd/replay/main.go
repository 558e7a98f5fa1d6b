package main

import (
	"flag"
	"log"
	"net"
	"time"

	"interfield/binlog"
)

func main() {
	capturePath := flag.String("capture", "", "Input capture file")
	destAddr := flag.String("dest", "127.0.0.1:44433", "Destination UDP address")
	speed := flag.Float64("speed", 1.0, "Replay speed multiplier (0 for max speed)")
	flag.Parse()

	if *capturePath == "" {
		log.Fatal("--capture required")
	}

	raddr, err := net.ResolveUDPAddr("udp", *destAddr)
	if err != nil {
		log.Fatalf("Invalid dest address: %v", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	log.Printf("Replaying %s to %s...", *capturePath, *destAddr)

	var firstTs float64
	var start time.Time
	count := 0
	err = binlog.ReadRaw(*capturePath, func(rec binlog.RawRecord) error {
		// Layout metadata never goes on the wire.
		if rec.Flag == binlog.FlagLayout {
			return nil
		}
		if start.IsZero() {
			firstTs = rec.Timestamp
			start = time.Now()
		} else if *speed > 0 {
			target := time.Duration((rec.Timestamp - firstTs) / *speed * float64(time.Second))
			if d := target - time.Since(start); d > 0 {
				time.Sleep(d)
			}
		}
		if _, err := conn.Write(rec.Payload); err != nil {
			log.Printf("Write error: %v", err)
		}
		count++
		return nil
	})
	if err != nil {
		log.Fatalf("Replay failed: %v", err)
	}
	log.Printf("Done. Sent %d packets.", count)
}
