package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"interfield/binlog"
	"interfield/feed"
	"interfield/field"
	"interfield/server"
	"interfield/web"
)

func main() {
	port := flag.Int("port", 44433, "UDP port to listen on")
	httpPort := flag.Int("http", 0, "HTTP/WebSocket port (e.g. 8080). 0 to disable.")
	layoutXML := flag.String("layout", "layout.xml", "Path to layout.xml")
	waveNumber := flag.Float64("wave-number", 10.0, "Wave number k (higher = sharper peaks)")
	capturePath := flag.String("capture", "", "Path to output capture file (optional)")
	replayPath := flag.String("replay", "", "Feed a capture file through the pipeline instead of live ingest")
	replaySpeed := flag.Float64("replay-speed", 1.0, "Replay speed multiplier (0 for max speed)")
	flag.Parse()

	if _, err := os.Stat(*layoutXML); os.IsNotExist(err) {
		log.Fatalf("layout.xml not found at %s", *layoutXML)
	}

	log.Println("Loading configuration...")
	seed := field.ParseLayoutLandmarks(*layoutXML)
	log.Printf("Loaded %d landmarks from %s", len(seed), *layoutXML)

	udpSvr, err := server.NewUdpServer(*port, *waveNumber, seed)
	if err != nil {
		log.Fatalf("Failed to create UDP server: %v", err)
	}

	// Configure Web Server
	if *httpPort > 0 {
		webSvr := web.NewServer()
		webSvr.SetGridSource(udpSvr.Estimator)
		distDir := filepath.Dir(*layoutXML)
		go webSvr.Start(*httpPort, distDir)
		udpSvr.SetWebHub(webSvr.Hub)
	}

	// Configure downstream feed
	feedConfigs := field.ParseFeedTargets(*layoutXML)
	if len(feedConfigs) > 0 {
		sender := feed.NewSender()
		for _, cfg := range feedConfigs {
			fullAddr := fmt.Sprintf("%s:%d", cfg.Addr, cfg.Port)
			if cfg.Type == "TCP" {
				sender.AddTCPTarget(fullAddr, cfg.Mask)
				log.Printf("Added feed TCP target: %s (mask %x)", fullAddr, cfg.Mask)
			} else {
				sender.AddUDPTarget(fullAddr, cfg.Mask)
				log.Printf("Added feed UDP target: %s (mask %x)", fullAddr, cfg.Mask)
			}
		}
		sender.Start()
		udpSvr.SetFeedSender(sender)
		defer sender.Stop()
	}

	if *capturePath != "" {
		// Auto-generate name if directory
		path := *capturePath
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			path = fmt.Sprintf("%s/FIELDBIN_%s.pcap", path, time.Now().Format("20060102150405"))
		}

		bw, err := binlog.NewWriter(path)
		if err != nil {
			log.Fatalf("Failed to create capture writer: %v", err)
		}
		defer bw.Close()

		pts := make([][2]float64, len(seed))
		for i, lm := range seed {
			pts[i] = [2]float64{lm.X, lm.Y}
		}
		if err := bw.WriteLayout(pts); err != nil {
			log.Printf("WriteLayout failed: %v", err)
		}
		udpSvr.SetCaptureWriter(bw)
		log.Printf("Logging packets to %s", path)
	}

	if *replayPath != "" {
		go func() {
			if err := udpSvr.Replay(*replayPath, *replaySpeed); err != nil {
				log.Printf("Replay failed: %v", err)
			}
		}()
	} else {
		go udpSvr.Start()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	udpSvr.Stop()
}
