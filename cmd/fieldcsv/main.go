package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"interfield/binlog"
	"interfield/field"
)

func main() {
	capturePath := flag.String("capture", "", "Input capture file")
	sourceHex := flag.String("source", "1", "Source ID in hex")
	outPath := flag.String("out", "field.csv", "Output CSV path")
	allSources := flag.Bool("all", false, "Process all active sources in the capture")
	layoutXML := flag.String("layout", "", "Optional layout.xml (otherwise capture metadata is used)")
	waveNumber := flag.Float64("wave-number", 10.0, "Wave number k")
	minX := flag.Float64("minx", -20, "Grid extent min X (m)")
	minY := flag.Float64("miny", -20, "Grid extent min Y (m)")
	maxX := flag.Float64("maxx", 20, "Grid extent max X (m)")
	maxY := flag.Float64("maxy", 20, "Grid extent max Y (m)")
	cols := flag.Int("cols", 64, "Grid columns")
	rows := flag.Int("rows", 64, "Grid rows")
	flag.Parse()

	if *capturePath == "" {
		fmt.Println("--capture required")
		os.Exit(1)
	}

	parser := binlog.NewParser(*capturePath)
	if err := parser.Parse(); err != nil {
		fmt.Printf("parse capture failed: %v\n", err)
		os.Exit(1)
	}

	// layout: explicit XML beats capture metadata
	seed := parser.Layout
	if *layoutXML != "" {
		seed = nil
		for _, lm := range field.ParseLayoutLandmarks(*layoutXML) {
			seed = append(seed, [2]float64{lm.X, lm.Y})
		}
	}

	sourceIDs := []uint32{}
	if *allSources {
		sourceIDs = collectActiveSources(parser)
		if len(sourceIDs) == 0 {
			fmt.Println("no active sources found")
			os.Exit(1)
		}
	} else {
		id, err := parseSourceHex(*sourceHex)
		if err != nil {
			fmt.Printf("invalid source: %v\n", err)
			os.Exit(1)
		}
		sourceIDs = []uint32{id}
	}

	spec := field.GridSpec{
		MinX: *minX, MinY: *minY,
		MaxX: *maxX, MaxY: *maxY,
		Cols: *cols, Rows: *rows,
	}

	runSource := func(source uint32, out string) error {
		est, err := field.NewEstimator(*waveNumber)
		if err != nil {
			return err
		}
		for _, p := range seed {
			if _, err := est.AddLandmark(p[0], p[1]); err != nil {
				return err
			}
		}

		for _, evt := range parser.Events {
			for _, fr := range evt.Frames {
				if fr.Source != source {
					continue
				}
				switch fr.Type {
				case binlog.TypeLandmark:
					for _, p := range fr.Points {
						if _, err := est.AddLandmark(p[0], p[1]); err != nil {
							fmt.Printf("landmark (%v, %v): %v\n", p[0], p[1], err)
						}
					}
				case binlog.TypeObservation:
					p := fr.Points[0]
					if err := est.UpdateObservation(p[0], p[1]); err != nil {
						fmt.Printf("observation (%v, %v): %v\n", p[0], p[1], err)
					}
				}
			}
		}

		grid, err := est.Grid(spec)
		if err != nil {
			return err
		}

		records := [][]string{{"row", "col", "x_m", "y_m", "intensity"}}
		for r := 0; r < spec.Rows; r++ {
			for c := 0; c < spec.Cols; c++ {
				x, y := spec.CellCenter(r, c)
				records = append(records, []string{
					strconv.Itoa(r), strconv.Itoa(c),
					fmt.Sprintf("%.4f", x), fmt.Sprintf("%.4f", y),
					fmt.Sprintf("%.6g", grid.At(r, c)),
				})
			}
		}
		if err := writeCSV(out, records); err != nil {
			return err
		}
		st := grid.Stats()
		fmt.Printf("Source %X written %d cells to %s (min %.4g max %.4g mean %.4g p99 %.4g)\n",
			source, len(grid.Cells), out, st.Min, st.Max, st.Mean, st.P99)
		return nil
	}

	for _, source := range sourceIDs {
		out := *outPath
		if *allSources {
			ext := filepath.Ext(*outPath)
			base := strings.TrimSuffix(*outPath, ext)
			out = fmt.Sprintf("%s_%X%s", base, source, ext)
		}
		if err := runSource(source, out); err != nil {
			fmt.Printf("source %X failed: %v\n", source, err)
		}
	}
}

func parseSourceHex(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	return uint32(v), err
}

// collectActiveSources finds sources with any frame in the parsed events.
func collectActiveSources(p *binlog.Parser) []uint32 {
	seen := map[uint32]bool{}
	for _, evt := range p.Events {
		for _, fr := range evt.Frames {
			seen[fr.Source] = true
		}
	}
	out := []uint32{}
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
