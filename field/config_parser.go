package field

import (
	"encoding/xml"
	"io"
	"os"
	"strconv"
	"strings"
)

// LayoutLandmark is one landmark entry from a layout file, in document order.
type LayoutLandmark struct {
	ID   int
	X, Y float64
}

// FeedTarget configures one downstream consumer of probe results.
type FeedTarget struct {
	Addr string
	Port int
	Type string
	Mask uint32
}

// ParseLayoutLandmarks loads the landmarklist from a layout XML file.
// Coordinates in the file are centimetres; returned values are metres.
// Malformed items are skipped.
func ParseLayoutLandmarks(path string) []LayoutLandmark {
	landmarks := []LayoutLandmark{}
	dec, f, err := readXML(path)
	if err != nil {
		return landmarks
	}
	defer f.Close()
	inList := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "landmarklist" {
				inList = true
				continue
			}
			if t.Name.Local == "deviceItem" && inList {
				idStr, ok := attrValue(t, "id")
				if !ok {
					continue
				}
				posStr, ok := attrValue(t, "pos")
				if !ok {
					continue
				}
				id, err := strconv.ParseInt(idStr, 16, 64)
				if err != nil {
					continue
				}
				coords := strings.Split(posStr, ",")
				if len(coords) < 2 {
					continue
				}
				x, err1 := strconv.ParseFloat(strings.TrimSpace(coords[0]), 64)
				y, err2 := strconv.ParseFloat(strings.TrimSpace(coords[1]), 64)
				if err1 != nil || err2 != nil {
					continue
				}
				landmarks = append(landmarks, LayoutLandmark{ID: int(id), X: x / 100.0, Y: y / 100.0})
			}
		case xml.EndElement:
			if t.Name.Local == "landmarklist" {
				inList = false
			}
		}
	}
	return landmarks
}

// ParseFeedTargets parses downstream feed targets from the layout file
// txlist section.
func ParseFeedTargets(path string) []FeedTarget {
	targets := []FeedTarget{}
	dec, f, err := readXML(path)
	if err != nil {
		return targets
	}
	defer f.Close()
	inTxList := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "txlist" {
				inTxList = true
				continue
			}
			if t.Name.Local == "transferItem" && inTxList {
				addr, _ := attrValue(t, "addr")
				portStr, _ := attrValue(t, "port")
				typ, _ := attrValue(t, "type")
				maskStr, _ := attrValue(t, "data")

				port, _ := strconv.Atoi(portStr)
				mask, _ := strconv.ParseInt(maskStr, 10, 64)

				targets = append(targets, FeedTarget{
					Addr: addr,
					Port: port,
					Type: typ,
					Mask: uint32(mask),
				})
			}
		case xml.EndElement:
			if t.Name.Local == "txlist" {
				inTxList = false
			}
		}
	}
	return targets
}

func readXML(path string) (*xml.Decoder, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	dec := xml.NewDecoder(f)
	return dec, f, nil
}

func attrValue(start xml.StartElement, name string) (string, bool) {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}
