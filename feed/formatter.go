package feed

import (
	"fmt"
	"time"
)

// FormatProbe formats one probe-result line for downstream consumers.
// Layout: "field:     ," then source (16 hex), sequence, timestamp, x, y and
// raw intensity, CRLF-terminated. Bytes 8..10 of the padding are overwritten
// with the decimal message length, which legacy receivers use to delimit
// messages on a TCP stream.
func FormatProbe(source int, ts int64, seq uint16, x, y, intensity float64) []byte {
	t := time.UnixMilli(ts)
	timeStr := t.Format("20060102150405.000")

	idStr := fmt.Sprintf("%016X", source)

	body := fmt.Sprintf("field:     ,%s,%d,%s,%.2f,%.2f,%.6g\r\n",
		idStr, seq, timeStr, x, y, intensity)

	b := []byte(body)
	nLen := len(b)
	if nLen >= 100 {
		b[8] = byte('0' + (nLen / 100))
	}
	b[9] = byte('0' + ((nLen / 10) % 10))
	b[10] = byte('0' + (nLen % 10))

	return b
}
