package protocol

import (
	"fmt"
	"strings"
)

const (
	dumpCharsPerLine = 32
	dumpMaxBytes     = 256
)

// HexDump formats up to 256 bytes of a buffer as hex plus an ASCII column,
// one line per 32 bytes. Used at debug level for unrecognized frames.
func HexDump(data []byte) string {
	if len(data) > dumpMaxBytes {
		data = data[:dumpMaxBytes]
	}

	var b strings.Builder
	for i := 0; i < len(data); i += dumpCharsPerLine {
		end := i + dumpCharsPerLine
		if end > len(data) {
			end = len(data)
		}
		line := data[i:end]

		for _, v := range line {
			fmt.Fprintf(&b, "%02x ", v)
		}
		for j := len(line); j < dumpCharsPerLine; j++ {
			b.WriteString("   ")
		}

		b.WriteString(" ")
		for _, v := range line {
			if v < 0x20 || v > 0x7e {
				v = '.'
			}
			b.WriteByte(v)
		}
		if end < len(data) {
			b.WriteString("\n")
		}
	}
	return b.String()
}
