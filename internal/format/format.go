// Package format renders a finished assembly's byte image in one of a
// small set of output formats. The core assembler (pkg/casm) only ever
// produces a raw byte slice; this package is the external formatter over
// it, kept minimal to the trio cmd/casm exposes.
package format

import (
	"fmt"
	"strings"
)

// Name identifies one of the supported output formats.
type Name string

const (
	Raw      Name = "rawbin"
	HexStr   Name = "hexstr"
	IntelHex Name = "intelhex"
)

// Render converts data into the chosen format's textual/binary
// representation. Raw returns data unchanged; the other two always return
// ASCII text.
func Render(name Name, data []byte) ([]byte, error) {
	switch name {
	case Raw, "":
		return data, nil
	case HexStr:
		return []byte(hexString(data)), nil
	case IntelHex:
		return []byte(intelHex(data)), nil
	default:
		return nil, fmt.Errorf("format: unknown output format %q", name)
	}
}

// hexString renders data as one lowercase hex digit pair per byte, with no
// separators, terminated by a newline.
func hexString(data []byte) string {
	var b strings.Builder
	for _, c := range data {
		fmt.Fprintf(&b, "%02x", c)
	}
	b.WriteByte('\n')
	return b.String()
}

// intelHexRecordSize is the number of data bytes packed into a single ':00'
// record line (the standard default used by most Intel HEX tooling).
const intelHexRecordSize = 16

// intelHex renders data as Intel HEX records: a run of ':00'-type data
// records covering every byte in order, terminated by the standard
// end-of-file record.
func intelHex(data []byte) string {
	var b strings.Builder
	for offset := 0; offset < len(data); offset += intelHexRecordSize {
		end := offset + intelHexRecordSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]
		writeIntelHexRecord(&b, uint16(offset), 0x00, chunk)
	}
	b.WriteString(":00000001FF\n")
	return b.String()
}

func writeIntelHexRecord(b *strings.Builder, addr uint16, recType byte, payload []byte) {
	sum := byte(len(payload)) + byte(addr>>8) + byte(addr) + recType
	fmt.Fprintf(b, ":%02X%04X%02X", len(payload), addr, recType)
	for _, c := range payload {
		fmt.Fprintf(b, "%02X", c)
		sum += c
	}
	checksum := byte(0x100 - int(sum)&0xff)
	fmt.Fprintf(b, "%02X\n", checksum)
}
