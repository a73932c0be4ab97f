package wire

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Emit serializes segments into a single frame. For any well-formed segment
// list, Parse(Emit(segments)) reconstructs the same segments in the same
// order — the round-trip law of spec.md §4.1.
func Emit(segments []Segment) ([]byte, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("wire: emit: at least one segment required")
	}

	types := make([]string, len(segments))
	lengths := make([]string, len(segments))
	var body bytes.Buffer
	for i, seg := range segments {
		if !isTypeToken(string(seg.Type)) {
			return nil, fmt.Errorf("wire: emit: invalid segment type %q", seg.Type)
		}
		types[i] = string(seg.Type)
		lengths[i] = strconv.Itoa(len(seg.Data))
		body.Write(seg.Data)
	}

	var payload bytes.Buffer
	payload.WriteString(headerType)
	payload.WriteString(strings.Join(types, ";"))
	payload.WriteByte(';')
	payload.WriteString(headerLength)
	payload.WriteString(strings.Join(lengths, ";"))
	payload.WriteByte(';')
	payload.WriteString(headerData)
	payload.Write(body.Bytes())

	var out bytes.Buffer
	out.WriteString(headerTlength)
	out.WriteString(strconv.Itoa(payload.Len()))
	out.WriteByte(';')
	out.Write(payload.Bytes())

	if out.Len() > MaxFrameBytes {
		return nil, fmt.Errorf("wire: emit: frame exceeds MaxFrameBytes: %d > %d", out.Len(), MaxFrameBytes)
	}
	return out.Bytes(), nil
}

// EmitOne is a convenience wrapper for the common single-segment frame.
func EmitOne(t SegmentType, data []byte) ([]byte, error) {
	return Emit([]Segment{{Type: t, Data: data}})
}
