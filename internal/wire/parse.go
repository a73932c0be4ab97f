package wire

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

const (
	headerTlength = "tlength:"
	headerType    = "type:"
	headerLength  = "length:"
	headerData    = "data:"

	// MaxFrameBytes bounds a whole frame (header + body), matching the
	// broker's FRAME_BUFFER constant (spec.md §6). A declared frame larger
	// than this can never be legitimate, so Parse rejects it outright
	// instead of waiting for bytes that will never complete a valid frame.
	MaxFrameBytes = 4096

	// maxDeclaredTlength is a sanity ceiling on the tlength value itself,
	// applied before we know the true frame boundary, to avoid trusting an
	// attacker-controlled length into an unbounded allocation.
	maxDeclaredTlength = 1 << 20
)

// Parse attempts to decode exactly one frame from the front of buf.
//
// On success it returns the frame and the number of leading bytes of buf it
// consumed. On failure it returns a *FrameError. A Kind of KindTruncatedBody
// means buf simply doesn't contain a complete frame yet; every other kind
// means buf's leading bytes can never become a valid frame and a decoder
// should resynchronize past them (see Decoder.Resync).
func Parse(buf []byte) (*Frame, int, error) {
	if !bytes.HasPrefix(buf, []byte(headerTlength)) {
		if len(buf) < len(headerTlength) && bytes.HasPrefix([]byte(headerTlength), buf) {
			return nil, 0, truncated("incomplete tlength marker")
		}
		return nil, 0, malformed("missing tlength: marker")
	}
	rest := buf[len(headerTlength):]

	semi := bytes.IndexByte(rest, ';')
	if semi < 0 {
		return nil, 0, truncated("incomplete tlength value")
	}
	nStr := string(rest[:semi])
	n, err := strconv.Atoi(nStr)
	if err != nil || n < 0 {
		return nil, 0, malformed("invalid tlength value: " + nStr)
	}
	if n > maxDeclaredTlength {
		return nil, 0, lengthMismatch(fmt.Sprintf("declared tlength implausibly large: %d", n))
	}

	payloadStart := len(headerTlength) + semi + 1
	totalFrameLen := payloadStart + n
	if totalFrameLen > MaxFrameBytes {
		return nil, 0, lengthMismatch(fmt.Sprintf("frame exceeds MaxFrameBytes: %d > %d", totalFrameLen, MaxFrameBytes))
	}
	if len(buf) < totalFrameLen {
		return nil, 0, truncated("buffer shorter than declared tlength")
	}
	payload := buf[payloadStart:totalFrameLen]

	if !bytes.HasPrefix(payload, []byte(headerType)) {
		return nil, 0, malformed("missing type: marker")
	}
	afterType := payload[len(headerType):]

	dataIdx := bytes.Index(afterType, []byte(headerData))
	if dataIdx < 0 {
		return nil, 0, malformed("missing data: marker")
	}
	headerFields := afterType[:dataIdx]
	body := afterType[dataIdx+len(headerData):]

	fields := splitFields(headerFields)

	var types []string
	i := 0
	for ; i < len(fields); i++ {
		if !isTypeToken(fields[i]) {
			break
		}
		types = append(types, fields[i])
	}
	if len(types) == 0 {
		return nil, 0, malformed("no segment types declared")
	}
	if i >= len(fields) || !strings.HasPrefix(fields[i], headerLength) {
		return nil, 0, malformed("expected length: marker after type list")
	}

	lengthFields := make([]string, 0, len(fields)-i)
	lengthFields = append(lengthFields, strings.TrimPrefix(fields[i], headerLength))
	lengthFields = append(lengthFields, fields[i+1:]...)

	if len(types) != len(lengthFields) {
		return nil, 0, lengthMismatch(fmt.Sprintf("segment/length count mismatch: %d types, %d lengths", len(types), len(lengthFields)))
	}

	lengths := make([]int, len(lengthFields))
	sum := 0
	for idx, lf := range lengthFields {
		l, err := strconv.Atoi(lf)
		if err != nil || l < 0 {
			return nil, 0, malformed("invalid length value: " + lf)
		}
		lengths[idx] = l
		sum += l
	}
	if sum != len(body) {
		return nil, 0, lengthMismatch(fmt.Sprintf("declared length sum %d != body length %d", sum, len(body)))
	}

	segments := make([]Segment, len(types))
	offset := 0
	for idx, t := range types {
		l := lengths[idx]
		segData := make([]byte, l)
		copy(segData, body[offset:offset+l])
		segments[idx] = Segment{Type: SegmentType(t), Data: segData}
		offset += l
	}
	return &Frame{Segments: segments}, totalFrameLen, nil
}

// splitFields splits a ';'-joined header field list, dropping the single
// trailing empty element produced by the format's trailing ';' before "data:".
func splitFields(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	raw := strings.Split(string(b), ";")
	if len(raw) > 0 && raw[len(raw)-1] == "" {
		raw = raw[:len(raw)-1]
	}
	return raw
}
