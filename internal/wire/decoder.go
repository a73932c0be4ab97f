package wire

import "bytes"

// Decoder buffers an incoming byte stream and yields complete frames,
// tolerating both a frame split across reads and several frames
// concatenated in one read — the same incremental-parse shape as the
// teacher's io.ReadFull-driven PeerSession.readMessage
// (node/p2p_runtime.go), adapted from a fixed binary header to this
// package's ASCII one.
type Decoder struct {
	buf bytes.Buffer
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends newly read bytes to the decoder's internal buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf.Write(p)
}

// Buffered reports how many unconsumed bytes are currently held.
func (d *Decoder) Buffered() int {
	return d.buf.Len()
}

// Next attempts to decode the next complete frame.
//
//   - (frame, nil): a frame was decoded and consumed from the buffer.
//   - (nil, nil): the buffer holds a valid-so-far prefix but not a full
//     frame yet; the caller should read more bytes and call Next again.
//   - (nil, err): the buffered bytes can never form a valid frame starting
//     at the current position; the caller should call Resync before
//     retrying (spec.md §7 MalformedFrame policy: drop silently, continue).
func (d *Decoder) Next() (*Frame, error) {
	data := d.buf.Bytes()
	if len(data) == 0 {
		return nil, nil
	}
	frame, n, err := Parse(data)
	if err != nil {
		if IsTruncatedBody(err) {
			return nil, nil
		}
		return nil, err
	}
	d.buf.Next(n)
	return frame, nil
}

// Resync discards buffered bytes up to the next recognizable "tlength:"
// marker (or the whole buffer, if none remains), recovering from a
// malformed frame without tearing down the connection.
func (d *Decoder) Resync() {
	b := d.buf.Bytes()
	if len(b) == 0 {
		return
	}
	idx := bytes.Index(b[1:], []byte(headerTlength))
	if idx < 0 {
		d.buf.Reset()
		return
	}
	d.buf.Next(1 + idx)
}
