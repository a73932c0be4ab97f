package wire

import "errors"

// ErrorKind classifies why Parse rejected a buffer. It mirrors the small
// typed-error convention used throughout the teacher codebase
// (consensus.TxError, p2p.ReadError) rather than an opaque wrapped string.
type ErrorKind int

const (
	// KindTruncatedBody means the buffer does not yet hold a complete frame.
	// A streaming Decoder treats this as "wait for more bytes"; a one-shot
	// caller sees it as a genuine decode failure (spec.md §8 boundary case).
	KindTruncatedBody ErrorKind = iota
	// KindMalformedHeader means a required literal or ordering was absent.
	KindMalformedHeader
	// KindLengthMismatch means the declared lengths didn't add up, the
	// segment and length counts diverged, or the frame exceeded MaxFrameBytes.
	KindLengthMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case KindTruncatedBody:
		return "truncated_body"
	case KindMalformedHeader:
		return "malformed_header"
	case KindLengthMismatch:
		return "length_mismatch"
	default:
		return "unknown"
	}
}

// FrameError is returned by Parse and propagated through Decoder.Next.
type FrameError struct {
	Kind ErrorKind
	Msg  string
}

func (e *FrameError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Kind.String() + ": " + e.Msg
}

func truncated(msg string) error      { return &FrameError{Kind: KindTruncatedBody, Msg: msg} }
func malformed(msg string) error      { return &FrameError{Kind: KindMalformedHeader, Msg: msg} }
func lengthMismatch(msg string) error { return &FrameError{Kind: KindLengthMismatch, Msg: msg} }

// IsTruncatedBody reports whether err means "not enough data yet".
func IsTruncatedBody(err error) bool { return kindOf(err) == KindTruncatedBody }

// IsMalformedHeader reports whether err is a structural header defect.
func IsMalformedHeader(err error) bool { return kindOf(err) == KindMalformedHeader }

// IsLengthMismatch reports whether err is a declared/actual length conflict.
func IsLengthMismatch(err error) bool { return kindOf(err) == KindLengthMismatch }

func kindOf(err error) ErrorKind {
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return -1
}
