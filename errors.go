package foggytcp

import "errors"

var (
	// errConnClosed is returned by Send/Read/RetransmitOldest once Close has
	// torn down the connection (OnRecvPacket then ignores packets).
	errConnClosed = errors.New("foggytcp: connection closed")

	// errShortHeader is a DecodeError cause: buffer shorter than the fixed header.
	errShortHeader = errors.New("foggytcp: buffer shorter than header")
	// errHdrLenInvalid is a DecodeError cause: HdrLen below the fixed header size.
	errHdrLenInvalid = errors.New("foggytcp: hdr_len below minimum")
	// errPlenInvalid is a DecodeError cause: plen < hdr_len, or plen too
	// short to hold the fixed header plus its extension bytes.
	errPlenInvalid = errors.New("foggytcp: plen less than hdr_len")
	// errPlenOverMTU is a DecodeError cause: plen exceeds the buffer actually received.
	errPlenOverMTU = errors.New("foggytcp: plen exceeds received buffer")
)

// DecodeError is returned by Decode when a received datagram fails the
// header-validity checks of spec section 7 ("Malformed packet"). Per the
// error-handling design, callers are expected to drop the segment silently
// and increment a metric rather than propagate the error further up.
type DecodeError struct {
	err error
}

func (e *DecodeError) Error() string { return e.err.Error() }

// Unwrap allows errors.Is/errors.As to see the underlying sentinel cause.
func (e *DecodeError) Unwrap() error { return e.err }

func newDecodeError(err error) *DecodeError { return &DecodeError{err: err} }
