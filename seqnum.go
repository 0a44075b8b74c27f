package foggytcp

// Value is a 32-bit TCP-style sequence number. Arithmetic on Value wraps
// modulo 2**32; comparisons must go through Before/After rather than the
// builtin < and > operators, which do not account for wraparound.
type Value uint32

// Size is a byte count, such as a segment payload length or a window size.
type Size uint32

// Add returns the sequence number n bytes after v, wrapping on overflow.
func Add(v Value, n Size) Value {
	return v + Value(n)
}

// Sizeof returns the wraparound-safe distance from lo to hi, i.e. the number
// of bytes in the half-open range [lo, hi). Panics-free for any lo, hi: a hi
// that is "before" lo in sequence-space terms yields a large (wrapped) size,
// which is the caller's responsibility to guard against if unintended.
func Sizeof(lo, hi Value) Size {
	return Size(hi - lo)
}

// Before reports whether a precedes b in sequence-number order, correctly
// handling wraparound across the 2**32 boundary. Before(a,a) is always false.
func Before(a, b Value) bool {
	return int32(a-b) < 0
}

// After reports whether a follows b in sequence-number order. After is the
// mirror of Before: After(a,b) == Before(b,a).
func After(a, b Value) bool {
	return Before(b, a)
}

// HasBeenAcked reports whether seq is strictly covered by the cumulative ACK
// cursor lastAckReceived. A segment starting at exactly lastAckReceived is
// NOT yet considered acknowledged -- the cumulative ACK value equals the
// next expected byte, not the last acknowledged one.
func HasBeenAcked(seq, lastAckReceived Value) bool {
	return Before(seq, lastAckReceived)
}
