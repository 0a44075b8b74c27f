package foggytcp

// Flags is the TCP-style flags octet of a Foggy TCP header. Only FlagACK is
// interpreted by the core; FlagSYN and FlagFIN are reserved by the wire
// format for the (out-of-scope) connection-establishment handshake and are
// never set by this package.
type Flags uint8

const (
	// FlagACK marks a packet as carrying an acknowledgment. Per spec section
	// 4.5, a packet is classified as "ACK-only" when its flag set equals
	// exactly FlagACK.
	FlagACK Flags = 0x01
	// FlagSYN and FlagFIN are reserved by the wire format; the core never
	// sets or interprets them (handshake and teardown are out of scope).
	FlagSYN Flags = 0x02
	FlagFIN Flags = 0x04
)

// Segment is the in-memory view of a Foggy TCP packet's control fields: the
// fields the send/receive engine and congestion controller act on,
// independent of how they were encoded on the wire.
type Segment struct {
	Seq     Value // sequence number of the first payload octet.
	Ack     Value // piggybacked cumulative ACK cursor.
	DataLen Size  // payload length in octets.
	AdvWnd  Size  // advertised receive window of the sender.
	Flags   Flags
}

// IsAckOnly reports whether the segment carries only the ACK flag and no
// payload, the classifier's test (spec section 4.5) for routing to the
// congestion controller only rather than also to the receive window. A
// segment with a payload is never ACK-only, whatever its flags; data
// segments sent by this package carry no flags at all.
func (s Segment) IsAckOnly() bool {
	return s.Flags == FlagACK && s.DataLen == 0
}
