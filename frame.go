package foggytcp

import "encoding/binary"

// HeaderSize is the fixed size in bytes of a Foggy TCP header, excluding
// extensions. See spec section 6's wire format table: two 16-bit ports, two
// 32-bit sequence numbers, two 16-bit lengths, one flags octet, and two more
// 16-bit fields (advertised window, extension length).
const HeaderSize = 21

// Frame wraps a raw byte buffer containing a Foggy TCP header (and,
// following it, ExtensionLen bytes of extension data and then the payload)
// and exposes typed, network-byte-order field accessors. Frame performs no
// bounds checking of its own; call Decode to validate a received buffer
// before constructing field views of it.
type Frame struct {
	buf []byte
}

// NewFrame wraps buf as a Frame without validating its contents. Use Decode
// for received datagrams, which additionally validates header lengths.
func NewFrame(buf []byte) Frame { return Frame{buf: buf} }

// RawData returns the underlying buffer the Frame was constructed with.
func (f Frame) RawData() []byte { return f.buf }

func (f Frame) SrcPort() uint16     { return binary.BigEndian.Uint16(f.buf[0:2]) }
func (f Frame) SetSrcPort(p uint16) { binary.BigEndian.PutUint16(f.buf[0:2], p) }
func (f Frame) DstPort() uint16     { return binary.BigEndian.Uint16(f.buf[2:4]) }
func (f Frame) SetDstPort(p uint16) { binary.BigEndian.PutUint16(f.buf[2:4], p) }
func (f Frame) Seq() Value          { return Value(binary.BigEndian.Uint32(f.buf[4:8])) }
func (f Frame) SetSeq(v Value)      { binary.BigEndian.PutUint32(f.buf[4:8], uint32(v)) }
func (f Frame) Ack() Value          { return Value(binary.BigEndian.Uint32(f.buf[8:12])) }
func (f Frame) SetAck(v Value)      { binary.BigEndian.PutUint32(f.buf[8:12], uint32(v)) }
func (f Frame) HdrLen() uint16      { return binary.BigEndian.Uint16(f.buf[12:14]) }
func (f Frame) SetHdrLen(n uint16)  { binary.BigEndian.PutUint16(f.buf[12:14], n) }
func (f Frame) Plen() uint16        { return binary.BigEndian.Uint16(f.buf[14:16]) }
func (f Frame) SetPlen(n uint16)    { binary.BigEndian.PutUint16(f.buf[14:16], n) }

// FlagsByte returns the raw flags octet. ACK_FLAG_MASK (FlagACK) is the only
// bit the core interprets; see spec section 6.
func (f Frame) FlagsByte() Flags      { return Flags(f.buf[16]) }
func (f Frame) SetFlagsByte(fl Flags) { f.buf[16] = byte(fl) }
func (f Frame) AdvWindow() uint16     { return binary.BigEndian.Uint16(f.buf[17:19]) }
func (f Frame) SetAdvWindow(w uint16) { binary.BigEndian.PutUint16(f.buf[17:19], w) }

// ExtensionLen returns the length in bytes of the extension section that
// follows the fixed header and precedes the payload.
func (f Frame) ExtensionLen() uint16 {
	return binary.BigEndian.Uint16(f.buf[19:21])
}

func (f Frame) SetExtensionLen(n uint16) {
	binary.BigEndian.PutUint16(f.buf[19:21], n)
}

// Payload returns the payload section of the frame, i.e. everything after
// the fixed header and any extension bytes. Callers must validate the frame
// (via Decode) before calling Payload to avoid an out-of-range panic.
func (f Frame) Payload() []byte {
	off := HeaderSize + int(f.ExtensionLen())
	return f.buf[off:int(f.Plen())]
}

// Segment returns the Segment view of the frame's control fields.
func (f Frame) Segment() Segment {
	payload := f.Payload()
	return Segment{
		Seq:     f.Seq(),
		Ack:     f.Ack(),
		DataLen: Size(len(payload)),
		AdvWnd:  Size(f.AdvWindow()),
		Flags:   f.FlagsByte(),
	}
}

// Decode validates buf as a received Foggy TCP datagram per spec section 7's
// malformed-packet checks (header length below the fixed minimum, plen
// shorter than hdr_len, plen larger than the buffer actually received, plen
// too short for the fixed header plus ExtensionLen bytes) and
// returns the validated Frame. On error the caller's documented behavior is
// to drop the segment silently and increment a metric, not propagate the
// error further (see the DropReason metrics in metrics.go).
func Decode(buf []byte) (Frame, error) {
	if len(buf) < HeaderSize {
		return Frame{}, newDecodeError(errShortHeader)
	}
	f := Frame{buf: buf}
	hdrLen := f.HdrLen()
	plen := f.Plen()
	if hdrLen < HeaderSize {
		return Frame{}, newDecodeError(errHdrLenInvalid)
	}
	if plen < hdrLen {
		return Frame{}, newDecodeError(errPlenInvalid)
	}
	if int(plen) > len(buf) {
		return Frame{}, newDecodeError(errPlenOverMTU)
	}
	if HeaderSize+int(f.ExtensionLen()) > int(plen) {
		return Frame{}, newDecodeError(errPlenInvalid)
	}
	return Frame{buf: buf[:plen]}, nil
}

// EncodeHeader writes a header for seg into buf (which must be at least
// HeaderSize+len(payload) bytes) with no extension bytes, and returns the
// total packet length (header + payload). srcPort/dstPort identify the
// connection endpoints per spec section 6.
func EncodeHeader(buf []byte, srcPort, dstPort uint16, seg Segment, payload []byte) int {
	f := Frame{buf: buf}
	plen := HeaderSize + len(payload)
	f.SetSrcPort(srcPort)
	f.SetDstPort(dstPort)
	f.SetSeq(seg.Seq)
	f.SetAck(seg.Ack)
	f.SetHdrLen(HeaderSize)
	f.SetPlen(uint16(plen))
	f.SetFlagsByte(seg.Flags)
	f.SetAdvWindow(uint16(seg.AdvWnd))
	f.SetExtensionLen(0)
	copy(buf[HeaderSize:plen], payload)
	return plen
}
