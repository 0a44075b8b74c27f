package foggytcp

import "time"

// sendSlot is a single outstanding (or not-yet-sent) segment, owning its own
// payload buffer -- the "growable byte container with value semantics"
// design note in SPEC_FULL.md (each in-flight packet owned by exactly one
// slot, released on eviction).
type sendSlot struct {
	seq      Value
	payload  []byte
	isSent   bool
	sendTime time.Time
}

// SendWindow is the ordered, FIFO-by-sequence-number queue of outstanding
// segments described in spec section 4.3: Enqueue segments application bytes
// into MSS-sized slots, Transmit decides how many of them may go out given
// the congestion/advertised window, and Drain retires cumulatively-acked
// slots from the front.
//
// Grounded in lneto/tcp/txqueue.go's ringTx for the concept of a
// bytes-in-flight accounting pass over an ordered sent/unsent boundary, but
// implemented as a plain slice-backed FIFO rather than a ring buffer: spec
// section 3's data model describes send_window as "an ordered sequence of
// send slots" with each slot owning its own buffer, which maps directly onto
// a slice of value-type slots.
type SendWindow struct {
	mss          Size
	slots        []sendSlot
	lastByteSent Value
}

// NewSendWindow builds an empty SendWindow with the given MSS, with the
// sequence-number cursor starting at iss.
func NewSendWindow(mss Size, iss Value) *SendWindow {
	return &SendWindow{mss: mss, lastByteSent: iss}
}

// LastByteSent returns the next sequence number that will be assigned to an
// outgoing byte -- also used, per the source's documented quirk (spec
// section 9), as the Seq field of pure ACK packets.
func (w *SendWindow) LastByteSent() Value { return w.lastByteSent }

// Len reports the number of slots (sent or unsent) currently queued.
func (w *SendWindow) Len() int { return len(w.slots) }

// Empty reports whether the send window holds no outstanding data.
func (w *SendWindow) Empty() bool { return len(w.slots) == 0 }

// Enqueue segments data into MSS-sized chunks (the last chunk may be short)
// and appends one unsent slot per chunk, advancing LastByteSent by the total
// length. This is the segmentation loop of spec section 4.3's send();
// transmission and draining are separate calls (Transmit, Drain) so the
// caller can hold its lock across all three without SendWindow reaching
// back into the datagram transport itself.
func (w *SendWindow) Enqueue(data []byte) {
	for len(data) > 0 {
		n := int(w.mss)
		if n > len(data) {
			n = len(data)
		}
		chunk := data[:n]
		data = data[n:]
		w.slots = append(w.slots, sendSlot{
			seq:     w.lastByteSent,
			payload: append([]byte(nil), chunk...),
		})
		w.lastByteSent = Add(w.lastByteSent, Size(n))
	}
}

// Transmit computes bytes-in-flight from already-sent-but-unacked slots,
// then sends unsent slots in order while they fit under effectiveWindow
// (min(CWND, advertised_window), computed by the caller), stopping at the
// first slot that doesn't fit -- preserving in-order transmission and
// satisfying invariant I4 (bytes-in-flight <= effective window immediately
// after Transmit returns). out is called once per transmitted slot with the
// Segment to send and its payload; a non-nil return from out is treated as a
// datagram-send failure per spec section 7: the slot stays unsent and will
// be reattempted on the next Transmit call.
func (w *SendWindow) Transmit(effectiveWindow Size, lastAckReceived Value, now time.Time, out func(Segment, []byte) error) error {
	var bytesInFlight Size
	for i := range w.slots {
		s := &w.slots[i]
		if s.isSent && !HasBeenAcked(s.seq, lastAckReceived) {
			bytesInFlight += Size(len(s.payload))
		}
	}
	for i := range w.slots {
		s := &w.slots[i]
		if s.isSent {
			continue
		}
		payloadLen := Size(len(s.payload))
		if bytesInFlight+payloadLen > effectiveWindow {
			break // Preserve in-order transmission: no gaps past a blocked slot.
		}
		seg := Segment{Seq: s.seq, DataLen: payloadLen}
		if err := out(seg, s.payload); err != nil {
			break // Datagram send failure: stays unsent, retried next call.
		}
		s.isSent = true
		s.sendTime = now
		bytesInFlight += payloadLen
	}
	return nil
}

// Drain pops slots from the front that are both sent and cumulatively
// acked, per has_been_acked(seq) against the caller-supplied cursor
// (receive_send_window in spec terms). It stops at the first slot failing
// either test, preserving FIFO order.
func (w *SendWindow) Drain(lastAckReceived Value) {
	i := 0
	for i < len(w.slots) {
		s := &w.slots[i]
		if !s.isSent || !HasBeenAcked(s.seq, lastAckReceived) {
			break
		}
		i++
	}
	w.slots = w.slots[i:]
}

// OldestUnacked returns the head slot's Segment and payload, used for
// head-of-line retransmission by both fast retransmit and the external
// timer's RTO hook. ok is false if the window is empty.
func (w *SendWindow) OldestUnacked() (seg Segment, payload []byte, ok bool) {
	if len(w.slots) == 0 {
		return Segment{}, nil, false
	}
	s := &w.slots[0]
	return Segment{Seq: s.seq, DataLen: Size(len(s.payload))}, s.payload, true
}
