package foggytcp

import (
	"bytes"
	"testing"
	"time"
)

// TestSendWindow_EnqueueSegmentsIntoMSSChunks covers the segmentation loop
// of spec section 4.3: the last chunk may be short.
func TestSendWindow_EnqueueSegmentsIntoMSSChunks(t *testing.T) {
	w := NewSendWindow(4, 1000)
	w.Enqueue([]byte("hello world")) // 11 bytes at mss=4 -> ceil(11/4)=3 chunks: 4,4,3
	if w.Len() != 3 {
		t.Fatalf("Len = %d, want 3", w.Len())
	}
	if w.LastByteSent() != 1000+11 {
		t.Fatalf("LastByteSent = %d, want %d", w.LastByteSent(), 1000+11)
	}
}

// TestSendWindow_TransmitRespectsEffectiveWindow is property P4: bytes sent
// but unacked never exceed the effective window (min(CWND, advertised)).
func TestSendWindow_TransmitRespectsEffectiveWindow(t *testing.T) {
	const mss = Size(4)
	w := NewSendWindow(mss, 1000)
	w.Enqueue(bytes.Repeat([]byte{'a'}, 20)) // 5 segments of 4 bytes each.

	var sent []Segment
	effective := Size(10) // room for 2 full segments only.
	err := w.Transmit(effective, 1000, time.Now(), func(seg Segment, payload []byte) error {
		sent = append(sent, seg)
		return nil
	})
	if err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	if len(sent) != 2 {
		t.Fatalf("sent %d segments, want 2 (effective window %d should admit exactly 2 x mss=%d)", len(sent), effective, mss)
	}
	var inFlight Size
	for _, s := range sent {
		inFlight += s.DataLen
	}
	if inFlight > effective {
		t.Fatalf("bytes in flight %d exceeds effective window %d", inFlight, effective)
	}

	// A second Transmit call with the same window must not resend already-sent
	// slots or exceed the window, preserving in-order, no-gap transmission.
	sent = nil
	w.Transmit(effective, 1000, time.Now(), func(seg Segment, payload []byte) error {
		sent = append(sent, seg)
		return nil
	})
	if len(sent) != 0 {
		t.Fatalf("second Transmit at same ack sent %d new segments, want 0", len(sent))
	}
}

// TestSendWindow_TransmitStopsAtFirstBlockedSlot verifies no send-side
// reordering past a slot that doesn't fit (spec section 4.3).
func TestSendWindow_TransmitStopsAtFirstBlockedSlot(t *testing.T) {
	const mss = Size(4)
	w := NewSendWindow(mss, 1000)
	w.Enqueue(bytes.Repeat([]byte{'a'}, 12)) // 3 segments of 4 bytes.

	var seqs []Value
	w.Transmit(6, 1000, time.Now(), func(seg Segment, payload []byte) error {
		seqs = append(seqs, seg.Seq)
		return nil
	})
	if len(seqs) != 1 || seqs[0] != 1000 {
		t.Fatalf("seqs sent = %v, want exactly [1000] (window 6 only fits one mss=4 chunk)", seqs)
	}
}

// TestSendWindow_DrainPopsOnlyFullyAcked covers receive_send_window: a slot
// must be both sent and has_been_acked to be retired.
func TestSendWindow_DrainPopsOnlyFullyAcked(t *testing.T) {
	const mss = Size(4)
	w := NewSendWindow(mss, 1000)
	w.Enqueue(bytes.Repeat([]byte{'a'}, 12))
	w.Transmit(12, 1000, time.Now(), func(seg Segment, payload []byte) error { return nil })

	w.Drain(1000) // no progress: nothing acked yet.
	if w.Len() != 3 {
		t.Fatalf("Len after no-op drain = %d, want 3", w.Len())
	}

	w.Drain(1004) // first segment (seq 1000) now acked.
	if w.Len() != 2 {
		t.Fatalf("Len after draining one ack = %d, want 2", w.Len())
	}

	w.Drain(1012) // remaining two segments acked.
	if !w.Empty() {
		t.Fatalf("Len after draining all = %d, want 0", w.Len())
	}
}

// TestSendWindow_OldestUnackedRetransmission exercises the head-of-line
// retransmit helper shared by fast retransmit and the RTO hook.
func TestSendWindow_OldestUnackedRetransmission(t *testing.T) {
	w := NewSendWindow(4, 1000)
	if _, _, ok := w.OldestUnacked(); ok {
		t.Fatalf("OldestUnacked on empty window reported ok")
	}
	w.Enqueue([]byte("abcd"))
	seg, payload, ok := w.OldestUnacked()
	if !ok {
		t.Fatalf("OldestUnacked reported not-ok on non-empty window")
	}
	if seg.Seq != 1000 || !bytes.Equal(payload, []byte("abcd")) {
		t.Fatalf("OldestUnacked = seq %d payload %q, want seq 1000 payload abcd", seg.Seq, payload)
	}
}
