package foggytcp

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/foggytcp/foggytcp/internal"
)

// DatagramTransport is the external collaborator a Connection sends
// encoded datagrams through. It only sends: received datagrams are handed
// to Connection.OnRecvPacket by the caller. It is
// satisfiable by a *net.UDPConn (WriteToUDP/ReadFromUDP wrapped by the
// caller) or any other unreliable-datagram transport; this package never
// constructs one itself, matching spec section 5's framing of the
// underlying medium as an external collaborator outside this module's
// scope.
type DatagramTransport interface {
	// WriteDatagram sends one encoded packet. Per spec section 7, a
	// returned error is treated as a dropped datagram: the caller's
	// retransmission machinery, not this interface, is responsible for
	// recovering from it.
	WriteDatagram(b []byte) error
}

// logger holds the structured-logging helpers a Connection uses, grounded
// in lneto/tcp/debug.go's tcb.debug/trace/logerr trio, generalized from a
// method set on ControlBlock to one embeddable struct so both Connection and
// its internal helpers can log without each defining their own wrappers.
type logger struct {
	log *slog.Logger
}

func (l logger) enabled(lvl slog.Level) bool { return internal.LogEnabled(l.log, lvl) }
func (l logger) debug(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, slog.LevelDebug, msg, attrs...)
}
func (l logger) trace(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, internal.LevelTrace, msg, attrs...)
}
func (l logger) logerr(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, slog.LevelError, msg, attrs...)
}

// Connection is a single Foggy TCP byte-stream connection: the receive
// reassembly window, send window, and congestion controller wired together
// behind one lock, with a condition variable gating the blocking Read
// required by spec section 5 ("recv_cond... a thread blocked in recv must
// wake promptly once bytes become available").
//
// Grounded in lneto/tcp/conn.go's Conn for the overall shape (a
// mutex-guarded struct embedding a logger, exposing Read/Write/Close), but
// diverging from it in concurrency strategy: Conn's Read spins with a
// backoff poll (see lneto/internal/backoff.go, deliberately dropped from
// this module), where spec section 5 requires blocking on recvCond instead.
type Connection struct {
	logger

	id xid.ID

	cfg   Config
	rwnd  *ReceiveWindow
	swnd  *SendWindow
	cc    *Controller
	trans DatagramTransport

	srcPort, dstPort uint16

	// peerAdvWindow is the last window the remote peer advertised; absent a
	// full TCB this Connection just remembers the latest value seen on any
	// inbound segment, per spec section 4.3's effective-window definition.
	peerAdvWindow Size

	mu       sync.Mutex
	recvCond *sync.Cond

	recvBuf *internal.Ring
	closed  bool

	stats *connStats
}

// NewConnection builds a Connection in slow-start with the given initial
// send/receive sequence numbers (iss/isn), wired to send encoded datagrams
// through trans. cfg.withDefaults() fills any zero fields.
func NewConnection(cfg Config, srcPort, dstPort uint16, iss, isn Value, trans DatagramTransport, log *slog.Logger) *Connection {
	cfg = cfg.withDefaults()
	c := &Connection{
		logger:  logger{log: log},
		id:      xid.New(),
		cfg:     cfg,
		rwnd:    NewReceiveWindow(cfg.MSS, cfg.ReceiveWindowSlots, isn),
		swnd:    NewSendWindow(cfg.MSS, iss),
		cc:      NewController(cfg.MSS, cfg.InitialCWND, cfg.InitialSSThresh, cfg.CubicC),
		trans:   trans,
		srcPort: srcPort,
		dstPort: dstPort,
		recvBuf: internal.NewRing(cfg.MaxNetworkBuffer),
	}
	c.recvCond = sync.NewCond(&c.mu)
	return c
}

// ID returns the connection's unique identifier, used as the "conn_id"
// metric and log label.
func (c *Connection) ID() xid.ID { return c.id }

// AttachMetrics registers the connection with coll under the given extra
// label values (matching NewCollector's labelNames order) so its counters
// and gauges are exported on the next Collect. Close(coll), or
// coll.Remove(c.ID()) directly, unregisters it.
func (c *Connection) AttachMetrics(coll *Collector, labels ...string) {
	c.mu.Lock()
	c.stats = coll.Add(c.id, labels)
	c.mu.Unlock()
}

// Send enqueues data for transmission and immediately attempts to transmit
// as much of it as the effective window (min(CWND, advertised peer window))
// allows, per spec section 4.3. Until a packet from the peer has been seen
// its advertised window is unknown, and CWND alone limits what is sent.
func (c *Connection) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	c.swnd.Enqueue(data)
	return c.transmitLocked()
}

// transmitLocked sends as many queued segments as min(CWND, peerAdvWindow)
// allows. A peerAdvWindow of zero is not applied as a limit, so CWND alone
// governs until the peer has advertised a non-zero window.
func (c *Connection) transmitLocked() error {
	effective := c.cc.CWND()
	if c.peerAdvWindow != 0 && c.peerAdvWindow < effective {
		effective = c.peerAdvWindow
	}
	now := time.Now()
	return c.swnd.Transmit(effective, c.cc.LastAckReceived(), now, func(seg Segment, payload []byte) error {
		// Data segments piggyback the current cumulative ack cursor but do
		// NOT carry FlagACK -- per spec section 4.3, "data segments are
		// emitted with no ACK flag; pure ACKs carry the ACK flag" (see
		// sendAckOnlyLocked for the pure-ACK case).
		seg.Ack = c.rwnd.NextSeqExpected()
		seg.Flags = 0
		seg.AdvWnd = c.advertisedWindowLocked()
		return c.sendSegmentLocked(seg, payload)
	})
}

// advertisedWindowLocked reports max(MaxNetworkBuffer - received_len, MSS)
// per spec section 4.3: the remaining capacity of the application-visible
// receive buffer, floored at one MSS so the peer is never told to stop
// sending entirely.
func (c *Connection) advertisedWindowLocked() Size {
	free := c.cfg.MaxNetworkBuffer - c.recvBuf.Buffered()
	if free < int(c.cfg.MSS) {
		free = int(c.cfg.MSS)
	}
	return Size(free)
}

func (c *Connection) sendSegmentLocked(seg Segment, payload []byte) error {
	buf := make([]byte, HeaderSize+len(payload))
	n := EncodeHeader(buf, c.srcPort, c.dstPort, seg, payload)
	c.trace("send segment", slog.Uint64("seq", uint64(seg.Seq)), slog.Int("len", len(payload)))
	return c.trans.WriteDatagram(buf[:n])
}

// sendAckOnlyLocked sends a pure-ACK packet carrying no payload. Per the
// documented quirk in spec section 9, its Seq is set to LastByteSent rather
// than to any particular data octet, since a pure ACK does not occupy
// sequence space of its own.
func (c *Connection) sendAckOnlyLocked() error {
	seg := Segment{
		Seq:    c.swnd.LastByteSent(),
		Ack:    c.rwnd.NextSeqExpected(),
		Flags:  FlagACK,
		AdvWnd: c.advertisedWindowLocked(),
	}
	return c.sendSegmentLocked(seg, nil)
}

// OnRecvPacket is the packet ingress classifier of spec section 4.5: it
// decodes buf, routes ACK-only segments to the congestion controller and
// data-carrying segments to the receive window, then drains any newly
// contiguous bytes into the application-visible buffer and wakes any
// blocked Read.
func (c *Connection) OnRecvPacket(buf []byte) {
	f, err := Decode(buf)
	if err != nil {
		c.logerr("drop malformed segment", slog.String("err", err.Error()))
		c.stats.recordDrop(dropReasonFor(err))
		return
	}
	seg := f.Segment()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.peerAdvWindow = seg.AdvWnd

	// Spec section 4.5's dispatch is mutually exclusive: a packet is either
	// ACK-only (routed to the congestion controller) or, otherwise, a data
	// segment with a non-zero payload (routed to the receive window). A
	// data segment's piggybacked Ack field is never fed to the congestion
	// controller -- only a pure ACK's is.
	switch {
	case seg.IsAckOnly():
		outcome := c.cc.OnAck(seg.Ack, time.Now())
		c.stats.setCongestionState(c.cc.CWND(), c.cc.State())
		if outcome.FastRetransmit {
			c.stats.recordRetransmit()
			if s, payload, ok := c.swnd.OldestUnacked(); ok {
				s.Ack = c.rwnd.NextSeqExpected()
				s.AdvWnd = c.advertisedWindowLocked()
				_ = c.sendSegmentLocked(s, payload)
			}
		}
		if outcome.NewAck {
			c.swnd.Drain(seg.Ack)
		}

	case seg.DataLen > 0:
		switch c.rwnd.AddSegment(seg.Seq, f.Payload()) {
		case addOutcomeStale:
			c.stats.recordDrop(DropReasonStale)
		case addOutcomeBeyondWindow:
			c.stats.recordDrop(DropReasonWindowFull)
		case addOutcomeDuplicate:
			c.stats.recordDrop(DropReasonDuplicate)
		}
		delivered := c.rwnd.Drain(nil)
		if len(delivered) > 0 {
			c.recvBuf.Write(delivered)
			c.recvCond.Broadcast()
		}
		_ = c.sendAckOnlyLocked()

	default:
		// Zero-payload, non-ACK packet: silently dropped per spec section 4.5.
	}

	_ = c.transmitLocked()
}

func dropReasonFor(err error) DropReason {
	switch {
	case unwrapIs(err, errShortHeader):
		return DropReasonShortHeader
	case unwrapIs(err, errHdrLenInvalid):
		return DropReasonBadHdrLen
	case unwrapIs(err, errPlenInvalid), unwrapIs(err, errPlenOverMTU):
		return DropReasonBadPlen
	default:
		return DropReasonBadHdrLen
	}
}

func unwrapIs(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Read blocks until at least one byte is available, the connection is
// closed, or ctx is done, then returns every buffered byte in a newly
// allocated slice. This is
// the recvCond-gated blocking read spec section 5 names as a MUST; it never
// calls back into rwnd or swnd while blocked, avoiding the deadlock hazard
// documented on those types (helpers must not re-lock, and Read must not
// hold the lock while waiting on anything but the condition variable
// itself).
func (c *Connection) Read(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx != nil && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			c.mu.Lock()
			c.recvCond.Broadcast()
			c.mu.Unlock()
		})
		defer stop()
	}

	for c.recvBuf.Buffered() == 0 && !c.closed {
		if ctx != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.recvCond.Wait()
	}
	if c.recvBuf.Buffered() == 0 && c.closed {
		return nil, errConnClosed
	}
	dst := make([]byte, c.recvBuf.Buffered())
	n, _ := c.recvBuf.Read(dst)
	return dst[:n], nil
}

// RetransmitOldest resends the oldest outstanding unacked segment, the hook
// an external retransmission timer (RTO) invokes on timeout per spec
// section 7. Timeout handling is flagged under-specified in spec section 9;
// per spec section 4.3's proposed standard Reno behavior, it also resets the
// congestion controller (ssthresh halves, CWND collapses to one MSS, state
// reverts to slow-start) before resending. It is a no-op if the send window
// is empty.
func (c *Connection) RetransmitOldest() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	seg, payload, ok := c.swnd.OldestUnacked()
	if !ok {
		return nil
	}
	c.cc.ResetForTimeout()
	c.stats.recordRetransmit()
	c.stats.setCongestionState(c.cc.CWND(), c.cc.State())
	seg.Ack = c.rwnd.NextSeqExpected()
	seg.AdvWnd = c.advertisedWindowLocked()
	return c.sendSegmentLocked(seg, payload)
}

// Close marks the connection closed, waking any Read blocked on recvCond
// with errConnClosed, and unregisters its metrics.
func (c *Connection) Close(coll *Collector) error {
	c.mu.Lock()
	c.closed = true
	c.recvCond.Broadcast()
	c.mu.Unlock()
	if coll != nil {
		coll.Remove(c.id)
	}
	return nil
}
