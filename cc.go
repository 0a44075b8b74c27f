package foggytcp

import (
	"math"
	"time"
)

// RenoState enumerates the three congestion-control states of spec section
// 4.4, following the State-enum-plus-Stringer idiom lneto/tcp/definitions.go
// uses for its own State type.
type RenoState uint8

const (
	// StateSlowStart is the initial state: CWND grows by one MSS per new ACK
	// until it reaches ssthresh.
	StateSlowStart RenoState = iota
	// StateCongestionAvoidance grows CWND via the CUBIC curve on each new ACK.
	StateCongestionAvoidance
	// StateFastRecovery is entered on the third duplicate ACK and exited on
	// the next new cumulative ACK.
	StateFastRecovery
)

func (s RenoState) String() string {
	switch s {
	case StateSlowStart:
		return "slow-start"
	case StateCongestionAvoidance:
		return "congestion-avoidance"
	case StateFastRecovery:
		return "fast-recovery"
	default:
		return "invalid"
	}
}

// CubicConfig bundles the CUBIC tuning constant, which defaults to 0.4 per
// spec section 3.
type CubicConfig struct {
	C float64 // scaling constant, default 0.4.
}

// Controller is the ACK handler and congestion controller of spec section
// 4.4: a Reno state machine (slow-start / congestion-avoidance /
// fast-recovery) driven by duplicate-ACK counting, with CUBIC growth during
// congestion avoidance in place of Reno's classical linear growth.
//
// Controller has no lneto analogue (lneto implements no congestion control
// at all); it is grounded directly in
// original_source/enhanced_cca/foggytcp/src/foggy_function.cc's handle_ack
// and cubic_update, translated from state-mutating C functions into a
// value-returning Go method so the Connection (the lock holder) decides what
// to retransmit rather than the controller reaching into the send window
// itself.
type Controller struct {
	mss Size

	state RenoState

	cwnd    Size
	ssthresh Size

	lastAckReceived Value
	dupAckCount     int

	wMax         Size
	lastLossTime time.Time

	cubic CubicConfig

	// gotFirstAck distinguishes "no ACK observed yet" from "last ACK was 0",
	// so the very first ACK received is always treated as new.
	gotFirstAck bool
}

// NewController builds a Controller. initialCWND and initialSSThresh seed
// the CWND/ssthresh floors of invariant I7 (CWND >= MSS, ssthresh >= MSS);
// callers should pass at least mss for both. cubicC defaults to 0.4 when 0.
func NewController(mss, initialCWND, initialSSThresh Size, cubicC float64) *Controller {
	if cubicC == 0 {
		cubicC = 0.4
	}
	if initialCWND < mss {
		initialCWND = mss
	}
	if initialSSThresh < mss {
		initialSSThresh = mss
	}
	return &Controller{
		mss:      mss,
		state:    StateSlowStart,
		cwnd:     initialCWND,
		ssthresh: initialSSThresh,
		cubic:    CubicConfig{C: cubicC},
	}
}

// State returns the current Reno state.
func (c *Controller) State() RenoState { return c.state }

// CWND returns the current congestion window in bytes.
func (c *Controller) CWND() Size { return c.cwnd }

// SSThresh returns the current slow-start threshold in bytes.
func (c *Controller) SSThresh() Size { return c.ssthresh }

// LastAckReceived returns the highest cumulative ACK value accepted so far.
func (c *Controller) LastAckReceived() Value { return c.lastAckReceived }

// Outcome reports what OnAck did, letting the caller decide what (if
// anything) to retransmit without the controller touching the send window.
type Outcome struct {
	// FastRetransmit is true if the third duplicate ACK just triggered a
	// fast retransmit; the caller should resend the oldest unacked slot.
	FastRetransmit bool
	// NewAck is true if ack advanced the cumulative ACK cursor.
	NewAck bool
}

// OnAck processes one incoming ACK per the state machine of spec section
// 4.4. now is used only for CUBIC's elapsed-time term and should be a
// monotonic clock reading.
func (c *Controller) OnAck(ack Value, now time.Time) Outcome {
	if !c.gotFirstAck {
		c.gotFirstAck = true
		c.lastAckReceived = ack
		return Outcome{NewAck: true}
	}

	switch {
	case ack == c.lastAckReceived:
		return c.onDuplicateAck(now)
	case After(ack, c.lastAckReceived):
		return c.onNewAck(ack, now)
	default:
		return Outcome{} // Old ACK: ignored.
	}
}

func (c *Controller) onDuplicateAck(now time.Time) Outcome {
	c.dupAckCount++
	switch {
	case c.dupAckCount == 3:
		c.wMax = c.cwnd
		c.ssthresh = maxSize(Size(float64(c.cwnd)*0.7), c.mss)
		c.cwnd = c.ssthresh + 3*c.mss
		c.state = StateFastRecovery
		c.lastLossTime = now
		return Outcome{FastRetransmit: true}
	case c.dupAckCount > 3 && c.state == StateFastRecovery:
		c.cwnd += c.mss
	}
	return Outcome{}
}

func (c *Controller) onNewAck(ack Value, now time.Time) Outcome {
	c.dupAckCount = 0
	switch c.state {
	case StateFastRecovery:
		c.cwnd = c.ssthresh
		c.state = StateCongestionAvoidance
	case StateSlowStart:
		c.cwnd += c.mss
		if c.cwnd >= c.ssthresh {
			c.state = StateCongestionAvoidance
		}
	case StateCongestionAvoidance:
		c.cwnd = c.cubicUpdate(now)
	}
	c.lastAckReceived = ack
	return Outcome{NewAck: true}
}

// ResetForTimeout applies the standard Reno timeout response spec section
// 4.3 proposes for the under-specified RTO case: ssthresh halves (floored at
// MSS), CWND collapses to one MSS, and the state machine restarts in
// slow-start. Callers (the external retransmission timer, via
// Connection.RetransmitOldest) invoke this before resending the oldest
// unacked slot.
func (c *Controller) ResetForTimeout() {
	c.ssthresh = maxSize(c.cwnd/2, c.mss)
	c.cwnd = c.mss
	c.state = StateSlowStart
	c.dupAckCount = 0
}

// cubicUpdate implements the CUBIC growth law of spec section 4.4. Before
// any loss has been observed (wMax == 0) the fallback targets 2x the
// current window -- without it K would be the cube root of a negative
// number and the curve would collapse instead of growing.
func (c *Controller) cubicUpdate(now time.Time) Size {
	cwnd := float64(c.cwnd)
	wMaxEff := float64(c.wMax)
	if c.wMax == 0 {
		wMaxEff = 2 * cwnd
	}

	t := now.Sub(c.lastLossTime).Seconds()
	k := math.Cbrt((wMaxEff - cwnd) / c.cubic.C)
	wCubic := c.cubic.C*math.Pow(t-k, 3) + wMaxEff
	wTCP := cwnd + float64(c.mss)/cwnd

	newCWND := math.Max(wCubic, wTCP)
	newCWND = math.Max(newCWND, cwnd)
	newCWND = math.Max(newCWND, float64(c.mss))
	return Size(newCWND)
}

func maxSize(a, b Size) Size {
	if a > b {
		return a
	}
	return b
}
