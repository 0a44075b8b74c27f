// Package foggytcp implements the per-connection send/receive engine of a
// reliable, in-order, byte-stream transport layered over unreliable datagram
// delivery ("Foggy TCP"): wraparound-safe sequence arithmetic, an
// out-of-order receive reassembly window, a FIFO send window and
// transmitter, and a Reno+CUBIC congestion controller.
//
// The datagram send/receive system call, the connection-establishment
// handshake, the retransmission-timer thread and RTT estimator, packet
// header encoding/decoding beyond the bare wire format, the public socket
// connect/accept surface, and build glue are not part of this package; they
// are external collaborators a surrounding system supplies.
package foggytcp
