package foggytcp

// Config bundles the tunables a Connection is built with, mirroring the
// plain-struct-passed-by-value style of lneto/tcp/conn.go's ConnConfig.
// Zero-value fields are filled in by NewConnection from the defaults below.
type Config struct {
	// MSS is the maximum segment size in bytes: the largest payload the send
	// window will put in one packet, and the chunk size the receive window
	// slices its reassembly buffer into. Defaults to DefaultMSS.
	MSS Size

	// ReceiveWindowSlots is the number of MSS-sized slots the receive
	// window's reassembly array holds (RECEIVE_WINDOW_SLOT_SIZE in spec
	// terms). Defaults to DefaultReceiveWindowSlots.
	ReceiveWindowSlots int

	// MaxNetworkBuffer bounds the ring buffer backing Read's
	// application-visible byte stream. Defaults to DefaultMaxNetworkBuffer.
	MaxNetworkBuffer int

	// InitialCWND seeds the congestion controller's starting window.
	// Defaults to MSS if left zero.
	InitialCWND Size

	// InitialSSThresh seeds the slow-start threshold. Defaults to 64*MSS if
	// left zero, matching a generous initial slow-start run.
	InitialSSThresh Size

	// CubicC is CUBIC's scaling constant. Defaults to 0.4 if left zero.
	CubicC float64
}

const (
	// DefaultMSS is used when Config.MSS is left zero.
	DefaultMSS Size = 1400
	// DefaultReceiveWindowSlots is used when Config.ReceiveWindowSlots is
	// left zero.
	DefaultReceiveWindowSlots = 64
	// DefaultMaxNetworkBuffer is used when Config.MaxNetworkBuffer is left
	// zero.
	DefaultMaxNetworkBuffer = 1 << 20
)

// withDefaults returns a copy of cfg with every zero field replaced by its
// default.
func (cfg Config) withDefaults() Config {
	if cfg.MSS == 0 {
		cfg.MSS = DefaultMSS
	}
	if cfg.ReceiveWindowSlots == 0 {
		cfg.ReceiveWindowSlots = DefaultReceiveWindowSlots
	}
	if cfg.MaxNetworkBuffer == 0 {
		cfg.MaxNetworkBuffer = DefaultMaxNetworkBuffer
	}
	if cfg.InitialCWND == 0 {
		cfg.InitialCWND = cfg.MSS
	}
	if cfg.InitialSSThresh == 0 {
		cfg.InitialSSThresh = 64 * cfg.MSS
	}
	if cfg.CubicC == 0 {
		cfg.CubicC = 0.4
	}
	return cfg
}
