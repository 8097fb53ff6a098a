package network

import "errors"

// Sentinel errors for network discovery operations.
var (
	// ErrNoPrefixes indicates no usable IPv4 interface was found to
	// derive a scan prefix from.
	ErrNoPrefixes = errors.New("network: no candidate address prefixes")

	// ErrInvalidPrefix indicates a prefix that is not of the form
	// "a.b.c." with a trailing dot.
	ErrInvalidPrefix = errors.New("network: invalid address prefix")

	// ErrProbeStatus indicates the device responded with a non-200
	// HTTP status.
	ErrProbeStatus = errors.New("network: unexpected probe status")

	// ErrProbeNotReady indicates the device responded but did not
	// report itself ready (missing or non-ready status, or no MAC).
	ErrProbeNotReady = errors.New("network: device not ready")
)
