package connection

import "errors"

// Sentinel errors for connection operations.
var (
	// ErrUnknownDevice indicates the identity has no catalog entry.
	ErrUnknownDevice = errors.New("connection: device not in catalog")

	// ErrAlreadyConnected indicates a connect request for a device that
	// is already in the connected set.
	ErrAlreadyConnected = errors.New("connection: device already connected")

	// ErrNotConnected indicates a disconnect or status request for a
	// device that is not in the connected set.
	ErrNotConnected = errors.New("connection: device not connected")

	// ErrDeviceConnected indicates a catalog deletion was rejected
	// because the device is currently connected.
	ErrDeviceConnected = errors.New("connection: device is connected")

	// ErrDeviceNotFound indicates the device answered neither at its
	// stored address nor anywhere in the fallback scan.
	ErrDeviceNotFound = errors.New("connection: device not found on network")

	// ErrNoPrefix indicates no scan prefix is configured yet.
	ErrNoPrefix = errors.New("connection: no active scan prefix")
)
