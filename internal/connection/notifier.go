package connection

import "github.com/seorin-dev/syruplink-core/internal/dispenser"

// Notifier receives device lifecycle events from the connection layer.
// The API layer implements this to fan events out to WebSocket clients
// and optional telemetry sinks.
//
// Implementations must not block: events are emitted while the manager
// holds no locks, but from hot paths (scan loop, health sweeps).
type Notifier interface {
	// DeviceConnected fires when a device enters the connected set.
	DeviceConnected(device dispenser.Connected)

	// DeviceDisconnected fires when a device leaves the connected set,
	// whether by user request or monitor teardown.
	DeviceDisconnected(identity string)

	// DeviceStatusChanged fires on any status transition of a device
	// that remains in the connected set.
	DeviceStatusChanged(identity string, status dispenser.Status)

	// ConnectivityRefresh fires after any change to the connected set
	// or a completed monitor sweep, carrying the full current set so
	// display layers can recompute drug availability.
	ConnectivityRefresh(devices []dispenser.Connected)
}

// NopNotifier discards all events. Used in tests and as a default.
type NopNotifier struct{}

func (NopNotifier) DeviceConnected(dispenser.Connected)          {}
func (NopNotifier) DeviceDisconnected(string)                    {}
func (NopNotifier) DeviceStatusChanged(string, dispenser.Status) {}
func (NopNotifier) ConnectivityRefresh([]dispenser.Connected)    {}
