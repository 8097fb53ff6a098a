package dispenser

import (
	"strings"
	"time"
)

// Status represents the connection state of a dispenser.
type Status string

// Status constants.
const (
	// StatusConnected means the device answered its last reachability check.
	StatusConnected Status = "connected"

	// StatusDisconnected means the device is currently unreachable. The
	// record survives in the connected set until an explicit disconnect.
	StatusDisconnected Status = "disconnected"

	// StatusDispensing means a dispense job is in flight on the device.
	// Health checks skip devices in this state.
	StatusDispensing Status = "dispensing"
)

// Entry is a saved dispenser in the catalog. It is keyed by Identity and
// exists independently of whether the device is currently reachable.
type Entry struct {
	// Identity is the device's hardware (MAC) address. Stable across
	// address changes; never reused.
	Identity string `json:"-"`

	// Address is the last known IP address of the device.
	Address string `json:"address"`

	// Nickname is the user-assigned label.
	Nickname string `json:"nickname"`

	// DrugCode is the drug this dispenser is loaded with. Matched against
	// prescription drug lines when dispensing.
	DrugCode string `json:"drug_code"`
}

// Reachable is one device found by a scan cycle. Ephemeral; a fresh set is
// produced every cycle and nothing here is persisted.
type Reachable struct {
	Identity string
	Address  string
	Ready    bool
}

// Connected is a dispenser the connection manager currently holds open.
// The manager owns these records exclusively; other components request
// status transitions through the manager rather than mutating copies.
type Connected struct {
	Identity string    `json:"identity"`
	Address  string    `json:"address"`
	Nickname string    `json:"nickname"`
	DrugCode string    `json:"drug_code"`
	Status   Status    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

// LastConnected records the most recently active device for restart
// recovery. Cleared on explicit disconnect.
type LastConnected struct {
	Identity string `json:"identity"`
	Address  string `json:"address"`
}

// NormalizeIdentity canonicalises a hardware address for comparison.
// Devices report MACs with varying separators ("AA:BB..", "aa-bb..");
// all identity lookups go through this form.
func NormalizeIdentity(identity string) string {
	replacer := strings.NewReplacer(":", "", "-", "")
	return strings.ToUpper(replacer.Replace(identity))
}
