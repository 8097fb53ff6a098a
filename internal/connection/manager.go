package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/seorin-dev/syruplink-core/internal/dispenser"
	"github.com/seorin-dev/syruplink-core/internal/network"
)

// Scanner sweeps a prefix and reports the ready dispensers found.
type Scanner interface {
	Scan(ctx context.Context, prefix string) ([]dispenser.Reachable, error)
}

// Prober checks a single address for a ready dispenser.
type Prober interface {
	Probe(ctx context.Context, address string) (dispenser.Reachable, error)
}

// Config holds the manager's tunables, taken from the network section
// of config.yaml.
type Config struct {
	// Prefix is the initial scan prefix ("192.168.0."). Empty means
	// none selected yet; the scan loop idles until one is set.
	Prefix string

	// ScanInterval is the cadence of the periodic discovery scan.
	ScanInterval time.Duration
}

// maxAutoConnectAttempts caps failed auto-connection attempts per
// identity. The counter resets once a connection is established.
const maxAutoConnectAttempts = 3

// Manager owns the connected-device set and all transitions into and
// out of it.
//
// Thread Safety: all methods are safe for concurrent use. Scan cycles
// never overlap; a ScanNow call while a scan is in flight waits for it.
type Manager struct {
	catalog  *dispenser.Catalog
	scanner  Scanner
	prober   Prober
	notifier Notifier
	logger   *slog.Logger

	scanInterval time.Duration

	mu           sync.RWMutex
	connected    map[string]*dispenser.Connected
	autoAttempts map[string]int
	manualOff    map[string]struct{}
	prefix       string

	// scanMu serialises scan cycles.
	scanMu sync.Mutex
}

// NewManager creates a Manager over the given catalog. The catalog must
// already be loaded.
func NewManager(catalog *dispenser.Catalog, scanner Scanner, prober Prober, cfg Config, notifier Notifier, logger *slog.Logger) *Manager {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	interval := cfg.ScanInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Manager{
		catalog:      catalog,
		scanner:      scanner,
		prober:       prober,
		notifier:     notifier,
		logger:       logger,
		scanInterval: interval,
		connected:    make(map[string]*dispenser.Connected),
		autoAttempts: make(map[string]int),
		manualOff:    make(map[string]struct{}),
		prefix:       cfg.Prefix,
	}
}

// ActivePrefix returns the prefix the scan loop currently sweeps, or
// empty when none is selected.
func (m *Manager) ActivePrefix() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.prefix
}

// SetPrefix selects the prefix for subsequent scans.
func (m *Manager) SetPrefix(prefix string) error {
	if err := network.ValidatePrefix(prefix); err != nil {
		return err
	}
	m.mu.Lock()
	m.prefix = prefix
	m.mu.Unlock()
	m.logger.Info("scan prefix selected", "prefix", prefix)
	return nil
}

// Run drives the periodic discovery scan until ctx is cancelled. Each
// cycle scans the active prefix and reconciles the snapshot against the
// catalog. Scan failures are logged, never fatal.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.scanInterval)
	defer ticker.Stop()

	for {
		if _, err := m.ScanNow(ctx); err != nil && !errors.Is(err, ErrNoPrefix) {
			if ctx.Err() != nil {
				return
			}
			m.logger.Warn("discovery scan failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ScanNow performs one full scan cycle: sweep the active prefix,
// reconcile the snapshot, and return it. Cycles are serialised; a
// concurrent caller blocks until the in-flight cycle finishes, then
// runs its own.
func (m *Manager) ScanNow(ctx context.Context) ([]dispenser.Reachable, error) {
	prefix := m.ActivePrefix()
	if prefix == "" {
		return nil, ErrNoPrefix
	}

	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	snapshot, err := m.scanner.Scan(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", prefix, err)
	}

	m.Reconcile(ctx, snapshot)
	return snapshot, nil
}

// Reconcile auto-connects every catalogued device that appears in the
// snapshot and is not already connected. Each identity gets up to
// maxAutoConnectAttempts failed tries; a success clears the counter.
// Manually disconnected devices are never auto-reconnected, keeping the
// user's intent sticky until restart.
func (m *Manager) Reconcile(ctx context.Context, snapshot []dispenser.Reachable) {
	for _, found := range snapshot {
		entry, err := m.catalog.Get(found.Identity)
		if err != nil {
			continue
		}

		m.mu.Lock()
		_, already := m.connected[found.Identity]
		_, off := m.manualOff[found.Identity]
		exhausted := m.autoAttempts[found.Identity] >= maxAutoConnectAttempts
		m.mu.Unlock()
		if already || off || exhausted {
			continue
		}

		verified, err := m.prober.Probe(ctx, found.Address)
		if err == nil && verified.Identity != found.Identity {
			err = fmt.Errorf("%s answered as %s", found.Address, verified.Identity)
		}
		if err != nil {
			m.mu.Lock()
			m.autoAttempts[found.Identity]++
			attempts := m.autoAttempts[found.Identity]
			m.mu.Unlock()

			m.logger.Warn("auto-connect failed",
				"identity", found.Identity,
				"address", found.Address,
				"attempts", attempts,
				"error", err)
			continue
		}

		if err := m.establish(entry, found.Address); err != nil {
			m.logger.Warn("auto-connect failed",
				"identity", found.Identity,
				"address", found.Address,
				"error", err)
			continue
		}
		m.logger.Info("auto-connected",
			"identity", found.Identity,
			"nickname", entry.Nickname,
			"address", found.Address)

		if ctx.Err() != nil {
			return
		}
	}
}

// Connect establishes a connection to a catalogued device. It tries the
// stored address first; if that probe fails it falls back to exactly one
// scan of the active prefix and matches by identity, updating the stored
// address on success. silent lowers the log level of expected failures
// (used by startup recovery, where absence is normal).
func (m *Manager) Connect(ctx context.Context, identity string, silent bool) error {
	identity = dispenser.NormalizeIdentity(identity)

	entry, err := m.catalog.Get(identity)
	if err != nil {
		return ErrUnknownDevice
	}

	m.mu.Lock()
	if _, already := m.connected[identity]; already {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.mu.Unlock()

	// Stored address first.
	if found, err := m.prober.Probe(ctx, entry.Address); err == nil && found.Identity == identity {
		return m.establish(entry, entry.Address)
	}

	// One fallback scan to recover a moved device.
	prefix := m.ActivePrefix()
	if prefix == "" {
		return ErrNoPrefix
	}

	m.scanMu.Lock()
	snapshot, err := m.scanner.Scan(ctx, prefix)
	m.scanMu.Unlock()
	if err != nil {
		return fmt.Errorf("fallback scan: %w", err)
	}

	for _, found := range snapshot {
		if found.Identity != identity {
			continue
		}
		if err := m.catalog.UpdateAddress(identity, found.Address); err != nil {
			return fmt.Errorf("updating address: %w", err)
		}
		m.logger.Info("device recovered at new address",
			"identity", identity,
			"old", entry.Address,
			"new", found.Address)
		entry.Address = found.Address
		return m.establish(entry, found.Address)
	}

	if silent {
		m.logger.Debug("device not found", "identity", identity)
	} else {
		m.logger.Warn("device not found", "identity", identity, "address", entry.Address)
	}
	return ErrDeviceNotFound
}

// establish inserts the device into the connected set, resets its
// auto-connect failure counter, records it as the most recent
// connection, and notifies.
func (m *Manager) establish(entry dispenser.Entry, address string) error {
	device := dispenser.Connected{
		Identity: entry.Identity,
		Address:  address,
		Nickname: entry.Nickname,
		DrugCode: entry.DrugCode,
		Status:   dispenser.StatusConnected,
		LastSeen: time.Now().UTC(),
	}

	m.mu.Lock()
	m.connected[entry.Identity] = &device
	delete(m.autoAttempts, entry.Identity)
	m.mu.Unlock()

	if err := m.catalog.SetLastConnected(&dispenser.LastConnected{
		Identity: entry.Identity,
		Address:  address,
	}); err != nil {
		m.logger.Warn("persisting last connection failed", "error", err)
	}

	m.notifier.DeviceConnected(device)
	m.notifier.ConnectivityRefresh(m.Connected())
	return nil
}

// Disconnect removes a device from the connected set at the user's
// request. The identity is marked manually-off so the scan loop will
// not reconnect it until restart, and the last-connection record is
// cleared if it pointed here.
func (m *Manager) Disconnect(identity string) error {
	identity = dispenser.NormalizeIdentity(identity)

	m.mu.Lock()
	if _, ok := m.connected[identity]; !ok {
		m.mu.Unlock()
		return ErrNotConnected
	}
	delete(m.connected, identity)
	m.manualOff[identity] = struct{}{}
	m.mu.Unlock()

	if last := m.catalog.LastConnected(); last != nil && last.Identity == identity {
		if err := m.catalog.SetLastConnected(nil); err != nil {
			m.logger.Warn("clearing last connection failed", "error", err)
		}
	}

	m.logger.Info("device disconnected", "identity", identity)
	m.notifier.DeviceDisconnected(identity)
	m.notifier.ConnectivityRefresh(m.Connected())
	return nil
}

// Save creates or overwrites the catalog entry for a device. If the
// device is currently connected its live record picks up the new
// nickname and drug code immediately.
func (m *Manager) Save(entry dispenser.Entry) error {
	entry.Identity = dispenser.NormalizeIdentity(entry.Identity)
	if err := m.catalog.Put(entry); err != nil {
		return err
	}

	m.mu.Lock()
	if device, ok := m.connected[entry.Identity]; ok {
		device.Nickname = entry.Nickname
		device.DrugCode = entry.DrugCode
	}
	m.mu.Unlock()

	m.notifier.ConnectivityRefresh(m.Connected())
	return nil
}

// Delete removes a catalog entry. Rejected while the device is
// connected: disconnect first.
func (m *Manager) Delete(identity string) error {
	identity = dispenser.NormalizeIdentity(identity)

	m.mu.RLock()
	_, live := m.connected[identity]
	m.mu.RUnlock()
	if live {
		return ErrDeviceConnected
	}

	return m.catalog.Delete(identity)
}

// SetStatus transitions a connected device's status.
func (m *Manager) SetStatus(identity string, status dispenser.Status) error {
	identity = dispenser.NormalizeIdentity(identity)

	m.mu.Lock()
	device, ok := m.connected[identity]
	if !ok {
		m.mu.Unlock()
		return ErrNotConnected
	}
	device.Status = status
	m.mu.Unlock()

	m.notifier.DeviceStatusChanged(identity, status)
	return nil
}

// CompareAndSetStatus transitions a device's status only if it is still
// connected and currently in from. Reports whether the transition
// happened. Deferred restorations use this so a device that was
// disconnected mid-wait is not resurrected.
func (m *Manager) CompareAndSetStatus(identity string, from, to dispenser.Status) bool {
	identity = dispenser.NormalizeIdentity(identity)

	m.mu.Lock()
	device, ok := m.connected[identity]
	if !ok || device.Status != from {
		m.mu.Unlock()
		return false
	}
	device.Status = to
	m.mu.Unlock()

	m.notifier.DeviceStatusChanged(identity, to)
	return true
}

// Lookup returns a copy of the connected record for identity.
func (m *Manager) Lookup(identity string) (dispenser.Connected, bool) {
	identity = dispenser.NormalizeIdentity(identity)

	m.mu.RLock()
	defer m.mu.RUnlock()
	device, ok := m.connected[identity]
	if !ok {
		return dispenser.Connected{}, false
	}
	return *device, true
}

// Connected returns a copy of the connected set, ordered by identity.
func (m *Manager) Connected() []dispenser.Connected {
	m.mu.RLock()
	devices := make([]dispenser.Connected, 0, len(m.connected))
	for _, device := range m.connected {
		devices = append(devices, *device)
	}
	m.mu.RUnlock()

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Identity < devices[j].Identity
	})
	return devices
}

// RestoreLast reconnects to the most recently connected device, if one
// is recorded. Called once at startup; absence of the device is normal
// and not an error.
func (m *Manager) RestoreLast(ctx context.Context) {
	last := m.catalog.LastConnected()
	if last == nil {
		return
	}

	m.logger.Info("restoring last connection", "identity", last.Identity)
	if err := m.Connect(ctx, last.Identity, true); err != nil {
		m.logger.Info("last connection not restored",
			"identity", last.Identity,
			"error", err)
	}
}

// markAlive refreshes a device after a successful health probe,
// promoting it back to connected if the network had demoted it.
func (m *Manager) markAlive(identity string) {
	m.mu.Lock()
	device, ok := m.connected[identity]
	if !ok {
		m.mu.Unlock()
		return
	}
	changed := device.Status == dispenser.StatusDisconnected
	if changed {
		device.Status = dispenser.StatusConnected
	}
	device.LastSeen = time.Now().UTC()
	m.mu.Unlock()

	if changed {
		m.notifier.DeviceStatusChanged(identity, dispenser.StatusConnected)
	}
}

// markUnreachable demotes a device whose health probe failed. The record
// stays in the connected set: unreachable-right-now is distinct from
// user-disconnected. Only connected devices demote; a device that began
// dispensing while the probe was in flight is left alone. The
// last-connection record is persisted so a restart can try this device
// again.
func (m *Manager) markUnreachable(identity string) {
	m.mu.Lock()
	device, ok := m.connected[identity]
	if !ok || device.Status != dispenser.StatusConnected {
		m.mu.Unlock()
		return
	}
	device.Status = dispenser.StatusDisconnected
	address := device.Address
	m.mu.Unlock()

	if err := m.catalog.SetLastConnected(&dispenser.LastConnected{
		Identity: identity,
		Address:  address,
	}); err != nil {
		m.logger.Warn("persisting last connection failed", "error", err)
	}

	m.logger.Warn("device unreachable", "identity", identity, "address", address)
	m.notifier.DeviceStatusChanged(identity, dispenser.StatusDisconnected)
}

// teardown removes a device whose address now answers as a different
// identity (DHCP reassignment or hardware swap). A device that started
// dispensing while the probe was in flight is spared: the dispense
// outcome settles its fate.
func (m *Manager) teardown(identity string) {
	m.mu.Lock()
	device, ok := m.connected[identity]
	if !ok || device.Status == dispenser.StatusDispensing {
		m.mu.Unlock()
		return
	}
	delete(m.connected, identity)
	m.mu.Unlock()

	m.logger.Warn("device identity mismatch, tearing down", "identity", identity)
	m.notifier.DeviceDisconnected(identity)
	m.notifier.ConnectivityRefresh(m.Connected())
}
