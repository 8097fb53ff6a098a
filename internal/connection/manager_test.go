package connection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/seorin-dev/syruplink-core/internal/dispenser"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeScanner returns a fixed snapshot and counts invocations.
type fakeScanner struct {
	mu       sync.Mutex
	snapshot []dispenser.Reachable
	calls    int
}

func (s *fakeScanner) Scan(_ context.Context, _ string) ([]dispenser.Reachable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.snapshot, nil
}

func (s *fakeScanner) scanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeProber answers per-address and counts probes.
type fakeProber struct {
	mu      sync.Mutex
	replies map[string]dispenser.Reachable
	errs    map[string]error
	calls   map[string]int
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		replies: make(map[string]dispenser.Reachable),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (p *fakeProber) Probe(_ context.Context, address string) (dispenser.Reachable, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[address]++
	if err, ok := p.errs[address]; ok {
		return dispenser.Reachable{}, err
	}
	if reply, ok := p.replies[address]; ok {
		return reply, nil
	}
	return dispenser.Reachable{}, errors.New("connection refused")
}

func (p *fakeProber) answer(address, mac string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.errs, address)
	p.replies[address] = dispenser.Reachable{
		Identity: dispenser.NormalizeIdentity(mac),
		Address:  address,
		Ready:    true,
	}
}

func (p *fakeProber) fail(address string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.replies, address)
	p.errs[address] = err
}

func (p *fakeProber) probeCount(address string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[address]
}

const (
	testMAC  = "AABBCCDDEE01"
	testMAC2 = "AABBCCDDEE02"
)

func newTestCatalog(t *testing.T, entries ...dispenser.Entry) *dispenser.Catalog {
	t.Helper()
	catalog := dispenser.NewCatalog(filepath.Join(t.TempDir(), "connections.json"))
	if err := catalog.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, entry := range entries {
		if err := catalog.Put(entry); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}
	return catalog
}

func newTestManager(t *testing.T, catalog *dispenser.Catalog, scanner *fakeScanner, prober *fakeProber) *Manager {
	t.Helper()
	return NewManager(catalog, scanner, prober, Config{
		Prefix:       "192.168.0.",
		ScanInterval: time.Hour,
	}, nil, testLogger())
}

func TestConnect(t *testing.T) {
	entry := dispenser.Entry{
		Identity: testMAC,
		Address:  "192.168.0.10",
		Nickname: "shelf-a",
		DrugCode: "SYR001",
	}

	t.Run("stored address answers, no fallback scan", func(t *testing.T) {
		catalog := newTestCatalog(t, entry)
		scanner := &fakeScanner{}
		prober := newFakeProber()
		prober.answer("192.168.0.10", testMAC)
		m := newTestManager(t, catalog, scanner, prober)

		if err := m.Connect(context.Background(), testMAC, false); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if scanner.scanCount() != 0 {
			t.Errorf("scan count = %d, want 0", scanner.scanCount())
		}

		device, ok := m.Lookup(testMAC)
		if !ok {
			t.Fatal("Lookup() after connect: not found")
		}
		if device.Status != dispenser.StatusConnected {
			t.Errorf("Status = %q, want %q", device.Status, dispenser.StatusConnected)
		}

		last := catalog.LastConnected()
		if last == nil || last.Identity != testMAC {
			t.Errorf("LastConnected = %+v, want identity %s", last, testMAC)
		}
	})

	t.Run("stored address dead, fallback scan recovers new address", func(t *testing.T) {
		catalog := newTestCatalog(t, entry)
		scanner := &fakeScanner{snapshot: []dispenser.Reachable{
			{Identity: testMAC, Address: "192.168.0.77", Ready: true},
		}}
		prober := newFakeProber()
		m := newTestManager(t, catalog, scanner, prober)

		if err := m.Connect(context.Background(), testMAC, false); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if scanner.scanCount() != 1 {
			t.Errorf("scan count = %d, want 1", scanner.scanCount())
		}

		saved, err := catalog.Get(testMAC)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if saved.Address != "192.168.0.77" {
			t.Errorf("stored address = %q, want updated %q", saved.Address, "192.168.0.77")
		}

		device, _ := m.Lookup(testMAC)
		if device.Address != "192.168.0.77" {
			t.Errorf("live address = %q, want %q", device.Address, "192.168.0.77")
		}
	})

	t.Run("unreachable anywhere", func(t *testing.T) {
		catalog := newTestCatalog(t, entry)
		scanner := &fakeScanner{}
		m := newTestManager(t, catalog, scanner, newFakeProber())

		err := m.Connect(context.Background(), testMAC, false)
		if !errors.Is(err, ErrDeviceNotFound) {
			t.Fatalf("Connect() error = %v, want ErrDeviceNotFound", err)
		}
		if scanner.scanCount() != 1 {
			t.Errorf("scan count = %d, want exactly 1 fallback", scanner.scanCount())
		}
		if _, ok := m.Lookup(testMAC); ok {
			t.Error("device connected despite total failure")
		}
	})

	t.Run("unknown identity", func(t *testing.T) {
		m := newTestManager(t, newTestCatalog(t), &fakeScanner{}, newFakeProber())
		err := m.Connect(context.Background(), "FFFFFFFFFFFF", false)
		if !errors.Is(err, ErrUnknownDevice) {
			t.Errorf("Connect() error = %v, want ErrUnknownDevice", err)
		}
	})

	t.Run("already connected", func(t *testing.T) {
		catalog := newTestCatalog(t, entry)
		prober := newFakeProber()
		prober.answer("192.168.0.10", testMAC)
		m := newTestManager(t, catalog, &fakeScanner{}, prober)

		if err := m.Connect(context.Background(), testMAC, false); err != nil {
			t.Fatalf("first Connect() error = %v", err)
		}
		err := m.Connect(context.Background(), testMAC, false)
		if !errors.Is(err, ErrAlreadyConnected) {
			t.Errorf("second Connect() error = %v, want ErrAlreadyConnected", err)
		}
	})
}

func TestReconcile(t *testing.T) {
	entry := dispenser.Entry{
		Identity: testMAC,
		Address:  "192.168.0.10",
		Nickname: "shelf-a",
		DrugCode: "SYR001",
	}
	snapshot := []dispenser.Reachable{
		{Identity: testMAC, Address: "192.168.0.10", Ready: true},
		{Identity: "UNKNOWN00001", Address: "192.168.0.11", Ready: true},
	}

	t.Run("auto-connects catalogued devices", func(t *testing.T) {
		catalog := newTestCatalog(t, entry)
		prober := newFakeProber()
		prober.answer("192.168.0.10", testMAC)
		m := newTestManager(t, catalog, &fakeScanner{}, prober)

		m.Reconcile(context.Background(), snapshot)
		if _, ok := m.Lookup(testMAC); !ok {
			t.Fatal("catalogued device not auto-connected")
		}
		if _, ok := m.Lookup("UNKNOWN00001"); ok {
			t.Error("uncatalogued device was connected")
		}
	})

	t.Run("manual disconnect suppresses reconnection", func(t *testing.T) {
		catalog := newTestCatalog(t, entry)
		prober := newFakeProber()
		prober.answer("192.168.0.10", testMAC)
		m := newTestManager(t, catalog, &fakeScanner{}, prober)

		m.Reconcile(context.Background(), snapshot)
		if err := m.Disconnect(testMAC); err != nil {
			t.Fatalf("Disconnect() error = %v", err)
		}

		m.Reconcile(context.Background(), snapshot)
		if _, ok := m.Lookup(testMAC); ok {
			t.Error("device reconnected despite manual disconnect")
		}
	})

	t.Run("failed attempts retried up to the cap", func(t *testing.T) {
		catalog := newTestCatalog(t, entry)
		prober := newFakeProber()
		prober.fail("192.168.0.10", errors.New("connection refused"))
		m := newTestManager(t, catalog, &fakeScanner{}, prober)

		for i := 0; i < maxAutoConnectAttempts+2; i++ {
			m.Reconcile(context.Background(), snapshot)
		}
		if got := prober.probeCount("192.168.0.10"); got != maxAutoConnectAttempts {
			t.Errorf("probe attempts = %d, want %d", got, maxAutoConnectAttempts)
		}
		if _, ok := m.Lookup(testMAC); ok {
			t.Error("device connected despite probe failures")
		}
	})

	t.Run("transient failure does not suppress the next cycle", func(t *testing.T) {
		catalog := newTestCatalog(t, entry)
		prober := newFakeProber()
		prober.fail("192.168.0.10", errors.New("connection refused"))
		m := newTestManager(t, catalog, &fakeScanner{}, prober)

		m.Reconcile(context.Background(), snapshot)
		if _, ok := m.Lookup(testMAC); ok {
			t.Fatal("device connected despite probe failure")
		}

		prober.answer("192.168.0.10", testMAC)
		m.Reconcile(context.Background(), snapshot)
		if _, ok := m.Lookup(testMAC); !ok {
			t.Error("device not auto-connected after probe recovered")
		}
	})

	t.Run("successful connect resets the failure counter", func(t *testing.T) {
		catalog := newTestCatalog(t, entry)
		prober := newFakeProber()
		prober.fail("192.168.0.10", errors.New("connection refused"))
		m := newTestManager(t, catalog, &fakeScanner{}, prober)

		for i := 0; i < maxAutoConnectAttempts; i++ {
			m.Reconcile(context.Background(), snapshot)
		}

		prober.answer("192.168.0.10", testMAC)
		if err := m.Connect(context.Background(), testMAC, false); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}

		m.mu.RLock()
		_, tracked := m.autoAttempts[testMAC]
		m.mu.RUnlock()
		if tracked {
			t.Error("failure counter not cleared by successful connect")
		}
	})

	t.Run("identity mismatch counts as a failed attempt", func(t *testing.T) {
		catalog := newTestCatalog(t, entry)
		prober := newFakeProber()
		prober.answer("192.168.0.10", testMAC2)
		m := newTestManager(t, catalog, &fakeScanner{}, prober)

		m.Reconcile(context.Background(), snapshot)
		if _, ok := m.Lookup(testMAC); ok {
			t.Error("device connected despite identity mismatch")
		}
	})
}

func TestDisconnect(t *testing.T) {
	entry := dispenser.Entry{
		Identity: testMAC,
		Address:  "192.168.0.10",
		Nickname: "shelf-a",
		DrugCode: "SYR001",
	}

	t.Run("clears last connection record", func(t *testing.T) {
		catalog := newTestCatalog(t, entry)
		prober := newFakeProber()
		prober.answer("192.168.0.10", testMAC)
		m := newTestManager(t, catalog, &fakeScanner{}, prober)

		if err := m.Connect(context.Background(), testMAC, false); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if err := m.Disconnect(testMAC); err != nil {
			t.Fatalf("Disconnect() error = %v", err)
		}
		if last := catalog.LastConnected(); last != nil {
			t.Errorf("LastConnected = %+v, want nil", last)
		}
	})

	t.Run("not connected", func(t *testing.T) {
		m := newTestManager(t, newTestCatalog(t, entry), &fakeScanner{}, newFakeProber())
		if err := m.Disconnect(testMAC); !errors.Is(err, ErrNotConnected) {
			t.Errorf("Disconnect() error = %v, want ErrNotConnected", err)
		}
	})
}

func TestDelete(t *testing.T) {
	entry := dispenser.Entry{
		Identity: testMAC,
		Address:  "192.168.0.10",
		Nickname: "shelf-a",
		DrugCode: "SYR001",
	}

	t.Run("rejected while connected", func(t *testing.T) {
		catalog := newTestCatalog(t, entry)
		prober := newFakeProber()
		prober.answer("192.168.0.10", testMAC)
		m := newTestManager(t, catalog, &fakeScanner{}, prober)

		if err := m.Connect(context.Background(), testMAC, false); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if err := m.Delete(testMAC); !errors.Is(err, ErrDeviceConnected) {
			t.Errorf("Delete() error = %v, want ErrDeviceConnected", err)
		}
	})

	t.Run("allowed after disconnect", func(t *testing.T) {
		catalog := newTestCatalog(t, entry)
		prober := newFakeProber()
		prober.answer("192.168.0.10", testMAC)
		m := newTestManager(t, catalog, &fakeScanner{}, prober)

		if err := m.Connect(context.Background(), testMAC, false); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if err := m.Disconnect(testMAC); err != nil {
			t.Fatalf("Disconnect() error = %v", err)
		}
		if err := m.Delete(testMAC); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := catalog.Get(testMAC); !errors.Is(err, dispenser.ErrNotFound) {
			t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
		}
	})
}

func TestStatusTransitions(t *testing.T) {
	entry := dispenser.Entry{
		Identity: testMAC,
		Address:  "192.168.0.10",
		Nickname: "shelf-a",
		DrugCode: "SYR001",
	}

	connect := func(t *testing.T) *Manager {
		t.Helper()
		prober := newFakeProber()
		prober.answer("192.168.0.10", testMAC)
		m := newTestManager(t, newTestCatalog(t, entry), &fakeScanner{}, prober)
		if err := m.Connect(context.Background(), testMAC, false); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		return m
	}

	t.Run("set status", func(t *testing.T) {
		m := connect(t)
		if err := m.SetStatus(testMAC, dispenser.StatusDispensing); err != nil {
			t.Fatalf("SetStatus() error = %v", err)
		}
		device, _ := m.Lookup(testMAC)
		if device.Status != dispenser.StatusDispensing {
			t.Errorf("Status = %q, want %q", device.Status, dispenser.StatusDispensing)
		}
	})

	t.Run("compare-and-set succeeds from matching state", func(t *testing.T) {
		m := connect(t)
		if err := m.SetStatus(testMAC, dispenser.StatusDispensing); err != nil {
			t.Fatalf("SetStatus() error = %v", err)
		}
		if !m.CompareAndSetStatus(testMAC, dispenser.StatusDispensing, dispenser.StatusConnected) {
			t.Error("CompareAndSetStatus() = false, want true")
		}
	})

	t.Run("compare-and-set no-ops from wrong state", func(t *testing.T) {
		m := connect(t)
		if m.CompareAndSetStatus(testMAC, dispenser.StatusDispensing, dispenser.StatusConnected) {
			t.Error("CompareAndSetStatus() = true from non-dispensing state")
		}
	})

	t.Run("compare-and-set no-ops after disconnect", func(t *testing.T) {
		m := connect(t)
		if err := m.SetStatus(testMAC, dispenser.StatusDispensing); err != nil {
			t.Fatalf("SetStatus() error = %v", err)
		}
		if err := m.Disconnect(testMAC); err != nil {
			t.Fatalf("Disconnect() error = %v", err)
		}
		if m.CompareAndSetStatus(testMAC, dispenser.StatusDispensing, dispenser.StatusConnected) {
			t.Error("CompareAndSetStatus() = true for disconnected device")
		}
	})
}

func TestRestoreLast(t *testing.T) {
	entry := dispenser.Entry{
		Identity: testMAC,
		Address:  "192.168.0.10",
		Nickname: "shelf-a",
		DrugCode: "SYR001",
	}

	catalog := newTestCatalog(t, entry)
	if err := catalog.SetLastConnected(&dispenser.LastConnected{
		Identity: testMAC,
		Address:  "192.168.0.10",
	}); err != nil {
		t.Fatalf("SetLastConnected() error = %v", err)
	}

	prober := newFakeProber()
	prober.answer("192.168.0.10", testMAC)
	m := newTestManager(t, catalog, &fakeScanner{}, prober)

	m.RestoreLast(context.Background())
	if _, ok := m.Lookup(testMAC); !ok {
		t.Error("last connection not restored")
	}
}

func TestSetPrefix(t *testing.T) {
	m := newTestManager(t, newTestCatalog(t), &fakeScanner{}, newFakeProber())

	if err := m.SetPrefix("10.0.5."); err != nil {
		t.Fatalf("SetPrefix() error = %v", err)
	}
	if got := m.ActivePrefix(); got != "10.0.5." {
		t.Errorf("ActivePrefix() = %q, want %q", got, "10.0.5.")
	}

	if err := m.SetPrefix("bogus"); err == nil {
		t.Error("SetPrefix() accepted invalid prefix")
	}
}
