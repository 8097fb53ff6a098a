package dispenser

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testEntry(identity, nickname, code string) Entry {
	return Entry{
		Identity: identity,
		Address:  "192.168.1.45",
		Nickname: nickname,
		DrugCode: code,
	}
}

func TestNormalizeIdentity(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"aa:bb:cc:dd:ee:ff", "AABBCCDDEEFF"},
		{"AA-BB-CC-DD-EE-FF", "AABBCCDDEEFF"},
		{"AABBCCDDEEFF", "AABBCCDDEEFF"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := NormalizeIdentity(tc.in); got != tc.want {
			t.Errorf("NormalizeIdentity(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCatalog_LoadMissingFile(t *testing.T) {
	catalog := NewCatalog(filepath.Join(t.TempDir(), "catalog.json"))

	if err := catalog.Load(); err != nil {
		t.Fatalf("Load() error = %v, want nil for missing file", err)
	}
	if catalog.Count() != 0 {
		t.Errorf("Count() = %d, want 0", catalog.Count())
	}
	if catalog.LastConnected() != nil {
		t.Error("LastConnected() != nil for empty catalog")
	}
}

func TestCatalog_PutValidation(t *testing.T) {
	catalog := NewCatalog(filepath.Join(t.TempDir(), "catalog.json"))

	t.Run("rejects empty address", func(t *testing.T) {
		entry := testEntry("AA:BB:CC:DD:EE:01", "Line 1", "P1")
		entry.Address = ""
		if err := catalog.Put(entry); !errors.Is(err, ErrAddressRequired) {
			t.Errorf("Put() error = %v, want ErrAddressRequired", err)
		}
	})

	t.Run("rejects empty nickname", func(t *testing.T) {
		err := catalog.Put(testEntry("AA:BB:CC:DD:EE:01", "", "P1"))
		if !errors.Is(err, ErrNicknameRequired) {
			t.Errorf("Put() error = %v, want ErrNicknameRequired", err)
		}
	})

	t.Run("rejects empty drug code", func(t *testing.T) {
		err := catalog.Put(testEntry("AA:BB:CC:DD:EE:01", "Line 1", ""))
		if !errors.Is(err, ErrDrugCodeRequired) {
			t.Errorf("Put() error = %v, want ErrDrugCodeRequired", err)
		}
	})

	t.Run("rejects empty identity", func(t *testing.T) {
		err := catalog.Put(testEntry("", "Line 1", "P1"))
		if !errors.Is(err, ErrInvalidIdentity) {
			t.Errorf("Put() error = %v, want ErrInvalidIdentity", err)
		}
	})
}

func TestCatalog_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")

	catalog := NewCatalog(path)
	if err := catalog.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	entry := testEntry("aa:bb:cc:dd:ee:01", "Amoxicillin line", "P1")
	if err := catalog.Put(entry); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := catalog.SetLastConnected(&LastConnected{
		Identity: "aa:bb:cc:dd:ee:01",
		Address:  entry.Address,
	}); err != nil {
		t.Fatalf("SetLastConnected() error = %v", err)
	}

	// Reload from disk into a fresh catalog.
	reloaded := NewCatalog(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() after save error = %v", err)
	}

	got, err := reloaded.Get("AA:BB:CC:DD:EE:01")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Address != entry.Address {
		t.Errorf("Address = %q, want %q", got.Address, entry.Address)
	}
	if got.Nickname != entry.Nickname {
		t.Errorf("Nickname = %q, want %q", got.Nickname, entry.Nickname)
	}
	if got.DrugCode != entry.DrugCode {
		t.Errorf("DrugCode = %q, want %q", got.DrugCode, entry.DrugCode)
	}

	last := reloaded.LastConnected()
	if last == nil {
		t.Fatal("LastConnected() = nil after reload")
	}
	if last.Identity != "AABBCCDDEE01" {
		t.Errorf("LastConnected().Identity = %q, want %q", last.Identity, "AABBCCDDEE01")
	}
}

func TestCatalog_LoadRepairsDanglingLastConnected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")

	// last_connected references an identity with no entry.
	raw := map[string]any{
		"connections": map[string]any{},
		"last_connected": map[string]any{
			"identity": "AA:BB:CC:DD:EE:99",
			"address":  "192.168.1.99",
		},
	}
	data, err := json.Marshal(raw)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	catalog := NewCatalog(path)
	if err := catalog.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if catalog.LastConnected() != nil {
		t.Error("LastConnected() != nil, want dangling reference dropped")
	}
}

func TestCatalog_Delete(t *testing.T) {
	catalog := NewCatalog(filepath.Join(t.TempDir(), "catalog.json"))

	if err := catalog.Put(testEntry("AA:BB:CC:DD:EE:01", "Line 1", "P1")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	t.Run("removes existing entry", func(t *testing.T) {
		if err := catalog.Delete("AA:BB:CC:DD:EE:01"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := catalog.Get("AA:BB:CC:DD:EE:01"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("returns ErrNotFound for unknown identity", func(t *testing.T) {
		if err := catalog.Delete("AA:BB:CC:DD:EE:99"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete() error = %v, want ErrNotFound", err)
		}
	})
}

func TestCatalog_UpdateAddress(t *testing.T) {
	catalog := NewCatalog(filepath.Join(t.TempDir(), "catalog.json"))

	if err := catalog.Put(testEntry("AA:BB:CC:DD:EE:01", "Line 1", "P1")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if err := catalog.UpdateAddress("aa-bb-cc-dd-ee-01", "192.168.1.77"); err != nil {
		t.Fatalf("UpdateAddress() error = %v", err)
	}

	got, err := catalog.Get("AA:BB:CC:DD:EE:01")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Address != "192.168.1.77" {
		t.Errorf("Address = %q, want %q", got.Address, "192.168.1.77")
	}
}
