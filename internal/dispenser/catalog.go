package dispenser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File permission constants.
const (
	dirPermissions  = 0750
	filePermissions = 0600
)

// catalogFile is the on-disk representation of the catalog.
type catalogFile struct {
	Connections   map[string]Entry `json:"connections"`
	LastConnected *LastConnected   `json:"last_connected"`
}

// Catalog is the durable store of saved dispensers.
//
// The backing file is read once at startup and rewritten wholesale after
// every mutation. Writes go through a temp file followed by a rename, so
// a crash mid-write never leaves a truncated catalog behind. Concurrent
// external modification of the file is unsupported; last writer wins.
//
// All public methods are thread-safe.
type Catalog struct {
	path string

	mu      sync.RWMutex
	entries map[string]Entry
	last    *LastConnected
}

// NewCatalog creates a catalog backed by the file at path. The file is not
// touched until Load or a mutating operation.
func NewCatalog(path string) *Catalog {
	return &Catalog{
		path:    path,
		entries: make(map[string]Entry),
	}
}

// Load reads the catalog file into memory. A missing file is not an error;
// it simply yields an empty catalog. A last_connected reference to an
// identity that has no entry is dropped (best-effort repair).
func (c *Catalog) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			c.entries = make(map[string]Entry)
			c.last = nil
			return nil
		}
		return fmt.Errorf("reading catalog file: %w", err)
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing catalog file: %w", err)
	}

	c.entries = make(map[string]Entry, len(file.Connections))
	for identity, entry := range file.Connections {
		id := NormalizeIdentity(identity)
		entry.Identity = id
		c.entries[id] = entry
	}

	c.last = nil
	if file.LastConnected != nil {
		id := NormalizeIdentity(file.LastConnected.Identity)
		if _, ok := c.entries[id]; ok {
			c.last = &LastConnected{Identity: id, Address: file.LastConnected.Address}
		}
	}

	return nil
}

// Get returns the entry for the given identity.
// Returns ErrNotFound if no entry exists.
func (c *Catalog) Get(identity string) (Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[NormalizeIdentity(identity)]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

// List returns all entries. The returned slice is a copy.
func (c *Catalog) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	return entries
}

// Put creates or overwrites the entry for entry.Identity and persists the
// catalog. Address, nickname and drug code are all required.
func (c *Catalog) Put(entry Entry) error {
	if entry.Identity == "" {
		return ErrInvalidIdentity
	}
	if entry.Address == "" {
		return ErrAddressRequired
	}
	if entry.Nickname == "" {
		return ErrNicknameRequired
	}
	if entry.DrugCode == "" {
		return ErrDrugCodeRequired
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry.Identity = NormalizeIdentity(entry.Identity)
	c.entries[entry.Identity] = entry
	return c.saveLocked()
}

// Delete removes the entry for the given identity and persists the catalog.
// Returns ErrNotFound if no entry exists. If last_connected pointed at the
// identity it is cleared as well.
func (c *Catalog) Delete(identity string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := NormalizeIdentity(identity)
	if _, ok := c.entries[id]; !ok {
		return ErrNotFound
	}
	delete(c.entries, id)

	if c.last != nil && c.last.Identity == id {
		c.last = nil
	}
	return c.saveLocked()
}

// UpdateAddress records a new address for an existing entry and persists
// the catalog. Used when a device reappears on a different address.
func (c *Catalog) UpdateAddress(identity, address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := NormalizeIdentity(identity)
	entry, ok := c.entries[id]
	if !ok {
		return ErrNotFound
	}
	entry.Address = address
	c.entries[id] = entry
	return c.saveLocked()
}

// SetLastConnected records (or clears, with nil) the most recently active
// device and persists the catalog.
func (c *Catalog) SetLastConnected(last *LastConnected) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last == nil {
		c.last = nil
	} else {
		c.last = &LastConnected{
			Identity: NormalizeIdentity(last.Identity),
			Address:  last.Address,
		}
	}
	return c.saveLocked()
}

// LastConnected returns the persisted last-connected reference, or nil.
func (c *Catalog) LastConnected() *LastConnected {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.last == nil {
		return nil
	}
	cpy := *c.last
	return &cpy
}

// Count returns the number of saved entries.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// saveLocked rewrites the catalog file. Caller must hold c.mu.
func (c *Catalog) saveLocked() error {
	file := catalogFile{
		Connections:   c.entries,
		LastConnected: c.last,
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding catalog: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("creating catalog directory: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, filePermissions); err != nil {
		return fmt.Errorf("writing catalog file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replacing catalog file: %w", err)
	}
	return nil
}
