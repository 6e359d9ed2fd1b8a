// Package cache stores batch check results on disk, keyed by a digest of
// everything that influences a compile.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"shaderlab/internal/diag"
	"shaderlab/internal/observ"
)

// Current schema version - increment when Payload format changes
const schemaVersion uint16 = 1

// Digest identifies one compile input.
type Digest [sha256.Size]byte

// Key hashes the parts in order. Parts are length-prefixed so ("ab","c")
// and ("a","bc") differ.
func Key(parts ...string) Digest {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:", len(p))
		h.Write([]byte(p))
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Entry is a diag.Entry without its parse order.
type Entry struct {
	Line     int    `msgpack:"line"`
	Message  string `msgpack:"msg"`
	Severity uint8  `msgpack:"sev"`
}

// Payload is one cached check result.
type Payload struct {
	Schema  uint16        `msgpack:"schema"`
	Backend string        `msgpack:"backend"`
	Status  string        `msgpack:"status"`
	Log     string        `msgpack:"log"`
	Entries []Entry       `msgpack:"entries"`
	Dropped int           `msgpack:"dropped"`
	Timing  observ.Report `msgpack:"timing"`
	Stored  time.Time     `msgpack:"stored"`
}

// NewPayload captures set in cacheable form.
func NewPayload(backend, status, log string, set diag.Set, dropped int) *Payload {
	p := &Payload{
		Schema:  schemaVersion,
		Backend: backend,
		Status:  status,
		Log:     log,
		Dropped: dropped,
		Entries: make([]Entry, 0, set.Len()),
	}
	for _, e := range set.Entries() {
		p.Entries = append(p.Entries, Entry{Line: e.Line, Message: e.Message, Severity: uint8(e.Severity)})
	}
	return p
}

// Set rebuilds the diagnostics.
func (p *Payload) Set() diag.Set {
	out := make(diag.Set, len(p.Entries))
	for _, e := range p.Entries {
		out[e.Line] = diag.Entry{Line: e.Line, Message: e.Message, Severity: diag.Severity(e.Severity)}
	}
	return out
}

// DiskCache хранит результаты проверки по Digest на диске.
// Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// Open returns a cache under $XDG_CACHE_HOME/<app> (or ~/.cache/<app>).
func Open(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDir(filepath.Join(base, app))
}

// OpenDir returns a cache rooted at dir.
func OpenDir(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *DiskCache) Dir() string { return c.dir }

func (c *DiskCache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "checks", key.String()+".mp")
}

// Put serializes and writes a payload. A nil cache ignores the call.
func (c *DiskCache) Put(key Digest, payload *Payload) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	payload.Schema = schemaVersion
	if payload.Stored.IsZero() {
		payload.Stored = time.Now().UTC()
	}
	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	if err := os.Rename(f.Name(), p); err != nil {
		return err
	}
	committed = true
	return nil
}

// Get reads a payload. Missing entries and entries of another schema are
// misses, not errors.
func (c *DiskCache) Get(key Digest) (*Payload, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var out Payload
	if err := msgpack.Unmarshal(data, &out); err != nil {
		return nil, false, fmt.Errorf("cache entry %s: %w", key, err)
	}
	if out.Schema != schemaVersion {
		return nil, false, nil
	}
	return &out, true, nil
}

// DropAll invalidates the cache, useful after format changes.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}
