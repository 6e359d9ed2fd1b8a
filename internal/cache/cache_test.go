package cache

import (
	"os"
	"path/filepath"
	"testing"

	"shaderlab/internal/diag"
	"shaderlab/internal/observ"
)

func TestKeyIsLengthPrefixed(t *testing.T) {
	if Key("ab", "c") == Key("a", "bc") {
		t.Fatal("keys of different splits must differ")
	}
	if Key("x", "y") != Key("x", "y") {
		t.Fatal("Key must be deterministic")
	}
}

func TestPutGet(t *testing.T) {
	c, err := OpenDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := Key("glslang", "glsl", "doc")

	if _, ok, err := c.Get(key); err != nil || ok {
		t.Fatalf("Get on empty cache = (%v, %v)", ok, err)
	}

	set := diag.Parse("0(3) : error X: bad\nWARNING: 0:5: unused\n")
	payload := NewPayload("glslang", "compile", "raw log", set, 1)
	payload.Timing = observ.Report{TotalMS: 1.5, Phases: []observ.PhaseReport{{Name: "compile", DurationMS: 1.5}}}
	if err := c.Put(key, payload); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := c.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get = (%v, %v)", ok, err)
	}
	if got.Status != "compile" || got.Log != "raw log" || got.Dropped != 1 || got.Backend != "glslang" {
		t.Fatalf("payload = %+v", got)
	}
	back := got.Set()
	if back.Len() != 2 || back[3].Message != "0(3) : error X: bad" || back[5].Severity != diag.SevWarning {
		t.Fatalf("set = %+v", back)
	}
	if got.Timing.TotalMS != 1.5 || len(got.Timing.Phases) != 1 {
		t.Fatalf("timing = %+v", got.Timing)
	}
	if got.Stored.IsZero() {
		t.Fatal("Stored not set")
	}

	tmp, _ := filepath.Glob(filepath.Join(c.Dir(), "checks", "tmp-*"))
	if len(tmp) != 0 {
		t.Fatalf("temp files left behind: %v", tmp)
	}
}

func TestCorruptEntry(t *testing.T) {
	c, err := OpenDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := Key("x")
	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte{0xc1}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get(key); err == nil || ok {
		t.Fatalf("expected decode error, got ok=%v err=%v", ok, err)
	}
}

func TestDropAll(t *testing.T) {
	c, err := OpenDir(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	key := Key("y")
	if err := c.Put(key, NewPayload("naga", "ok", "", nil, 0)); err != nil {
		t.Fatal(err)
	}
	if err := c.DropAll(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(key); ok {
		t.Fatal("entry survived DropAll")
	}
	if err := c.Put(key, NewPayload("naga", "ok", "", nil, 0)); err != nil {
		t.Fatalf("cache unusable after DropAll: %v", err)
	}
}

func TestNilCache(t *testing.T) {
	var c *DiskCache
	if err := c.Put(Key("z"), &Payload{}); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get(Key("z")); ok || err != nil {
		t.Fatal("nil cache must miss")
	}
}
