package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shader.frag")
	raw := []byte("\xEF\xBB\xBFline one\r\nline two\r\n")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := f.Text(); got != "line one\nline two\n" {
		t.Fatalf("unexpected content %q", got)
	}
	if f.Flags&FileHadBOM == 0 {
		t.Error("expected FileHadBOM")
	}
	if f.Flags&FileNormalizedCRLF == 0 {
		t.Error("expected FileNormalizedCRLF")
	}
	if f.ModTime.IsZero() {
		t.Error("expected ModTime to be recorded")
	}
}

func TestLoadNormalizesNFC(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shader.frag")
	// "e" + combining acute accent
	if err := os.WriteFile(path, []byte("// cafe\u0301\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := f.Text(); got != "// caf\u00e9\n" {
		t.Fatalf("expected NFC content, got %q", got)
	}
	if f.Flags&FileNormalizedNFC == 0 {
		t.Error("expected FileNormalizedNFC")
	}
}

func TestGetLine(t *testing.T) {
	f, err := NewVirtual("mem.frag", []byte("a\nbb\n\nccc"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		line int
		want string
	}{
		{0, ""},
		{1, "a"},
		{2, "bb"},
		{3, ""},
		{4, "ccc"},
		{5, ""},
	}
	for _, tt := range tests {
		if got := f.GetLine(tt.line); got != tt.want {
			t.Errorf("GetLine(%d) = %q, want %q", tt.line, got, tt.want)
		}
	}
	if n := f.LineCount(); n != 4 {
		t.Errorf("LineCount = %d, want 4", n)
	}
}

func TestLineCountTrailingNewline(t *testing.T) {
	f, err := NewVirtual("mem.frag", []byte("a\nb\n"))
	if err != nil {
		t.Fatal(err)
	}
	if n := f.LineCount(); n != 2 {
		t.Fatalf("LineCount = %d, want 2", n)
	}
	empty, err := NewVirtual("empty.frag", nil)
	if err != nil {
		t.Fatal(err)
	}
	if n := empty.LineCount(); n != 0 {
		t.Fatalf("LineCount(empty) = %d, want 0", n)
	}
}

func TestWriteFileReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shader.frag")
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(path, []byte("new")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Fatalf("content = %q, want %q", got, "new")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("permissions = %o, want 600", perm)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected temp file to be gone, dir has %d entries", len(entries))
	}
}

func TestDisplayPath(t *testing.T) {
	f := &File{Path: "/work/shaders/a.frag"}
	if got := f.DisplayPath("/work"); got != "shaders/a.frag" {
		t.Errorf("DisplayPath = %q", got)
	}
	if got := f.DisplayPath("/elsewhere"); got != "/work/shaders/a.frag" {
		t.Errorf("DisplayPath outside base = %q", got)
	}
}
