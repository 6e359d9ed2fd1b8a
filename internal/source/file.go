package source

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"fortio.org/safecast"
)

// ErrTooLarge is returned when a document does not fit the 32-bit line index.
var ErrTooLarge = errors.New("source: document too large")

// Load reads a document from disk, normalizes BOM/CRLF/NFC and builds the line index.
func Load(path string) (*File, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	content, hadBOM := removeBOM(content)
	content, hadCRLF := normalizeCRLF(content)
	content, hadNFC := normalizeNFC(content)

	flags := FileFlags(0)
	if hadBOM {
		flags |= FileHadBOM
	}
	if hadCRLF {
		flags |= FileNormalizedCRLF
	}
	if hadNFC {
		flags |= FileNormalizedNFC
	}
	f, err := newFile(path, content, flags)
	if err != nil {
		return nil, err
	}
	f.ModTime = info.ModTime()
	return f, nil
}

// NewVirtual builds a File from memory (editor buffer, assembled document, stdin).
func NewVirtual(name string, content []byte) (*File, error) {
	return newFile(name, content, FileVirtual)
}

func newFile(path string, content []byte, flags FileFlags) (*File, error) {
	if _, err := lengthOf(content); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &File{
		Path:    normalizePath(path),
		Content: content,
		LineIdx: buildLineIndex(content),
		Hash:    sha256.Sum256(content),
		Flags:   flags,
	}, nil
}

func lengthOf(content []byte) (uint32, error) {
	n, err := safecast.Conv[uint32](len(content))
	if err != nil || n == math.MaxUint32 {
		return 0, ErrTooLarge
	}
	return n, nil
}

// Text returns the normalized content as a string.
func (f *File) Text() string {
	return string(f.Content)
}

// LineCount returns the number of lines; a trailing newline does not open a new line.
func (f *File) LineCount() int {
	if len(f.Content) == 0 {
		return 0
	}
	n := len(f.LineIdx)
	if f.Content[len(f.Content)-1] != '\n' {
		n++
	}
	return n
}

// GetLine возвращает строку с заданным номером (1-based) без '\n'.
// Если строка не существует, возвращает пустую строку.
func (f *File) GetLine(lineNum int) string {
	if lineNum <= 0 || lineNum > f.LineCount() {
		return ""
	}
	var start, end uint32
	if lineNum > 1 {
		start = f.LineIdx[lineNum-2] + 1
	}
	if lineNum-1 < len(f.LineIdx) {
		end = f.LineIdx[lineNum-1]
	} else {
		end, _ = lengthOf(f.Content)
	}
	return string(f.Content[start:end])
}

// DisplayPath renders the path relative to baseDir when possible.
func (f *File) DisplayPath(baseDir string) string {
	if baseDir == "" || f.Flags&FileVirtual != 0 {
		return f.Path
	}
	rel, err := filepath.Rel(baseDir, f.Path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return f.Path
	}
	return filepath.ToSlash(rel)
}

// WriteFile atomically replaces path with content: temp file in the same
// directory, then rename.
func WriteFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".shaderlab-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	// Атомарная замена
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
