package source

import "time"

// FileFlags encodes metadata about a loaded shader document.
type FileFlags uint8 // метаданные

const (
	// FileVirtual indicates the file was built from memory (editor buffer, test, stdin).
	FileVirtual FileFlags = 1 << iota // не с диска
	FileHadBOM
	FileNormalizedCRLF
	FileNormalizedNFC
)

// File captures the content of a single shader document together with its line index.
type File struct {
	Path    string
	Content []byte
	LineIdx []uint32 // offsets of '\n'
	Hash    [32]byte
	Flags   FileFlags
	ModTime time.Time
}
