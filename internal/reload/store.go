package reload

import (
	"fmt"

	"shaderlab/internal/source"
	"shaderlab/internal/template"
)

// FileStore keeps the document in a file.
type FileStore struct {
	Path string
}

// Load reads and normalizes the document. Missing files surface as
// fs.ErrNotExist through errors.Is.
func (s FileStore) Load() (template.Document, error) {
	f, err := source.Load(s.Path)
	if err != nil {
		return "", fmt.Errorf("read shader document: %w", err)
	}
	return template.Document(f.Text()), nil
}

// Save replaces the document atomically.
func (s FileStore) Save(doc template.Document) error {
	if err := source.WriteFile(s.Path, []byte(doc)); err != nil {
		return fmt.Errorf("write shader document: %w", err)
	}
	return nil
}

// MemoryEditor is an Editor without a UI, used by the watch command.
type MemoryEditor struct {
	Fragment template.Fragment
}

func (e *MemoryEditor) Text() template.Fragment     { return e.Fragment }
func (e *MemoryEditor) SetText(f template.Fragment) { e.Fragment = f }
