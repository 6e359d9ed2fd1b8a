package checkpipeline

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"shaderlab/internal/template"
)

// Extensions maps file extensions to the dialect they hold.
var Extensions = map[string]template.Dialect{
	".glsl": template.DialectGLSL,
	".frag": template.DialectGLSL,
	".fs":   template.DialectGLSL,
	".wgsl": template.DialectWGSL,
}

// ListShaderFiles returns path itself when it is a file, otherwise every
// shader document below it, sorted. Hidden directories are skipped.
func ListShaderFiles(path string, d template.Dialect) ([]string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() {
			if p != path && strings.HasPrefix(e.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if dialect, ok := Extensions[strings.ToLower(filepath.Ext(p))]; ok && dialect == d {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Сортируем для детерминированного порядка
	sort.Strings(files)
	return files, nil
}

// DisplayPath makes file relative to baseDir when it lies below it.
func DisplayPath(file, baseDir string) string {
	if baseDir == "" {
		return filepath.ToSlash(file)
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return filepath.ToSlash(file)
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return filepath.ToSlash(file)
	}
	if rel, err := filepath.Rel(base, abs); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(file)
}
