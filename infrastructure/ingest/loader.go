package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// TextExtensions are the legislation file types read by LoadDir.
var TextExtensions = []string{".txt", ".md"}

// Document is one legislation source file.
type Document struct {
	Path string
	Text string
}

// IsText reports whether path is a legislation text file.
func IsText(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range TextExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadDir reads every text file under dir, recursively, in path order.
// Empty files are skipped.
func LoadDir(dir string) ([]Document, error) {
	var docs []Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsText(path) {
			return nil
		}
		data, err := os.ReadFile(path) // #nosec G304 -- walking the configured directory
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return nil
		}
		docs = append(docs, Document{Path: path, Text: string(data)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", dir, err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}
