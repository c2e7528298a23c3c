// Package input validates and collects the advertisement files to analyze.
package input

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ImageExtensions are analyzed directly.
var ImageExtensions = []string{".jpg", ".jpeg", ".png"}

// PDFExtension is analyzed once converted to an image.
const PDFExtension = ".pdf"

// Options controls which files are accepted.
type Options struct {
	// Recursive walks subdirectories.
	Recursive bool
	// AllowPDF accepts PDF files, which requires a converter.
	AllowPDF bool
}

// IsImage reports whether path has an image extension.
func IsImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// IsPDF reports whether path has the PDF extension.
func IsPDF(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == PDFExtension
}

func supported(path string, opts Options) bool {
	return IsImage(path) || (opts.AllowPDF && IsPDF(path))
}

// Validate checks a single file and returns its absolute path.
func Validate(path string, opts Options) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrUnsupportedType, path)
	}
	if !supported(path, opts) {
		return "", fmt.Errorf("%w: %s (accepted: %s)", ErrUnsupportedType, path, accepted(opts))
	}
	return filepath.Abs(path)
}

// CheckReadable opens path and closes it again. Files may vanish or lose
// permissions between collection and analysis.
func CheckReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from the collected inputs
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("failed to open image: %w", err)
	}
	return f.Close()
}

// Collect returns the files to analyze under path, sorted. A file path is
// validated on its own; in a directory, unsupported files are skipped.
func Collect(path string, opts Options) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		f, err := Validate(path, opts)
		if err != nil {
			return nil, err
		}
		return []string{f}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if supported(p, opts) {
			abs, err := filepath.Abs(p)
			if err != nil {
				return err
			}
			files = append(files, abs)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s (accepted: %s)", ErrNoInputs, path, accepted(opts))
	}
	sort.Strings(files)
	return files, nil
}

func accepted(opts Options) string {
	exts := append([]string(nil), ImageExtensions...)
	if opts.AllowPDF {
		exts = append(exts, PDFExtension)
	}
	return strings.Join(exts, ", ")
}
