// Package filesystem writes analysis reports and usage statistics to disk.
package filesystem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/adcompliance/domain/analysis"
)

const (
	dayLayout   = "20060102"
	stampLayout = "20060102_150405"
)

// ReportStore lays reports out as <base>/<YYYYMMDD>/<stem>/analyse_<stem>_<ts>.json
// with the analyzed image copied beside the report.
type ReportStore struct {
	basePath string
}

// Saved lists the files written for one report.
type Saved struct {
	Report  string
	Image   string
	RawText string
	Dates   string
}

// NewReportStore creates the base directory if needed.
func NewReportStore(basePath string) (*ReportStore, error) {
	if err := os.MkdirAll(basePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &ReportStore{basePath: basePath}, nil
}

// BasePath returns the output root.
func (s *ReportStore) BasePath() string {
	return s.basePath
}

// Save writes the report JSON, copies the analyzed image and writes the
// raw text and dates side files when those stages produced output.
func (s *ReportStore) Save(ctx context.Context, r analysis.Report, stem, imagePath string, at time.Time) (Saved, error) {
	if err := ctx.Err(); err != nil {
		return Saved{}, err
	}

	dir := filepath.Join(s.basePath, at.Format(dayLayout), stem)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return Saved{}, fmt.Errorf("failed to create report directory: %w", err)
	}
	ts := at.Format(stampLayout)

	var saved Saved
	if imagePath != "" {
		dst := filepath.Join(dir, "image_"+ts+filepath.Ext(imagePath))
		if err := copyFile(imagePath, dst); err != nil {
			return Saved{}, fmt.Errorf("failed to copy image: %w", err)
		}
		saved.Image = dst
	}

	saved.Report = filepath.Join(dir, fmt.Sprintf("analyse_%s_%s.json", stem, ts))
	if err := writeJSON(saved.Report, r); err != nil {
		return Saved{}, fmt.Errorf("failed to write report: %w", err)
	}

	if r.Steps.RawText != "" {
		path, err := s.writeSide("raw_text", fmt.Sprintf("%s_raw_%s.txt", stem, ts), r.Steps.RawText)
		if err != nil {
			return saved, err
		}
		saved.RawText = path
	}
	if r.Steps.DatesVerification != "" {
		path, err := s.writeSide("dates_verification", fmt.Sprintf("%s_dates_%s.txt", stem, ts), r.Steps.DatesVerification)
		if err != nil {
			return saved, err
		}
		saved.Dates = path
	}

	return saved, nil
}

func (s *ReportStore) writeSide(sub, name, content string) (string, error) {
	dir := filepath.Join(s.basePath, sub)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", sub, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", sub, err)
	}
	return path, nil
}

// Load reads a report back.
func Load(path string) (analysis.Report, error) {
	var r analysis.Report
	data, err := os.ReadFile(path) // #nosec G304 -- path chosen by the operator
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("failed to decode report %s: %w", path, err)
	}
	return r, nil
}

// writeJSON writes v indented with non-ASCII text left as is.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0600)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- analyzed input file
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst) // #nosec G304 -- path built under the output root
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() // #nosec G104 -- best-effort cleanup in error path
		return err
	}
	return out.Close()
}
