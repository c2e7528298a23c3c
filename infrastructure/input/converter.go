package input

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Converter turns a PDF into an image.
type Converter interface {
	Convert(ctx context.Context, pdfPath string) (string, error)
}

// CommandConverter runs an external command built from a template such as
// "pdftoppm -png -singlefile {in} {out}". {in} is the PDF path and {out} the
// output path without extension; the first image written at {out} or
// {out}.<ext> is returned. Arguments are split on whitespace.
type CommandConverter struct {
	template []string
	outDir   string
	now      func() time.Time
}

// NewCommandConverter parses the template. Converted images are written
// under outDir.
func NewCommandConverter(template, outDir string) (*CommandConverter, error) {
	args := strings.Fields(template)
	if len(args) == 0 || !strings.Contains(template, "{in}") || !strings.Contains(template, "{out}") {
		return nil, fmt.Errorf("%w: %q needs a command, {in} and {out}", ErrInvalidTemplate, template)
	}
	return &CommandConverter{template: args, outDir: outDir, now: time.Now}, nil
}

// Convert implements Converter.
func (c *CommandConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	if !IsPDF(pdfPath) {
		return "", fmt.Errorf("%w: %s is not a pdf", ErrUnsupportedType, pdfPath)
	}
	if err := os.MkdirAll(c.outDir, 0o750); err != nil {
		return "", fmt.Errorf("create %s: %w", c.outDir, err)
	}

	stem := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	out := filepath.Join(c.outDir, fmt.Sprintf("%s_%s", stem, c.now().Format("20060102_150405")))

	args := make([]string, len(c.template))
	for i, a := range c.template {
		a = strings.ReplaceAll(a, "{in}", pdfPath)
		args[i] = strings.ReplaceAll(a, "{out}", out)
	}

	// #nosec G204 -- the command template is operator configuration
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s: %v: %s", ErrConversionFailed, pdfPath, err, strings.TrimSpace(stderr.String()))
	}

	if IsImage(out) {
		if _, err := os.Stat(out); err == nil {
			return out, nil
		}
	}
	for _, ext := range ImageExtensions {
		if _, err := os.Stat(out + ext); err == nil {
			return out + ext, nil
		}
	}
	return "", fmt.Errorf("%w: no image written at %s", ErrConversionFailed, out)
}
