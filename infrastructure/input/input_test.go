package input_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/adcompliance/infrastructure/input"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, filepath.Join(dir, "pub.PNG"))
	touch(t, filepath.Join(dir, "pub.gif"))
	touch(t, filepath.Join(dir, "flyer.pdf"))

	tests := []struct {
		name    string
		path    string
		opts    input.Options
		wantErr error
	}{
		{"image", "pub.PNG", input.Options{}, nil},
		{"unsupported", "pub.gif", input.Options{}, input.ErrUnsupportedType},
		{"pdf without converter", "flyer.pdf", input.Options{}, input.ErrUnsupportedType},
		{"pdf with converter", "flyer.pdf", input.Options{AllowPDF: true}, nil},
		{"missing", "absent.jpg", input.Options{}, input.ErrNotFound},
		{"directory", ".", input.Options{}, input.ErrUnsupportedType},
	}
	for _, tt := range tests {
		got, err := input.Validate(filepath.Join(dir, tt.path), tt.opts)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("%s: error = %v, want %v", tt.name, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: error = %v", tt.name, err)
			continue
		}
		if !filepath.IsAbs(got) {
			t.Errorf("%s: path = %s, want absolute", tt.name, got)
		}
	}
}

func TestCollect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.jpg"))
	touch(t, filepath.Join(dir, "a.jpeg"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "sub", "c.png"))
	touch(t, filepath.Join(dir, "sub", "d.pdf"))

	tests := []struct {
		name string
		opts input.Options
		want []string
	}{
		{"flat", input.Options{}, []string{"a.jpeg", "b.jpg"}},
		{"recursive", input.Options{Recursive: true}, []string{"a.jpeg", "b.jpg", "sub/c.png"}},
		{"recursive with pdf", input.Options{Recursive: true, AllowPDF: true}, []string{"a.jpeg", "b.jpg", "sub/c.png", "sub/d.pdf"}},
	}
	for _, tt := range tests {
		files, err := input.Collect(dir, tt.opts)
		if err != nil {
			t.Errorf("%s: error = %v", tt.name, err)
			continue
		}
		got := make([]string, len(files))
		for i, f := range files {
			rel, _ := filepath.Rel(dir, f)
			got[i] = filepath.ToSlash(rel)
		}
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("%s: files = %v, want %v", tt.name, got, tt.want)
		}
	}

	empty := t.TempDir()
	if _, err := input.Collect(empty, input.Options{}); !errors.Is(err, input.ErrNoInputs) {
		t.Errorf("empty dir error = %v, want ErrNoInputs", err)
	}
	if _, err := input.Collect(filepath.Join(dir, "absent"), input.Options{}); !errors.Is(err, input.ErrNotFound) {
		t.Errorf("missing dir error = %v, want ErrNotFound", err)
	}
}

func TestCheckReadable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ok := filepath.Join(dir, "ok.png")
	touch(t, ok)

	if err := input.CheckReadable(ok); err != nil {
		t.Errorf("CheckReadable(ok) error = %v, want nil", err)
	}
	if err := input.CheckReadable(filepath.Join(dir, "gone.png")); !errors.Is(err, input.ErrNotFound) {
		t.Errorf("CheckReadable(gone) error = %v, want %v", err, input.ErrNotFound)
	}
}

func TestNewCommandConverter_InvalidTemplate(t *testing.T) {
	t.Parallel()

	for _, tmpl := range []string{"", "pdftoppm {in}", "pdftoppm {out}"} {
		if _, err := input.NewCommandConverter(tmpl, t.TempDir()); !errors.Is(err, input.ErrInvalidTemplate) {
			t.Errorf("template %q: error = %v, want ErrInvalidTemplate", tmpl, err)
		}
	}
}

func TestCommandConverter_Convert(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("cp"); err != nil {
		t.Skip("cp not available")
	}

	dir := t.TempDir()
	pdf := filepath.Join(dir, "flyer.pdf")
	touch(t, pdf)
	out := filepath.Join(dir, "converted")

	conv, err := input.NewCommandConverter("cp {in} {out}.png", out)
	if err != nil {
		t.Fatalf("NewCommandConverter() error = %v", err)
	}
	img, err := conv.Convert(context.Background(), pdf)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if filepath.Dir(img) != out || !strings.HasPrefix(filepath.Base(img), "flyer_") || filepath.Ext(img) != ".png" {
		t.Errorf("Convert() = %s", img)
	}

	if _, err := conv.Convert(context.Background(), filepath.Join(dir, "pub.jpg")); !errors.Is(err, input.ErrUnsupportedType) {
		t.Errorf("non-pdf error = %v, want ErrUnsupportedType", err)
	}

	failing, _ := input.NewCommandConverter("false {in} {out}", out)
	if _, err := failing.Convert(context.Background(), pdf); !errors.Is(err, input.ErrConversionFailed) {
		t.Errorf("failing command error = %v, want ErrConversionFailed", err)
	}
}
