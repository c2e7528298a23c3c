package input

import "errors"

// Domain errors for input handling.
var (
	// ErrNotFound indicates the input path does not exist.
	ErrNotFound = errors.New("input not found")

	// ErrUnsupportedType indicates a file whose extension is not analyzable.
	ErrUnsupportedType = errors.New("unsupported input type")

	// ErrNoInputs indicates a directory without any supported file.
	ErrNoInputs = errors.New("no supported input files")

	// ErrConversionFailed indicates the PDF converter did not produce an image.
	ErrConversionFailed = errors.New("pdf conversion failed")

	// ErrInvalidTemplate indicates a converter template without {in} or {out}.
	ErrInvalidTemplate = errors.New("invalid converter template")
)
