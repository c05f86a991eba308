package document

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// PageImage is one rendered page image or thumbnail attached to a document.
type PageImage struct {
	Page     int
	MIMEType string
	Data     []byte
}

// Context is one input document's preprocessed material. The extraction core
// only reads it; the preprocessor that produced it owns the content.
type Context struct {
	Name       string
	Path       string
	TextBlocks []string
	Images     []PageImage
	Metadata   map[string]string
}

// Preprocessor turns a document path into extraction-ready context.
type Preprocessor interface {
	Preprocess(ctx context.Context, path string) (*Context, error)
}

// UnsupportedTypeError marks a document rejected at batch entry. It is recorded
// against that document only and never aborts the batch.
type UnsupportedTypeError struct {
	Path string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported document type %q for %s", filepath.Ext(e.Path), e.Path)
}

// Dispatch routes a path to the preprocessor registered for its extension.
type Dispatch map[string]Preprocessor

func (d Dispatch) Preprocess(ctx context.Context, path string) (*Context, error) {
	ext := strings.ToLower(filepath.Ext(path))
	p, ok := d[ext]
	if !ok {
		return nil, &UnsupportedTypeError{Path: path}
	}
	return p.Preprocess(ctx, path)
}
