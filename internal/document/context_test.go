package document

import (
	"context"
	"errors"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPreproc struct{ doc *Context }

func (s staticPreproc) Preprocess(context.Context, string) (*Context, error) {
	return s.doc, nil
}

func TestDispatchRoutesByExtension(t *testing.T) {
	want := &Context{Name: "x.pdf"}
	d := Dispatch{".pdf": staticPreproc{doc: want}}

	got, err := d.Preprocess(context.Background(), "/tmp/reports/X.PDF")
	require.NoError(t, err, "extension match is case-insensitive")
	assert.Same(t, want, got)
}

func TestDispatchRejectsUnknownExtension(t *testing.T) {
	d := Dispatch{".pdf": staticPreproc{}}

	_, err := d.Preprocess(context.Background(), "slides.pptx")
	var ute *UnsupportedTypeError
	require.True(t, errors.As(err, &ute))
	assert.Contains(t, ute.Error(), ".pptx")
}

func TestExtractTextFromStream(t *testing.T) {
	stream := []byte("BT\n/F1 12 Tf\n(Invoice) Tj\n0 -14 Td\n(Total: 12.50) Tj\nET\n")

	text := extractTextFromStream(stream)
	assert.Contains(t, text, "Invoice")
	assert.Contains(t, text, "Total: 12.50")
}

func xrefWithStream(subtype string) *model.Context {
	return &model.Context{
		XRefTable: &model.XRefTable{
			Table: map[int]*model.XRefTableEntry{
				1: {Object: types.StreamDict{Dict: types.Dict{"Subtype": types.Name(subtype)}}},
			},
		},
	}
}

func TestDetectImageStreams(t *testing.T) {
	assert.True(t, detectImageStreams(xrefWithStream("Image")))
	assert.False(t, detectImageStreams(xrefWithStream("Form")))
}

func TestCleanTextCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "a b\nc", cleanText("a   b  \n\n  c \n"))
}
