package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldsheet/internal/document"
	"fieldsheet/internal/schema"
)

func testSchema(t *testing.T) *schema.CompiledSchema {
	t.Helper()
	cs, err := schema.Compile([]schema.FieldRequest{
		{Name: "vendor", Description: "vendor name", Type: schema.TypeString, Required: true},
		{Name: "payment_status", Description: "payment status", Type: schema.TypeEnum, EnumValues: []string{"Paid", "Open"}},
		{Name: "total", Description: "grand total", Type: schema.TypeMoney, CurrencyHint: "USD", Examples: []string{"$12.50"}},
	}, schema.Options{})
	require.NoError(t, err)
	return cs
}

func testDoc() *document.Context {
	return &document.Context{
		Name:       "invoice-001.pdf",
		TextBlocks: []string{"ACME Corp", "Total due: $12.50"},
		Images:     []document.PageImage{{Page: 1, MIMEType: "image/png", Data: []byte{0x89, 0x50}}},
		Metadata:   map[string]string{"pages": "1", "type": "pdf"},
	}
}

func TestBuildPromptDeterministic(t *testing.T) {
	cs := testSchema(t)
	doc := testDoc()

	a := BuildPrompt(cs, doc)
	b := BuildPrompt(cs, doc)
	assert.Equal(t, a, b, "identical inputs must yield an identical payload")
}

func TestBuildPromptContents(t *testing.T) {
	p := BuildPrompt(testSchema(t), testDoc())

	assert.Contains(t, p.System, "vendor (string, required)")
	assert.Contains(t, p.System, "Allowed values: Paid, Open")
	assert.Contains(t, p.System, "Default currency: USD")
	assert.Contains(t, p.System, "Examples: $12.50")
	assert.True(t, strings.Index(p.System, "vendor") < strings.Index(p.System, "payment_status"),
		"fields enumerated in schema order")

	assert.Contains(t, p.User, "invoice-001.pdf")
	assert.Contains(t, p.User, "Total due: $12.50")
	assert.Contains(t, p.User, "pages: 1")

	require.Len(t, p.Attachments, 1)
	assert.True(t, strings.HasPrefix(p.Attachments[0].DataURL, "data:image/png;base64,"))

	require.NotNil(t, p.SchemaJSON)
	assert.Equal(t, "object", p.SchemaJSON["type"])
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, string(StripCodeFences([]byte("```json\n{\"a\":1}\n```"))))
	assert.Equal(t, `{"a":1}`, string(StripCodeFences([]byte("```\n{\"a\":1}\n```"))))
	assert.Equal(t, `{"a":1}`, string(StripCodeFences([]byte(`{"a":1}`))))
}

func TestValidateJSONAgainstSchema(t *testing.T) {
	js := testSchema(t).JSONSchema()

	require.NoError(t, ValidateJSONAgainstSchema(js, []byte(`{"vendor":"ACME","payment_status":"Paid"}`)))
	assert.Error(t, ValidateJSONAgainstSchema(js, []byte(`{"payment_status":"Paid"}`)), "missing required vendor")
	assert.Error(t, ValidateJSONAgainstSchema(js, []byte(`{"vendor":"ACME","extra":1}`)), "additionalProperties forbidden")
	assert.Error(t, ValidateJSONAgainstSchema(js, []byte(`not json`)))
}
