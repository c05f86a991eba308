package llm

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"fieldsheet/internal/document"
	"fieldsheet/internal/schema"
)

const maxTextBlockChars = 12000

// BuildPrompt assembles the multimodal extraction prompt for one document.
// Pure function of (compiled schema, document context): no network or file I/O,
// and deterministic, which keeps prompt/response audit logs reproducible.
func BuildPrompt(cs *schema.CompiledSchema, doc *document.Context) Prompt {
	return Prompt{
		System:      buildSystemPrompt(cs),
		User:        buildUserPrompt(doc),
		SchemaJSON:  cs.JSONSchema(),
		Attachments: buildAttachments(doc.Images),
	}
}

func buildSystemPrompt(cs *schema.CompiledSchema) string {
	var b strings.Builder
	b.WriteString("You are a careful information extraction assistant. ")
	b.WriteString("Fill the requested fields using only evidence from the document text and images. ")
	b.WriteString("Return ONLY JSON that matches the provided JSON Schema. ")
	b.WriteString("If a value is missing or unclear, omit the field. Never invent data. Never output null.\n\n")
	b.WriteString("Fields to extract:\n")

	for _, f := range cs.Fields() {
		req := "optional"
		if f.Required {
			req = "required"
		}
		fmt.Fprintf(&b, "- %s (%s, %s): %s", f.Name, f.Type, req, f.Description)
		if len(f.EnumValues) > 0 {
			fmt.Fprintf(&b, " Allowed values: %s.", strings.Join(f.EnumValues, ", "))
		}
		if f.CurrencyHint != "" {
			fmt.Fprintf(&b, " Default currency: %s.", f.CurrencyHint)
		}
		if len(f.Examples) > 0 {
			fmt.Fprintf(&b, " Examples: %s.", strings.Join(f.Examples, "; "))
		}
		b.WriteByte('\n')
	}

	b.WriteString("\nUse ISO-8601 dates (YYYY-MM-DD). ")
	b.WriteString("Money values must include the currency as printed in the document (symbol or ISO 4217 code). ")
	if cs.Options().PercentScale == schema.ScaleHundred {
		b.WriteString("Percent values are on the 0-100 scale. ")
	} else {
		b.WriteString("Percent values are fractions between 0 and 1 unless suffixed with '%'. ")
	}
	b.WriteString("For enum fields, answer with exactly one of the allowed values.")
	return b.String()
}

func buildUserPrompt(doc *document.Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document: %s\n", doc.Name)

	if len(doc.Metadata) > 0 {
		keys := make([]string, 0, len(doc.Metadata))
		for k := range doc.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %s\n", k, doc.Metadata[k])
		}
	}

	if len(doc.TextBlocks) > 0 {
		b.WriteString("\nDocument text:\n")
		written := 0
		for i, block := range doc.TextBlocks {
			if written >= maxTextBlockChars {
				b.WriteString("\n…(truncated)")
				break
			}
			if i > 0 {
				b.WriteString("\n\n")
			}
			if remaining := maxTextBlockChars - written; len(block) > remaining {
				block = block[:remaining]
			}
			b.WriteString(block)
			written += len(block)
		}
	}

	if len(doc.Images) > 0 {
		fmt.Fprintf(&b, "\n\n%d page image(s) attached.", len(doc.Images))
	}
	return b.String()
}

func buildAttachments(images []document.PageImage) []Attachment {
	var out []Attachment
	for _, img := range images {
		if len(img.Data) == 0 {
			continue
		}
		mt := img.MIMEType
		if mt == "" {
			mt = "image/png"
		}
		out = append(out, Attachment{
			MIMEType: mt,
			DataURL:  "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
		})
	}
	return out
}
