package document

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PDFConfig tunes the PDF preprocessor.
type PDFConfig struct {
	MaxPages int // 0 = no limit

	// ArtifactCacheDir optionally holds pre-rendered page PNGs keyed by
	// content hash: <hash>-<page>.png. Rasterization happens out of process;
	// we only attach what is already there.
	ArtifactCacheDir string
}

// PDFPreprocessor extracts per-page text blocks from a PDF and attaches any
// pre-rendered page images found in the artifact cache.
type PDFPreprocessor struct {
	cfg PDFConfig
	log *slog.Logger
}

func NewPDFPreprocessor(cfg PDFConfig, logger *slog.Logger) *PDFPreprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFPreprocessor{cfg: cfg, log: logger}
}

func (p *PDFPreprocessor) Preprocess(_ context.Context, path string) (*Context, error) {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			p.log.Warn("preprocess.pdf.close_error", "path", path, "error", cerr)
		}
	}()

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	var blocks []string
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if p.cfg.MaxPages > 0 && pageNr > p.cfg.MaxPages {
			break
		}
		if text := extractPageText(pdfCtx, pageNr); text != "" {
			blocks = append(blocks, text)
		}
	}

	hasImages := detectImageStreams(pdfCtx)

	doc := &Context{
		Name:       filepath.Base(path),
		Path:       path,
		TextBlocks: blocks,
		Metadata: map[string]string{
			"type":       "pdf",
			"pages":      strconv.Itoa(pdfCtx.PageCount),
			"has_images": strconv.FormatBool(hasImages),
		},
	}

	if p.cfg.ArtifactCacheDir != "" {
		doc.Images = p.cachedPageImages(path, pdfCtx.PageCount)
	}

	p.log.Info("preprocess.pdf.ok",
		"path", path,
		"pages", pdfCtx.PageCount,
		"text_blocks", len(blocks),
		"images", len(doc.Images),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}

// cachedPageImages picks up pre-rendered page PNGs from the artifact cache,
// keyed by the document's content hash.
func (p *PDFPreprocessor) cachedPageImages(path string, pages int) []PageImage {
	hash, err := contentHash(path)
	if err != nil {
		p.log.Warn("preprocess.pdf.hash_error", "path", path, "error", err)
		return nil
	}
	var out []PageImage
	for pageNr := 1; pageNr <= pages; pageNr++ {
		if p.cfg.MaxPages > 0 && pageNr > p.cfg.MaxPages {
			break
		}
		cached := filepath.Join(p.cfg.ArtifactCacheDir, fmt.Sprintf("%s-%d.png", hash, pageNr))
		st, err := os.Stat(cached)
		if err != nil || st.IsDir() {
			continue
		}
		data, err := os.ReadFile(cached)
		if err != nil {
			continue
		}
		out = append(out, PageImage{Page: pageNr, MIMEType: "image/png", Data: data})
	}
	return out
}

func contentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// detectImageStreams reports whether the document carries image XObjects,
// so the prompt can note embedded images even when no rendered pages are
// cached.
func detectImageStreams(ctx *model.Context) bool {
	if ctx.Optimize != nil {
		for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
			if len(pdfcpu.ImageObjNrs(ctx, pageNr)) > 0 {
				return true
			}
		}
	}
	// Unoptimized contexts lack per-page image tracking; scan the xref table
	// for image-subtype stream dicts instead.
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if subtype, found := sd.Find("Subtype"); found {
			if name, isName := subtype.(types.Name); isName && name == "Image" {
				return true
			}
		}
	}
	return false
}

// extractPageText extracts text from a single PDF page via pdfcpu content stream.
func extractPageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return extractTextFromStream(data)
}

// pdfStringRe matches PDF string literals in parentheses: (text here)
var pdfStringRe = regexp.MustCompile(`\(([^)]*)\)`)

// extractTextFromStream parses PDF content stream operators for text.
func extractTextFromStream(data []byte) string {
	var sb strings.Builder

	lines := bytes.Split(data, []byte{'\n'})
	for _, line := range lines {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		// Tj / TJ operators: (text) Tj, [(text) -100 (more)] TJ
		if bytes.HasSuffix(line, []byte("Tj")) || bytes.HasSuffix(line, []byte("TJ")) {
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				if text := decodePDFString(m[1]); text != "" {
					sb.WriteString(text)
				}
			}
		}

		// ' operator (move to next line and show text): (text) '
		if bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")) {
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				if text := decodePDFString(m[1]); text != "" {
					sb.WriteByte('\n')
					sb.WriteString(text)
				}
			}
		}

		// Td/TD operator (text positioning).
		if bytes.HasSuffix(line, []byte("Td")) || bytes.HasSuffix(line, []byte("TD")) {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		}

		// T* operator (move to start of next line).
		if bytes.Equal(line, []byte("T*")) {
			sb.WriteByte('\n')
		}
	}

	return cleanText(sb.String())
}

// decodePDFString handles basic PDF escape sequences.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			i++
			switch raw[i] {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case '\\', '(', ')':
				sb.WriteByte(raw[i])
			default:
				sb.WriteByte(raw[i])
			}
			continue
		}
		sb.WriteByte(raw[i])
	}
	return sb.String()
}

var multiSpaceRe = regexp.MustCompile(`[ \t]{2,}`)

func cleanText(s string) string {
	s = multiSpaceRe.ReplaceAllString(s, " ")
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
