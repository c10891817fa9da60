package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	ledongthuc "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/Lllllllleong/titlereport/internal/models"
)

// UnsupportedFileType is the page content produced for unknown extensions.
const UnsupportedFileType = "Unsupported file type."

var (
	// ErrInvalidText is returned for .txt uploads that are not UTF-8.
	ErrInvalidText = errors.New("text file is not valid UTF-8")
	// ErrMissingDocumentXML is returned for .docx archives without a body part.
	ErrMissingDocumentXML = errors.New("word/document.xml not found in archive")
)

// Extractor turns an uploaded document into labelled page text.
type Extractor struct {
	conf *model.Configuration
}

// NewExtractor creates an Extractor that validates PDFs in relaxed mode.
func NewExtractor() *Extractor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Extractor{conf: conf}
}

// Extract dispatches on the lower-cased file extension. An unsupported type
// is not an error: it yields a single page labelled "Error".
func (e *Extractor) Extract(ctx context.Context, upload models.Upload) (models.Pages, error) {
	logCtx := slog.With("file", upload.Name, "bytes", len(upload.Content))

	var (
		pages models.Pages
		err   error
	)
	switch ext := strings.ToLower(filepath.Ext(upload.Name)); ext {
	case ".pdf":
		pages, err = e.extractPDF(ctx, upload.Content)
	case ".docx":
		pages, err = extractDOCX(upload.Content)
	case ".txt":
		pages, err = extractTXT(upload.Content)
	default:
		logCtx.Warn("Unsupported file type.", "extension", ext)
		return models.Pages{{Label: models.ErrorLabel, Text: UnsupportedFileType}}, nil
	}
	if err != nil {
		return nil, err
	}

	logCtx.Info("Extracted text.", "pageCount", len(pages))
	return pages, nil
}

func (e *Extractor) extractPDF(ctx context.Context, content []byte) (models.Pages, error) {
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(content), e.conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	// ledongthuc decodes font encodings; the raw content stream is the fallback.
	reader, err := ledongthuc.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		slog.Warn("Plain text reader unavailable, using content streams only.", "error", err)
		reader = nil
	}

	var pages models.Pages
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := plainPageText(reader, pageNr)
		if strings.TrimSpace(text) == "" {
			text = streamPageText(pdfCtx, pageNr)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, models.Page{Label: models.PageLabel(pageNr), Text: text})
	}
	return pages, nil
}

func plainPageText(reader *ledongthuc.Reader, pageNr int) (text string) {
	if reader == nil || pageNr > reader.NumPage() {
		return ""
	}
	// The reader panics on some malformed fonts.
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Plain text extraction panicked.", "page", pageNr, "panic", r)
			text = ""
		}
	}()

	page := reader.Page(pageNr)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}

func streamPageText(pdfCtx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return textFromContentStream(data)
}

// pdfStringRe matches PDF string literals in parentheses: (text here)
var pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// textFromContentStream collects the operands of the text showing operators.
func textFromContentStream(data []byte) string {
	var sb strings.Builder
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteByte('\n')
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}
	return normalizeSpace(sb.String())
}

// decodePDFString handles the literal string escape sequences.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
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
			if raw[i] < '0' || raw[i] > '7' {
				sb.WriteByte(raw[i])
				continue
			}
			val := int(raw[i] - '0')
			for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}

func normalizeSpace(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsPrint(r):
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}

// extractDOCX joins the text of every paragraph in word/document.xml with
// newlines. The result is always a single page, even when empty.
func extractDOCX(content []byte) (models.Pages, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx archive: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, ErrMissingDocumentXML
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open document.xml: %w", err)
	}
	defer rc.Close()

	// Text boxes nest whole paragraphs inside a run, so paragraphs are kept
	// on a stack. Each one takes its slot in reading order when it opens.
	type openParagraph struct {
		index int
		text  strings.Builder
	}
	var (
		paragraphs []string
		stack      []*openParagraph
		runDepth   int
		inText     bool
		skipDepth  int
	)
	write := func(s string) {
		if len(stack) > 0 {
			stack[len(stack)-1].text.WriteString(s)
		}
	}
	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			// mc:Fallback repeats the content of the preceding mc:Choice.
			if t.Name.Local == "Fallback" || skipDepth > 0 {
				skipDepth++
				continue
			}
			switch t.Name.Local {
			case "p":
				stack = append(stack, &openParagraph{index: len(paragraphs)})
				paragraphs = append(paragraphs, "")
			case "r":
				runDepth++
			case "t":
				inText = runDepth > 0
			case "tab":
				if runDepth > 0 {
					write("\t")
				}
			case "br", "cr":
				if runDepth > 0 {
					write("\n")
				}
			}
		case xml.CharData:
			if inText && skipDepth == 0 {
				write(string(t))
			}
		case xml.EndElement:
			if skipDepth > 0 {
				skipDepth--
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "r":
				if runDepth > 0 {
					runDepth--
				}
			case "p":
				if n := len(stack); n > 0 {
					top := stack[n-1]
					stack = stack[:n-1]
					paragraphs[top.index] = top.text.String()
				}
			}
		}
	}

	return models.Pages{{Label: models.PageLabel(1), Text: strings.Join(paragraphs, "\n")}}, nil
}

// extractTXT decodes the whole file as UTF-8, dropping a leading byte order mark.
func extractTXT(content []byte) (models.Pages, error) {
	if !utf8.Valid(content) {
		return nil, ErrInvalidText
	}
	decoded, _, err := transform.Bytes(xunicode.UTF8BOM.NewDecoder(), content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode text file: %w", err)
	}
	return models.Pages{{Label: models.PageLabel(1), Text: string(decoded)}}, nil
}
