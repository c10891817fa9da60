package services

import (
	"archive/zip"
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/titlereport/internal/models"
)

// buildTextPDF writes a minimal PDF with one page per entry. An empty entry
// produces a page whose content stream shows no text.
func buildTextPDF(pageTexts ...string) []byte {
	n := len(pageTexts)
	objCount := 3 + 2*n
	offsets := make([]int, objCount+1)

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	kids := make([]string, n)
	for i := range pageTexts {
		kids[i] = strconv.Itoa(4+2*i) + " 0 R"
	}
	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [" + strings.Join(kids, " ") + "] /Count " + strconv.Itoa(n) + " >>\nendobj\n")

	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>\nendobj\n")

	for i, text := range pageTexts {
		pageObj, contentObj := 4+2*i, 5+2*i

		stream := "BT\nET"
		if text != "" {
			escaped := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(text)
			stream = "BT\n/F1 12 Tf\n72 720 Td\n(" + escaped + ") Tj\nET"
		}

		offsets[pageObj] = b.Len()
		b.WriteString(strconv.Itoa(pageObj) + " 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents " +
			strconv.Itoa(contentObj) + " 0 R /Resources << /Font << /F1 3 0 R >> >> >>\nendobj\n")

		offsets[contentObj] = b.Len()
		b.WriteString(strconv.Itoa(contentObj) + " 0 obj\n<< /Length " + strconv.Itoa(len(stream)) + " >>\nstream\n")
		b.WriteString(stream)
		b.WriteString("\nendstream\nendobj\n")
	}

	xrefOffset := b.Len()
	b.WriteString("xref\n0 " + strconv.Itoa(objCount+1) + "\n")
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= objCount; i++ {
		off := strconv.Itoa(offsets[i])
		b.WriteString(strings.Repeat("0", 10-len(off)) + off + " 00000 n \n")
	}
	b.WriteString("trailer\n<< /Size " + strconv.Itoa(objCount+1) + " /Root 1 0 R >>\nstartxref\n")
	b.WriteString(strconv.Itoa(xrefOffset))
	b.WriteString("\n%%EOF\n")
	return []byte(b.String())
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractor_PDF_SkipsBlankPages(t *testing.T) {
	content := buildTextPDF("Survey No. 12 Hobli", "", "Khata extract")

	pages, err := NewExtractor().Extract(context.Background(), models.Upload{Name: "deed.pdf", Content: content})
	require.NoError(t, err)

	require.Equal(t, []string{"Page 1", "Page 3"}, pages.Labels())
	text, _ := pages.Get("Page 1")
	assert.Contains(t, text, "Survey")
	text, _ = pages.Get("Page 3")
	assert.Contains(t, text, "Khata")
}

func TestExtractor_PDF_UpperCaseExtension(t *testing.T) {
	pages, err := NewExtractor().Extract(context.Background(), models.Upload{Name: "DEED.PDF", Content: buildTextPDF("Mutation register")})
	require.NoError(t, err)
	assert.Equal(t, []string{"Page 1"}, pages.Labels())
}

func TestExtractor_PDF_Malformed(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), models.Upload{Name: "broken.pdf", Content: []byte("not a pdf")})
	assert.Error(t, err)
}

func TestExtractor_PDF_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExtractor().Extract(ctx, models.Upload{Name: "deed.pdf", Content: buildTextPDF("a", "b")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractor_DOCX(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t>Sale deed</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Vendor: </w:t></w:r><w:r><w:t>Ramesh</w:t><w:tab/><w:t>Purchaser</w:t></w:r></w:p>
<w:p/>
<w:p><w:r><w:t>Registered</w:t></w:r></w:p>
</w:body>
</w:document>`

	pages, err := NewExtractor().Extract(context.Background(), models.Upload{Name: "deed.docx", Content: buildDOCX(t, doc)})
	require.NoError(t, err)
	require.Equal(t, []string{"Page 1"}, pages.Labels())
	assert.Equal(t, "Sale deed\nVendor: Ramesh\tPurchaser\n\nRegistered", pages[0].Text)
}

func TestExtractor_DOCX_TextBox(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006" xmlns:wps="http://schemas.microsoft.com/office/word/2010/wordprocessingShape" xmlns:v="urn:schemas-microsoft-com:vml">
<w:body>
<w:p>
<w:r><w:t xml:space="preserve">Survey 12 </w:t></w:r>
<w:r><mc:AlternateContent>
<mc:Choice Requires="wps"><wps:txbx><w:txbxContent><w:p><w:r><w:t>Khata 7</w:t></w:r></w:p></w:txbxContent></wps:txbx></mc:Choice>
<mc:Fallback><v:textbox><w:txbxContent><w:p><w:r><w:t>Khata 7</w:t></w:r></w:p></w:txbxContent></v:textbox></mc:Fallback>
</mc:AlternateContent></w:r>
<w:r><w:t>Hobli</w:t></w:r>
</w:p>
<w:p><w:r><w:t>Registered</w:t></w:r></w:p>
</w:body>
</w:document>`

	pages, err := NewExtractor().Extract(context.Background(), models.Upload{Name: "rtc.docx", Content: buildDOCX(t, doc)})
	require.NoError(t, err)
	require.Equal(t, []string{"Page 1"}, pages.Labels())
	assert.Equal(t, "Survey 12 Hobli\nKhata 7\nRegistered", pages[0].Text)
}

func TestExtractor_DOCX_Errors(t *testing.T) {
	t.Run("not a zip", func(t *testing.T) {
		_, err := NewExtractor().Extract(context.Background(), models.Upload{Name: "a.docx", Content: []byte("plain")})
		assert.Error(t, err)
	})
	t.Run("no document part", func(t *testing.T) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		_, err := zw.Create("word/styles.xml")
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		_, err = NewExtractor().Extract(context.Background(), models.Upload{Name: "a.docx", Content: buf.Bytes()})
		assert.ErrorIs(t, err, ErrMissingDocumentXML)
	})
}

func TestExtractor_TXT(t *testing.T) {
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("ಪಹಣಿ\nRTC record")...)

	pages, err := NewExtractor().Extract(context.Background(), models.Upload{Name: "rtc.txt", Content: content})
	require.NoError(t, err)
	assert.Equal(t, models.Pages{{Label: "Page 1", Text: "ಪಹಣಿ\nRTC record"}}, pages)
}

func TestExtractor_TXT_InvalidUTF8(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), models.Upload{Name: "rtc.txt", Content: []byte{0xff, 0xfe, 0x00}})
	assert.ErrorIs(t, err, ErrInvalidText)
}

func TestExtractor_Unsupported(t *testing.T) {
	for _, name := range []string{"scan.png", "notes", "deed.doc"} {
		pages, err := NewExtractor().Extract(context.Background(), models.Upload{Name: name, Content: []byte("x")})
		require.NoError(t, err)
		assert.Equal(t, models.Pages{{Label: "Error", Text: "Unsupported file type."}}, pages, name)
	}
}

func TestTextFromContentStream(t *testing.T) {
	stream := []byte("BT\n/F1 12 Tf\n72 720 Td\n(Survey \\(old\\)) Tj\n0 -14 Td\n[(No.) -250 (12)] TJ\nET")
	assert.Equal(t, "Survey (old) No.12", textFromContentStream(stream))
}

func TestDecodePDFString(t *testing.T) {
	assert.Equal(t, "a b", decodePDFString([]byte(`a\040b`)))
	assert.Equal(t, "x\ny", decodePDFString([]byte(`x\ny`)))
	assert.Equal(t, `\`, decodePDFString([]byte(`\\`)))
}
