// Package docx renders Markdown into a WordprocessingML (.docx) package
// without external tools.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Converter writes .docx files from Markdown.
type Converter struct {
	md goldmark.Markdown
}

// NewConverter creates a Converter that understands GitHub flavoured tables.
func NewConverter() *Converter {
	return &Converter{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

// Convert renders markdown and writes the package to path.
func (c *Converter) Convert(ctx context.Context, markdown, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := c.Render([]byte(markdown))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Render returns the zipped .docx package for markdown.
func (c *Converter) Render(markdown []byte) ([]byte, error) {
	doc := c.md.Parser().Parse(text.NewReader(markdown))

	r := &renderer{src: markdown}
	r.blocks(doc, blockStyle{})

	var body bytes.Buffer
	body.WriteString(xml.Header)
	body.WriteString(`<w:document xmlns:w="` + nsMain + `"><w:body>`)
	body.Write(r.buf.Bytes())
	body.WriteString(`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="708" w:footer="708" w:gutter="0"/></w:sectPr>`)
	body.WriteString(`</w:body></w:document>`)

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	parts := []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(rootRelsXML)},
		{"word/_rels/document.xml.rels", []byte(documentRelsXML)},
		{"word/styles.xml", []byte(stylesXML)},
		{"word/document.xml", body.Bytes()},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", p.name, err)
		}
		if _, err := w.Write(p.data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish docx package: %w", err)
	}
	return out.Bytes(), nil
}

type blockStyle struct {
	style  string
	indent int
}

type runStyle struct {
	bold, italic, code, strike bool
}

type renderer struct {
	src []byte
	buf bytes.Buffer
}

func (r *renderer) blocks(parent ast.Node, bs blockStyle) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		r.block(n, bs, "")
	}
}

// block renders one block node. prefix is written before the first run, and
// is how list markers reach the first paragraph of an item.
func (r *renderer) block(n ast.Node, bs blockStyle, prefix string) {
	switch node := n.(type) {
	case *ast.Heading:
		r.paragraph(node, blockStyle{style: "Heading" + strconv.Itoa(min(node.Level, 6))}, prefix)
	case *ast.Paragraph, *ast.TextBlock:
		r.paragraph(node, bs, prefix)
	case *ast.List:
		r.list(node, bs)
	case *ast.Blockquote:
		r.blocks(node, blockStyle{style: "Quote", indent: bs.indent + 1})
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
		r.codeLines(node.Lines(), bs)
	case *ast.ThematicBreak:
		r.buf.WriteString(`<w:p><w:pPr><w:pBdr><w:bottom w:val="single" w:sz="6" w:space="1" w:color="auto"/></w:pBdr></w:pPr></w:p>`)
	case *east.Table:
		r.table(node)
	default:
		r.blocks(node, bs)
	}
}

func (r *renderer) list(list *ast.List, bs blockStyle) {
	number := list.Start
	if number == 0 {
		number = 1
	}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "• "
		if list.IsOrdered() {
			marker = strconv.Itoa(number) + string(list.Marker) + " "
			number++
		}
		inner := blockStyle{style: "ListParagraph", indent: bs.indent + 1}
		first := true
		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			if first {
				r.block(child, inner, marker)
				first = false
				continue
			}
			r.block(child, inner, "")
		}
	}
}

func (r *renderer) paragraph(n ast.Node, bs blockStyle, prefix string) {
	r.buf.WriteString("<w:p>")
	r.paragraphProps(bs)
	if prefix != "" {
		r.run(prefix, runStyle{})
	}
	r.inlines(n, runStyle{})
	r.buf.WriteString("</w:p>")
}

func (r *renderer) paragraphProps(bs blockStyle) {
	if bs.style == "" && bs.indent == 0 {
		return
	}
	r.buf.WriteString("<w:pPr>")
	if bs.style != "" {
		r.buf.WriteString(`<w:pStyle w:val="` + bs.style + `"/>`)
	}
	if bs.indent > 0 {
		r.buf.WriteString(`<w:ind w:left="` + strconv.Itoa(bs.indent*360) + `"/>`)
	}
	r.buf.WriteString("</w:pPr>")
}

func (r *renderer) codeLines(lines *text.Segments, bs blockStyle) {
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(r.src)), "\r\n")
		r.buf.WriteString("<w:p>")
		r.paragraphProps(blockStyle{style: "Code", indent: bs.indent})
		r.run(line, runStyle{code: true})
		r.buf.WriteString("</w:p>")
	}
}

func (r *renderer) table(tbl *east.Table) {
	r.buf.WriteString(`<w:tbl><w:tblPr><w:tblStyle w:val="TableGrid"/><w:tblW w:w="0" w:type="auto"/><w:tblBorders>`)
	for _, side := range []string{"top", "left", "bottom", "right", "insideH", "insideV"} {
		r.buf.WriteString(`<w:` + side + ` w:val="single" w:sz="4" w:space="0" w:color="auto"/>`)
	}
	r.buf.WriteString(`</w:tblBorders></w:tblPr>`)

	// CT_Tbl requires a grid; columns share the text width of a Letter page.
	cols := tableColumns(tbl)
	r.buf.WriteString("<w:tblGrid>")
	for i := 0; i < cols; i++ {
		fmt.Fprintf(&r.buf, `<w:gridCol w:w="%d"/>`, textWidthTwips/cols)
	}
	r.buf.WriteString("</w:tblGrid>")

	for row := tbl.FirstChild(); row != nil; row = row.NextSibling() {
		_, header := row.(*east.TableHeader)
		r.buf.WriteString("<w:tr>")
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			r.buf.WriteString("<w:tc><w:p>")
			r.inlines(cell, runStyle{bold: header})
			r.buf.WriteString("</w:p></w:tc>")
		}
		r.buf.WriteString("</w:tr>")
	}
	r.buf.WriteString("</w:tbl>")
	// Word requires a paragraph between adjacent tables.
	r.buf.WriteString("<w:p/>")
}

// textWidthTwips is the printable width of a Letter page with 1" margins.
const textWidthTwips = 9360

func tableColumns(tbl *east.Table) int {
	cols := 1
	for row := tbl.FirstChild(); row != nil; row = row.NextSibling() {
		if n := row.ChildCount(); n > cols {
			cols = n
		}
	}
	return cols
}

func (r *renderer) inlines(parent ast.Node, rs runStyle) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Text:
			r.run(string(node.Segment.Value(r.src)), rs)
			switch {
			case node.HardLineBreak():
				r.buf.WriteString("<w:r><w:br/></w:r>")
			case node.SoftLineBreak():
				r.run(" ", rs)
			}
		case *ast.String:
			r.run(string(node.Value), rs)
		case *ast.Emphasis:
			inner := rs
			if node.Level >= 2 {
				inner.bold = true
			} else {
				inner.italic = true
			}
			r.inlines(node, inner)
		case *ast.CodeSpan:
			inner := rs
			inner.code = true
			r.inlines(node, inner)
		case *east.Strikethrough:
			inner := rs
			inner.strike = true
			r.inlines(node, inner)
		case *ast.AutoLink:
			r.run(string(node.URL(r.src)), rs)
		case *ast.RawHTML:
			segs := node.Segments
			for i := 0; i < segs.Len(); i++ {
				seg := segs.At(i)
				r.run(string(seg.Value(r.src)), rs)
			}
		default:
			r.inlines(node, rs)
		}
	}
}

func (r *renderer) run(s string, rs runStyle) {
	if s == "" {
		return
	}
	r.buf.WriteString("<w:r>")
	if rs.bold || rs.italic || rs.code || rs.strike {
		r.buf.WriteString("<w:rPr>")
		if rs.code {
			r.buf.WriteString(`<w:rFonts w:ascii="Courier New" w:hAnsi="Courier New" w:cs="Courier New"/>`)
		}
		if rs.bold {
			r.buf.WriteString("<w:b/>")
		}
		if rs.italic {
			r.buf.WriteString("<w:i/>")
		}
		if rs.strike {
			r.buf.WriteString("<w:strike/>")
		}
		r.buf.WriteString("</w:rPr>")
	}
	r.buf.WriteString(`<w:t xml:space="preserve">`)
	_ = xml.EscapeText(&r.buf, []byte(s))
	r.buf.WriteString("</w:t></w:r>")
}
