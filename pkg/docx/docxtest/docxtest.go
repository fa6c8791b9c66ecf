// Package docxtest builds minimal Word documents for tests.
package docxtest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"strings"
)

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const rels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const documentHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

const documentFooter = `<w:sectPr/></w:body></w:document>`

// Build returns a .docx payload with one paragraph per argument.
func Build(paragraphs ...string) []byte {
	var body strings.Builder
	for _, paragraph := range paragraphs {
		body.WriteString(Paragraph(paragraph))
	}
	return BuildRaw(body.String())
}

// Paragraph renders a single-run paragraph element.
func Paragraph(text string) string {
	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(text))
	return `<w:p><w:r><w:t xml:space="preserve">` + escaped.String() + `</w:t></w:r></w:p>`
}

// BuildRaw wraps arbitrary body XML into a .docx payload.
func BuildRaw(bodyXML string) []byte {
	buf := &bytes.Buffer{}
	archive := zip.NewWriter(buf)
	write := func(name, content string) {
		w, err := archive.Create(name)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			panic(err)
		}
	}
	write("[Content_Types].xml", contentTypes)
	write("_rels/.rels", rels)
	write("word/document.xml", documentHeader+bodyXML+documentFooter)
	if err := archive.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
