// Package docx extracts plain paragraph text from Word (OOXML) documents.
package docx

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrInvalidDocument indicates the input is not a readable Word document container.
var ErrInvalidDocument = errors.New("not a valid word document")

const documentPart = "word/document.xml"

// ExtractText opens the document at path and returns its body paragraphs joined by newlines.
func ExtractText(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat document: %w", err)
	}

	return ExtractTextFromReader(file, info.Size())
}

// ExtractTextFromReader reads a document container of the given size.
func ExtractTextFromReader(reader io.ReaderAt, size int64) (string, error) {
	archive, err := zip.NewReader(reader, size)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	var part *zip.File
	for _, f := range archive.File {
		if f.Name == documentPart {
			part = f
			break
		}
	}
	if part == nil {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidDocument, documentPart)
	}

	body, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	defer body.Close()

	paragraphs, err := readParagraphs(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	return strings.Join(paragraphs, "\n"), nil
}

// readParagraphs walks the document part and collects the text of paragraphs that sit
// directly under the body element. Paragraphs nested in tables, text boxes or other
// containers are skipped.
func readParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)

	var (
		stack      []string
		paragraphs []string
		current    strings.Builder
		collecting bool
		inText     bool
	)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch element := token.(type) {
		case xml.StartElement:
			name := element.Name.Local
			parent := ""
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			stack = append(stack, name)

			if name == "p" && parent == "body" {
				collecting = true
				current.Reset()
				continue
			}
			// Tab stops in paragraph properties also use w:tab; only run content counts.
			if !collecting || parent != "r" || nestedParagraph(stack) {
				continue
			}

			switch name {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			name := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			switch {
			case name == "t":
				inText = false
			case name == "p" && collecting && len(stack) > 0 && stack[len(stack)-1] == "body":
				paragraphs = append(paragraphs, current.String())
				collecting = false
			}
		case xml.CharData:
			if collecting && inText && !nestedParagraph(stack) {
				current.Write(element)
			}
		}
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("unexpected end of document")
	}

	return paragraphs, nil
}

// nestedParagraph reports whether the element stack is inside a second paragraph, as
// happens for text boxes embedded in a run.
func nestedParagraph(stack []string) bool {
	count := 0
	for _, name := range stack {
		if name == "p" {
			count++
		}
	}
	return count > 1
}
