package extraction

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPDFText pulls the plain text out of a PDF file. Scanned PDFs with
// no text layer come back empty; local extraction cannot handle those.
func ExtractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", inputErr("failed to open PDF", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	content, err := reader.GetPlainText()
	if err != nil {
		return "", inputErr("failed to extract PDF text", err)
	}
	if _, err := buf.ReadFrom(content); err != nil {
		return "", inputErr("failed to read PDF text", err)
	}

	text := buf.String()
	if strings.TrimSpace(text) == "" {
		return "", inputErr(fmt.Sprintf("no text layer in %s", path), nil)
	}
	return text, nil
}
