package document

import (
	"errors"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// Supported MIME types.
const (
	MIMEPDF      = "application/pdf"
	MIMEDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEEPUB     = "application/epub+zip"
	MIMEText     = "text/plain"
	MIMEMarkdown = "text/markdown"
)

// Errors returned by Load.
var (
	ErrEmpty           = errors.New("document is empty")
	ErrUnsupportedType = errors.New("unsupported document type")
	ErrNoText          = errors.New("document contains no extractable text")
)

type extractor func(data []byte) (string, error)

var extractors = map[string]extractor{
	MIMEPDF:           extractPDF,
	MIMEDOCX:          extractDOCX,
	MIMEEPUB:          extractEPUB,
	MIMEText:          extractPlain,
	MIMEMarkdown:      extractPlain,
	"text/x-markdown": extractPlain,
}

// Supported reports whether Load can extract text from mimeType.
func Supported(mimeType string) bool {
	_, ok := extractors[normalize(mimeType)]
	return ok
}

// DetectType returns the effective MIME type of data. A declared type is
// trusted unless it is empty or a generic container type.
func DetectType(data []byte, declared string) string {
	switch t := normalize(declared); t {
	case "", "application/octet-stream", "application/zip", "binary/octet-stream":
		return normalize(mimetype.Detect(data).String())
	default:
		return t
	}
}

// Load extracts text from data. An empty or generic mimeType is detected
// from the content.
func Load(data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}

	t := DetectType(data, mimeType)
	fn, ok := extractors[t]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}

	text, err := fn(data)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", t, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w (%s)", ErrNoText, t)
	}
	return text, nil
}

func normalize(t string) string {
	t = strings.TrimSpace(strings.ToLower(t))
	if t == "" {
		return ""
	}
	if base, _, err := mime.ParseMediaType(t); err == nil {
		return base
	}
	return t
}

func extractPlain(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return strings.ToValidUTF8(string(data), "�"), nil
	}
	return string(data), nil
}
