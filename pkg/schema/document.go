package schema

import (
	"bytes"
	"errors"
	"mime"
)

// Document is a raw schema payload together with its origin.
type Document struct {
	source Source
	format Format
	raw    []byte
}

// NewDocument wraps raw. An unknown format is sniffed from the payload.
func NewDocument(src Source, format Format, raw []byte) (Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Document{}, errors.New("schema: document is empty")
	}
	if format == FormatUnknown {
		format = sniffFormat(raw)
	}
	return Document{source: src, format: format, raw: append([]byte(nil), raw...)}, nil
}

// Source returns the document origin.
func (d Document) Source() Source {
	return d.source
}

// Format returns the document encoding.
func (d Document) Format() Format {
	return d.format
}

// Raw returns a copy of the payload.
func (d Document) Raw() []byte {
	return append([]byte(nil), d.raw...)
}

// IsOpenAPI reports whether the payload looks like an OpenAPI 3 document.
func (d Document) IsOpenAPI() bool {
	head := d.raw
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(head, []byte(`"openapi"`)) || bytes.Contains(head, []byte("openapi:"))
}

func sniffFormat(raw []byte) Format {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatYAML
}

func formatFromContentType(contentType string) Format {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return FormatUnknown
	}
	switch mediaType {
	case "application/json":
		return FormatJSON
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return FormatYAML
	default:
		return FormatUnknown
	}
}
