package schema

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// SourceKind enumerates the loader modalities.
type SourceKind string

const (
	SourceKindFile SourceKind = "file"
	SourceKindFS   SourceKind = "fs"
	SourceKindURL  SourceKind = "url"
)

// Format is the encoding of a schema document.
type Format string

const (
	FormatYAML    Format = "yaml"
	FormatJSON    Format = "json"
	FormatUnknown Format = ""
)

// Source identifies where a schema document lives.
type Source struct {
	Kind     SourceKind
	Location string
}

// FileSource points at a path on disk.
func FileSource(p string) Source {
	return Source{Kind: SourceKindFile, Location: filepath.Clean(p)}
}

// FSSource points at a name inside the loader's fs.FS.
func FSSource(name string) Source {
	return Source{Kind: SourceKindFS, Location: path.Clean(name)}
}

// URLSource points at an http(s) URL.
func URLSource(raw string) (Source, error) {
	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return Source{}, fmt.Errorf("schema: invalid URL %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Source{}, fmt.Errorf("schema: unsupported URL scheme %q", parsed.Scheme)
	}
	return Source{Kind: SourceKindURL, Location: raw}, nil
}

// ParseSource maps a CLI-style reference to a Source: http(s) URLs become URL
// sources and everything else a file path.
func ParseSource(ref string) (Source, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return URLSource(ref)
	}
	if strings.TrimSpace(ref) == "" {
		return Source{}, fmt.Errorf("schema: empty source")
	}
	return FileSource(ref), nil
}

func (s Source) String() string {
	return string(s.Kind) + ":" + s.Location
}

// Format guesses the encoding from the location's extension.
func (s Source) Format() Format {
	loc := s.Location
	if s.Kind == SourceKindURL {
		if parsed, err := url.Parse(loc); err == nil {
			loc = parsed.Path
		}
	}
	switch strings.ToLower(path.Ext(loc)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatUnknown
	}
}
