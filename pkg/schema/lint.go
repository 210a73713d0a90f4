package schema

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formflow/pkg/condition"
)

const extensionPrefix = "x-formflow-"

// Violation is a misuse of an x-formflow extension found by LintOpenAPI.
type Violation struct {
	Location string
	Message  string
}

func (v Violation) String() string {
	return v.Location + " -> " + v.Message
}

type extensionScope int

const (
	scopeDocument extensionScope = iota
	scopeOperation
	scopeProperty
	scopeSchema
)

var allowedExtensions = map[extensionScope][]string{
	scopeDocument:  {ExtensionSteps},
	scopeOperation: {ExtensionSteps, ExtensionSync},
	scopeProperty:  {ExtensionStep, ExtensionVisibleWhen},
}

// LintOpenAPI reports unknown, misplaced or malformed x-formflow extensions.
// Documents only need to parse; they are not validated as OpenAPI so partial
// documents can be linted.
func LintOpenAPI(ctx context.Context, data []byte) ([]Violation, error) {
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("schema: load openapi: %w", err)
	}

	var result []Violation
	result = append(result, lintExtensions([]string{"$"}, scopeDocument, doc.Extensions)...)

	if doc.Paths != nil {
		for _, path := range doc.Paths.InMatchingOrder() {
			item := doc.Paths.Value(path)
			if item == nil {
				continue
			}
			operations := item.Operations()
			methods := make([]string, 0, len(operations))
			for method := range operations {
				methods = append(methods, method)
			}
			sort.Strings(methods)
			for _, method := range methods {
				op := operations[method]
				base := []string{"paths", path, strings.ToLower(method)}
				result = append(result, lintExtensions(base, scopeOperation, op.Extensions)...)
				if body := requestSchema(op); body != nil {
					result = append(result, lintSchema(appendPath(base, "requestBody"), scopeSchema, body)...)
				}
			}
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Location == result[j].Location {
			return result[i].Message < result[j].Message
		}
		return result[i].Location < result[j].Location
	})
	return result, nil
}

func lintSchema(path []string, scope extensionScope, s *openapi3.Schema) []Violation {
	if s == nil {
		return nil
	}
	result := lintExtensions(path, scope, s.Extensions)

	keys := make([]string, 0, len(s.Properties))
	for key := range s.Properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if ref := s.Properties[key]; ref != nil {
			result = append(result, lintSchema(appendPath(path, "properties", key), scopeProperty, ref.Value)...)
		}
	}
	if s.Items != nil {
		result = append(result, lintSchema(appendPath(path, "items"), scopeSchema, s.Items.Value)...)
	}
	return result
}

func lintExtensions(path []string, scope extensionScope, extensions map[string]any) []Violation {
	keys := make([]string, 0, len(extensions))
	for key := range extensions {
		if strings.HasPrefix(key, extensionPrefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	location := strings.Join(path, ".")
	var result []Violation
	for _, key := range keys {
		if !isKnownExtension(key) {
			result = append(result, Violation{Location: location, Message: fmt.Sprintf("unknown extension %s", key)})
			continue
		}
		if !slices.Contains(allowedExtensions[scope], key) {
			result = append(result, Violation{Location: location, Message: fmt.Sprintf("%s is not allowed here", key)})
			continue
		}
		if msg := checkExtensionValue(key, extensions[key]); msg != "" {
			result = append(result, Violation{Location: location, Message: msg})
		}
	}
	return result
}

func isKnownExtension(key string) bool {
	switch key {
	case ExtensionSteps, ExtensionStep, ExtensionVisibleWhen, ExtensionSync:
		return true
	}
	return false
}

func checkExtensionValue(key string, value any) string {
	switch key {
	case ExtensionStep:
		if s, ok := value.(string); !ok || strings.TrimSpace(s) == "" {
			return fmt.Sprintf("%s must be a non-empty string, found %T", key, value)
		}
	case ExtensionVisibleWhen:
		s, ok := value.(string)
		if !ok {
			return fmt.Sprintf("%s must be a string, found %T", key, value)
		}
		if _, err := condition.Compile(s); err != nil {
			return fmt.Sprintf("%s: %v", key, err)
		}
	case ExtensionSteps:
		items, ok := value.([]any)
		if !ok {
			return fmt.Sprintf("%s must be an array, found %T", key, value)
		}
		for i, item := range items {
			entry, ok := item.(map[string]any)
			if !ok || stringValue(entry["id"]) == "" {
				return fmt.Sprintf("%s[%d] needs an id", key, i)
			}
		}
	case ExtensionSync:
		entry, ok := value.(map[string]any)
		if !ok {
			return fmt.Sprintf("%s must be an object, found %T", key, value)
		}
		for name := range entry {
			if name != "required" && name != "anyOf" {
				return fmt.Sprintf("%s has unknown key %q", key, name)
			}
		}
	}
	return ""
}

func appendPath(path []string, parts ...string) []string {
	out := make([]string, 0, len(path)+len(parts))
	out = append(out, path...)
	return append(out, parts...)
}
