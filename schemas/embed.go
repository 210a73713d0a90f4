// Package schemas embeds the built-in form catalog.
package schemas

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/schema"
)

//go:embed *.yaml
var files embed.FS

// FS exposes the embedded schema documents.
func FS() fs.FS {
	return files
}

// Names lists the built-in form ids.
func Names() []string {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if name, ok := strings.CutSuffix(entry.Name(), ".yaml"); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Has reports whether name is a built-in form.
func Has(name string) bool {
	return slices.Contains(Names(), name)
}

// Load decodes a built-in form by id.
func Load(name string) (model.FormSchema, error) {
	data, err := fs.ReadFile(files, path.Clean(name)+".yaml")
	if err != nil {
		return model.FormSchema{}, fmt.Errorf("schemas: unknown form %q (have %s)", name, strings.Join(Names(), ", "))
	}
	return schema.Decode(data, schema.FormatYAML)
}
