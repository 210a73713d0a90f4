package leads

import (
	"fmt"
	"net/http"
	"strings"
)

// Mux is the minimal interface required to register a net/http handler.
// It is satisfied by *http.ServeMux.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// MountPath returns the collection path of the component under basePath.
func MountPath(basePath string, fns ...OptionFn) string {
	opts := NewOptions(fns...)
	return mountPath(basePath, opts.RoutePath)
}

// RegisterRoutes registers the collection and item routes under basePath.
func RegisterRoutes(mux Mux, basePath string, repo Repository, fns ...OptionFn) (string, error) {
	return RegisterRoutesWithOptions(mux, basePath, repo, NewOptions(fns...))
}

// RegisterRoutesWithOptions is RegisterRoutes with a pre-built Options value.
func RegisterRoutesWithOptions(mux Mux, basePath string, repo Repository, opts Options) (string, error) {
	if mux == nil {
		return "", fmt.Errorf("leads: missing mux")
	}
	if repo == nil {
		return "", fmt.Errorf("leads: missing repository")
	}
	opts = NewOptions(func(o *Options) { *o = opts })
	pattern := mountPath(basePath, opts.RoutePath)
	handler := HandlerWithOptions(repo, opts)
	mux.Handle(pattern, handler)
	mux.Handle(pattern+"/", handler)
	return pattern, nil
}

func mountPath(basePath, routePath string) string {
	basePath = strings.TrimSpace(basePath)
	routePath = strings.TrimRight(strings.TrimSpace(routePath), "/")

	if routePath == "" {
		routePath = "/"
	}
	if !strings.HasPrefix(routePath, "/") {
		routePath = "/" + routePath
	}

	if basePath == "" || basePath == "/" {
		return routePath
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimRight(basePath, "/")
	return basePath + routePath
}
