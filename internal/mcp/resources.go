// ABOUTME: Thread-safe registry mapping resource URIs to their definitions and handlers.
// ABOUTME: Keyed by URI, independent of the tool namespace.

package mcp

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrResourceNotFound indicates no resource is registered under the requested URI.
var ErrResourceNotFound = errors.New("resource not found")

// ResourceHandler produces the text of a resource.
type ResourceHandler func(ctx context.Context) (string, error)

// ResourceRegistrar is implemented by anything resources can be registered into.
type ResourceRegistrar interface {
	RegisterResource(name, uri, description, mimeType string, handler ResourceHandler)
}

// ResourceDefinition is a registered resource. Immutable once stored.
type ResourceDefinition struct {
	URI         string
	Name        string
	Description string
	MimeType    string
	Handler     ResourceHandler
}

// ResourceRegistry maintains the registered resources.
type ResourceRegistry struct {
	mu        sync.RWMutex
	resources map[string]*ResourceDefinition
}

// NewResourceRegistry creates an empty ResourceRegistry.
func NewResourceRegistry() *ResourceRegistry {
	return &ResourceRegistry{
		resources: make(map[string]*ResourceDefinition),
	}
}

// RegisterResource stores a resource, replacing any resource with the same URI.
func (r *ResourceRegistry) RegisterResource(name, uri, description, mimeType string, handler ResourceHandler) {
	r.mu.Lock()
	r.resources[uri] = &ResourceDefinition{
		URI:         uri,
		Name:        name,
		Description: description,
		MimeType:    mimeType,
		Handler:     handler,
	}
	r.mu.Unlock()
}

// Lookup returns the resource registered under uri.
func (r *ResourceRegistry) Lookup(uri string) (*ResourceDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resources[uri]
	return res, ok
}

// Read invokes the resource handler and wraps its text with the URI and MIME type.
// Returns ErrResourceNotFound if the URI is absent.
func (r *ResourceRegistry) Read(ctx context.Context, uri string) (ResourceContents, error) {
	res, ok := r.Lookup(uri)
	if !ok {
		return ResourceContents{}, ErrResourceNotFound
	}
	return res.read(ctx)
}

func (res *ResourceDefinition) read(ctx context.Context) (ResourceContents, error) {
	text, err := res.Handler(ctx)
	if err != nil {
		return ResourceContents{}, err
	}
	return ResourceContents{
		URI:      res.URI,
		MimeType: res.MimeType,
		Text:     text,
	}, nil
}

// List returns every registered resource sorted by URI.
func (r *ResourceRegistry) List() []ResourceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ResourceInfo, 0, len(r.resources))
	for _, res := range r.resources {
		infos = append(infos, ResourceInfo{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			MimeType:    res.MimeType,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].URI < infos[j].URI })
	return infos
}

// Len returns the number of registered resources.
func (r *ResourceRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.resources)
}
