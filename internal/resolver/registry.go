package resolver

import (
	"github.com/clipfetch/clipfetch/internal/domain"
)

// Registry maps a source to its resolver. Dispatch goes through the
// domain.Resolver interface; adding a platform means registering one entry.
type Registry struct {
	resolvers map[domain.Source]domain.Resolver
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		resolvers: make(map[domain.Source]domain.Resolver),
	}
}

// Register binds a resolver to a source
func (r *Registry) Register(source domain.Source, resolver domain.Resolver) {
	r.resolvers[source] = resolver
}

// For returns the resolver for a source
func (r *Registry) For(source domain.Source) (domain.Resolver, error) {
	resolver, ok := r.resolvers[source]
	if !ok {
		return nil, domain.ErrUnsupportedSource
	}
	return resolver, nil
}
