package resolver

import (
	"github.com/tsawler/pdfprobe/core"
)

// Source looks up the object an indirect reference points at. An
// unknown reference resolves to core.Null, not an error.
type Source interface {
	Resolve(ref core.IndirectRef) (core.Object, error)
}

// defaultMaxDepth bounds deep resolution. Well-formed documents nest
// nowhere near this; hostile ones are cut off.
const defaultMaxDepth = 100

// Resolver resolves references against a Source.
type Resolver struct {
	source   Source
	maxDepth int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxDepth overrides the depth bound for ResolveDeep.
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// New creates a Resolver over source.
func New(source Source, opts ...Option) *Resolver {
	r := &Resolver{source: source, maxDepth: defaultMaxDepth}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve follows a chain of indirect references until it reaches a
// direct object. A reference loop resolves to null.
func (r *Resolver) Resolve(obj core.Object) (core.Object, error) {
	visited := make(map[core.IndirectRef]bool)
	for {
		ref, ok := obj.(core.IndirectRef)
		if !ok {
			return obj, nil
		}
		if visited[ref] {
			return core.Null{}, nil
		}
		visited[ref] = true

		next, err := r.source.Resolve(ref)
		if err != nil {
			return nil, err
		}
		obj = next
	}
}

// ResolveDeep resolves obj and then every reference reachable inside
// it, returning a fully direct copy. Containers are copied; scalars
// and streams are shared. Reference loops and graphs deeper than the
// configured bound resolve to null at the point of the cycle or
// cutoff.
func (r *Resolver) ResolveDeep(obj core.Object) (core.Object, error) {
	return r.resolveDeep(obj, make(map[core.IndirectRef]bool), 0)
}

func (r *Resolver) resolveDeep(obj core.Object, visited map[core.IndirectRef]bool, depth int) (core.Object, error) {
	if depth > r.maxDepth {
		return core.Null{}, nil
	}

	if ref, ok := obj.(core.IndirectRef); ok {
		if visited[ref] {
			return core.Null{}, nil
		}
		visited[ref] = true
		next, err := r.source.Resolve(ref)
		if err != nil {
			return nil, err
		}
		resolved, err := r.resolveDeep(next, visited, depth+1)
		delete(visited, ref)
		return resolved, err
	}

	switch v := obj.(type) {
	case core.Array:
		out := make(core.Array, len(v))
		for i, elem := range v {
			resolved, err := r.resolveDeep(elem, visited, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case core.Dict:
		out := make(core.Dict, len(v))
		for key, value := range v {
			resolved, err := r.resolveDeep(value, visited, depth+1)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	}
	return obj, nil
}
