// Package fieldmap tracks susceptibility-fieldmap estimators and the
// policy for matching them to functional scans. The estimation workflows
// themselves are external; this package only answers "which estimator, if
// any, applies to this file".
package fieldmap

import (
	"github.com/htwangtw/fmriprep/internal/bids"
)

// Registry holds the declared fieldmap estimators: an IntendedFor index
// from target path to estimator identifiers and the set of estimators
// still active after any pruning (e.g. an ignore-fieldmaps directive).
// Identifier order follows declaration order, which makes multi-candidate
// selection deterministic.
type Registry struct {
	intended map[string][]string
	active   map[string]bool
	order    []string
}

// NewRegistry creates an empty estimator registry.
func NewRegistry() *Registry {
	return &Registry{
		intended: make(map[string][]string),
		active:   make(map[string]bool),
	}
}

// NewRegistryFromSpecs builds a registry from manifest fieldmap
// declarations, preserving declaration order.
func NewRegistryFromSpecs(specs []bids.FieldmapSpec) *Registry {
	r := NewRegistry()
	for _, s := range specs {
		r.Register(s.ID, s.IntendedFor...)
	}
	return r
}

// Register adds an estimator with the root-relative target paths it is
// intended to correct. Registering an existing identifier extends its
// target list.
func (r *Registry) Register(id string, intendedFor ...string) {
	if !r.active[id] {
		r.active[id] = true
		r.order = append(r.order, id)
	}
	for _, target := range intendedFor {
		r.intended[target] = append(r.intended[target], id)
	}
}

// Deactivate removes estimators from the active set. Their IntendedFor
// declarations remain indexed, so lookups can still name them, but the
// decision engine will not use them.
func (r *Registry) Deactivate(ids ...string) {
	for _, id := range ids {
		delete(r.active, id)
	}
}

// DeactivateAll empties the active set, modelling an ignore-fieldmaps
// directive.
func (r *Registry) DeactivateAll() {
	r.active = make(map[string]bool)
}

// Active reports whether an estimator identifier survives pruning.
func (r *Registry) Active(id string) bool {
	return r.active[id]
}

// ActiveIDs returns the active estimator identifiers in declaration order.
func (r *Registry) ActiveIDs() []string {
	ids := make([]string, 0, len(r.active))
	for _, id := range r.order {
		if r.active[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// IdentifiersFor returns the estimators declaring the given root-relative
// path (subject prefix stripped) as a correction target, in declaration
// order.
func (r *Registry) IdentifiersFor(target string) []string {
	return append([]string(nil), r.intended[target]...)
}
