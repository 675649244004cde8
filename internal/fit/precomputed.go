// Package fit builds the BOLD fitting workflow graph: it decides which of
// the four fitting stages must run given previously computed derivatives,
// and assembles the stage sub-workflows, pass-through buffers, and port
// bindings into a validated graph for an external execution engine.
package fit

import (
	"encoding/json"
	"fmt"
	"os"
)

// Transform-pair names recognized in the precomputed transforms mapping.
const (
	TransformBoldrefToAnat = "boldref2anat"
	TransformBoldrefToFmap = "boldref2fmap"
	TransformHMC           = "hmc"
)

// Precomputed records the derivatives that already exist for a BOLD series.
// A present key means the artifact is valid and its stage is skipped; the
// planner never recomputes or inspects the file. Supplied by the caller and
// read-only.
type Precomputed struct {
	// HMCBoldref is the motion-correction reference image.
	HMCBoldref string `json:"hmc_boldref,omitempty"`
	// HMCXforms is the per-frame head-motion transform list.
	HMCXforms string `json:"hmc_xforms,omitempty"`
	// CoregBoldref is the coregistration reference image.
	CoregBoldref string `json:"coreg_boldref,omitempty"`
	// Transforms maps transform-pair names (boldref2anat, boldref2fmap,
	// hmc) to materialized transform files.
	Transforms map[string]string `json:"transforms,omitempty"`
}

// Transform returns the precomputed transform for a pair name, if present.
func (p Precomputed) Transform(name string) (string, bool) {
	v, ok := p.Transforms[name]
	return v, ok
}

// HasTransform reports whether a transform-pair artifact exists.
func (p Precomputed) HasTransform(name string) bool {
	_, ok := p.Transforms[name]
	return ok
}

// LoadPrecomputed reads a precomputed-artifact record from a JSON file.
// An empty path yields an empty record.
func LoadPrecomputed(path string) (Precomputed, error) {
	var pre Precomputed
	if path == "" {
		return pre, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return pre, fmt.Errorf("reading precomputed record: %w", err)
	}
	if err := json.Unmarshal(data, &pre); err != nil {
		return pre, fmt.Errorf("parsing precomputed record %s: %w", path, err)
	}
	return pre, nil
}
