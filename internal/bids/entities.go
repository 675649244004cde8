// Package bids provides the minimal slice of BIDS semantics the fit
// pipeline needs: filename entity parsing, common-entity extraction over
// file sets, and a queryable metadata layout backed by a dataset manifest.
// It is not a general BIDS parser; only the entities used for reference
// resolution are honored.
package bids

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Entities maps an entity key to its observed values. A key that collapsed
// to a single value holds a one-element slice; disagreeing inputs yield a
// sorted, deduplicated list.
type Entities map[string][]string

// datatypeDirs are the BIDS datatype folder names recognized when deriving
// the datatype entity from a file's parent directory.
var datatypeDirs = map[string]bool{
	"anat": true,
	"func": true,
	"fmap": true,
	"dwi":  true,
	"perf": true,
	"pet":  true,
	"meg":  true,
	"eeg":  true,
	"ieeg": true,
	"beh":  true,
	"micr": true,
}

// longNames maps filename entity prefixes to their long entity keys.
var longNames = map[string]string{
	"sub": "subject",
	"ses": "session",
	"acq": "acquisition",
	"ce":  "ceagent",
	"rec": "reconstruction",
	"dir": "direction",
	"mod": "modality",
}

// ParseEntities derives the entity key-value pairs encoded in a single
// file path: underscore-separated key-value tokens in the basename, the
// trailing suffix token, the (possibly compound) extension, and the
// datatype from the parent directory when it names a BIDS datatype folder.
// Short prefixes are reported under their long entity names (sub-01 yields
// subject=01).
func ParseEntities(path string) map[string]string {
	entities := make(map[string]string)

	base := filepath.Base(path)
	ext := ""
	if idx := strings.Index(base, "."); idx >= 0 {
		ext = base[idx:]
		base = base[:idx]
	}
	if ext != "" {
		entities["extension"] = ext
	}

	parts := strings.Split(base, "_")
	for i, part := range parts {
		key, value, found := strings.Cut(part, "-")
		if found && key != "" && value != "" {
			if long, ok := longNames[key]; ok {
				key = long
			}
			entities[key] = value
		} else if i == len(parts)-1 && part != "" {
			entities["suffix"] = part
		}
	}

	if dir := filepath.Base(filepath.Dir(path)); datatypeDirs[dir] {
		entities["datatype"] = dir
	}
	return entities
}

// ExtractEntities returns the entities common to a list of files. Values
// are collected per key across all inputs, then sorted and deduplicated;
// keys on which every file agrees collapse to a single value. Passing the
// same file twice yields the same result as passing it once.
func ExtractEntities(files ...string) Entities {
	collected := make(map[string][]string)
	for _, f := range files {
		for k, v := range ParseEntities(f) {
			collected[k] = append(collected[k], v)
		}
	}

	entities := make(Entities, len(collected))
	for k, vals := range collected {
		entities[k] = uniqueSorted(vals)
	}
	return entities
}

// uniqueSorted deduplicates and orders entity values. Values that are all
// numeric sort numerically so run-2 precedes run-10.
func uniqueSorted(vals []string) []string {
	seen := make(map[string]bool, len(vals))
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return entityLess(out[i], out[j])
	})
	return out
}

// entityLess compares two entity values, numerically when both parse as
// integers, lexically otherwise.
func entityLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
