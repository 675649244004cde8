package fieldmap

import (
	"path/filepath"
	"regexp"

	"github.com/htwangtw/fmriprep/internal/bids"
)

// subjectPrefix matches the leading subject folder of a root-relative
// dataset path, which IntendedFor declarations omit.
var subjectPrefix = regexp.MustCompile(`^sub-[a-zA-Z0-9]*/`)

// GetEstimators returns the estimator identifiers associated with a scan
// file. The primary source is the file's B0FieldSource metadata (a single
// identifier or a list); when absent, the lookup falls back to the
// registry's IntendedFor index keyed by the file's root-relative path with
// the subject folder stripped. Zero results means no estimator is declared
// for the file.
func GetEstimators(l bids.Layout, r *Registry, file string) []string {
	if ids := fieldSource(l.Metadata(file)); ids != nil {
		return ids
	}
	return r.IdentifiersFor(intendedTarget(l.Root(), file))
}

// fieldSource normalizes the B0FieldSource metadata value, which may be a
// string or a list of strings. Returns nil when the field is absent or
// malformed, triggering the IntendedFor fallback.
func fieldSource(meta map[string]any) []string {
	v, ok := meta["B0FieldSource"]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return append([]string(nil), t...)
	case []any:
		ids := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				ids = append(ids, s)
			}
		}
		if len(ids) > 0 {
			return ids
		}
	}
	return nil
}

// intendedTarget derives the IntendedFor lookup key for a file: its path
// relative to the dataset root, subject folder removed, with forward
// slashes.
func intendedTarget(root, file string) string {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		rel = file
	}
	rel = filepath.ToSlash(rel)
	return subjectPrefix.ReplaceAllString(rel, "")
}
