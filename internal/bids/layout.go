package bids

import (
	"encoding/json"
	"fmt"
	"os"
)

// Filters narrow a layout query. Each key must match one of its listed
// values; files missing a filtered entity are excluded.
type Filters map[string][]string

// Layout is the queryable metadata index the pipeline consumes. The real
// dataset indexer lives outside this module; IndexedLayout provides a
// manifest-backed implementation for the CLI and tests.
type Layout interface {
	// Root returns the dataset root directory.
	Root() string
	// Query returns the files matching all filters, in index order.
	Query(filters Filters) []string
	// Metadata returns the sidecar metadata for a file. Unknown files
	// yield an empty map.
	Metadata(file string) map[string]any
}

// ManifestFile describes one dataset file: its root-relative path and the
// sidecar metadata attached to it.
type ManifestFile struct {
	Path     string         `json:"path"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// FieldmapSpec declares a fieldmap estimator and the files it is intended
// to correct, by root-relative path with the subject folder stripped.
type FieldmapSpec struct {
	ID          string   `json:"id"`
	IntendedFor []string `json:"intended_for,omitempty"`
}

// Manifest is the JSON description of a dataset consumed by the CLI: the
// dataset root, its files with metadata, and any declared fieldmap
// estimators.
type Manifest struct {
	Root      string         `json:"root"`
	Files     []ManifestFile `json:"files"`
	Fieldmaps []FieldmapSpec `json:"fieldmaps,omitempty"`
}

// LoadManifest reads and parses a dataset manifest from disk.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if m.Root == "" {
		return nil, fmt.Errorf("parsing manifest %s: missing dataset root", path)
	}
	return &m, nil
}

// IndexedLayout is an in-memory Layout built from a Manifest. File order is
// preserved from the manifest, which makes it the stable tie-break order for
// query results.
type IndexedLayout struct {
	root     string
	files    []string
	meta     map[string]map[string]any
	entities map[string]map[string]string
}

// NewIndexedLayout indexes the given files under root, parsing each file's
// entities once up front.
func NewIndexedLayout(root string, files []ManifestFile) *IndexedLayout {
	l := &IndexedLayout{
		root:     root,
		meta:     make(map[string]map[string]any, len(files)),
		entities: make(map[string]map[string]string, len(files)),
	}
	for _, f := range files {
		l.files = append(l.files, f.Path)
		if f.Metadata != nil {
			l.meta[f.Path] = f.Metadata
		}
		l.entities[f.Path] = ParseEntities(f.Path)
	}
	return l
}

// NewLayoutFromManifest builds an IndexedLayout from a parsed manifest.
func NewLayoutFromManifest(m *Manifest) *IndexedLayout {
	return NewIndexedLayout(m.Root, m.Files)
}

// Root returns the dataset root directory.
func (l *IndexedLayout) Root() string {
	return l.root
}

// Query returns all indexed files whose entities satisfy every filter,
// preserving index order.
func (l *IndexedLayout) Query(filters Filters) []string {
	var matches []string
	for _, f := range l.files {
		if l.matches(f, filters) {
			matches = append(matches, f)
		}
	}
	return matches
}

func (l *IndexedLayout) matches(file string, filters Filters) bool {
	ents := l.entities[file]
	for key, allowed := range filters {
		if len(allowed) == 0 {
			continue
		}
		value, ok := ents[key]
		if !ok {
			return false
		}
		found := false
		for _, a := range allowed {
			if a == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Metadata returns the sidecar metadata for a file, or an empty map.
func (l *IndexedLayout) Metadata(file string) map[string]any {
	if m, ok := l.meta[file]; ok {
		return m
	}
	return map[string]any{}
}

// EchoTime extracts the EchoTime metadata value for a file, reporting
// whether it was present and numeric.
func EchoTime(l Layout, file string) (float64, bool) {
	v, ok := l.Metadata(file)["EchoTime"]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
