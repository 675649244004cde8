// Package testutil provides dataset fixtures shared by boldfit tests.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/htwangtw/fmriprep/internal/bids"
)

// File builds a manifest entry with an EchoTime sidecar value.
func File(path string, echoTime float64) bids.ManifestFile {
	return bids.ManifestFile{
		Path:     path,
		Metadata: map[string]any{"EchoTime": echoTime},
	}
}

// FileMeta builds a manifest entry with arbitrary sidecar metadata.
func FileMeta(path string, meta map[string]any) bids.ManifestFile {
	return bids.ManifestFile{Path: path, Metadata: meta}
}

// SingleEchoDataset returns a layout for one subject with a task-nback
// BOLD run and a matching single-band reference.
func SingleEchoDataset(t *testing.T) *bids.IndexedLayout {
	t.Helper()
	return bids.NewIndexedLayout("/data/bids", []bids.ManifestFile{
		File("sub-01/func/sub-01_task-nback_bold.nii.gz", 0.03),
		File("sub-01/func/sub-01_task-nback_sbref.nii.gz", 0.03),
	})
}

// MultiEchoDataset returns a layout with three echoes of one BOLD run and
// three matching sbref files, deliberately listed out of echo order.
func MultiEchoDataset(t *testing.T) *bids.IndexedLayout {
	t.Helper()
	return bids.NewIndexedLayout("/data/bids", []bids.ManifestFile{
		File("sub-01/func/sub-01_task-rest_echo-3_bold.nii.gz", 0.05),
		File("sub-01/func/sub-01_task-rest_echo-1_bold.nii.gz", 0.01),
		File("sub-01/func/sub-01_task-rest_echo-2_bold.nii.gz", 0.03),
		File("sub-01/func/sub-01_task-rest_echo-3_sbref.nii.gz", 0.05),
		File("sub-01/func/sub-01_task-rest_echo-1_sbref.nii.gz", 0.01),
		File("sub-01/func/sub-01_task-rest_echo-2_sbref.nii.gz", 0.03),
	})
}

// WriteManifest serializes a manifest to a temp file and returns its path.
func WriteManifest(t *testing.T, m *bids.Manifest) string {
	t.Helper()
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshalling manifest: %v", err)
	}
	path := filepath.Join(t.TempDir(), "dataset.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	return path
}
