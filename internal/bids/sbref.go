package bids

import (
	"sort"
)

// sbref files may come uncompressed or gzipped.
var niftiExtensions = []string{".nii", ".nii.gz"}

// SortByEchoTime orders files ascending by their EchoTime metadata. The
// sort is stable: files with equal or missing echo times keep their
// original order, and missing echo times sort after known ones.
func SortByEchoTime(l Layout, files []string) []string {
	sorted := append([]string(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, iok := EchoTime(l, sorted[i])
		tj, jok := EchoTime(l, sorted[j])
		if iok && jok {
			return ti < tj
		}
		// Known echo times precede unknown ones.
		return iok && !jok
	})
	return sorted
}

// FindSBRefs locates the single-band reference files associated with a set
// of BOLD files: the files sharing the BOLD series' common entities (less
// echo) with suffix sbref, ordered ascending by EchoTime. An empty result
// means no reference is available and is not an error; the caller falls
// back to the derived motion-correction reference.
//
// overrides replaces query filters per key, mirroring caller-supplied
// bids_filters for the sbref query.
func FindSBRefs(l Layout, boldFiles []string, overrides Filters) []string {
	entities := ExtractEntities(boldFiles...)
	delete(entities, "echo")

	filters := make(Filters, len(entities)+2)
	for key, vals := range entities {
		filters[key] = vals
	}
	filters["suffix"] = []string{"sbref"}
	filters["extension"] = niftiExtensions
	for key, vals := range overrides {
		filters[key] = vals
	}

	return SortByEchoTime(l, l.Query(filters))
}
