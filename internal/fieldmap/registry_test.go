package fieldmap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/htwangtw/fmriprep/internal/bids"
)

func TestRegistry_RegisterAndActive(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("auto_00000", "func/sub-01_task-rest_bold.nii.gz")
	r.Register("auto_00001", "func/sub-01_task-rest_bold.nii.gz")

	assert.True(t, r.Active("auto_00000"))
	assert.True(t, r.Active("auto_00001"))
	assert.False(t, r.Active("auto_00002"))
	assert.Equal(t, []string{"auto_00000", "auto_00001"}, r.ActiveIDs())
	assert.Equal(t,
		[]string{"auto_00000", "auto_00001"},
		r.IdentifiersFor("func/sub-01_task-rest_bold.nii.gz"))
}

func TestRegistry_Deactivate(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("auto_00000", "func/a_bold.nii.gz")
	r.Register("auto_00001", "func/b_bold.nii.gz")

	r.Deactivate("auto_00000")
	assert.False(t, r.Active("auto_00000"))
	assert.Equal(t, []string{"auto_00001"}, r.ActiveIDs())
	// IntendedFor declarations survive pruning.
	assert.Equal(t, []string{"auto_00000"}, r.IdentifiersFor("func/a_bold.nii.gz"))

	r.DeactivateAll()
	assert.Empty(t, r.ActiveIDs())
}

func TestNewRegistryFromSpecs(t *testing.T) {
	t.Parallel()

	r := NewRegistryFromSpecs([]bids.FieldmapSpec{
		{ID: "phasediff", IntendedFor: []string{"func/a_bold.nii.gz", "func/b_bold.nii.gz"}},
		{ID: "pepolar"},
	})

	assert.Equal(t, []string{"phasediff", "pepolar"}, r.ActiveIDs())
	assert.Equal(t, []string{"phasediff"}, r.IdentifiersFor("func/b_bold.nii.gz"))
	assert.Empty(t, r.IdentifiersFor("func/c_bold.nii.gz"))
}
