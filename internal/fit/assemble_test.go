package fit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htwangtw/fmriprep/internal/bids"
	"github.com/htwangtw/fmriprep/internal/fieldmap"
	"github.com/htwangtw/fmriprep/internal/logging"
	"github.com/htwangtw/fmriprep/internal/testutil"
	"github.com/htwangtw/fmriprep/internal/wf"
)

func assembleFor(t *testing.T, pre Precomputed, hasFieldmap bool, reg *fieldmap.Registry) (*wf.Graph, *StagePlan) {
	t.Helper()

	p := newTestPlanner(t, testutil.SingleEchoDataset(t), reg)
	plan, err := p.Plan(
		[]string{"sub-01/func/sub-01_task-nback_bold.nii.gz"}, pre, hasFieldmap)
	require.NoError(t, err)

	graph, err := NewAssembler(testConfig(), logging.Nop()).Assemble(plan)
	require.NoError(t, err)
	return graph, plan
}

func nodeNames(g *wf.Graph) []string {
	var names []string
	for _, n := range g.Nodes() {
		names = append(names, n.Name)
	}
	return names
}

func computeStages(g *wf.Graph) []string {
	var names []string
	for _, n := range g.Nodes() {
		if n.Kind == wf.KindStage && n.Name != "validate_bold" {
			names = append(names, n.Name)
		}
	}
	return names
}

func TestAssemble_AllPrecomputed(t *testing.T) {
	t.Parallel()

	pre := Precomputed{
		HMCBoldref:   "derived/hmc_boldref.nii.gz",
		HMCXforms:    "derived/hmc_xforms.txt",
		CoregBoldref: "derived/coreg_boldref.nii.gz",
		Transforms:   map[string]string{TransformBoldrefToAnat: "derived/boldref2anat.txt"},
	}
	graph, plan := assembleFor(t, pre, false, nil)

	assert.Equal(t, 0, plan.ComputeCount())
	// No compute sub-workflows; only pass-through buffers plus the
	// lightweight input validation that replaces stage 1.
	assert.Empty(t, computeStages(graph))
	assert.ElementsMatch(t, []string{
		"inputnode", "hmcref_buffer", "hmc_buffer", "fmapreg_buffer",
		"regref_buffer", "validate_bold",
	}, nodeNames(graph))

	// Every buffer value comes straight from a precomputed artifact.
	assert.Equal(t, "derived/hmc_boldref.nii.gz", graph.Node("hmcref_buffer").Literals["boldref"])
	assert.Equal(t, "derived/hmc_xforms.txt", graph.Node("hmc_buffer").Literals["hmc_xforms"])
	assert.Equal(t, "derived/coreg_boldref.nii.gz", graph.Node("regref_buffer").Literals["boldref"])
}

func TestAssemble_NothingPrecomputed(t *testing.T) {
	t.Parallel()

	graph, plan := assembleFor(t, Precomputed{}, false, nil)

	assert.Equal(t, 4, plan.ComputeCount())
	assert.ElementsMatch(t, []string{
		"hmc_boldref_wf", "bold_hmc_wf", "fmapref_buffer",
		"enhance_boldref_wf", "bold_reg_wf",
	}, computeStages(graph))

	// Dependency chain 1 -> 2 -> 3 -> 4 through the buffers.
	wantEdges := []wf.Edge{
		{From: "hmc_boldref_wf", FromPort: "bold_file", To: "hmcref_buffer", ToPort: "bold_file"},
		{From: "hmc_boldref_wf", FromPort: "boldref", To: "hmcref_buffer", ToPort: "boldref"},
		{From: "hmcref_buffer", FromPort: "boldref", To: "bold_hmc_wf", ToPort: "raw_ref_image"},
		{From: "hmcref_buffer", FromPort: "bold_file", To: "bold_hmc_wf", ToPort: "bold_file"},
		{From: "bold_hmc_wf", FromPort: "xforms", To: "hmc_buffer", ToPort: "hmc_xforms"},
		{From: "hmcref_buffer", FromPort: "boldref", To: "fmapref_buffer", ToPort: "boldref"},
		{From: "fmapref_buffer", FromPort: "out", To: "enhance_boldref_wf", ToPort: "boldref"},
		{From: "enhance_boldref_wf", FromPort: "boldref", To: "regref_buffer", ToPort: "boldref"},
		{From: "enhance_boldref_wf", FromPort: "bold_mask", To: "regref_buffer", ToPort: "boldmask"},
		{From: "regref_buffer", FromPort: "boldref", To: "bold_reg_wf", ToPort: "ref_bold_brain"},
	}
	for _, want := range wantEdges {
		assert.Contains(t, graph.Edges(), want)
	}

	// The single-band reference feeds the reference selector.
	assert.Equal(t,
		"sub-01/func/sub-01_task-nback_sbref.nii.gz",
		graph.Node("fmapref_buffer").Literals["sbref_file"])
}

func TestAssemble_FieldmapWiring(t *testing.T) {
	t.Parallel()

	reg := fieldmap.NewRegistry()
	reg.Register("auto_00000", "func/sub-01_task-nback_bold.nii.gz")
	reg.Register("auto_00001", "func/sub-01_task-nback_bold.nii.gz")

	graph, plan := assembleFor(t, Precomputed{}, true, reg)

	require.True(t, plan.Fieldmap.Enabled)
	assert.NotNil(t, graph.Node("output_select"))
	assert.NotNil(t, graph.Node("coeff2epi_wf"))
	assert.NotNil(t, graph.Node("unwarp_wf"))

	// The selected estimator keys the fieldmap outputs.
	assert.Equal(t, "auto_00000", graph.Node("output_select").Literals["key"])

	// Corrected reference and mask reach the coregistration buffer.
	assert.Contains(t, graph.Edges(),
		wf.Edge{From: "unwarp_wf", FromPort: "corrected_ref", To: "regref_buffer", ToPort: "boldref"})
	assert.Contains(t, graph.Edges(),
		wf.Edge{From: "unwarp_wf", FromPort: "corrected_mask", To: "regref_buffer", ToPort: "boldmask"})

	// The fieldmap registration transform lands in its own buffer, not
	// the motion-correction one.
	assert.Contains(t, graph.Edges(),
		wf.Edge{From: "coeff2epi_wf", FromPort: "target2fmap_xfm", To: "fmapreg_buffer", ToPort: "boldref2fmap_xfm"})
}

func TestAssemble_FieldmapDemotedMatchesNoFieldmap(t *testing.T) {
	t.Parallel()

	reg := fieldmap.NewRegistry()
	reg.Register("auto_00000", "func/sub-01_task-nback_bold.nii.gz")
	reg.DeactivateAll()

	demoted, _ := assembleFor(t, Precomputed{}, true, reg)
	plain, _ := assembleFor(t, Precomputed{}, false, nil)

	assert.Equal(t, plain.RenderASCII(), demoted.RenderASCII())
}

func TestAssemble_Deterministic(t *testing.T) {
	t.Parallel()

	pre := Precomputed{HMCXforms: "derived/hmc_xforms.txt"}
	first, _ := assembleFor(t, pre, false, nil)
	second, _ := assembleFor(t, pre, false, nil)

	assert.Equal(t, first.RenderASCII(), second.RenderASCII())
	assert.Equal(t, first.RenderDOT(), second.RenderDOT())
}

func TestAssemble_SkippedStageKeepsPortContract(t *testing.T) {
	t.Parallel()

	// Stage 2 skipped: downstream stage 3 still binds hmcref_buffer the
	// same way, and the hmc transform comes from the artifact.
	pre := Precomputed{HMCXforms: "derived/hmc_xforms.txt"}
	graph, _ := assembleFor(t, pre, false, nil)

	assert.Nil(t, graph.Node("bold_hmc_wf"))
	assert.Equal(t, "derived/hmc_xforms.txt", graph.Node("hmc_buffer").Literals["hmc_xforms"])
	assert.Contains(t, graph.Edges(),
		wf.Edge{From: "hmcref_buffer", FromPort: "boldref", To: "fmapref_buffer", ToPort: "boldref"})
}

func TestAssemble_DerivativeSinks(t *testing.T) {
	t.Parallel()

	p := newTestPlanner(t, testutil.SingleEchoDataset(t), nil)
	plan, err := p.Plan(
		[]string{"sub-01/func/sub-01_task-nback_bold.nii.gz"}, Precomputed{}, false)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.OutputDir = "/derivatives"
	graph, err := NewAssembler(cfg, logging.Nop()).Assemble(plan)
	require.NoError(t, err)

	// Derivative sinks sit between the compute stages and their buffers.
	assert.Contains(t, graph.Edges(),
		wf.Edge{From: "hmc_boldref_wf", FromPort: "boldref", To: "ds_hmc_boldref_wf", ToPort: "boldref"})
	assert.Contains(t, graph.Edges(),
		wf.Edge{From: "ds_hmc_boldref_wf", FromPort: "boldref", To: "hmcref_buffer", ToPort: "boldref"})
	assert.Contains(t, graph.Edges(),
		wf.Edge{From: "ds_hmc_wf", FromPort: "xforms", To: "hmc_buffer", ToPort: "hmc_xforms"})
}

func TestAssemble_RegistrationParameters(t *testing.T) {
	t.Parallel()

	p := newTestPlanner(t, testutil.SingleEchoDataset(t), nil)
	plan, err := p.Plan(
		[]string{"sub-01/func/sub-01_task-nback_bold.nii.gz"}, Precomputed{}, false)
	require.NoError(t, err)

	base, err := NewAssembler(testConfig(), logging.Nop()).Assemble(plan)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Bold2T1wDOF = 12
	cfg.Bold2T1wInit = "header"
	cfg.UseBBR = false
	cfg.Sloppy = true
	cfg.OMPNthreads = 16
	tuned, err := NewAssembler(cfg, logging.Nop()).Assemble(plan)
	require.NoError(t, err)

	// The registration settings land on the stage as literal ports.
	reg := tuned.Node("bold_reg_wf")
	require.NotNil(t, reg)
	assert.Equal(t, "12", reg.Literals["bold2t1w_dof"])
	assert.Equal(t, "header", reg.Literals["bold2t1w_init"])
	assert.Equal(t, "false", reg.Literals["use_bbr"])
	assert.Equal(t, "true", reg.Literals["sloppy"])
	assert.Equal(t, "16", reg.Literals["omp_nthreads"])

	assert.NotEqual(t, base.RenderASCII(), tuned.RenderASCII())
}

func TestAssemble_MemEstimatesBound(t *testing.T) {
	t.Parallel()

	layout := bids.NewIndexedLayout("/data/bids", []bids.ManifestFile{
		testutil.FileMeta("sub-01/func/sub-01_task-nback_bold.nii.gz", map[string]any{
			"EchoTime": 0.03,
			"Shape":    []any{64.0, 64.0, 36.0, 200.0},
		}),
	})
	p := newTestPlanner(t, layout, nil)
	plan, err := p.Plan(
		[]string{"sub-01/func/sub-01_task-nback_bold.nii.gz"}, Precomputed{}, false)
	require.NoError(t, err)
	require.Greater(t, plan.Mem.FileSizeGB, 0.0)

	graph, err := NewAssembler(testConfig(), logging.Nop()).Assemble(plan)
	require.NoError(t, err)

	// Motion correction is sized by the file, registration by the
	// resampled series.
	assert.Equal(t, formatGB(plan.Mem.FileSizeGB), graph.Node("bold_hmc_wf").Literals["mem_gb"])
	assert.Equal(t, formatGB(plan.Mem.ResampledGB), graph.Node("bold_reg_wf").Literals["mem_gb"])
}

func TestAssemble_PrecomputedFieldmapRegistration(t *testing.T) {
	t.Parallel()

	reg := fieldmap.NewRegistry()
	reg.Register("auto_00000", "func/sub-01_task-nback_bold.nii.gz")

	pre := Precomputed{
		Transforms: map[string]string{TransformBoldrefToFmap: "derived/boldref2fmap.txt"},
	}
	graph, plan := assembleFor(t, pre, true, reg)

	require.True(t, plan.Fieldmap.Enabled)
	// The transform passes through its buffer; no registration stage runs
	// and unwarp takes the selected coefficients directly.
	assert.Nil(t, graph.Node("coeff2epi_wf"))
	assert.Equal(t, "derived/boldref2fmap.txt",
		graph.Node("fmapreg_buffer").Literals["boldref2fmap_xfm"])
	assert.Contains(t, graph.Edges(),
		wf.Edge{From: "output_select", FromPort: "fmap_coeff", To: "unwarp_wf", ToPort: "fmap_coeff"})
	assert.NoError(t, graph.Validate())
}

func TestAssemble_RegistrationInputs(t *testing.T) {
	t.Parallel()

	graph, _ := assembleFor(t, Precomputed{}, false, nil)

	for _, port := range []string{"t1w_dseg", "subjects_dir", "subject_id", "fsnative2t1w_xfm"} {
		assert.Contains(t, graph.Edges(),
			wf.Edge{From: "inputnode", FromPort: port, To: "bold_reg_wf", ToPort: port})
	}
}

func TestAssemble_GraphValidates(t *testing.T) {
	t.Parallel()

	combos := map[string]Precomputed{
		"none":       {},
		"hmcref":     {HMCBoldref: "a.nii.gz"},
		"hmc":        {HMCXforms: "x.txt"},
		"coregref":   {CoregBoldref: "c.nii.gz"},
		"regxfm":     {Transforms: map[string]string{TransformBoldrefToAnat: "r.txt"}},
		"everything": {HMCBoldref: "a.nii.gz", HMCXforms: "x.txt", CoregBoldref: "c.nii.gz", Transforms: map[string]string{TransformBoldrefToAnat: "r.txt"}},
	}

	for name, pre := range combos {
		pre := pre
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			graph, _ := assembleFor(t, pre, false, nil)
			assert.NoError(t, graph.Validate())
		})
	}
}
