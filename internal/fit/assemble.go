package fit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/htwangtw/fmriprep/internal/config"
	"github.com/htwangtw/fmriprep/internal/wf"
)

// Buffer node names. Every stage output flows through a buffer so that
// downstream stages bind the same port whether the stage ran or a
// precomputed artifact was passed through. The motion-correction transform
// buffer and the fieldmap-registration transform buffer carry distinct
// names.
const (
	nodeInput        = "inputnode"
	nodeHMCRefBuffer = "hmcref_buffer"
	nodeHMCBuffer    = "hmc_buffer"
	nodeFmapRegBuf   = "fmapreg_buffer"
	nodeRegRefBuffer = "regref_buffer"
	nodeFmapRefSel   = "fmapref_buffer"
)

// Assembler translates a StagePlan into a workflow graph. The plan is
// validated data; assembly is a single pass that either yields a fully
// wired graph or an error, never a partial graph.
type Assembler struct {
	cfg *config.Configuration
	log zerolog.Logger
}

// NewAssembler creates an Assembler with the given configuration and
// diagnostic logger.
func NewAssembler(cfg *config.Configuration, logger zerolog.Logger) *Assembler {
	return &Assembler{cfg: cfg, log: logger}
}

// builder accumulates graph mutations and latches the first error so the
// wiring code reads as straight-line declarations.
type builder struct {
	g   *wf.Graph
	err error
}

func (b *builder) node(name string, kind wf.NodeKind, inputs, outputs []string) {
	if b.err != nil {
		return
	}
	_, b.err = b.g.AddNode(name, kind, inputs, outputs)
}

func (b *builder) buffer(name string, ports ...string) {
	b.node(name, wf.KindBuffer, ports, ports)
}

func (b *builder) connect(from, fromPort, to, toPort string) {
	if b.err != nil {
		return
	}
	b.err = b.g.Connect(from, fromPort, to, toPort)
}

func (b *builder) literal(node, port, value string) {
	if b.err != nil {
		return
	}
	b.err = b.g.SetLiteral(node, port, value)
}

// Assemble builds the fit workflow graph for a plan. Each stage is either
// added as a compute node wired to the preceding buffers or skipped with
// its buffer bound to the precomputed artifact; one log line records every
// decision. The returned graph passed structural validation.
func (a *Assembler) Assemble(plan *StagePlan) (*wf.Graph, error) {
	b := &builder{g: wf.New(plan.WorkflowName)}

	// Caller-supplied values. Always present even if every stage is
	// skipped and nothing consumes them.
	b.node(nodeInput, wf.KindInput, nil, []string{
		"bold_file",
		"t1w_preproc",
		"t1w_mask",
		"t1w_dseg",
		"subjects_dir",
		"subject_id",
		"fsnative2t1w_xfm",
		"fmap",
		"fmap_ref",
		"fmap_coeff",
		"fmap_mask",
		"sdc_method",
		"fmap_id",
	})

	b.buffer(nodeHMCRefBuffer, "boldref", "bold_file")
	b.buffer(nodeHMCBuffer, "hmc_xforms")
	b.buffer(nodeFmapRegBuf, "boldref2fmap_xfm")
	b.buffer(nodeRegRefBuffer, "boldref", "boldmask")

	a.assembleHMCRef(b, plan)
	a.assembleHMC(b, plan)
	a.assembleCoregRef(b, plan)
	a.assembleRegistration(b, plan)

	if b.err != nil {
		return nil, fmt.Errorf("assembling %s: %w", plan.WorkflowName, b.err)
	}
	if err := b.g.Validate(); err != nil {
		return nil, fmt.Errorf("assembling %s: %w", plan.WorkflowName, err)
	}
	return b.g, nil
}

// assembleHMCRef wires stage 1: generating the motion-correction reference.
// The skip path still validates the raw input before it reaches the buffer.
func (a *Assembler) assembleHMCRef(b *builder, plan *StagePlan) {
	if plan.HMCRef.Skip {
		a.log.Info().Msg("Found HMC boldref - skipping Stage 1")

		b.node("validate_bold", wf.KindStage,
			[]string{"in_file"}, []string{"out_file"})
		b.literal("validate_bold", "in_file", plan.BoldFiles[0])
		b.connect("validate_bold", "out_file", nodeHMCRefBuffer, "bold_file")
		b.literal(nodeHMCRefBuffer, "boldref", plan.HMCRef.Artifact)
		return
	}

	a.log.Info().Msg("Stage 1: Adding HMC boldref workflow")

	b.node("hmc_boldref_wf", wf.KindStage,
		[]string{"bold_file", "dummy_scans"},
		[]string{"boldref", "bold_file"})
	b.literal("hmc_boldref_wf", "bold_file", plan.BoldFile)
	b.literal("hmc_boldref_wf", "dummy_scans", strconv.Itoa(a.cfg.DummyScans))
	b.connect("hmc_boldref_wf", "bold_file", nodeHMCRefBuffer, "bold_file")

	if a.cfg.OutputDir != "" {
		b.node("ds_hmc_boldref_wf", wf.KindSink,
			[]string{"boldref"}, []string{"boldref"})
		b.connect("hmc_boldref_wf", "boldref", "ds_hmc_boldref_wf", "boldref")
		b.connect("ds_hmc_boldref_wf", "boldref", nodeHMCRefBuffer, "boldref")
	} else {
		b.connect("hmc_boldref_wf", "boldref", nodeHMCRefBuffer, "boldref")
	}
}

// assembleHMC wires stage 2: head-motion estimation against the stage 1
// reference.
func (a *Assembler) assembleHMC(b *builder, plan *StagePlan) {
	if plan.HMC.Skip {
		a.log.Info().Msg("Found motion correction transforms - skipping Stage 2")
		b.literal(nodeHMCBuffer, "hmc_xforms", plan.HMC.Artifact)
		return
	}

	a.log.Info().Msg("Stage 2: Adding motion correction workflow")

	b.node("bold_hmc_wf", wf.KindStage,
		[]string{"raw_ref_image", "bold_file", "mem_gb", "omp_nthreads"},
		[]string{"xforms"})
	b.literal("bold_hmc_wf", "mem_gb", formatGB(plan.Mem.FileSizeGB))
	b.literal("bold_hmc_wf", "omp_nthreads", strconv.Itoa(a.cfg.OMPNthreads))
	b.connect(nodeHMCRefBuffer, "boldref", "bold_hmc_wf", "raw_ref_image")
	b.connect(nodeHMCRefBuffer, "bold_file", "bold_hmc_wf", "bold_file")

	if a.cfg.OutputDir != "" {
		b.node("ds_hmc_wf", wf.KindSink,
			[]string{"xforms"}, []string{"xforms"})
		b.connect("bold_hmc_wf", "xforms", "ds_hmc_wf", "xforms")
		b.connect("ds_hmc_wf", "xforms", nodeHMCBuffer, "hmc_xforms")
	} else {
		b.connect("bold_hmc_wf", "xforms", nodeHMCBuffer, "hmc_xforms")
	}
}

// assembleCoregRef wires stage 3: building the coregistration reference and
// mask, with susceptibility correction when the fieldmap verdict allows it.
// Fieldmap correction only happens during fit if this stage is needed.
func (a *Assembler) assembleCoregRef(b *builder, plan *StagePlan) {
	if plan.CoregRef.Skip {
		a.log.Info().Msg("Found coregistration reference - skipping Stage 3")
		b.literal(nodeRegRefBuffer, "boldref", plan.CoregRef.Artifact)
		return
	}

	a.log.Info().Msg("Stage 3: Adding coregistration boldref workflow")

	// Select the initial reference: prefer the single-band reference over
	// the motion-correction reference. An empty sbref literal means none
	// was found and the boldref input wins.
	b.node(nodeFmapRefSel, wf.KindStage,
		[]string{"boldref", "sbref_file"}, []string{"out"})
	b.literal(nodeFmapRefSel, "sbref_file", firstOrEmpty(plan.SBRefFiles))
	b.connect(nodeHMCRefBuffer, "boldref", nodeFmapRefSel, "boldref")

	b.node("enhance_boldref_wf", wf.KindStage,
		[]string{"boldref"}, []string{"boldref", "bold_mask"})
	b.connect(nodeFmapRefSel, "out", "enhance_boldref_wf", "boldref")

	if !plan.Fieldmap.Enabled {
		b.connect("enhance_boldref_wf", "boldref", nodeRegRefBuffer, "boldref")
		b.connect("enhance_boldref_wf", "bold_mask", nodeRegRefBuffer, "boldmask")
		return
	}

	a.log.Info().
		Str("estimator", plan.Fieldmap.EstimatorID).
		Msg("Stage 3A: Susceptibility correcting boldref")
	if len(plan.Fieldmap.Discarded) > 0 {
		a.log.Warn().
			Str("bold", plan.BoldFile).
			Str("using", plan.Fieldmap.EstimatorID).
			Strs("discarded", plan.Fieldmap.Discarded).
			Msgf("Several fieldmaps <%s> are intended for the BOLD file, using %s",
				strings.Join(append([]string{plan.Fieldmap.EstimatorID}, plan.Fieldmap.Discarded...), ", "),
				plan.Fieldmap.EstimatorID)
	}

	// Pick the selected estimator's outputs from the keyed inputs.
	b.node("output_select", wf.KindStage,
		[]string{"fmap", "fmap_ref", "fmap_coeff", "fmap_mask", "sdc_method", "keys", "key"},
		[]string{"fmap", "fmap_ref", "fmap_coeff", "fmap_mask", "sdc_method"})
	b.literal("output_select", "key", plan.Fieldmap.EstimatorID)
	b.connect(nodeInput, "fmap", "output_select", "fmap")
	b.connect(nodeInput, "fmap_ref", "output_select", "fmap_ref")
	b.connect(nodeInput, "fmap_coeff", "output_select", "fmap_coeff")
	b.connect(nodeInput, "fmap_mask", "output_select", "fmap_mask")
	b.connect(nodeInput, "sdc_method", "output_select", "sdc_method")
	b.connect(nodeInput, "fmap_id", "output_select", "keys")

	b.node("unwarp_wf", wf.KindStage,
		[]string{"fmap_coeff", "distorted_ref", "distorted", "metadata", "free_mem_gb", "debug", "omp_nthreads"},
		[]string{"corrected_ref", "corrected_mask"})
	b.literal("unwarp_wf", "metadata", marshalMetadata(plan.Metadata))
	b.literal("unwarp_wf", "free_mem_gb", formatGB(a.cfg.FreeMemGB))
	b.literal("unwarp_wf", "debug", strconv.FormatBool(a.cfg.DebugEnabled("fieldmaps")))
	b.literal("unwarp_wf", "omp_nthreads", strconv.Itoa(a.cfg.OMPNthreads))
	b.connect("enhance_boldref_wf", "boldref", "unwarp_wf", "distorted_ref")
	b.connect("enhance_boldref_wf", "boldref", "unwarp_wf", "distorted")

	// A precomputed boldref-to-fieldmap transform replaces the registration
	// stage; the selected coefficients feed unwarp directly.
	if xfm, ok := plan.Precomputed.Transform(TransformBoldrefToFmap); ok {
		a.log.Info().Msg("Found boldref-to-fieldmap transform - skipping fieldmap registration")
		b.literal(nodeFmapRegBuf, "boldref2fmap_xfm", xfm)
		b.connect("output_select", "fmap_coeff", "unwarp_wf", "fmap_coeff")
	} else {
		b.node("coeff2epi_wf", wf.KindStage,
			[]string{"fmap_ref", "fmap_coeff", "fmap_mask", "target_ref", "target_mask", "debug", "omp_nthreads", "sloppy"},
			[]string{"target2fmap_xfm", "fmap_coeff"})
		b.literal("coeff2epi_wf", "debug", strconv.FormatBool(a.cfg.DebugEnabled("fieldmaps")))
		b.literal("coeff2epi_wf", "omp_nthreads", strconv.Itoa(a.cfg.OMPNthreads))
		b.literal("coeff2epi_wf", "sloppy", strconv.FormatBool(a.cfg.Sloppy))
		b.connect("output_select", "fmap_ref", "coeff2epi_wf", "fmap_ref")
		b.connect("output_select", "fmap_coeff", "coeff2epi_wf", "fmap_coeff")
		b.connect("output_select", "fmap_mask", "coeff2epi_wf", "fmap_mask")
		b.connect("enhance_boldref_wf", "boldref", "coeff2epi_wf", "target_ref")
		b.connect("enhance_boldref_wf", "bold_mask", "coeff2epi_wf", "target_mask")
		b.connect("coeff2epi_wf", "target2fmap_xfm", nodeFmapRegBuf, "boldref2fmap_xfm")
		b.connect("coeff2epi_wf", "fmap_coeff", "unwarp_wf", "fmap_coeff")
	}

	b.connect("unwarp_wf", "corrected_ref", nodeRegRefBuffer, "boldref")
	b.connect("unwarp_wf", "corrected_mask", nodeRegRefBuffer, "boldmask")
}

// assembleRegistration wires stage 4: aligning the coregistration reference
// to the anatomical volume.
func (a *Assembler) assembleRegistration(b *builder, plan *StagePlan) {
	if plan.Registration.Skip {
		a.log.Info().Msg("Found boldref-to-anatomical transform - skipping Stage 4")
		return
	}

	if !plan.Fieldmap.Enabled {
		a.log.Info().Msg("No fieldmaps to apply - skipping Stage 3A")
	}

	a.log.Info().Msg("Stage 4: Adding BOLD-to-anatomical registration workflow")

	b.node("bold_reg_wf", wf.KindStage,
		[]string{
			"ref_bold_brain", "t1w_dseg", "subjects_dir", "subject_id", "fsnative2t1w_xfm",
			"bold2t1w_dof", "bold2t1w_init", "use_bbr", "freesurfer", "omp_nthreads", "sloppy", "mem_gb",
		},
		[]string{"itk_bold_to_t1", "itk_t1_to_bold", "fallback"})
	b.literal("bold_reg_wf", "bold2t1w_dof", strconv.Itoa(a.cfg.Bold2T1wDOF))
	b.literal("bold_reg_wf", "bold2t1w_init", a.cfg.Bold2T1wInit)
	b.literal("bold_reg_wf", "use_bbr", strconv.FormatBool(a.cfg.UseBBR))
	b.literal("bold_reg_wf", "freesurfer", strconv.FormatBool(a.cfg.FreeSurfer))
	b.literal("bold_reg_wf", "omp_nthreads", strconv.Itoa(a.cfg.OMPNthreads))
	b.literal("bold_reg_wf", "sloppy", strconv.FormatBool(a.cfg.Sloppy))
	b.literal("bold_reg_wf", "mem_gb", formatGB(plan.Mem.ResampledGB))
	b.connect(nodeRegRefBuffer, "boldref", "bold_reg_wf", "ref_bold_brain")
	b.connect(nodeInput, "t1w_dseg", "bold_reg_wf", "t1w_dseg")
	// Unset when surface reconstruction is disabled, which the stage
	// tolerates.
	b.connect(nodeInput, "subjects_dir", "bold_reg_wf", "subjects_dir")
	b.connect(nodeInput, "subject_id", "bold_reg_wf", "subject_id")
	b.connect(nodeInput, "fsnative2t1w_xfm", "bold_reg_wf", "fsnative2t1w_xfm")
}

// formatGB renders a gigabyte figure for a literal port binding.
func formatGB(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func firstOrEmpty(files []string) string {
	if len(files) == 0 {
		return ""
	}
	return files[0]
}

// marshalMetadata serializes sidecar metadata for the unwarp stage's
// metadata port. Deterministic: encoding/json orders map keys.
func marshalMetadata(meta map[string]any) string {
	if len(meta) == 0 {
		return "{}"
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(data)
}
