package fit

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/htwangtw/fmriprep/internal/bids"
	"github.com/htwangtw/fmriprep/internal/config"
	"github.com/htwangtw/fmriprep/internal/fieldmap"
)

// Stage names in dependency order.
const (
	StageHMCRef       = "hmc_boldref"
	StageHMC          = "bold_hmc"
	StageCoregRef     = "coreg_boldref"
	StageRegistration = "bold_reg"
)

// StageDecision records whether one fitting stage runs or is replaced by a
// precomputed artifact.
type StageDecision struct {
	// Name identifies the stage.
	Name string
	// Skip is true when the stage's output already exists and the graph
	// binds the artifact directly instead of adding the compute stage.
	Skip bool
	// Artifact is the precomputed value backing a skip; empty otherwise.
	Artifact string
}

// FieldmapDecision is the stage 3A verdict: whether susceptibility
// correction participates in the fit, and which estimator drives it.
type FieldmapDecision struct {
	// Enabled is true only when a fieldmap was declared available and at
	// least one associated estimator survives pruning.
	Enabled bool
	// EstimatorID is the selected estimator (first candidate).
	EstimatorID string
	// Discarded lists the remaining candidates, for diagnostics.
	Discarded []string
}

// StagePlan is the validated decision set for one BOLD series: resolved
// file identities, the four skip/compute decisions, and the fieldmap
// verdict. It is plain data; Assemble translates it into a graph in one
// pass so no partially wired graph can escape.
type StagePlan struct {
	WorkflowName string
	// BoldFiles is the series ordered ascending by echo time; fitting
	// operates on the shortest echo, BoldFiles[0].
	BoldFiles []string
	BoldFile  string
	// SBRefFiles are the associated single-band references, echo-ordered.
	// May be empty.
	SBRefFiles []string
	Multiecho  bool
	// Metadata is the shortest echo's sidecar metadata, forwarded to the
	// unwarp stage.
	Metadata map[string]any
	Mem      MemEstimate

	Precomputed  Precomputed
	HMCRef       StageDecision
	HMC          StageDecision
	CoregRef     StageDecision
	Registration StageDecision
	Fieldmap     FieldmapDecision
}

// Decisions returns the four stage decisions in dependency order.
func (p *StagePlan) Decisions() []StageDecision {
	return []StageDecision{p.HMCRef, p.HMC, p.CoregRef, p.Registration}
}

// ComputeCount returns how many stages must run.
func (p *StagePlan) ComputeCount() int {
	n := 0
	for _, d := range p.Decisions() {
		if !d.Skip {
			n++
		}
	}
	return n
}

// Planner is the stage decision engine. It is constructed once per dataset
// with its collaborators and configuration; Plan itself is a pure function
// of its arguments plus the indexed metadata, so identical inputs always
// produce identical plans.
type Planner struct {
	layout       bids.Layout
	registry     *fieldmap.Registry
	cfg          *config.Configuration
	log          zerolog.Logger
	sbrefFilters bids.Filters
}

// NewPlanner creates a Planner. registry may be empty but not nil.
func NewPlanner(layout bids.Layout, registry *fieldmap.Registry, cfg *config.Configuration, logger zerolog.Logger) *Planner {
	return &Planner{
		layout:   layout,
		registry: registry,
		cfg:      cfg,
		log:      logger,
	}
}

// WithSBRefFilters overrides the single-band reference query filters,
// mirroring caller-supplied dataset filters.
func (p *Planner) WithSBRefFilters(filters bids.Filters) *Planner {
	p.sbrefFilters = filters
	return p
}

// Plan resolves file identities and produces the skip/compute decision set
// for one BOLD series. hasFieldmap declares that fieldmap estimation is
// available upstream; the verdict additionally requires an associated
// estimator that survived pruning, otherwise the plan degrades to the
// uncorrected path with a logged diagnostic.
func (p *Planner) Plan(boldSeries []string, pre Precomputed, hasFieldmap bool) (*StagePlan, error) {
	if len(boldSeries) == 0 {
		return nil, fmt.Errorf("planning fit: empty BOLD series")
	}

	boldFiles := bids.SortByEchoTime(p.layout, boldSeries)
	boldFile := boldFiles[0]
	sbrefFiles := bids.FindSBRefs(p.layout, boldFiles, p.sbrefFilters)

	plan := &StagePlan{
		WorkflowName: WorkflowName(boldFile),
		BoldFiles:    boldFiles,
		BoldFile:     boldFile,
		SBRefFiles:   sbrefFiles,
		Multiecho:    len(boldFiles) > 1,
		Metadata:     p.layout.Metadata(boldFile),
		Precomputed:  pre,
	}
	if shape := ShapeFromMetadata(plan.Metadata); shape != nil {
		plan.Mem, _ = EstimateMem(shape)
	}

	plan.Fieldmap = p.decideFieldmap(boldFile, hasFieldmap)

	plan.HMCRef = StageDecision{
		Name:     StageHMCRef,
		Skip:     pre.HMCBoldref != "",
		Artifact: pre.HMCBoldref,
	}
	// Motion-correction transforms may arrive under the dedicated key or
	// through the transforms mapping.
	hmcXforms := pre.HMCXforms
	if hmcXforms == "" && pre.HasTransform(TransformHMC) {
		hmcXforms, _ = pre.Transform(TransformHMC)
	}
	plan.HMC = StageDecision{
		Name:     StageHMC,
		Skip:     hmcXforms != "",
		Artifact: hmcXforms,
	}
	plan.CoregRef = StageDecision{
		Name:     StageCoregRef,
		Skip:     pre.CoregBoldref != "",
		Artifact: pre.CoregBoldref,
	}
	regXfm, haveReg := pre.Transform(TransformBoldrefToAnat)
	plan.Registration = StageDecision{
		Name:     StageRegistration,
		Skip:     haveReg,
		Artifact: regXfm,
	}

	return plan, nil
}

// decideFieldmap applies the stage 3A policy: a declared fieldmap is usable
// only if at least one estimator associated with the scan is still active.
// A declared-but-unusable fieldmap degrades to the uncorrected path; this
// is a diagnostic, not a failure.
func (p *Planner) decideFieldmap(boldFile string, hasFieldmap bool) FieldmapDecision {
	if !hasFieldmap {
		return FieldmapDecision{}
	}

	// The estimator collection may have been pruned upstream, e.g. by an
	// ignore-fieldmaps directive.
	var usable []string
	for _, id := range fieldmap.GetEstimators(p.layout, p.registry, boldFile) {
		if p.registry.Active(id) {
			usable = append(usable, id)
		}
	}

	if len(usable) == 0 {
		p.log.Error().
			Str("bold", boldFile).
			Msg("None of the available B0 fieldmaps are associated to the BOLD file")
		return FieldmapDecision{}
	}

	p.log.Info().
		Str("bold", boldFile).
		Strs("estimators", usable).
		Msg("Found usable B0-map (fieldmap) estimator(s) to correct for susceptibility-derived distortions")

	return FieldmapDecision{
		Enabled:     true,
		EstimatorID: usable[0],
		Discarded:   usable[1:],
	}
}
