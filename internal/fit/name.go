package fit

import (
	"path/filepath"
	"strings"
)

// WorkflowName derives a stable workflow identifier from a BOLD filename:
// strip directory and extension, drop the leading subject entity, replace
// separator characters with underscores, and swap the bold suffix for wf.
//
//	sub-01_task-nback_bold.nii.gz            -> func_preproc_task_nback_wf
//	sub-01_task-nback_run-01_echo-1_bold.nii -> func_preproc_task_nback_run_01_echo_1_wf
//
// Re-running with the same input always yields the same name, so graphs
// built from the same series are comparable.
func WorkflowName(boldFile string) string {
	base := filepath.Base(boldFile)
	if idx := strings.Index(base, "."); idx >= 0 {
		base = base[:idx]
	}

	parts := strings.Split(base, "_")
	if len(parts) > 1 {
		base = strings.Join(parts[1:], "_")
	}

	name := strings.ReplaceAll(base, ".", "_")
	name = strings.ReplaceAll(name, " ", "")
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, "_bold", "_wf")
	return "func_preproc_" + name
}
