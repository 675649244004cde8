package fit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkflowName(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		file string
		want string
	}{
		"simple task": {
			file: "/completely/made/up/path/sub-01_task-nback_bold.nii.gz",
			want: "func_preproc_task_nback_wf",
		},
		"run and echo entities": {
			file: "/completely/made/up/path/sub-01_task-nback_run-01_echo-1_bold.nii.gz",
			want: "func_preproc_task_nback_run_01_echo_1_wf",
		},
		"bare filename": {
			file: "sub-01_task-rest_bold.nii",
			want: "func_preproc_task_rest_wf",
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, WorkflowName(tt.file))
		})
	}
}

func TestWorkflowName_Stable(t *testing.T) {
	t.Parallel()

	f := "/data/sub-01_task-nback_bold.nii.gz"
	assert.Equal(t, WorkflowName(f), WorkflowName(f))
}
