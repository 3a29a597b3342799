package jobs

import (
	"fmt"

	"github.com/codegraph-dev/indexer/pkg/errs"
)

func stateTransitionError(from, to State) error {
	return errs.New(errs.KindState, "jobs.Job.transitionTo", "ILLEGAL_STATE_TRANSITION",
		fmt.Sprintf("cannot transition job from %s to %s", from, to), nil)
}

func notFoundError(op, jobID string) error {
	return errs.New(errs.KindState, op, "JOB_NOT_FOUND", fmt.Sprintf("job %s not found", jobID), nil)
}
