package scheduler

import (
	"context"
	"io"
	"strings"

	"github.com/opencga/catalog-core/internal/catalogerr"
)

// State is a normalized job status (§4.5 "status(job_id) returns
// one of {RUNNING, TRANSFERRED, QUEUED, ERROR, UNKNOWN, FINISHED,
// EXECUTION_ERROR, QUEUE_ERROR}").
type State string

const (
	StateRunning        State = "RUNNING"
	StateTransferred    State = "TRANSFERRED"
	StateQueued         State = "QUEUED"
	StateError          State = "ERROR"
	StateUnknown        State = "UNKNOWN"
	StateFinished       State = "FINISHED"
	StateExecutionError State = "EXECUTION_ERROR"
	StateQueueError     State = "QUEUE_ERROR"
)

// rawStateTable maps the scheduler's raw single/double-letter state
// codes to a core State (§4.5 step 1's fixed table).
var rawStateTable = map[string]State{
	"r":   StateRunning,
	"t":   StateTransferred,
	"qw":  StateQueued,
	"Eqw": StateError,
}

// TerminatedResult is the post-mortem probe's result (§6
// "queryTerminated(job_id) -> maybe<{exit_status, failed}>").
type TerminatedResult struct {
	ExitStatus int
	Failed     int
}

// Queryer is the narrow external-scheduler interface the status probe
// needs (§6 "queryActive", "queryTerminated").
type Queryer interface {
	// QueryActiveQueue returns the scheduler's active-queue document in
	// its native XML form (§4.5 step 1 "Ask the scheduler for the
	// active queue (XML form)").
	QueryActiveQueue(ctx context.Context) (io.Reader, error)
	// QueryTerminated invokes the qacct-style post-mortem probe. A nil
	// result with a nil error means the job is not found there either.
	QueryTerminated(ctx context.Context, jobID string) (*TerminatedResult, error)
}

// Status implements §4.5 "Status query".
func Status(ctx context.Context, q Queryer, jobID string) (State, error) {
	activeXML, err := q.QueryActiveQueue(ctx)
	if err != nil {
		return "", catalogerr.Internal(err, "querying active queue")
	}
	jobs, err := ParseActiveQueue(activeXML)
	if err != nil {
		return "", err
	}
	for _, job := range jobs {
		if strings.Contains(job.Name, jobID) {
			if state, ok := rawStateTable[job.State]; ok {
				return state, nil
			}
			return StateUnknown, nil
		}
	}

	result, err := q.QueryTerminated(ctx, jobID)
	if err != nil {
		return "", catalogerr.Internal(err, "querying terminated job %s", jobID)
	}
	if result == nil {
		return StateUnknown, nil
	}

	switch {
	case result.Failed != 0:
		return StateQueueError, nil
	case result.ExitStatus == 0:
		return StateFinished, nil
	default:
		return StateExecutionError, nil
	}
}
