// Package scheduler implements the Job Scheduler Bridge (§4.5):
// job submission, queue selection, and status reconciliation against
// an external SGE-style batch scheduler.
//
// Grounded on the internal/submodelrepository/logger pattern
// for structured component logging, and on its command/adaptor
// boundary style (a narrow interface injected at construction, exactly
// like the database.go InitializeDatabase returning a handle
// the rest of the package treats opaquely) — here the Queryer interface
// plays that role for the external `qsub`/`qstat`/`qacct` binaries.
package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/opencga/catalog-core/internal/catalogerr"
	"github.com/opencga/catalog-core/internal/cataloglog"
)

// Submitter is the narrow external-scheduler interface the bridge needs
// for submission (§6 "Batch Scheduler Interface... submit").
type Submitter interface {
	// Submit is non-blocking and returns once the scheduler has accepted
	// the job, per §4.5 "fire-and-forget from the core's perspective".
	Submit(ctx context.Context, cmd, env []string, stdout, stderr, queue, name string) error
}

// QueueTable holds the default queue and, per queue name, the tools
// routed to that queue (§4.5 "read the tool->queue mapping from
// configuration"); tool names are matched case-insensitively.
type QueueTable struct {
	DefaultQueue string
	// ToolQueues maps a queue name to the tools routed to it.
	ToolQueues map[string][]string
}

// SelectQueue implements §4.5 "Queue selection": the default queue
// is used unless some non-default queue's tool list contains the tool
// name (case-insensitive). When several non-default queues match, the
// last one visited wins, per the documented (possibly-buggy) "iterate
// and overwrite" behavior pinned by §9 — this function deliberately
// does NOT short-circuit on the first match. Map iteration order is
// unspecified, so which of several matching queues is chosen is not
// deterministic.
func (t QueueTable) SelectQueue(tool string) string {
	selected := t.DefaultQueue
	toolLower := strings.ToLower(tool)
	for queue, tools := range t.ToolQueues {
		if queue == t.DefaultQueue {
			continue
		}
		for _, candidate := range tools {
			if strings.ToLower(candidate) == toolLower {
				selected = queue
				// Deliberately continue scanning: a later non-default
				// queue matching the same tool overwrites this one.
			}
		}
	}
	return selected
}

// Bridge submits jobs to the external scheduler using a fixed command
// template (§4.5 "Command line").
type Bridge struct {
	submitter Submitter
	queues    QueueTable
}

// NewBridge builds a Bridge over the given Submitter and queue table.
func NewBridge(submitter Submitter, queues QueueTable) *Bridge {
	return &Bridge{submitter: submitter, queues: queues}
}

// Submit enqueues a job described by (tool, jobID, outDir, commandLine,
// queue). queue, if empty, is resolved via SelectQueue.
func (b *Bridge) Submit(ctx context.Context, tool, jobID, outDir, commandLine, queue string, env []string) error {
	if queue == "" {
		queue = b.queues.SelectQueue(tool)
	}

	name := fmt.Sprintf("%s_%s", tool, jobID)
	stdout := outDir + "/sge_out.log"
	stderr := outDir + "/sge_err.log"

	cataloglog.LogInfo(fmt.Sprintf("submitting job %s to queue %s", name, queue))
	if err := b.submitter.Submit(ctx, []string{commandLine}, env, stdout, stderr, queue, name); err != nil {
		return catalogerr.Internal(err, "submitting job %s", name)
	}
	return nil
}
