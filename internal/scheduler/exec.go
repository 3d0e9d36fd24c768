package scheduler

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/opencga/catalog-core/internal/catalogconfig"
	"github.com/opencga/catalog-core/internal/catalogerr"
)

// ExecAdaptor is the concrete Submitter/Queryer over the external
// qsub/qstat/qacct binaries, grounded on the external-process
// invocation pattern used throughout the commit/validate machinery of
// session/commitmgr.go (typed command, captured combined output, a
// single wrapped error) — adapted here from running a commit script to
// running a batch scheduler's CLI tools.
type ExecAdaptor struct {
	submitBin string
	statusBin string
	acctBin   string
	run       func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewExecAdaptor builds an ExecAdaptor that shells out to the binaries
// named in cfg.
func NewExecAdaptor(cfg catalogconfig.SchedulerConfig) *ExecAdaptor {
	return &ExecAdaptor{
		submitBin: cfg.SubmitBin,
		statusBin: cfg.StatusBin,
		acctBin:   cfg.AcctBin,
		run:       runCombinedOutput,
	}
}

func runCombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Submit implements Submitter by invoking the configured submit binary
// with the fixed command-line template of §4.5: environment passthrough
// via -v, the job name, stdout/stderr redirection, the selected queue,
// then the command line verbatim.
func (a *ExecAdaptor) Submit(ctx context.Context, cmd, env []string, stdout, stderr, queue, name string) error {
	args := []string{
		"-N", name,
		"-o", stdout,
		"-e", stderr,
		"-q", queue,
	}
	if len(env) > 0 {
		args = append(args, "-v", strings.Join(env, ","))
	}
	args = append(args, cmd...)

	out, err := a.run(ctx, a.submitBin, args...)
	if err != nil {
		return catalogerr.Internal(err, "invoking %s: %s", a.submitBin, strings.TrimSpace(string(out)))
	}
	return nil
}

// QueryActiveQueue implements Queryer by invoking the configured status
// binary in XML mode (§4.5 step 1).
func (a *ExecAdaptor) QueryActiveQueue(ctx context.Context) (io.Reader, error) {
	out, err := a.run(ctx, a.statusBin, "-xml")
	if err != nil {
		return nil, catalogerr.Internal(err, "invoking %s -xml: %s", a.statusBin, strings.TrimSpace(string(out)))
	}
	return bytes.NewReader(out), nil
}

// QueryTerminated implements Queryer by invoking the configured
// accounting binary and parsing its `key   value` line format for the
// exit_status/failed fields (§4.5 step 2). An unknown/absent job
// produces a nil, nil result rather than an error, matching §4.5
// "UNKNOWN only when neither source yields data".
func (a *ExecAdaptor) QueryTerminated(ctx context.Context, jobID string) (*TerminatedResult, error) {
	out, err := a.run(ctx, a.acctBin, "-j", jobID)
	if err != nil {
		// qacct exits non-zero when the job id is unknown; treat that
		// as "not found here either" rather than an Internal failure.
		if _, ok := err.(*exec.ExitError); ok {
			return nil, nil
		}
		return nil, catalogerr.Internal(err, "invoking %s -j %s", a.acctBin, jobID)
	}
	return parseAcctOutput(out)
}

func parseAcctOutput(raw []byte) (*TerminatedResult, error) {
	result := &TerminatedResult{}
	found := false

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "exit_status":
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, catalogerr.InvalidArgument("malformed exit_status in accounting output: %q", scanner.Text())
			}
			result.ExitStatus = n
			found = true
		case "failed":
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, catalogerr.InvalidArgument("malformed failed field in accounting output: %q", scanner.Text())
			}
			result.Failed = n
			found = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, catalogerr.Internal(err, "scanning accounting output")
	}
	if !found {
		return nil, nil
	}
	return result, nil
}
