package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencga/catalog-core/internal/catalogconfig"
)

func TestParseAcctOutput_ExtractsExitStatusAndFailed(t *testing.T) {
	out := []byte("jobnumber    42\nexit_status  0\nfailed       0\n")
	result, err := parseAcctOutput(out)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 0, result.ExitStatus)
	assert.Equal(t, 0, result.Failed)
}

func TestParseAcctOutput_NonZeroFields(t *testing.T) {
	out := []byte("exit_status  1\nfailed       37\n")
	result, err := parseAcctOutput(out)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitStatus)
	assert.Equal(t, 37, result.Failed)
}

func TestParseAcctOutput_NoRecognizedFieldsReturnsNil(t *testing.T) {
	result, err := parseAcctOutput([]byte("some unrelated banner text\n"))
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestParseAcctOutput_MalformedFieldIsInvalidArgument(t *testing.T) {
	_, err := parseAcctOutput([]byte("exit_status  not-a-number\n"))
	assert.Error(t, err)
}

func TestExecAdaptor_Submit_BuildsExpectedCommandLine(t *testing.T) {
	var capturedName string
	var capturedArgs []string
	a := &ExecAdaptor{
		submitBin: "qsub",
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			capturedName = name
			capturedArgs = args
			return nil, nil
		},
	}

	err := a.Submit(context.Background(), []string{"echo", "hi"}, []string{"FOO=bar"}, "/out/sge_out.log", "/out/sge_err.log", "main.q", "tool_123")
	require.NoError(t, err)
	assert.Equal(t, "qsub", capturedName)
	assert.Contains(t, capturedArgs, "main.q")
	assert.Contains(t, capturedArgs, "tool_123")
	assert.Contains(t, capturedArgs, "-v")
	assert.Contains(t, capturedArgs, "FOO=bar")
	assert.Contains(t, capturedArgs, "echo")
	assert.Contains(t, capturedArgs, "hi")
}

func TestExecAdaptor_Submit_PropagatesRunFailureAsInternal(t *testing.T) {
	a := &ExecAdaptor{
		submitBin: "qsub",
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("permission denied"), errors.New("exit status 1")
		},
	}

	err := a.Submit(context.Background(), []string{"echo"}, nil, "/out", "/err", "main.q", "job")
	assert.Error(t, err)
}

func TestExecAdaptor_QueryActiveQueue_ReturnsRawOutput(t *testing.T) {
	a := &ExecAdaptor{
		statusBin: "qstat",
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("<job_info></job_info>"), nil
		},
	}

	r, err := a.QueryActiveQueue(context.Background())
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "<job_info></job_info>", string(body))
}

func TestNewExecAdaptor_WiresBinariesFromConfig(t *testing.T) {
	a := NewExecAdaptor(catalogconfig.SchedulerConfig{SubmitBin: "qsub", StatusBin: "qstat", AcctBin: "qacct"})
	assert.Equal(t, "qsub", a.submitBin)
	assert.Equal(t, "qstat", a.statusBin)
	assert.Equal(t, "qacct", a.acctBin)
}
