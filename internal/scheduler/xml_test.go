package scheduler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencga/catalog-core/internal/catalogerr"
)

func TestParseActiveQueue(t *testing.T) {
	doc := `<?xml version='1.0'?>
<job_info>
  <queue_info>
    <job_list state="running">
      <JB_name>index_job-1</JB_name>
      <state>r</state>
    </job_list>
  </queue_info>
  <job_info>
    <job_list state="pending">
      <JB_name>annotate_job-2</JB_name>
      <state>qw</state>
    </job_list>
  </job_info>
</job_info>`

	jobs, err := ParseActiveQueue(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "index_job-1", jobs[0].Name)
	assert.Equal(t, "r", jobs[0].State)
	assert.Equal(t, "annotate_job-2", jobs[1].Name)
	assert.Equal(t, "qw", jobs[1].State)
}

func TestParseActiveQueue_Empty(t *testing.T) {
	jobs, err := ParseActiveQueue(strings.NewReader(`<job_info></job_info>`))
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestParseActiveQueue_MalformedXML(t *testing.T) {
	_, err := ParseActiveQueue(strings.NewReader(`<job_info><unterminated`))
	require.Error(t, err)
	assert.True(t, catalogerr.IsInvalidArgument(err))
}
