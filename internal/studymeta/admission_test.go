package studymeta

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencga/catalog-core/internal/catalogerr"
	"github.com/opencga/catalog-core/internal/catalogmodel"
)

func emptyConfig() *catalogmodel.StudyConfiguration {
	return &catalogmodel.StudyConfiguration{
		SampleNameToID: make(map[string]int64),
		FileNameToID:   make(map[string]int64),
		CohortNameToID: make(map[string]int64),
		IndexedFiles:   make(map[int64]bool),
		SamplesInFile:  make(map[int64][]string),
	}
}

// TestCheckAndUpdateStudyConfiguration_AutoAssignsByPosition pins step 2
// (a): a brand-new sample free at its declared position gets that id.
func TestCheckAndUpdateStudyConfiguration_AutoAssignsByPosition(t *testing.T) {
	cfg := emptyConfig()
	meta := FileMetadata{FileID: 1, FileName: "f1.bam", DeclaredSamples: []string{"s0", "s1"}}

	require.NoError(t, CheckAndUpdateStudyConfiguration(context.Background(), cfg, meta, 0))

	assert.Equal(t, int64(0), cfg.SampleNameToID["s0"])
	assert.Equal(t, int64(1), cfg.SampleNameToID["s1"])
	assert.Equal(t, []string{"s0", "s1"}, cfg.SamplesInFile[1])
}

// TestCheckAndUpdateStudyConfiguration_FallsBackPastCollision pins steps
// 2(b)/(c): when the positional id is already taken, fall back to the
// current sample count, and finally to max(existing)+1.
func TestCheckAndUpdateStudyConfiguration_FallsBackPastCollision(t *testing.T) {
	cfg := emptyConfig()
	cfg.SampleNameToID["already_at_0"] = 0
	cfg.SampleNameToID["already_at_2"] = 2

	meta := FileMetadata{FileID: 1, FileName: "f1.bam", DeclaredSamples: []string{"newSample"}}
	// position 0 is taken; sampleCount (2) is also taken; falls to max+1 = 3.
	require.NoError(t, CheckAndUpdateStudyConfiguration(context.Background(), cfg, meta, 2))

	assert.Equal(t, int64(3), cfg.SampleNameToID["newSample"])
}

// TestCheckAndUpdateStudyConfiguration_ExplicitMappingConflict pins step
// 1's remap rejection.
func TestCheckAndUpdateStudyConfiguration_ExplicitMappingConflict(t *testing.T) {
	cfg := emptyConfig()
	cfg.SampleNameToID["s0"] = 5

	meta := FileMetadata{
		FileID:            1,
		FileName:          "f1.bam",
		DeclaredSamples:   []string{"s0"},
		ExplicitSampleIDs: map[string]int64{"s0": 6},
	}
	err := CheckAndUpdateStudyConfiguration(context.Background(), cfg, meta, 0)
	require.Error(t, err)
	assert.True(t, catalogerr.IsConflict(err))
}

// TestCheckAndUpdateStudyConfiguration_ExplicitMappingMissingEntry pins
// step 1's completeness check.
func TestCheckAndUpdateStudyConfiguration_ExplicitMappingMissingEntry(t *testing.T) {
	cfg := emptyConfig()
	meta := FileMetadata{
		FileID:            1,
		FileName:          "f1.bam",
		DeclaredSamples:   []string{"s0", "s1"},
		ExplicitSampleIDs: map[string]int64{"s0": 0},
	}
	err := CheckAndUpdateStudyConfiguration(context.Background(), cfg, meta, 0)
	require.Error(t, err)
	assert.True(t, catalogerr.IsInvalidArgument(err))
}

// TestCheckNewFile_NameRemapConflict pins step 4's name->different-id case.
func TestCheckNewFile_NameRemapConflict(t *testing.T) {
	cfg := emptyConfig()
	cfg.FileNameToID["f1.bam"] = 1

	err := checkNewFile(cfg, 2, "f1.bam")
	require.Error(t, err)
	assert.True(t, catalogerr.IsConflict(err))
}

// TestCheckNewFile_IdRemapConflict pins step 4's id->different-name case.
func TestCheckNewFile_IdRemapConflict(t *testing.T) {
	cfg := emptyConfig()
	cfg.FileNameToID["f1.bam"] = 1

	err := checkNewFile(cfg, 1, "renamed.bam")
	require.Error(t, err)
	assert.True(t, catalogerr.IsConflict(err))
}

// TestCheckNewFile_AlreadyIndexedConflict pins step 4's already-indexed case.
func TestCheckNewFile_AlreadyIndexedConflict(t *testing.T) {
	cfg := emptyConfig()
	cfg.FileNameToID["f1.bam"] = 1
	cfg.IndexedFiles[1] = true

	err := checkNewFile(cfg, 1, "f1.bam")
	require.Error(t, err)
	assert.True(t, catalogerr.IsConflict(err))
}

// TestCheckNewFile_FreshFileRecordsMapping is the success path.
func TestCheckNewFile_FreshFileRecordsMapping(t *testing.T) {
	cfg := emptyConfig()
	require.NoError(t, checkNewFile(cfg, 1, "f1.bam"))
	assert.Equal(t, int64(1), cfg.FileNameToID["f1.bam"])
}
