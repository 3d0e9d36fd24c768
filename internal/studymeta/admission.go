package studymeta

import (
	"context"

	"github.com/opencga/catalog-core/internal/catalogerr"
	"github.com/opencga/catalog-core/internal/catalogmodel"
)

// FileMetadata is the subset of a file's declared metadata the admission
// algorithm needs: the sample names it contains, in their declared
// position order, and any caller-supplied explicit name->id mapping.
type FileMetadata struct {
	FileID            int64
	FileName          string
	DeclaredSamples   []string         // in file order; index is "position in the file"
	ExplicitSampleIDs map[string]int64 // optional caller-supplied name -> id
}

// CheckAndUpdateStudyConfiguration implements §4.4 "File/sample
// admission on load". cfg must be a copy obtained under the study lock
// (see ConfigCache.Update); this function mutates cfg's bimaps in place.
// The caller persists cfg afterward.
func CheckAndUpdateStudyConfiguration(ctx context.Context, cfg *catalogmodel.StudyConfiguration, meta FileMetadata, sampleCount int) error {
	if cfg.SampleNameToID == nil {
		cfg.SampleNameToID = make(map[string]int64)
	}
	if cfg.SamplesInFile == nil {
		cfg.SamplesInFile = make(map[int64][]string)
	}

	resolved := make(map[string]int64, len(meta.DeclaredSamples))

	if len(meta.ExplicitSampleIDs) > 0 {
		// §4.4 step 1: validate each explicit mapping.
		for _, name := range meta.DeclaredSamples {
			id, ok := meta.ExplicitSampleIDs[name]
			if !ok {
				return catalogerr.InvalidArgument("explicit sample mapping missing entry for %q declared in file", name)
			}
			if existing, ok := cfg.SampleNameToID[name]; ok && existing != id {
				return catalogerr.Conflict("sample %q already mapped to id %d, cannot remap to %d", name, existing, id)
			}
			resolved[name] = id
		}
	} else {
		// §4.4 step 2: auto-assign by (a) position in file if free,
		// (b) current sample count if free, (c) max(existing)+1.
		used := make(map[int64]bool, len(cfg.SampleNameToID))
		var maxID int64
		for _, id := range cfg.SampleNameToID {
			used[id] = true
			if id > maxID {
				maxID = id
			}
		}

		for position, name := range meta.DeclaredSamples {
			if id, ok := cfg.SampleNameToID[name]; ok {
				resolved[name] = id
				continue
			}

			candidate := int64(position)
			if used[candidate] {
				candidate = int64(sampleCount)
			}
			if used[candidate] {
				candidate = maxID + 1
			}
			used[candidate] = true
			if candidate > maxID {
				maxID = candidate
			}
			resolved[name] = candidate
		}
	}

	for name, id := range resolved {
		cfg.SampleNameToID[name] = id
	}

	// §4.4 step 3: samples_in_file[file_id] must match the file's
	// declared sample set exactly (no extras, no omissions).
	cfg.SamplesInFile[meta.FileID] = append([]string(nil), meta.DeclaredSamples...)

	return checkNewFile(cfg, meta.FileID, meta.FileName)
}

// checkNewFile implements §4.4 step 4: record the file in the
// name<->id bimap, failing if the name maps to a different id, the id
// maps to a different name, or the id is already indexed.
func checkNewFile(cfg *catalogmodel.StudyConfiguration, fileID int64, fileName string) error {
	if cfg.FileNameToID == nil {
		cfg.FileNameToID = make(map[string]int64)
	}
	if cfg.IndexedFiles == nil {
		cfg.IndexedFiles = make(map[int64]bool)
	}

	if existingID, ok := cfg.FileNameToID[fileName]; ok && existingID != fileID {
		return catalogerr.Conflict("file name %q already maps to id %d, cannot remap to %d", fileName, existingID, fileID)
	}
	for name, id := range cfg.FileNameToID {
		if id == fileID && name != fileName {
			return catalogerr.Conflict("file id %d already maps to name %q, cannot remap to %q", fileID, name, fileName)
		}
	}
	if cfg.IndexedFiles[fileID] {
		return catalogerr.Conflict("file id %d is already indexed", fileID)
	}

	cfg.FileNameToID[fileName] = fileID
	return nil
}
