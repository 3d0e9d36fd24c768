package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/opencga/catalog-core/internal/catalogerr"
	"github.com/opencga/catalog-core/internal/catalogmodel"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

// studyConfigDoc is the JSONB-encoded wire shape of
// catalogmodel.StudyConfiguration (§6 "one document per study
// configuration").
type studyConfigDoc struct {
	SampleNameToID     map[string]int64   `json:"sampleNameToId"`
	FileNameToID       map[string]int64   `json:"fileNameToId"`
	CohortNameToID     map[string]int64   `json:"cohortNameToId"`
	IndexedFiles       map[int64]bool     `json:"indexedFiles"`
	SamplesInFile      map[int64][]string `json:"samplesInFile"`
	PermissionRules    []catalogmodel.PermissionRule `json:"permissionRules"`
	AutoIncrementCount map[catalogmodel.EntityKind]int64 `json:"autoIncrementCount"`
}

// GetStudyConfiguration implements studymeta.ConfigStore's optimistic
// read (§4.4): returns nil, nil when cachedTimestamp is current.
func (s *Store) GetStudyConfiguration(ctx context.Context, studyID int64, cachedTimestamp string) (*catalogmodel.StudyConfiguration, error) {
	var lastModified time.Time
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT last_modified, document FROM study_configurations WHERE study_id = $1
	`, studyID).Scan(&lastModified, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalogerr.NotFound("no configuration stored for study %d", studyID)
	}
	if err != nil {
		return nil, err
	}

	if cachedTimestamp != "" && lastModified.UTC().Format(timestampLayout) == cachedTimestamp {
		return nil, nil
	}

	var doc studyConfigDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, catalogerr.Internal(err, "decoding study configuration document for study %d", studyID)
	}

	return &catalogmodel.StudyConfiguration{
		StudyID:            studyID,
		LastModified:        lastModified,
		SampleNameToID:      doc.SampleNameToID,
		FileNameToID:        doc.FileNameToID,
		CohortNameToID:      doc.CohortNameToID,
		IndexedFiles:        doc.IndexedFiles,
		SamplesInFile:       doc.SamplesInFile,
		PermissionRules:     doc.PermissionRules,
		AutoIncrementCount:  doc.AutoIncrementCount,
	}, nil
}

// UpdateStudyConfiguration implements studymeta.ConfigStore. The caller
// is expected to hold the study lock for the duration of this call
// (§4.4 "every mutating operation... MUST be enclosed in acquire
// ... release").
func (s *Store) UpdateStudyConfiguration(ctx context.Context, cfg *catalogmodel.StudyConfiguration) error {
	doc := studyConfigDoc{
		SampleNameToID:     cfg.SampleNameToID,
		FileNameToID:       cfg.FileNameToID,
		CohortNameToID:     cfg.CohortNameToID,
		IndexedFiles:       cfg.IndexedFiles,
		SamplesInFile:      cfg.SamplesInFile,
		PermissionRules:    cfg.PermissionRules,
		AutoIncrementCount: cfg.AutoIncrementCount,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return catalogerr.Internal(err, "encoding study configuration document for study %d", cfg.StudyID)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO study_configurations (study_id, last_modified, document)
		VALUES ($1, $2, $3)
		ON CONFLICT (study_id) DO UPDATE SET last_modified = $2, document = $3
	`, cfg.StudyID, now, raw)
	if err != nil {
		return err
	}
	cfg.LastModified = now
	return nil
}
