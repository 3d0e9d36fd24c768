package catalogacl

import "github.com/opencga/catalog-core/internal/catalogmodel"

// derivationTable is the static map from a study-level permission to the
// per-entity permission it implies on a child kind (§3 "Study
// permissions additionally carry implicit derivations", GLOSSARY
// "derivation table"). Keyed first by child EntityKind, then by the
// child permission being checked, yielding the study-level permission
// name that, if granted, implies it.
var derivationTable = map[catalogmodel.EntityKind]map[catalogmodel.Permission]catalogmodel.Permission{
	catalogmodel.KindFile: {
		catalogmodel.PermView:             "VIEW_FILES",
		catalogmodel.PermWrite:            "WRITE_FILES",
		catalogmodel.PermDelete:           "DELETE_FILES",
		catalogmodel.PermDownload:         "DOWNLOAD_FILES",
		catalogmodel.PermViewAnnotations:  "VIEW_FILE_ANNOTATIONS",
		catalogmodel.PermWriteAnnotations: "WRITE_FILE_ANNOTATIONS",
	},
	catalogmodel.KindFolder: {
		catalogmodel.PermView:     "VIEW_FILES",
		catalogmodel.PermWrite:    "WRITE_FILES",
		catalogmodel.PermDelete:   "DELETE_FILES",
		catalogmodel.PermDownload: "DOWNLOAD_FILES",
	},
	catalogmodel.KindSample: {
		catalogmodel.PermView:             "VIEW_SAMPLES",
		catalogmodel.PermWrite:            "WRITE_SAMPLES",
		catalogmodel.PermDelete:           "DELETE_SAMPLES",
		catalogmodel.PermViewAnnotations:  "VIEW_SAMPLE_ANNOTATIONS",
		catalogmodel.PermWriteAnnotations: "WRITE_SAMPLE_ANNOTATIONS",
	},
	catalogmodel.KindCohort: {
		catalogmodel.PermView:             "VIEW_COHORTS",
		catalogmodel.PermWrite:            "WRITE_COHORTS",
		catalogmodel.PermDelete:           "DELETE_COHORTS",
		catalogmodel.PermViewAnnotations:  "VIEW_COHORT_ANNOTATIONS",
		catalogmodel.PermWriteAnnotations: "WRITE_COHORT_ANNOTATIONS",
	},
	catalogmodel.KindJob: {
		catalogmodel.PermView:   "VIEW_JOBS",
		catalogmodel.PermWrite:  "WRITE_JOBS",
		catalogmodel.PermDelete: "DELETE_JOBS",
	},
	catalogmodel.KindIndividual: {
		catalogmodel.PermView:             "VIEW_INDIVIDUALS",
		catalogmodel.PermWrite:            "WRITE_INDIVIDUALS",
		catalogmodel.PermDelete:           "DELETE_INDIVIDUALS",
		catalogmodel.PermViewAnnotations:  "VIEW_INDIVIDUAL_ANNOTATIONS",
		catalogmodel.PermWriteAnnotations: "WRITE_INDIVIDUAL_ANNOTATIONS",
	},
	catalogmodel.KindDataset: {
		catalogmodel.PermView:   "VIEW_DATASETS",
		catalogmodel.PermWrite:  "WRITE_DATASETS",
		catalogmodel.PermDelete: "DELETE_DATASETS",
	},
	catalogmodel.KindPanel: {
		catalogmodel.PermView:   "VIEW_PANELS",
		catalogmodel.PermWrite:  "WRITE_PANELS",
		catalogmodel.PermDelete: "DELETE_PANELS",
	},
}

// deriveStudyPermission returns the study-level permission name whose
// grant implies perm on an entity of kind, and whether such a mapping
// exists. Kinds or permissions outside the table (e.g. PROJECT, STUDY
// itself) have no derivation and must be checked against their own
// entity-level ACL only.
func deriveStudyPermission(kind catalogmodel.EntityKind, perm catalogmodel.Permission) (catalogmodel.Permission, bool) {
	byPerm, ok := derivationTable[kind]
	if !ok {
		return "", false
	}
	studyPerm, ok := byPerm[perm]
	return studyPerm, ok
}
