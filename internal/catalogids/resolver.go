// Package catalogids implements the Identifier Resolver (§4.1): it
// parses mixed textual/numeric entity references into typed ids and
// validates their existence through a caller-supplied Lookup.
//
// Grounded on the internal/auth/arm.go, which dispatches on a
// resource string through a small set of regexes before falling through
// to a generic path (renderFragment/paramRe); this package keeps that
// same "classify the shape first, then dispatch" structure but resolves
// against the catalog's project:study/path grammar instead of a URL
// path template.
package catalogids

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/opencga/catalog-core/internal/catalogerr"
	"github.com/opencga/catalog-core/internal/catalogmodel"
)

// Reference is a single resolved entity reference (§4.1 "Output").
type Reference struct {
	Caller   catalogmodel.Principal
	StudyID  int64
	EntityID int64
	// Excluded marks a `!name` negated reference; set only in filter
	// contexts, never honored by mutating operations.
	Excluded bool
	// Failed marks a silent-mode per-item failure: EntityID is the -1
	// sentinel and the caller must not treat this entry as resolved.
	Failed bool
}

// Lookup is the narrow read interface the resolver needs from the
// metadata store. It never performs permission checks — that is the
// Permission Resolver's job (§4.2).
type Lookup interface {
	// ResolveScopedStudy resolves "projectAlias:studyAlias" under the
	// given owner (the user named before '@', or the caller if absent)
	// to a study id.
	ResolveScopedStudy(ctx context.Context, owner, projectAlias, studyAlias string) (int64, error)
	// FindByName resolves a bare name to exactly one entity among the
	// given candidate studies, returning both the entity id and the
	// study it belongs to. It returns catalogerr.Ambiguous if more than
	// one candidate matches and catalogerr.NotFound if none do.
	FindByName(ctx context.Context, studyIDs []int64, name string) (studyID, entityID int64, err error)
	// AccessibleStudies lists the studies the caller may search within
	// for a bare-name lookup (§4.1 rule 3).
	AccessibleStudies(ctx context.Context, caller catalogmodel.Principal) ([]int64, error)
}

// shape is the classification of a raw reference string (§4.1).
type shape int

const (
	shapeNumeric shape = iota
	shapeScopedWithOwner
	shapeScoped
	shapeBareName
	shapeWildcard
)

type parsed struct {
	shape     shape
	negated   bool
	owner     string // set only for shapeScopedWithOwner
	project   string // set for shapeScopedWithOwner/shapeScoped
	study     string // set for shapeScopedWithOwner/shapeScoped/shapeBareName (bare study alias)
	numericID int64  // set for shapeNumeric
	raw       string
}

// ParseReference classifies a single raw reference string per the shape
// grammar of §4.1, without touching the database. offset is the
// configured id floor: a numeric token at or below it is rejected with
// InvalidArgument rather than treated as an id.
func ParseReference(ref string, offset int64) (parsed, error) {
	raw := ref
	negated := false
	if strings.HasPrefix(ref, "!") {
		negated = true
		ref = ref[1:]
	}

	if ref == "*" {
		return parsed{shape: shapeWildcard, negated: negated, raw: raw}, nil
	}
	if ref == "" {
		return parsed{}, catalogerr.InvalidArgument("empty reference")
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if id <= offset {
			return parsed{}, catalogerr.InvalidArgument("numeric reference %d at or below id offset %d", id, offset)
		}
		return parsed{shape: shapeNumeric, negated: negated, numericID: id, raw: raw}, nil
	}

	owner := ""
	rest := ref
	if at := strings.IndexByte(ref, '@'); at >= 0 {
		owner = ref[:at]
		rest = ref[at+1:]
	}

	// rest may still carry a "/path" suffix; the resolver only needs the
	// project:study portion to find the study, the path is handled by
	// the Permission Resolver's ancestor walk (§4.2 rule 5).
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		rest = rest[:slash]
	}

	if colon := strings.IndexByte(rest, ':'); colon >= 0 {
		project := rest[:colon]
		study := rest[colon+1:]
		if project == "" || study == "" {
			return parsed{}, catalogerr.InvalidArgument("malformed scoped reference %q", raw)
		}
		if owner != "" {
			return parsed{shape: shapeScopedWithOwner, negated: negated, owner: owner, project: project, study: study, raw: raw}, nil
		}
		return parsed{shape: shapeScoped, negated: negated, project: project, study: study, raw: raw}, nil
	}

	if owner != "" {
		// "user@studyAlias" with no project qualifier: classified as
		// shapeScopedWithOwner with an empty project, which Resolve
		// passes unchanged to Lookup.ResolveScopedStudy; the owner's
		// other studies are not searched by name.
		return parsed{shape: shapeScopedWithOwner, negated: negated, owner: owner, study: rest, raw: raw}, nil
	}

	return parsed{shape: shapeBareName, negated: negated, study: rest, raw: raw}, nil
}

// Resolve resolves one reference to a Reference. silent controls whether
// a failure yields a sentinel -1 Reference (silent=true) or a returned
// error (silent=false), per §4.1 "Silent mode".
func Resolve(ctx context.Context, lookup Lookup, caller catalogmodel.Principal, ref string, offset int64, silent bool) (Reference, error) {
	p, err := ParseReference(ref, offset)
	if err != nil {
		if silent {
			return Reference{Caller: caller, EntityID: -1, Failed: true}, nil
		}
		return Reference{}, err
	}

	var result Reference
	switch p.shape {
	case shapeWildcard:
		result = Reference{Caller: caller, EntityID: -1, Excluded: p.negated}

	case shapeNumeric:
		result = Reference{Caller: caller, EntityID: p.numericID, Excluded: p.negated}

	case shapeScopedWithOwner:
		owner := p.owner
		if owner == "" {
			// Open question resolution (§9): owner defaults to the
			// caller when the scoped form carries no explicit "user@".
			owner = caller.Name
		}
		studyID, rerr := lookup.ResolveScopedStudy(ctx, owner, p.project, p.study)
		if rerr != nil {
			if silent {
				return Reference{Caller: caller, EntityID: -1, Failed: true}, nil
			}
			return Reference{}, rerr
		}
		result = Reference{Caller: caller, StudyID: studyID, EntityID: studyID, Excluded: p.negated}

	case shapeScoped:
		studyID, rerr := lookup.ResolveScopedStudy(ctx, caller.Name, p.project, p.study)
		if rerr != nil {
			if silent {
				return Reference{Caller: caller, EntityID: -1, Failed: true}, nil
			}
			return Reference{}, rerr
		}
		result = Reference{Caller: caller, StudyID: studyID, EntityID: studyID, Excluded: p.negated}

	case shapeBareName:
		studies, serr := lookup.AccessibleStudies(ctx, caller)
		if serr != nil {
			if silent {
				return Reference{Caller: caller, EntityID: -1, Failed: true}, nil
			}
			return Reference{}, serr
		}
		matchedStudyID, id, ferr := lookup.FindByName(ctx, studies, p.study)
		if ferr != nil {
			if silent {
				return Reference{Caller: caller, EntityID: -1, Failed: true}, nil
			}
			return Reference{}, ferr
		}
		result = Reference{Caller: caller, StudyID: matchedStudyID, EntityID: id, Excluded: p.negated}

	default:
		return Reference{}, catalogerr.InvalidArgument("unrecognized reference shape for %q", ref)
	}

	return result, nil
}

// ResolveBulk resolves a comma-separated list of references, preserving
// input order (§5 "Bulk operations... process and return results
// in the input order"). In silent mode, per-item failures are absorbed
// into a Failed sentinel entry rather than aborting the batch; in
// non-silent mode the first failure aborts and is returned as an error.
func ResolveBulk(ctx context.Context, lookup Lookup, caller catalogmodel.Principal, refs string, offset int64, silent bool) ([]Reference, error) {
	parts := strings.Split(refs, ",")
	out := make([]Reference, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		ref, err := Resolve(ctx, lookup, caller, part, offset, silent)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", part, err)
		}
		out = append(out, ref)
	}
	return out, nil
}
