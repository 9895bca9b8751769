package taxonomy

import (
	"fmt"
	"sort"
)

// ValidateAssignment checks a proposed value set for one record and one
// taxonomy type against the schema rules, with no store access:
//
//   - the type must belong to the record's tenant
//   - the type must not be retired
//   - every value must belong to the type
//   - single-valued types accept at most one distinct value
//
// On success it returns the normalized set: duplicates removed, sorted by
// slug, so the same input in any order persists identically.
func ValidateAssignment(record *Record, typ *TaxonomyType, values []*TaxonomyValue) ([]*TaxonomyValue, error) {
	if typ.TenantID != record.TenantID {
		return nil, &CrossScopeError{
			TypeSlug: typ.Slug,
			Detail:   fmt.Sprintf("type belongs to tenant %q, record to %q", typ.TenantID, record.TenantID),
		}
	}

	if typ.Status == TypeStatusRetired {
		return nil, fmt.Errorf("%w: %s", ErrTypeRetired, typ.Slug)
	}

	seen := make(map[int64]bool, len(values))
	normalized := make([]*TaxonomyValue, 0, len(values))
	for _, v := range values {
		if v.TypeID != typ.ID {
			return nil, &CrossScopeError{
				TypeSlug:  typ.Slug,
				ValueSlug: v.Slug,
				Detail:    "value belongs to a different type",
			}
		}
		if seen[v.ID] {
			continue
		}
		seen[v.ID] = true
		normalized = append(normalized, v)
	}

	if !typ.AllowMultiple && len(normalized) > 1 {
		return nil, &CardinalityError{TypeSlug: typ.Slug, Count: len(normalized)}
	}

	sort.Slice(normalized, func(i, j int) bool {
		return normalized[i].Slug < normalized[j].Slug
	})

	return normalized, nil
}

// ValidateRecordFinalization checks that every required active type has at
// least one assigned value. This runs at finalize/publish time only;
// intermediate edits may leave required types unassigned.
//
// assigned maps type ID to the record's current values for that type.
func ValidateRecordFinalization(record *Record, types []*TaxonomyType, assigned map[int64][]*TaxonomyValue) error {
	for _, typ := range types {
		if typ.TenantID != record.TenantID {
			return &CrossScopeError{
				TypeSlug: typ.Slug,
				Detail:   fmt.Sprintf("type belongs to tenant %q, record to %q", typ.TenantID, record.TenantID),
			}
		}
		if !typ.Required || !typ.Active() {
			continue
		}
		if len(assigned[typ.ID]) == 0 {
			return &MissingRequiredError{TypeSlug: typ.Slug}
		}
	}
	return nil
}
