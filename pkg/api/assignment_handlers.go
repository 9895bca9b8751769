package api

import (
	"net/http"

	"github.com/cityatlas/cityatlas/pkg/httputil"
	"github.com/cityatlas/cityatlas/pkg/taxonomy"
)

// replaceAssignments validates and persists a record's value set for one
// taxonomy type. The whole set is replaced atomically; the response
// carries the normalized set that was stored.
func (s *Server) replaceAssignments(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	recordID, ok := httputil.ParsePathStringOrError(w, r, "record_id")
	if !ok {
		return
	}
	typeID, ok := httputil.ParsePathInt64OrError(w, r, "type_id")
	if !ok {
		return
	}

	var req struct {
		ValueIDs []int64 `json:"value_ids"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	typ, err := s.taxonomies.GetType(r.Context(), tenantID, typeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	available, err := s.taxonomies.ListValues(r.Context(), typeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	byID := make(map[int64]*taxonomy.TaxonomyValue, len(available))
	for _, v := range available {
		byID[v.ID] = v
	}

	values := make([]*taxonomy.TaxonomyValue, 0, len(req.ValueIDs))
	for _, id := range req.ValueIDs {
		v, found := byID[id]
		if !found {
			s.writeError(w, r, taxonomy.ErrValueNotFound)
			return
		}
		values = append(values, v)
	}

	record := &taxonomy.Record{ID: recordID, TenantID: tenantID}
	normalized, err := taxonomy.ValidateAssignment(record, typ, values)
	if err != nil {
		s.recordValidationFailure(err)
		s.writeError(w, r, err)
		return
	}

	if err := s.taxonomies.ReplaceAssignments(r.Context(), recordID, typeID, normalized); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, normalized)
}

func (s *Server) listAssignments(w http.ResponseWriter, r *http.Request) {
	recordID, ok := httputil.ParsePathStringOrError(w, r, "record_id")
	if !ok {
		return
	}

	values, err := s.taxonomies.ListAssignments(r.Context(), recordID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, values)
}

// checkFinalization verifies that every required active type has a value
// before a record can be published. 204 means publishable.
func (s *Server) checkFinalization(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	recordID, ok := httputil.ParsePathStringOrError(w, r, "record_id")
	if !ok {
		return
	}

	types, err := s.taxonomies.ListTypes(r.Context(), tenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	assignedValues, err := s.taxonomies.ListAssignments(r.Context(), recordID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	assigned := make(map[int64][]*taxonomy.TaxonomyValue)
	for _, v := range assignedValues {
		assigned[v.TypeID] = append(assigned[v.TypeID], v)
	}

	record := &taxonomy.Record{ID: recordID, TenantID: tenantID}
	if err := taxonomy.ValidateRecordFinalization(record, types, assigned); err != nil {
		s.recordValidationFailure(err)
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) recordValidationFailure(err error) {
	if s.metrics == nil {
		return
	}
	kind := "other"
	switch {
	case taxonomy.IsCardinalityError(err):
		kind = "cardinality"
	case taxonomy.IsMissingRequiredError(err):
		kind = "missing_required"
	case taxonomy.IsCrossScopeError(err):
		kind = "cross_scope"
	}
	s.metrics.ValidationFailuresTotal.WithLabelValues(kind).Inc()
}
