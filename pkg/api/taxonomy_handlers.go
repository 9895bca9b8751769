package api

import (
	"net/http"

	"github.com/cityatlas/cityatlas/pkg/httputil"
	"github.com/cityatlas/cityatlas/pkg/taxonomy"
)

func (s *Server) createType(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}

	var req struct {
		Slug              string `json:"slug"`
		Name              string `json:"name"`
		Required          bool   `json:"required"`
		AllowMultiple     bool   `json:"allow_multiple"`
		UsedForFiltering  bool   `json:"used_for_filtering"`
		UsedForMapStyling bool   `json:"used_for_map_styling"`
		DisplayOrder      int    `json:"display_order"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Slug == "" || req.Name == "" {
		httputil.WriteBadRequest(w, "slug and name are required")
		return
	}

	typ := &taxonomy.TaxonomyType{
		TenantID:          tenantID,
		Slug:              req.Slug,
		Name:              req.Name,
		Required:          req.Required,
		AllowMultiple:     req.AllowMultiple,
		UsedForFiltering:  req.UsedForFiltering,
		UsedForMapStyling: req.UsedForMapStyling,
		DisplayOrder:      req.DisplayOrder,
	}
	if err := s.taxonomies.CreateType(r.Context(), typ); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, typ)
}

func (s *Server) listTypes(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}

	types, err := s.taxonomies.ListTypes(r.Context(), tenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, types)
}

func (s *Server) updateType(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	typeID, ok := httputil.ParsePathInt64OrError(w, r, "type_id")
	if !ok {
		return
	}

	typ, err := s.taxonomies.GetType(r.Context(), tenantID, typeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req struct {
		Name              *string `json:"name"`
		Required          *bool   `json:"required"`
		AllowMultiple     *bool   `json:"allow_multiple"`
		UsedForFiltering  *bool   `json:"used_for_filtering"`
		UsedForMapStyling *bool   `json:"used_for_map_styling"`
		DisplayOrder      *int    `json:"display_order"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if req.Name != nil {
		typ.Name = *req.Name
	}
	if req.Required != nil {
		typ.Required = *req.Required
	}
	if req.AllowMultiple != nil {
		typ.AllowMultiple = *req.AllowMultiple
	}
	if req.UsedForFiltering != nil {
		typ.UsedForFiltering = *req.UsedForFiltering
	}
	if req.UsedForMapStyling != nil {
		typ.UsedForMapStyling = *req.UsedForMapStyling
	}
	if req.DisplayOrder != nil {
		typ.DisplayOrder = *req.DisplayOrder
	}

	if err := s.taxonomies.UpdateType(r.Context(), typ); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, typ)
}

func (s *Server) retireType(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	typeID, ok := httputil.ParsePathInt64OrError(w, r, "type_id")
	if !ok {
		return
	}

	if err := s.taxonomies.RetireType(r.Context(), tenantID, typeID); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) deleteType(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	typeID, ok := httputil.ParsePathInt64OrError(w, r, "type_id")
	if !ok {
		return
	}

	if err := s.taxonomies.DeleteType(r.Context(), tenantID, typeID); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) createValue(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	typeID, ok := httputil.ParsePathInt64OrError(w, r, "type_id")
	if !ok {
		return
	}

	var req struct {
		Slug           string  `json:"slug"`
		Label          string  `json:"label"`
		Color          string  `json:"color"`
		Icon           string  `json:"icon"`
		SizeMultiplier float64 `json:"size_multiplier"`
		DisplayOrder   int     `json:"display_order"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Slug == "" || req.Label == "" {
		httputil.WriteBadRequest(w, "slug and label are required")
		return
	}

	v := &taxonomy.TaxonomyValue{
		TypeID:         typeID,
		Slug:           req.Slug,
		Label:          req.Label,
		Color:          req.Color,
		Icon:           req.Icon,
		SizeMultiplier: req.SizeMultiplier,
		DisplayOrder:   req.DisplayOrder,
	}
	if err := s.taxonomies.CreateValue(r.Context(), tenantID, v); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, v)
}

func (s *Server) listValues(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	typeID, ok := httputil.ParsePathInt64OrError(w, r, "type_id")
	if !ok {
		return
	}

	// Scope check before listing so a foreign type reads as absent
	if _, err := s.taxonomies.GetType(r.Context(), tenantID, typeID); err != nil {
		s.writeError(w, r, err)
		return
	}

	values, err := s.taxonomies.ListValues(r.Context(), typeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, values)
}

func (s *Server) updateValue(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	valueID, ok := httputil.ParsePathInt64OrError(w, r, "value_id")
	if !ok {
		return
	}

	var req struct {
		Label          string  `json:"label"`
		Color          string  `json:"color"`
		Icon           string  `json:"icon"`
		SizeMultiplier float64 `json:"size_multiplier"`
		DisplayOrder   int     `json:"display_order"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Label == "" {
		httputil.WriteBadRequest(w, "label is required")
		return
	}
	if req.SizeMultiplier == 0 {
		req.SizeMultiplier = 1.0
	}

	v := &taxonomy.TaxonomyValue{
		ID:             valueID,
		Label:          req.Label,
		Color:          req.Color,
		Icon:           req.Icon,
		SizeMultiplier: req.SizeMultiplier,
		DisplayOrder:   req.DisplayOrder,
	}
	if err := s.taxonomies.UpdateValue(r.Context(), tenantID, v); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, v)
}

func (s *Server) deleteValue(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	valueID, ok := httputil.ParsePathInt64OrError(w, r, "value_id")
	if !ok {
		return
	}

	if err := s.taxonomies.DeleteValue(r.Context(), tenantID, valueID); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// importSeed loads a YAML taxonomy definition, typically at city
// onboarding. The body is the seed file itself, not JSON.
func (s *Server) importSeed(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}

	seed, err := taxonomy.LoadSeed(r.Body)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := s.taxonomies.ImportSeed(r.Context(), tenantID, seed); err != nil {
		s.writeError(w, r, err)
		return
	}

	types, err := s.taxonomies.ListTypes(r.Context(), tenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, types)
}
