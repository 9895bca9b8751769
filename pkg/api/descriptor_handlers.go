package api

import (
	"net/http"

	"github.com/cityatlas/cityatlas/pkg/httputil"
)

func (s *Server) getStyleDescriptor(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}

	style, err := s.generator.GenerateStyleExpression(r.Context(), tenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, style)
}

func (s *Server) getFilterDescriptors(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}

	filters, err := s.generator.GenerateFilterDescriptors(r.Context(), tenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, filters)
}
