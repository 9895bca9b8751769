package api

import (
	"errors"
	"net/http"

	"github.com/cityatlas/cityatlas/pkg/authz"
	"github.com/cityatlas/cityatlas/pkg/database"
	"github.com/cityatlas/cityatlas/pkg/httputil"
	"github.com/cityatlas/cityatlas/pkg/identity"
	"github.com/cityatlas/cityatlas/pkg/observability"
	"github.com/cityatlas/cityatlas/pkg/taxonomy"
	"github.com/cityatlas/cityatlas/pkg/tenant"
)

// writeError maps domain errors onto HTTP responses. Authorization
// failures always answer with the same uniform message regardless of
// whether the tenant, grant, or record exists.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, authz.ErrDenied):
		httputil.WriteForbidden(w, "not authorized")
	case authz.IsPrivilegeEscalation(err):
		httputil.WriteForbidden(w, "not authorized")
	case authz.IsInvariantViolation(err):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, authz.ErrGrantNotFound),
		errors.Is(err, identity.ErrNotFound),
		errors.Is(err, tenant.ErrNotFound),
		errors.Is(err, tenant.ErrInvitationNotFound),
		errors.Is(err, taxonomy.ErrTypeNotFound),
		errors.Is(err, taxonomy.ErrValueNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, authz.ErrDuplicateGrant),
		errors.Is(err, identity.ErrUsernameTaken),
		errors.Is(err, tenant.ErrSlugTaken),
		errors.Is(err, taxonomy.ErrDuplicateSlug),
		errors.Is(err, tenant.ErrInvitationAccepted):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, tenant.ErrInvitationExpired):
		httputil.WriteErrorMessage(w, http.StatusGone, err.Error())
	case taxonomy.IsCardinalityError(err),
		taxonomy.IsMissingRequiredError(err),
		taxonomy.IsCrossScopeError(err),
		errors.Is(err, taxonomy.ErrTypeRetired):
		httputil.WriteUnprocessable(w, err.Error(), validationDetails(err))
	case errors.Is(err, database.ErrUnavailable):
		httputil.WriteServiceUnavailable(w, "temporarily unavailable")
	default:
		observability.FromContext(r.Context()).WithError(err).Error("request failed")
		httputil.WriteInternalError(w, err)
	}
}

func validationDetails(err error) map[string]string {
	details := map[string]string{}

	var ce *taxonomy.CardinalityError
	if errors.As(err, &ce) {
		details["kind"] = "cardinality"
		details["type"] = ce.TypeSlug
		return details
	}

	var me *taxonomy.MissingRequiredError
	if errors.As(err, &me) {
		details["kind"] = "missing_required"
		details["type"] = me.TypeSlug
		return details
	}

	var xe *taxonomy.CrossScopeError
	if errors.As(err, &xe) {
		details["kind"] = "cross_scope"
		details["type"] = xe.TypeSlug
		if xe.ValueSlug != "" {
			details["value"] = xe.ValueSlug
		}
		return details
	}

	if errors.Is(err, taxonomy.ErrTypeRetired) {
		details["kind"] = "type_retired"
	}
	return details
}
