package controllers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/itamops/assetman/modules/audit/services"
	"github.com/itamops/assetman/pkg/application"
	"github.com/itamops/assetman/pkg/httpapi"
)

type AuditAPIController struct {
	app       application.Application
	audit     *services.AuditService
	apiPrefix string
}

func NewAuditAPIController(app application.Application) application.Controller {
	return &AuditAPIController{
		app:       app,
		audit:     app.Service(services.AuditService{}).(*services.AuditService),
		apiPrefix: "/api/v1/audit",
	}
}

func (c *AuditAPIController) Key() string {
	return c.apiPrefix
}

func (c *AuditAPIController) Register(r *mux.Router) {
	r.HandleFunc(c.apiPrefix, c.Query).Methods(http.MethodGet)
}

// Query lists audit events descending by occurrence time. Filters: subject_id,
// event_type, actor_id, limit.
func (c *AuditAPIController) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f services.Filter

	if raw := q.Get("subject_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			_ = httpapi.WriteError(w, http.StatusBadRequest, "ITAM_INVALID_QUERY", "subject_id must be a uuid", nil)
			return
		}
		f.SubjectID = &id
	}
	if raw := q.Get("event_type"); raw != "" {
		f.EventType = &raw
	}
	if raw := q.Get("actor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			_ = httpapi.WriteError(w, http.StatusBadRequest, "ITAM_INVALID_QUERY", "actor_id must be a uuid", nil)
			return
		}
		f.ActorID = &id
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			_ = httpapi.WriteError(w, http.StatusBadRequest, "ITAM_INVALID_QUERY", "limit must be between 1 and 1000", nil)
			return
		}
		f.Limit = n
	}

	events, err := c.audit.Query(r.Context(), f)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusInternalServerError, "ITAM_INTERNAL", "failed to query audit log", nil)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}
