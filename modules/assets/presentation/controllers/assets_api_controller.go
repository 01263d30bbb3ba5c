package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/itamops/assetman/modules/assets/domain/assignment"
	"github.com/itamops/assetman/modules/assets/domain/relation"
	"github.com/itamops/assetman/modules/assets/services"
	"github.com/itamops/assetman/pkg/application"
	"github.com/itamops/assetman/pkg/composables"
	"github.com/itamops/assetman/pkg/httpapi"
)

var validate = validator.New()

type AssetsAPIController struct {
	app         application.Application
	assignments *services.AssignmentService
	relations   *services.RelationService
	orgUnits    *services.OrgUnitService
	apiPrefix   string
}

func NewAssetsAPIController(app application.Application) application.Controller {
	return &AssetsAPIController{
		app:         app,
		assignments: app.Service(services.AssignmentService{}).(*services.AssignmentService),
		relations:   app.Service(services.RelationService{}).(*services.RelationService),
		orgUnits:    app.Service(services.OrgUnitService{}).(*services.OrgUnitService),
		apiPrefix:   "/api/v1",
	}
}

func (c *AssetsAPIController) Key() string {
	return c.apiPrefix
}

func (c *AssetsAPIController) Register(r *mux.Router) {
	r.HandleFunc("/health", c.Health).Methods(http.MethodGet)

	api := r.PathPrefix(c.apiPrefix).Subrouter()

	api.HandleFunc("/assets/{asset_id}/assignments", instrumentAPI("assign_asset", c.AssignAsset)).Methods(http.MethodPost)
	api.HandleFunc("/assets/{asset_id}/assignments", instrumentAPI("asset_timeline", c.AssetTimeline)).Methods(http.MethodGet)
	api.HandleFunc("/assets/{asset_id}/assignments:reassign", instrumentAPI("reassign_asset", c.ReassignAsset)).Methods(http.MethodPost)
	api.HandleFunc("/assets/{asset_id}/assignments:close", instrumentAPI("unassign_asset", c.UnassignAsset)).Methods(http.MethodPost)

	api.HandleFunc("/licenses/{license_id}/assignments", instrumentAPI("assign_license", c.AssignLicense)).Methods(http.MethodPost)
	api.HandleFunc("/licenses/{license_id}/assignments", instrumentAPI("license_timeline", c.LicenseTimeline)).Methods(http.MethodGet)
	api.HandleFunc("/licenses/{license_id}/assignments:close", instrumentAPI("unassign_license", c.UnassignLicense)).Methods(http.MethodPost)

	api.HandleFunc("/relations", instrumentAPI("add_relation", c.AddRelation)).Methods(http.MethodPost)
	api.HandleFunc("/relations", instrumentAPI("remove_relation", c.RemoveRelation)).Methods(http.MethodDelete)
	api.HandleFunc("/assets/{asset_id}/ancestors", instrumentAPI("asset_ancestors", c.AssetAncestors)).Methods(http.MethodGet)
	api.HandleFunc("/assets/{asset_id}/descendants", instrumentAPI("asset_descendants", c.AssetDescendants)).Methods(http.MethodGet)

	api.HandleFunc("/org-units/{org_unit_id}/parent", instrumentAPI("set_org_parent", c.SetOrgParent)).Methods(http.MethodPut)
	api.HandleFunc("/org-units/{org_unit_id}/ancestors", instrumentAPI("org_ancestors", c.OrgAncestors)).Methods(http.MethodGet)
}

func (c *AssetsAPIController) Health(w http.ResponseWriter, r *http.Request) {
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type assignAssetRequest struct {
	PersonID   *uuid.UUID `json:"person_id"`
	LocationID *uuid.UUID `json:"location_id"`
	From       string     `json:"from" validate:"required"`
	Purpose    string     `json:"purpose" validate:"max=255"`
	Notes      string     `json:"notes" validate:"max=2048"`
}

func (c *AssetsAPIController) AssignAsset(w http.ResponseWriter, r *http.Request) {
	assetID, ok := pathUUID(w, r, "asset_id")
	if !ok {
		return
	}
	var req assignAssetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	from, ok := parseTimestamp(w, "from", req.From)
	if !ok {
		return
	}

	out, err := c.assignments.AssignAsset(requestContext(r), services.AssignAssetInput{
		AssetID:    assetID,
		PersonID:   req.PersonID,
		LocationID: req.LocationID,
		From:       from,
		Purpose:    req.Purpose,
		Notes:      req.Notes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, out)
}

type reassignAssetRequest struct {
	To         string     `json:"to" validate:"required"`
	From       string     `json:"from" validate:"required"`
	PersonID   *uuid.UUID `json:"person_id"`
	LocationID *uuid.UUID `json:"location_id"`
	Purpose    string     `json:"purpose" validate:"max=255"`
	Notes      string     `json:"notes" validate:"max=2048"`
}

func (c *AssetsAPIController) ReassignAsset(w http.ResponseWriter, r *http.Request) {
	assetID, ok := pathUUID(w, r, "asset_id")
	if !ok {
		return
	}
	var req reassignAssetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	to, ok := parseTimestamp(w, "to", req.To)
	if !ok {
		return
	}
	from, ok := parseTimestamp(w, "from", req.From)
	if !ok {
		return
	}

	out, err := c.assignments.ReassignAsset(requestContext(r), services.ReassignAssetInput{
		AssetID:    assetID,
		To:         to,
		PersonID:   req.PersonID,
		LocationID: req.LocationID,
		From:       from,
		Purpose:    req.Purpose,
		Notes:      req.Notes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, out)
}

type closeAssignmentRequest struct {
	To string `json:"to" validate:"required"`
}

func (c *AssetsAPIController) UnassignAsset(w http.ResponseWriter, r *http.Request) {
	assetID, ok := pathUUID(w, r, "asset_id")
	if !ok {
		return
	}
	var req closeAssignmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	to, ok := parseTimestamp(w, "to", req.To)
	if !ok {
		return
	}

	if err := c.assignments.UnassignAsset(requestContext(r), assetID, to); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (c *AssetsAPIController) AssetTimeline(w http.ResponseWriter, r *http.Request) {
	assetID, ok := pathUUID(w, r, "asset_id")
	if !ok {
		return
	}
	rows, err := c.assignments.AssetTimeline(r.Context(), assetID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"asset_id":    assetID,
		"assignments": rows,
	})
}

type assignLicenseRequest struct {
	PersonID *uuid.UUID `json:"person_id"`
	AssetID  *uuid.UUID `json:"asset_id"`
	From     string     `json:"from" validate:"required"`
}

func (c *AssetsAPIController) AssignLicense(w http.ResponseWriter, r *http.Request) {
	licenseID, ok := pathUUID(w, r, "license_id")
	if !ok {
		return
	}
	var req assignLicenseRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	from, ok := parseTimestamp(w, "from", req.From)
	if !ok {
		return
	}

	out, err := c.assignments.AssignLicense(requestContext(r), services.AssignLicenseInput{
		LicenseID: licenseID,
		PersonID:  req.PersonID,
		AssetID:   req.AssetID,
		From:      from,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, out)
}

type unassignLicenseRequest struct {
	TargetKind string    `json:"target_kind" validate:"required,oneof=person asset"`
	TargetID   uuid.UUID `json:"target_id" validate:"required"`
	To         string    `json:"to" validate:"required"`
}

func (c *AssetsAPIController) UnassignLicense(w http.ResponseWriter, r *http.Request) {
	licenseID, ok := pathUUID(w, r, "license_id")
	if !ok {
		return
	}
	var req unassignLicenseRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	to, ok := parseTimestamp(w, "to", req.To)
	if !ok {
		return
	}

	err := c.assignments.UnassignLicense(requestContext(r), services.UnassignLicenseInput{
		LicenseID:  licenseID,
		TargetKind: assignment.TargetKind(req.TargetKind),
		TargetID:   req.TargetID,
		To:         to,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (c *AssetsAPIController) LicenseTimeline(w http.ResponseWriter, r *http.Request) {
	licenseID, ok := pathUUID(w, r, "license_id")
	if !ok {
		return
	}
	rows, err := c.assignments.LicenseTimeline(r.Context(), licenseID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"license_id":  licenseID,
		"assignments": rows,
	})
}

type relationRequest struct {
	ParentID uuid.UUID `json:"parent_id" validate:"required"`
	ChildID  uuid.UUID `json:"child_id" validate:"required"`
	Type     string    `json:"type" validate:"required,max=64"`
}

func (c *AssetsAPIController) AddRelation(w http.ResponseWriter, r *http.Request) {
	var req relationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	err := c.relations.AddRelation(requestContext(r), relation.Relation{
		ParentID: req.ParentID,
		ChildID:  req.ChildID,
		Type:     relation.Type(req.Type),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, req)
}

func (c *AssetsAPIController) RemoveRelation(w http.ResponseWriter, r *http.Request) {
	var req relationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	err := c.relations.RemoveRelation(requestContext(r), relation.Relation{
		ParentID: req.ParentID,
		ChildID:  req.ChildID,
		Type:     relation.Type(req.Type),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (c *AssetsAPIController) AssetAncestors(w http.ResponseWriter, r *http.Request) {
	assetID, ok := pathUUID(w, r, "asset_id")
	if !ok {
		return
	}
	ids, err := c.relations.Ancestors(assetID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"asset_id": assetID, "ancestors": ids})
}

func (c *AssetsAPIController) AssetDescendants(w http.ResponseWriter, r *http.Request) {
	assetID, ok := pathUUID(w, r, "asset_id")
	if !ok {
		return
	}
	ids, err := c.relations.Descendants(assetID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"asset_id": assetID, "descendants": ids})
}

type setOrgParentRequest struct {
	ParentID *uuid.UUID `json:"parent_id"`
}

func (c *AssetsAPIController) SetOrgParent(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := pathUUID(w, r, "org_unit_id")
	if !ok {
		return
	}
	var req setOrgParentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := c.orgUnits.SetOrgParent(requestContext(r), nodeID, req.ParentID); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"org_unit_id": nodeID, "parent_id": req.ParentID})
}

func (c *AssetsAPIController) OrgAncestors(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := pathUUID(w, r, "org_unit_id")
	if !ok {
		return
	}
	chain, err := c.orgUnits.OrgAncestors(nodeID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"org_unit_id": nodeID, "ancestors": chain})
}

// ---- request helpers ----

// requestContext attaches the acting principal from the X-Actor-Id header.
// Absent or malformed actors are recorded as system-initiated.
func requestContext(r *http.Request) context.Context {
	ctx := r.Context()
	if raw := r.Header.Get("X-Actor-Id"); raw != "" {
		if actor, err := uuid.Parse(raw); err == nil {
			ctx = composables.WithActor(ctx, actor)
		}
	}
	return ctx
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "ITAM_INVALID_PATH", name+" must be a uuid", nil)
		return uuid.Nil, false
	}
	return id, true
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(r.Body, dst); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "ITAM_INVALID_BODY", "invalid json body", nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "ITAM_INVALID_BODY", err.Error(), nil)
		return false
	}
	return true
}

func decodeJSON(body io.Reader, dst any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func parseTimestamp(w http.ResponseWriter, field, raw string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "ITAM_INVALID_BODY", field+" must be an RFC3339 timestamp", nil)
		return time.Time{}, false
	}
	return t.UTC(), true
}

func writeServiceError(w http.ResponseWriter, err error) {
	var se *services.ServiceError
	if errors.As(err, &se) {
		_ = httpapi.WriteError(w, se.Status, se.Code, se.Message, se.Meta)
		return
	}
	_ = httpapi.WriteError(w, http.StatusInternalServerError, "ITAM_INTERNAL", "internal error", nil)
}
