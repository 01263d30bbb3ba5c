package services

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/itamops/assetman/modules/assets/domain/assignment"
	"github.com/itamops/assetman/modules/assets/domain/events"
	"github.com/itamops/assetman/modules/audit/domain/audit"
	"github.com/itamops/assetman/pkg/composables"
	"github.com/itamops/assetman/pkg/eventbus"
	"github.com/itamops/assetman/pkg/interval"
)

type AssetAssignmentRow struct {
	ID         uuid.UUID  `json:"id"`
	AssetID    uuid.UUID  `json:"asset_id"`
	PersonID   *uuid.UUID `json:"person_id,omitempty"`
	LocationID *uuid.UUID `json:"location_id,omitempty"`
	Purpose    string     `json:"purpose,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	From       time.Time  `json:"from"`
	To         *time.Time `json:"to,omitempty"`
}

type LicenseAssignmentRow struct {
	ID         uuid.UUID             `json:"id"`
	LicenseID  uuid.UUID             `json:"license_id"`
	TargetKind assignment.TargetKind `json:"target_kind"`
	TargetID   uuid.UUID             `json:"target_id"`
	From       time.Time             `json:"from"`
	To         *time.Time            `json:"to,omitempty"`
}

type AssignmentRepository interface {
	InsertAssetAssignment(ctx context.Context, row AssetAssignmentRow) error
	CloseAssetAssignment(ctx context.Context, id uuid.UUID, to time.Time) error
	ListAssetAssignments(ctx context.Context, assetID uuid.UUID) ([]AssetAssignmentRow, error)
	AllAssetAssignments(ctx context.Context) ([]AssetAssignmentRow, error)

	InsertLicenseAssignment(ctx context.Context, row LicenseAssignmentRow) error
	CloseLicenseAssignment(ctx context.Context, id uuid.UUID, to time.Time) error
	ListLicenseAssignments(ctx context.Context, licenseID uuid.UUID) ([]LicenseAssignmentRow, error)
	AllLicenseAssignments(ctx context.Context) ([]LicenseAssignmentRow, error)
}

// AuditLog is the append side of the audit module. Coordinator services write
// exactly one event per successful mutation, inside the mutation's
// transaction; failed validations write nothing.
type AuditLog interface {
	Append(ctx context.Context, e *audit.Event) error
}

// AssignmentService coordinates asset and license assignments. The in-memory
// ledger is the authoritative validator: a mutation is applied there first
// under the subject-key lock, then persisted. A failed durable write rolls the
// ledger back, so no partially applied state is ever observable.
type AssignmentService struct {
	repo         AssignmentRepository
	ledger       *interval.Ledger
	auditLog     AuditLog
	bus          eventbus.EventBus
	maxClockSkew time.Duration
}

func NewAssignmentService(
	repo AssignmentRepository,
	ledger *interval.Ledger,
	auditLog AuditLog,
	bus eventbus.EventBus,
	maxClockSkew time.Duration,
) *AssignmentService {
	return &AssignmentService{
		repo:         repo,
		ledger:       ledger,
		auditLog:     auditLog,
		bus:          bus,
		maxClockSkew: maxClockSkew,
	}
}

// Load warms the ledger from durable storage. Call once at startup before
// serving traffic.
func (s *AssignmentService) Load(ctx context.Context) error {
	assetRows, err := s.repo.AllAssetAssignments(ctx)
	if err != nil {
		return err
	}
	for _, row := range assetRows {
		iv := interval.Interval{ID: row.ID, Key: assignment.AssetKey(row.AssetID), From: row.From, To: row.To}
		if err := s.ledger.Restore(iv); err != nil {
			return err
		}
	}

	licenseRows, err := s.repo.AllLicenseAssignments(ctx)
	if err != nil {
		return err
	}
	for _, row := range licenseRows {
		key := assignment.LicenseKey(row.LicenseID, row.TargetKind, row.TargetID)
		iv := interval.Interval{ID: row.ID, Key: key, From: row.From, To: row.To}
		if err := s.ledger.Restore(iv); err != nil {
			return err
		}
	}
	return nil
}

func (s *AssignmentService) validateFrom(from time.Time) error {
	if from.IsZero() {
		return &interval.RangeError{From: from, Reason: "from is required"}
	}
	horizon := time.Now().UTC().Add(s.maxClockSkew)
	if from.After(horizon) {
		return &interval.RangeError{From: from, Reason: "from is too far in the future"}
	}
	return nil
}

type AssignAssetInput struct {
	AssetID    uuid.UUID
	PersonID   *uuid.UUID
	LocationID *uuid.UUID
	From       time.Time
	Purpose    string
	Notes      string
}

// AssignAsset opens a new open-ended assignment for the asset. The target is
// person and/or location, inclusive-or: at least one required, both allowed.
func (s *AssignmentService) AssignAsset(ctx context.Context, input AssignAssetInput) (out *assignment.AssetAssignment, err error) {
	defer func() { recordMutation("assign_asset", err) }()

	if input.AssetID == uuid.Nil {
		return nil, newServiceError(http.StatusUnprocessableEntity, "ITAM_TARGET_MISSING", "asset_id is required", nil)
	}
	if input.PersonID == nil && input.LocationID == nil {
		return nil, mapEngineError(&assignment.TargetMissingError{
			Subject: input.AssetID,
			Allowed: []assignment.TargetKind{assignment.TargetPerson, assignment.TargetLocation},
		})
	}
	if err := s.validateFrom(input.From); err != nil {
		return nil, mapEngineError(err)
	}

	iv, err := s.ledger.OpenInterval(assignment.AssetKey(input.AssetID), input.From)
	if err != nil {
		return nil, mapEngineError(err)
	}

	entity := &assignment.AssetAssignment{
		ID:         iv.ID,
		AssetID:    input.AssetID,
		PersonID:   input.PersonID,
		LocationID: input.LocationID,
		Purpose:    input.Purpose,
		Notes:      input.Notes,
		From:       iv.From,
	}
	row := AssetAssignmentRow{
		ID:         entity.ID,
		AssetID:    entity.AssetID,
		PersonID:   entity.PersonID,
		LocationID: entity.LocationID,
		Purpose:    entity.Purpose,
		Notes:      entity.Notes,
		From:       entity.From,
	}

	err = composables.InTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.InsertAssetAssignment(txCtx, row); err != nil {
			return err
		}
		return s.appendAudit(txCtx, input.AssetID, audit.TypeAssetAssigned, row)
	})
	if err != nil {
		s.discard(iv.ID, "assign_asset")
		return nil, mapPgErrorToServiceError(err)
	}

	s.publishAssignment(ctx, events.TopicAssetAssignmentChangedV1, audit.TypeAssetAssigned, iv, row)
	return entity, nil
}

// UnassignAsset closes the asset's current open assignment at to.
func (s *AssignmentService) UnassignAsset(ctx context.Context, assetID uuid.UUID, to time.Time) (err error) {
	defer func() { recordMutation("unassign_asset", err) }()

	key := assignment.AssetKey(assetID)
	current, ok := s.ledger.CurrentInterval(key)
	if !ok {
		return newServiceError(http.StatusNotFound, "ITAM_NOT_FOUND", "no open assignment for asset", nil)
	}
	if err := s.ledger.CloseInterval(current.ID, to); err != nil {
		return mapEngineError(err)
	}

	closedAt := to.UTC()
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CloseAssetAssignment(txCtx, current.ID, closedAt); err != nil {
			return err
		}
		return s.appendAudit(txCtx, assetID, audit.TypeAssetUnassigned, map[string]any{
			"assignment_id": current.ID,
			"to":            closedAt,
		})
	})
	if err != nil {
		s.reopen(current.ID, "unassign_asset")
		return mapPgErrorToServiceError(err)
	}

	closed := current
	closed.To = &closedAt
	s.publishAssignment(ctx, events.TopicAssetAssignmentChangedV1, audit.TypeAssetUnassigned, closed, nil)
	return nil
}

type ReassignAssetInput struct {
	AssetID    uuid.UUID
	To         time.Time
	PersonID   *uuid.UUID
	LocationID *uuid.UUID
	From       time.Time
	Purpose    string
	Notes      string
}

// ReassignAsset atomically closes the current assignment at To and opens a
// new one at From under a single subject-key acquisition. From may not
// precede To.
func (s *AssignmentService) ReassignAsset(ctx context.Context, input ReassignAssetInput) (out *assignment.AssetAssignment, err error) {
	defer func() { recordMutation("reassign_asset", err) }()

	if input.PersonID == nil && input.LocationID == nil {
		return nil, mapEngineError(&assignment.TargetMissingError{
			Subject: input.AssetID,
			Allowed: []assignment.TargetKind{assignment.TargetPerson, assignment.TargetLocation},
		})
	}
	if err := s.validateFrom(input.From); err != nil {
		return nil, mapEngineError(err)
	}

	key := assignment.AssetKey(input.AssetID)
	closed, opened, err := s.ledger.Rollover(key, input.To, input.From)
	if err != nil {
		return nil, mapEngineError(err)
	}

	entity := &assignment.AssetAssignment{
		ID:         opened.ID,
		AssetID:    input.AssetID,
		PersonID:   input.PersonID,
		LocationID: input.LocationID,
		Purpose:    input.Purpose,
		Notes:      input.Notes,
		From:       opened.From,
	}
	row := AssetAssignmentRow{
		ID:         entity.ID,
		AssetID:    entity.AssetID,
		PersonID:   entity.PersonID,
		LocationID: entity.LocationID,
		Purpose:    entity.Purpose,
		Notes:      entity.Notes,
		From:       entity.From,
	}

	err = composables.InTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CloseAssetAssignment(txCtx, closed.ID, *closed.To); err != nil {
			return err
		}
		if err := s.repo.InsertAssetAssignment(txCtx, row); err != nil {
			return err
		}
		return s.appendAudit(txCtx, input.AssetID, audit.TypeAssetReassigned, map[string]any{
			"closed_assignment_id": closed.ID,
			"to":                   closed.To,
			"opened":               row,
		})
	})
	if err != nil {
		s.discard(opened.ID, "reassign_asset")
		s.reopen(closed.ID, "reassign_asset")
		return nil, mapPgErrorToServiceError(err)
	}

	s.publishAssignment(ctx, events.TopicAssetAssignmentChangedV1, audit.TypeAssetReassigned, opened, row)
	return entity, nil
}

type AssignLicenseInput struct {
	LicenseID uuid.UUID
	PersonID  *uuid.UUID
	AssetID   *uuid.UUID
	From      time.Time
}

// AssignLicense grants a license seat to exactly one target. The person-seat
// and asset-seat groups of a license are validated independently, so the same
// license may be simultaneously open for a person and for an asset.
func (s *AssignmentService) AssignLicense(ctx context.Context, input AssignLicenseInput) (out *assignment.LicenseAssignment, err error) {
	defer func() { recordMutation("assign_license", err) }()

	if input.PersonID != nil && input.AssetID != nil {
		return nil, mapEngineError(&assignment.TargetConflictError{
			Subject:  input.LicenseID,
			Provided: []assignment.TargetKind{assignment.TargetPerson, assignment.TargetAsset},
		})
	}
	if input.PersonID == nil && input.AssetID == nil {
		return nil, mapEngineError(&assignment.TargetMissingError{
			Subject: input.LicenseID,
			Allowed: []assignment.TargetKind{assignment.TargetPerson, assignment.TargetAsset},
		})
	}
	if err := s.validateFrom(input.From); err != nil {
		return nil, mapEngineError(err)
	}

	kind := assignment.TargetPerson
	targetID := uuid.Nil
	if input.PersonID != nil {
		targetID = *input.PersonID
	} else {
		kind = assignment.TargetAsset
		targetID = *input.AssetID
	}

	key := assignment.LicenseKey(input.LicenseID, kind, targetID)
	iv, err := s.ledger.OpenInterval(key, input.From)
	if err != nil {
		return nil, mapEngineError(err)
	}

	entity := &assignment.LicenseAssignment{
		ID:         iv.ID,
		LicenseID:  input.LicenseID,
		TargetKind: kind,
		TargetID:   targetID,
		From:       iv.From,
	}
	row := LicenseAssignmentRow{
		ID:         entity.ID,
		LicenseID:  entity.LicenseID,
		TargetKind: entity.TargetKind,
		TargetID:   entity.TargetID,
		From:       entity.From,
	}

	err = composables.InTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.InsertLicenseAssignment(txCtx, row); err != nil {
			return err
		}
		return s.appendAudit(txCtx, input.LicenseID, audit.TypeLicenseAssigned, row)
	})
	if err != nil {
		s.discard(iv.ID, "assign_license")
		return nil, mapPgErrorToServiceError(err)
	}

	s.publishAssignment(ctx, events.TopicLicenseAssignmentChangedV1, audit.TypeLicenseAssigned, iv, row)
	return entity, nil
}

type UnassignLicenseInput struct {
	LicenseID  uuid.UUID
	TargetKind assignment.TargetKind
	TargetID   uuid.UUID
	To         time.Time
}

// UnassignLicense closes the open seat for the given license target.
func (s *AssignmentService) UnassignLicense(ctx context.Context, input UnassignLicenseInput) (err error) {
	defer func() { recordMutation("unassign_license", err) }()

	key := assignment.LicenseKey(input.LicenseID, input.TargetKind, input.TargetID)
	current, ok := s.ledger.CurrentInterval(key)
	if !ok {
		return newServiceError(http.StatusNotFound, "ITAM_NOT_FOUND", "no open seat for license target", nil)
	}
	if err := s.ledger.CloseInterval(current.ID, input.To); err != nil {
		return mapEngineError(err)
	}

	closedAt := input.To.UTC()
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CloseLicenseAssignment(txCtx, current.ID, closedAt); err != nil {
			return err
		}
		return s.appendAudit(txCtx, input.LicenseID, audit.TypeLicenseUnassigned, map[string]any{
			"assignment_id": current.ID,
			"target_kind":   input.TargetKind,
			"target_id":     input.TargetID,
			"to":            closedAt,
		})
	})
	if err != nil {
		s.reopen(current.ID, "unassign_license")
		return mapPgErrorToServiceError(err)
	}

	closed := current
	closed.To = &closedAt
	s.publishAssignment(ctx, events.TopicLicenseAssignmentChangedV1, audit.TypeLicenseUnassigned, closed, nil)
	return nil
}

// AssetTimeline lists an asset's assignments ascending by from.
func (s *AssignmentService) AssetTimeline(ctx context.Context, assetID uuid.UUID) ([]AssetAssignmentRow, error) {
	rows, err := s.repo.ListAssetAssignments(ctx, assetID)
	if err != nil {
		return nil, mapPgErrorToServiceError(err)
	}
	return rows, nil
}

// LicenseTimeline lists a license's seat assignments across both target
// groups ascending by from.
func (s *AssignmentService) LicenseTimeline(ctx context.Context, licenseID uuid.UUID) ([]LicenseAssignmentRow, error) {
	rows, err := s.repo.ListLicenseAssignments(ctx, licenseID)
	if err != nil {
		return nil, mapPgErrorToServiceError(err)
	}
	return rows, nil
}

// CurrentAssetAssignment returns the asset's open interval, if any.
func (s *AssignmentService) CurrentAssetAssignment(assetID uuid.UUID) (interval.Interval, bool) {
	return s.ledger.CurrentInterval(assignment.AssetKey(assetID))
}

func (s *AssignmentService) appendAudit(ctx context.Context, subjectID uuid.UUID, eventType string, payload any) error {
	return appendAuditEvent(ctx, s.auditLog, subjectID, eventType, payload)
}

func (s *AssignmentService) publishAssignment(ctx context.Context, topic, changeType string, iv interval.Interval, payload any) {
	if s.bus == nil {
		return
	}
	var raw json.RawMessage
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			raw = b
		}
	}
	e := &events.AssignmentEventV1{
		EventID:      uuid.New(),
		EventVersion: events.EventVersionV1,
		Topic:        topic,
		RequestID:    composables.UseRequestID(ctx),
		OccurredAt:   time.Now().UTC(),
		ChangeType:   changeType,
		SubjectKey:   string(iv.Key),
		IntervalID:   iv.ID,
		From:         iv.From,
		To:           iv.To,
		Payload:      raw,
	}
	if actor, ok := composables.UseActor(ctx); ok {
		e.ActorID = &actor
	}
	s.bus.Publish(e)
}

func (s *AssignmentService) discard(id uuid.UUID, operation string) {
	recordCompensation(operation)
	_ = s.ledger.Discard(id)
}

func (s *AssignmentService) reopen(id uuid.UUID, operation string) {
	recordCompensation(operation)
	_ = s.ledger.Reopen(id)
}
