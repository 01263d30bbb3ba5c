package services

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/itamops/assetman/modules/assets/domain/events"
	"github.com/itamops/assetman/modules/audit/domain/audit"
	"github.com/itamops/assetman/pkg/composables"
	"github.com/itamops/assetman/pkg/eventbus"
	"github.com/itamops/assetman/pkg/hierarchy"
)

type OrgUnitRepository interface {
	SetParent(ctx context.Context, nodeID uuid.UUID, parentID *uuid.UUID) error
	AllParents(ctx context.Context) (map[uuid.UUID]uuid.UUID, error)
}

// OrgUnitService coordinates the single-parent org unit tree.
type OrgUnitService struct {
	repo     OrgUnitRepository
	tree     *hierarchy.Tree
	auditLog AuditLog
	bus      eventbus.EventBus
}

func NewOrgUnitService(repo OrgUnitRepository, tree *hierarchy.Tree, auditLog AuditLog, bus eventbus.EventBus) *OrgUnitService {
	return &OrgUnitService{repo: repo, tree: tree, auditLog: auditLog, bus: bus}
}

// Load warms the tree from durable storage.
func (s *OrgUnitService) Load(ctx context.Context) error {
	parents, err := s.repo.AllParents(ctx)
	if err != nil {
		return err
	}
	for node, parent := range parents {
		if err := s.tree.Restore(node, parent); err != nil {
			return err
		}
	}
	return nil
}

// SetOrgParent reparents the org unit; a nil parentID detaches it into a
// root. Attaching a node under itself or one of its own descendants is
// rejected before anything is persisted.
func (s *OrgUnitService) SetOrgParent(ctx context.Context, nodeID uuid.UUID, parentID *uuid.UUID) (err error) {
	defer func() { recordMutation("set_org_parent", err) }()

	if nodeID == uuid.Nil {
		return newServiceError(http.StatusBadRequest, "ITAM_RANGE", "org_unit_id is required", nil)
	}

	previous, err := s.tree.SetParent(nodeID, parentID)
	if err != nil {
		return mapEngineError(err)
	}

	err = composables.InTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.SetParent(txCtx, nodeID, parentID); err != nil {
			return err
		}
		return appendAuditEvent(txCtx, s.auditLog, nodeID, audit.TypeOrgParentChanged, map[string]any{
			"previous_parent_id": previous,
			"parent_id":          parentID,
		})
	})
	if err != nil {
		recordCompensation("set_org_parent")
		_, _ = s.tree.SetParent(nodeID, previous)
		return mapPgErrorToServiceError(err)
	}

	publishHierarchyEvent(ctx, s.bus, events.TopicOrgUnitChangedV1, audit.TypeOrgParentChanged, parentID, nodeID, "")
	return nil
}

// OrgParent returns the unit's parent, if attached.
func (s *OrgUnitService) OrgParent(nodeID uuid.UUID) (*uuid.UUID, error) {
	parent, ok, err := s.tree.Parent(nodeID)
	if err != nil {
		return nil, mapEngineError(err)
	}
	if !ok {
		return nil, nil
	}
	return &parent, nil
}

// OrgAncestors returns the chain from the unit's parent up to its root.
func (s *OrgUnitService) OrgAncestors(nodeID uuid.UUID) ([]uuid.UUID, error) {
	chain, err := s.tree.Ancestors(nodeID)
	if err != nil {
		return nil, mapEngineError(err)
	}
	return chain, nil
}
