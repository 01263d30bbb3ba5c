package services

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/itamops/assetman/modules/assets/domain/events"
	"github.com/itamops/assetman/modules/assets/domain/relation"
	"github.com/itamops/assetman/modules/audit/domain/audit"
	"github.com/itamops/assetman/pkg/composables"
	"github.com/itamops/assetman/pkg/eventbus"
	"github.com/itamops/assetman/pkg/hierarchy"
)

type RelationRepository interface {
	InsertEdge(ctx context.Context, rel relation.Relation) error
	DeleteEdge(ctx context.Context, rel relation.Relation) error
	AllEdges(ctx context.Context) ([]relation.Relation, error)
}

// RelationService coordinates the asset relation graph. Acyclicity is
// enforced across all relation types combined: a depends_on edge and a
// reverse part_of edge together close a cycle.
type RelationService struct {
	repo     RelationRepository
	graph    *hierarchy.Graph
	auditLog AuditLog
	bus      eventbus.EventBus
}

func NewRelationService(repo RelationRepository, graph *hierarchy.Graph, auditLog AuditLog, bus eventbus.EventBus) *RelationService {
	return &RelationService{repo: repo, graph: graph, auditLog: auditLog, bus: bus}
}

// Load warms the graph from durable storage.
func (s *RelationService) Load(ctx context.Context) error {
	edges, err := s.repo.AllEdges(ctx)
	if err != nil {
		return err
	}
	for _, rel := range edges {
		e := hierarchy.Edge{Parent: rel.ParentID, Child: rel.ChildID, Type: string(rel.Type)}
		if err := s.graph.Restore(e); err != nil {
			return err
		}
	}
	return nil
}

// AddRelation inserts a directed parent -> child edge after the graph
// validates it.
func (s *RelationService) AddRelation(ctx context.Context, rel relation.Relation) (err error) {
	defer func() { recordMutation("add_relation", err) }()

	if rel.ParentID == uuid.Nil || rel.ChildID == uuid.Nil || rel.Type == "" {
		return newServiceError(http.StatusBadRequest, "ITAM_RANGE", "parent_id, child_id and type are required", nil)
	}

	if err := s.graph.AddEdge(rel.ParentID, rel.ChildID, string(rel.Type)); err != nil {
		return mapEngineError(err)
	}

	err = composables.InTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.InsertEdge(txCtx, rel); err != nil {
			return err
		}
		return s.appendHierarchyAudit(txCtx, rel.ChildID, audit.TypeRelationAdded, rel)
	})
	if err != nil {
		recordCompensation("add_relation")
		_ = s.graph.RemoveEdge(rel.ParentID, rel.ChildID, string(rel.Type))
		return mapPgErrorToServiceError(err)
	}

	s.publishHierarchy(ctx, events.TopicRelationChangedV1, audit.TypeRelationAdded, &rel.ParentID, rel.ChildID, string(rel.Type))
	return nil
}

// RemoveRelation deletes the exact (parent, child, type) triple.
func (s *RelationService) RemoveRelation(ctx context.Context, rel relation.Relation) (err error) {
	defer func() { recordMutation("remove_relation", err) }()

	if err := s.graph.RemoveEdge(rel.ParentID, rel.ChildID, string(rel.Type)); err != nil {
		return mapEngineError(err)
	}

	err = composables.InTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.DeleteEdge(txCtx, rel); err != nil {
			return err
		}
		return s.appendHierarchyAudit(txCtx, rel.ChildID, audit.TypeRelationRemoved, rel)
	})
	if err != nil {
		recordCompensation("remove_relation")
		_ = s.graph.Restore(hierarchy.Edge{Parent: rel.ParentID, Child: rel.ChildID, Type: string(rel.Type)})
		return mapPgErrorToServiceError(err)
	}

	s.publishHierarchy(ctx, events.TopicRelationChangedV1, audit.TypeRelationRemoved, &rel.ParentID, rel.ChildID, string(rel.Type))
	return nil
}

// Ancestors returns every asset the given asset transitively belongs to or
// depends on, sorted for stable output.
func (s *RelationService) Ancestors(assetID uuid.UUID) ([]uuid.UUID, error) {
	set, err := s.graph.Ancestors(assetID)
	if err != nil {
		return nil, mapEngineError(err)
	}
	return sortedIDs(set), nil
}

// Descendants returns every asset transitively under the given asset.
func (s *RelationService) Descendants(assetID uuid.UUID) ([]uuid.UUID, error) {
	set, err := s.graph.Descendants(assetID)
	if err != nil {
		return nil, mapEngineError(err)
	}
	return sortedIDs(set), nil
}

func (s *RelationService) appendHierarchyAudit(ctx context.Context, subjectID uuid.UUID, eventType string, payload any) error {
	return appendAuditEvent(ctx, s.auditLog, subjectID, eventType, payload)
}

func (s *RelationService) publishHierarchy(ctx context.Context, topic, changeType string, parentID *uuid.UUID, childID uuid.UUID, edgeType string) {
	publishHierarchyEvent(ctx, s.bus, topic, changeType, parentID, childID, edgeType)
}

func sortedIDs(set map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

func publishHierarchyEvent(ctx context.Context, bus eventbus.EventBus, topic, changeType string, parentID *uuid.UUID, childID uuid.UUID, edgeType string) {
	if bus == nil {
		return
	}
	e := &events.HierarchyEventV1{
		EventID:      uuid.New(),
		EventVersion: events.EventVersionV1,
		Topic:        topic,
		RequestID:    composables.UseRequestID(ctx),
		OccurredAt:   time.Now().UTC(),
		ChangeType:   changeType,
		ParentID:     parentID,
		ChildID:      childID,
		EdgeType:     edgeType,
	}
	if actor, ok := composables.UseActor(ctx); ok {
		e.ActorID = &actor
	}
	bus.Publish(e)
}
