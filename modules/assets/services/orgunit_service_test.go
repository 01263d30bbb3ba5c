package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/itamops/assetman/pkg/composables"
	"github.com/itamops/assetman/pkg/hierarchy"
)

type fakeOrgUnitRepo struct {
	parents map[uuid.UUID]*uuid.UUID

	failNextSet bool
}

func newFakeOrgUnitRepo() *fakeOrgUnitRepo {
	return &fakeOrgUnitRepo{parents: make(map[uuid.UUID]*uuid.UUID)}
}

func (f *fakeOrgUnitRepo) SetParent(_ context.Context, nodeID uuid.UUID, parentID *uuid.UUID) error {
	if f.failNextSet {
		f.failNextSet = false
		return errors.New("storage down")
	}
	f.parents[nodeID] = parentID
	return nil
}

func (f *fakeOrgUnitRepo) AllParents(_ context.Context) (map[uuid.UUID]uuid.UUID, error) {
	out := make(map[uuid.UUID]uuid.UUID)
	for node, parent := range f.parents {
		if parent != nil {
			out[node] = *parent
		}
	}
	return out, nil
}

func newOrgUnitFixture() (*OrgUnitService, *fakeOrgUnitRepo, *fakeAuditLog, context.Context) {
	repo := newFakeOrgUnitRepo()
	auditLog := &fakeAuditLog{}
	svc := NewOrgUnitService(repo, hierarchy.NewTree(time.Second), auditLog, nil)
	ctx := composables.WithTx(context.Background(), stubTx{})
	return svc, repo, auditLog, ctx
}

func TestSetOrgParent_AttachAndReparent(t *testing.T) {
	svc, repo, auditLog, ctx := newOrgUnitFixture()
	root, dept, team := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, svc.SetOrgParent(ctx, dept, &root))
	require.NoError(t, svc.SetOrgParent(ctx, team, &dept))

	chain, err := svc.OrgAncestors(team)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{dept, root}, chain)

	// Reparent team directly under root.
	require.NoError(t, svc.SetOrgParent(ctx, team, &root))
	parent, err := svc.OrgParent(team)
	require.NoError(t, err)
	require.Equal(t, root, *parent)

	require.Equal(t, &root, repo.parents[team])
	require.Len(t, auditLog.events, 3)
}

func TestSetOrgParent_SelfReference(t *testing.T) {
	svc, _, auditLog, ctx := newOrgUnitFixture()
	node := uuid.New()

	err := svc.SetOrgParent(ctx, node, &node)
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "ITAM_SELF_REFERENCE", se.Code)
	require.Empty(t, auditLog.events)
}

func TestSetOrgParent_RejectsDescendantAsParent(t *testing.T) {
	svc, _, _, ctx := newOrgUnitFixture()
	root, dept, team := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, svc.SetOrgParent(ctx, dept, &root))
	require.NoError(t, svc.SetOrgParent(ctx, team, &dept))

	err := svc.SetOrgParent(ctx, root, &team)
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "ITAM_CYCLE", se.Code)

	// Nothing moved.
	parent, err := svc.OrgParent(root)
	require.NoError(t, err)
	require.Nil(t, parent)
}

func TestSetOrgParent_DetachToRoot(t *testing.T) {
	svc, _, _, ctx := newOrgUnitFixture()
	root, dept := uuid.New(), uuid.New()

	require.NoError(t, svc.SetOrgParent(ctx, dept, &root))
	require.NoError(t, svc.SetOrgParent(ctx, dept, nil))

	parent, err := svc.OrgParent(dept)
	require.NoError(t, err)
	require.Nil(t, parent)
}

func TestSetOrgParent_MissingNode(t *testing.T) {
	svc, _, _, ctx := newOrgUnitFixture()

	err := svc.SetOrgParent(ctx, uuid.Nil, ptr(uuid.New()))
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "ITAM_RANGE", se.Code)
}

func TestSetOrgParent_StorageFailureRestoresPrevious(t *testing.T) {
	svc, repo, auditLog, ctx := newOrgUnitFixture()
	oldParent, newParent, node := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, svc.SetOrgParent(ctx, node, &oldParent))

	repo.failNextSet = true
	require.Error(t, svc.SetOrgParent(ctx, node, &newParent))

	parent, err := svc.OrgParent(node)
	require.NoError(t, err)
	require.Equal(t, oldParent, *parent)
	require.Len(t, auditLog.events, 1)
}

func TestOrgUnitLoad_WarmsTree(t *testing.T) {
	repo := newFakeOrgUnitRepo()
	root, dept := uuid.New(), uuid.New()
	repo.parents[dept] = &root
	repo.parents[root] = nil

	svc := NewOrgUnitService(repo, hierarchy.NewTree(time.Second), &fakeAuditLog{}, nil)
	ctx := composables.WithTx(context.Background(), stubTx{})
	require.NoError(t, svc.Load(ctx))

	err := svc.SetOrgParent(ctx, root, &dept)
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "ITAM_CYCLE", se.Code)
}
