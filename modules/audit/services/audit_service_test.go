package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/itamops/assetman/modules/audit/domain/audit"
)

type fakeAuditRepo struct {
	maxSeq   int64
	inserted []audit.Event
	lastList Filter
	listOut  []audit.Event
}

func (f *fakeAuditRepo) Insert(_ context.Context, e *audit.Event) error {
	f.inserted = append(f.inserted, *e)
	return nil
}

func (f *fakeAuditRepo) MaxSeq(_ context.Context) (int64, error) {
	return f.maxSeq, nil
}

func (f *fakeAuditRepo) List(_ context.Context, filter Filter) ([]audit.Event, error) {
	f.lastList = filter
	return f.listOut, nil
}

func TestAppend_AssignsMonotonicSeq(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewAuditService(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e := &audit.Event{SubjectID: uuid.New(), EventType: audit.TypeAssetAssigned}
		require.NoError(t, svc.Append(ctx, e))
		require.Equal(t, int64(i+1), e.Seq)
		require.NotEqual(t, uuid.Nil, e.ID)
		require.False(t, e.OccurredAt.IsZero())
	}
	require.Len(t, repo.inserted, 3)
}

func TestAppend_KeepsCallerFields(t *testing.T) {
	svc := NewAuditService(&fakeAuditRepo{})
	id := uuid.New()
	occurred := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	e := &audit.Event{ID: id, SubjectID: uuid.New(), EventType: audit.TypeRelationAdded, OccurredAt: occurred}
	require.NoError(t, svc.Append(context.Background(), e))
	require.Equal(t, id, e.ID)
	require.Equal(t, occurred, e.OccurredAt)
}

func TestLoad_PrimesSeqFromStorage(t *testing.T) {
	repo := &fakeAuditRepo{maxSeq: 41}
	svc := NewAuditService(repo)
	ctx := context.Background()

	require.NoError(t, svc.Load(ctx))

	e := &audit.Event{SubjectID: uuid.New(), EventType: audit.TypeOrgParentChanged}
	require.NoError(t, svc.Append(ctx, e))
	require.Equal(t, int64(42), e.Seq)
}

func TestQuery_DefaultsLimit(t *testing.T) {
	repo := &fakeAuditRepo{listOut: []audit.Event{{Seq: 2}, {Seq: 1}}}
	svc := NewAuditService(repo)

	subject := uuid.New()
	out, err := svc.Query(context.Background(), Filter{SubjectID: &subject})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, 100, repo.lastList.Limit)
	require.Equal(t, &subject, repo.lastList.SubjectID)

	_, err = svc.Query(context.Background(), Filter{Limit: 7})
	require.NoError(t, err)
	require.Equal(t, 7, repo.lastList.Limit)
}
