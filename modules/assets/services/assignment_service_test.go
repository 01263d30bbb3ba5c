package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/itamops/assetman/modules/assets/domain/assignment"
	"github.com/itamops/assetman/modules/audit/domain/audit"
	"github.com/itamops/assetman/pkg/composables"
	"github.com/itamops/assetman/pkg/interval"
)

type stubTx struct{}

func (stubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (stubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (stubTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

type fakeAssignmentRepo struct {
	assetRows   map[uuid.UUID]AssetAssignmentRow
	licenseRows map[uuid.UUID]LicenseAssignmentRow

	failNextInsert bool
	failNextClose  bool
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{
		assetRows:   make(map[uuid.UUID]AssetAssignmentRow),
		licenseRows: make(map[uuid.UUID]LicenseAssignmentRow),
	}
}

func (f *fakeAssignmentRepo) InsertAssetAssignment(_ context.Context, row AssetAssignmentRow) error {
	if f.failNextInsert {
		f.failNextInsert = false
		return errors.New("storage down")
	}
	f.assetRows[row.ID] = row
	return nil
}

func (f *fakeAssignmentRepo) CloseAssetAssignment(_ context.Context, id uuid.UUID, to time.Time) error {
	if f.failNextClose {
		f.failNextClose = false
		return errors.New("storage down")
	}
	row, ok := f.assetRows[id]
	if !ok {
		return pgx.ErrNoRows
	}
	row.To = &to
	f.assetRows[id] = row
	return nil
}

func (f *fakeAssignmentRepo) ListAssetAssignments(_ context.Context, assetID uuid.UUID) ([]AssetAssignmentRow, error) {
	var out []AssetAssignmentRow
	for _, row := range f.assetRows {
		if row.AssetID == assetID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeAssignmentRepo) AllAssetAssignments(_ context.Context) ([]AssetAssignmentRow, error) {
	var out []AssetAssignmentRow
	for _, row := range f.assetRows {
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeAssignmentRepo) InsertLicenseAssignment(_ context.Context, row LicenseAssignmentRow) error {
	if f.failNextInsert {
		f.failNextInsert = false
		return errors.New("storage down")
	}
	f.licenseRows[row.ID] = row
	return nil
}

func (f *fakeAssignmentRepo) CloseLicenseAssignment(_ context.Context, id uuid.UUID, to time.Time) error {
	row, ok := f.licenseRows[id]
	if !ok {
		return pgx.ErrNoRows
	}
	row.To = &to
	f.licenseRows[id] = row
	return nil
}

func (f *fakeAssignmentRepo) ListLicenseAssignments(_ context.Context, licenseID uuid.UUID) ([]LicenseAssignmentRow, error) {
	var out []LicenseAssignmentRow
	for _, row := range f.licenseRows {
		if row.LicenseID == licenseID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeAssignmentRepo) AllLicenseAssignments(_ context.Context) ([]LicenseAssignmentRow, error) {
	var out []LicenseAssignmentRow
	for _, row := range f.licenseRows {
		out = append(out, row)
	}
	return out, nil
}

type fakeAuditLog struct {
	events []audit.Event
}

func (f *fakeAuditLog) Append(_ context.Context, e *audit.Event) error {
	f.events = append(f.events, *e)
	return nil
}

func newAssignmentFixture() (*AssignmentService, *fakeAssignmentRepo, *fakeAuditLog, context.Context) {
	repo := newFakeAssignmentRepo()
	auditLog := &fakeAuditLog{}
	svc := NewAssignmentService(repo, interval.NewLedger(time.Second), auditLog, nil, 24*time.Hour)
	ctx := composables.WithTx(context.Background(), stubTx{})
	return svc, repo, auditLog, ctx
}

func ptr[T any](v T) *T { return &v }

func TestAssignAsset_PersonTarget(t *testing.T) {
	svc, repo, auditLog, ctx := newAssignmentFixture()
	assetID, personID := uuid.New(), uuid.New()
	from := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	out, err := svc.AssignAsset(ctx, AssignAssetInput{
		AssetID:  assetID,
		PersonID: &personID,
		From:     from,
		Purpose:  "workstation",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, out.ID)
	require.Equal(t, from, out.From)
	require.Nil(t, out.To)

	require.Len(t, repo.assetRows, 1)
	require.Len(t, auditLog.events, 1)
	require.Equal(t, audit.TypeAssetAssigned, auditLog.events[0].EventType)
	require.Equal(t, assetID, auditLog.events[0].SubjectID)
}

func TestAssignAsset_BothTargetsAllowed(t *testing.T) {
	svc, _, _, ctx := newAssignmentFixture()

	_, err := svc.AssignAsset(ctx, AssignAssetInput{
		AssetID:    uuid.New(),
		PersonID:   ptr(uuid.New()),
		LocationID: ptr(uuid.New()),
		From:       time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

func TestAssignAsset_NoTarget(t *testing.T) {
	svc, repo, auditLog, ctx := newAssignmentFixture()

	_, err := svc.AssignAsset(ctx, AssignAssetInput{
		AssetID: uuid.New(),
		From:    time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC),
	})

	var se *ServiceError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "ITAM_TARGET_MISSING", se.Code)
	require.Empty(t, repo.assetRows)
	require.Empty(t, auditLog.events)
}

func TestAssignAsset_OverlapCarriesConflictingID(t *testing.T) {
	svc, _, auditLog, ctx := newAssignmentFixture()
	assetID := uuid.New()
	t0 := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	first, err := svc.AssignAsset(ctx, AssignAssetInput{AssetID: assetID, PersonID: ptr(uuid.New()), From: t0})
	require.NoError(t, err)

	_, err = svc.AssignAsset(ctx, AssignAssetInput{AssetID: assetID, PersonID: ptr(uuid.New()), From: t0.Add(time.Hour)})
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "ITAM_OVERLAP", se.Code)
	require.Equal(t, first.ID.String(), se.Meta["conflicting_interval_id"])

	// Exactly one audit event, from the first assignment.
	require.Len(t, auditLog.events, 1)
}

func TestAssignAsset_FromBeyondClockSkew(t *testing.T) {
	svc, _, _, ctx := newAssignmentFixture()

	_, err := svc.AssignAsset(ctx, AssignAssetInput{
		AssetID:  uuid.New(),
		PersonID: ptr(uuid.New()),
		From:     time.Now().UTC().Add(48 * time.Hour),
	})
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "ITAM_RANGE", se.Code)
}

func TestUnassignThenAssignAtBoundary(t *testing.T) {
	svc, _, auditLog, ctx := newAssignmentFixture()
	assetID := uuid.New()
	t0 := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)

	_, err := svc.AssignAsset(ctx, AssignAssetInput{AssetID: assetID, PersonID: ptr(uuid.New()), From: t0})
	require.NoError(t, err)

	require.NoError(t, svc.UnassignAsset(ctx, assetID, t1))

	// Half-open ranges make [t0,t1) and [t1,open) adjacent, not overlapping.
	_, err = svc.AssignAsset(ctx, AssignAssetInput{AssetID: assetID, PersonID: ptr(uuid.New()), From: t1})
	require.NoError(t, err)

	require.Len(t, auditLog.events, 3)
}

func TestUnassignAsset_NoOpenAssignment(t *testing.T) {
	svc, _, _, ctx := newAssignmentFixture()

	err := svc.UnassignAsset(ctx, uuid.New(), time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC))
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "ITAM_NOT_FOUND", se.Code)
}

func TestReassignAsset_ClosesAndOpensAtomically(t *testing.T) {
	svc, repo, auditLog, ctx := newAssignmentFixture()
	assetID := uuid.New()
	t0 := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)

	first, err := svc.AssignAsset(ctx, AssignAssetInput{AssetID: assetID, PersonID: ptr(uuid.New()), From: t0})
	require.NoError(t, err)

	second, err := svc.ReassignAsset(ctx, ReassignAssetInput{
		AssetID:  assetID,
		To:       t1,
		PersonID: ptr(uuid.New()),
		From:     t1,
	})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	closed := repo.assetRows[first.ID]
	require.NotNil(t, closed.To)
	require.Equal(t, t1, *closed.To)
	opened := repo.assetRows[second.ID]
	require.Nil(t, opened.To)

	require.Len(t, auditLog.events, 2)
	require.Equal(t, audit.TypeAssetReassigned, auditLog.events[1].EventType)
}

func TestReassignAsset_BackdatedFromRejected(t *testing.T) {
	svc, _, _, ctx := newAssignmentFixture()
	assetID := uuid.New()
	t0 := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)

	_, err := svc.AssignAsset(ctx, AssignAssetInput{AssetID: assetID, PersonID: ptr(uuid.New()), From: t0})
	require.NoError(t, err)

	_, err = svc.ReassignAsset(ctx, ReassignAssetInput{
		AssetID:  assetID,
		To:       t1,
		PersonID: ptr(uuid.New()),
		From:     t1.Add(-time.Hour),
	})
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "ITAM_RANGE", se.Code)

	// The current assignment stays open and untouched.
	current, ok := svc.CurrentAssetAssignment(assetID)
	require.True(t, ok)
	require.Equal(t, t0, current.From)
}

func TestAssignLicense_TargetRules(t *testing.T) {
	svc, _, _, ctx := newAssignmentFixture()
	licenseID := uuid.New()
	from := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	var se *ServiceError
	_, err := svc.AssignLicense(ctx, AssignLicenseInput{
		LicenseID: licenseID,
		PersonID:  ptr(uuid.New()),
		AssetID:   ptr(uuid.New()),
		From:      from,
	})
	require.ErrorAs(t, err, &se)
	require.Equal(t, "ITAM_TARGET_CONFLICT", se.Code)

	_, err = svc.AssignLicense(ctx, AssignLicenseInput{LicenseID: licenseID, From: from})
	require.ErrorAs(t, err, &se)
	require.Equal(t, "ITAM_TARGET_MISSING", se.Code)
}

func TestAssignLicense_IndependentExclusionGroups(t *testing.T) {
	svc, _, _, ctx := newAssignmentFixture()
	licenseID, personID := uuid.New(), uuid.New()
	from := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	_, err := svc.AssignLicense(ctx, AssignLicenseInput{LicenseID: licenseID, PersonID: &personID, From: from})
	require.NoError(t, err)

	// Same license, asset seat: independent group, succeeds.
	_, err = svc.AssignLicense(ctx, AssignLicenseInput{LicenseID: licenseID, AssetID: ptr(uuid.New()), From: from})
	require.NoError(t, err)

	// Another person holding the same license at the same time is fine.
	_, err = svc.AssignLicense(ctx, AssignLicenseInput{LicenseID: licenseID, PersonID: ptr(uuid.New()), From: from})
	require.NoError(t, err)

	// The same person twice is a double-booking.
	_, err = svc.AssignLicense(ctx, AssignLicenseInput{LicenseID: licenseID, PersonID: &personID, From: from})
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "ITAM_OVERLAP", se.Code)
}

func TestUnassignLicense_ClosesSeat(t *testing.T) {
	svc, _, _, ctx := newAssignmentFixture()
	licenseID, personID := uuid.New(), uuid.New()
	from := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	_, err := svc.AssignLicense(ctx, AssignLicenseInput{LicenseID: licenseID, PersonID: &personID, From: from})
	require.NoError(t, err)

	require.NoError(t, svc.UnassignLicense(ctx, UnassignLicenseInput{
		LicenseID:  licenseID,
		TargetKind: assignment.TargetPerson,
		TargetID:   personID,
		To:         from.Add(time.Hour),
	}))

	// Seat is free again.
	_, err = svc.AssignLicense(ctx, AssignLicenseInput{LicenseID: licenseID, PersonID: &personID, From: from.Add(time.Hour)})
	require.NoError(t, err)
}

func TestAssignAsset_StorageFailureRollsLedgerBack(t *testing.T) {
	svc, repo, auditLog, ctx := newAssignmentFixture()
	assetID := uuid.New()
	from := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	repo.failNextInsert = true
	_, err := svc.AssignAsset(ctx, AssignAssetInput{AssetID: assetID, PersonID: ptr(uuid.New()), From: from})
	require.Error(t, err)
	require.Empty(t, repo.assetRows)
	require.Empty(t, auditLog.events)

	// The discarded interval no longer blocks the subject.
	_, err = svc.AssignAsset(ctx, AssignAssetInput{AssetID: assetID, PersonID: ptr(uuid.New()), From: from})
	require.NoError(t, err)
}

func TestUnassignAsset_StorageFailureReopensInterval(t *testing.T) {
	svc, repo, _, ctx := newAssignmentFixture()
	assetID := uuid.New()
	t0 := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	_, err := svc.AssignAsset(ctx, AssignAssetInput{AssetID: assetID, PersonID: ptr(uuid.New()), From: t0})
	require.NoError(t, err)

	repo.failNextClose = true
	require.Error(t, svc.UnassignAsset(ctx, assetID, t0.Add(time.Hour)))

	current, ok := svc.CurrentAssetAssignment(assetID)
	require.True(t, ok)
	require.True(t, current.IsOpen())
}

func TestLoad_WarmsLedgerFromStorage(t *testing.T) {
	repo := newFakeAssignmentRepo()
	assetID := uuid.New()
	t0 := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	openID := uuid.New()
	repo.assetRows[openID] = AssetAssignmentRow{ID: openID, AssetID: assetID, PersonID: ptr(uuid.New()), From: t0}

	svc := NewAssignmentService(repo, interval.NewLedger(time.Second), &fakeAuditLog{}, nil, 24*time.Hour)
	ctx := composables.WithTx(context.Background(), stubTx{})
	require.NoError(t, svc.Load(ctx))

	// The restored open interval enforces exclusivity immediately.
	_, err := svc.AssignAsset(ctx, AssignAssetInput{AssetID: assetID, PersonID: ptr(uuid.New()), From: t0.Add(time.Hour)})
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "ITAM_OVERLAP", se.Code)
}
