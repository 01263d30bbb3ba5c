package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/itamops/assetman/modules/assets/services"
	"github.com/itamops/assetman/pkg/composables"
)

type AssignmentRepository struct{}

func NewAssignmentRepository() *AssignmentRepository {
	return &AssignmentRepository{}
}

func (r *AssignmentRepository) InsertAssetAssignment(ctx context.Context, row services.AssetAssignmentRow) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO asset_assignments (id, asset_id, person_id, location_id, purpose, notes, valid_from, valid_to)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, row.ID, row.AssetID, pgOptUUID(row.PersonID), pgOptUUID(row.LocationID), row.Purpose, row.Notes, row.From.UTC(), pgOptTime(row.To))
	return err
}

func (r *AssignmentRepository) CloseAssetAssignment(ctx context.Context, id uuid.UUID, to time.Time) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE asset_assignments SET valid_to=$2 WHERE id=$1 AND valid_to IS NULL
	`, id, to.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *AssignmentRepository) ListAssetAssignments(ctx context.Context, assetID uuid.UUID) ([]services.AssetAssignmentRow, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT id, asset_id, person_id, location_id, purpose, notes, valid_from, valid_to
		FROM asset_assignments
		WHERE asset_id=$1
		ORDER BY valid_from ASC
	`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssetAssignments(rows)
}

func (r *AssignmentRepository) AllAssetAssignments(ctx context.Context) ([]services.AssetAssignmentRow, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT id, asset_id, person_id, location_id, purpose, notes, valid_from, valid_to
		FROM asset_assignments
		ORDER BY valid_from ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssetAssignments(rows)
}

func (r *AssignmentRepository) InsertLicenseAssignment(ctx context.Context, row services.LicenseAssignmentRow) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO license_assignments (id, license_id, target_kind, target_id, valid_from, valid_to)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, row.ID, row.LicenseID, string(row.TargetKind), row.TargetID, row.From.UTC(), pgOptTime(row.To))
	return err
}

func (r *AssignmentRepository) CloseLicenseAssignment(ctx context.Context, id uuid.UUID, to time.Time) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE license_assignments SET valid_to=$2 WHERE id=$1 AND valid_to IS NULL
	`, id, to.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *AssignmentRepository) ListLicenseAssignments(ctx context.Context, licenseID uuid.UUID) ([]services.LicenseAssignmentRow, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT id, license_id, target_kind, target_id, valid_from, valid_to
		FROM license_assignments
		WHERE license_id=$1
		ORDER BY valid_from ASC
	`, licenseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLicenseAssignments(rows)
}

func (r *AssignmentRepository) AllLicenseAssignments(ctx context.Context) ([]services.LicenseAssignmentRow, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT id, license_id, target_kind, target_id, valid_from, valid_to
		FROM license_assignments
		ORDER BY valid_from ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLicenseAssignments(rows)
}
