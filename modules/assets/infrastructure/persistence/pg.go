package persistence

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/itamops/assetman/modules/assets/domain/assignment"
	"github.com/itamops/assetman/modules/assets/services"
)

func pgOptUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

func pgOptTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

func optUUID(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	u := uuid.UUID(v.Bytes)
	return &u
}

func optTime(v pgtype.Timestamptz) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func scanAssetAssignments(rows pgx.Rows) ([]services.AssetAssignmentRow, error) {
	var out []services.AssetAssignmentRow
	for rows.Next() {
		var row services.AssetAssignmentRow
		var person, location pgtype.UUID
		var to pgtype.Timestamptz
		if err := rows.Scan(&row.ID, &row.AssetID, &person, &location, &row.Purpose, &row.Notes, &row.From, &to); err != nil {
			return nil, err
		}
		row.PersonID = optUUID(person)
		row.LocationID = optUUID(location)
		row.To = optTime(to)
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanLicenseAssignments(rows pgx.Rows) ([]services.LicenseAssignmentRow, error) {
	var out []services.LicenseAssignmentRow
	for rows.Next() {
		var row services.LicenseAssignmentRow
		var kind string
		var to pgtype.Timestamptz
		if err := rows.Scan(&row.ID, &row.LicenseID, &kind, &row.TargetID, &row.From, &to); err != nil {
			return nil, err
		}
		row.TargetKind = assignment.TargetKind(kind)
		row.To = optTime(to)
		out = append(out, row)
	}
	return out, rows.Err()
}
