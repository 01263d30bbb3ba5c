package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/itamops/assetman/pkg/composables"
)

type OrgUnitRepository struct{}

func NewOrgUnitRepository() *OrgUnitRepository {
	return &OrgUnitRepository{}
}

// SetParent upserts the node's single parent edge. A nil parent keeps the row
// with a NULL parent so the node stays known as a root.
func (r *OrgUnitRepository) SetParent(ctx context.Context, nodeID uuid.UUID, parentID *uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO org_units (node_id, parent_id)
		VALUES ($1,$2)
		ON CONFLICT (node_id) DO UPDATE SET parent_id=EXCLUDED.parent_id
	`, nodeID, pgOptUUID(parentID))
	return err
}

func (r *OrgUnitRepository) AllParents(ctx context.Context) (map[uuid.UUID]uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT node_id, parent_id FROM org_units WHERE parent_id IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]uuid.UUID)
	for rows.Next() {
		var node uuid.UUID
		var parent pgtype.UUID
		if err := rows.Scan(&node, &parent); err != nil {
			return nil, err
		}
		if parent.Valid {
			out[node] = uuid.UUID(parent.Bytes)
		}
	}
	return out, rows.Err()
}
