package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/itamops/assetman/modules/assets/domain/relation"
	"github.com/itamops/assetman/pkg/composables"
)

type RelationRepository struct{}

func NewRelationRepository() *RelationRepository {
	return &RelationRepository{}
}

func (r *RelationRepository) InsertEdge(ctx context.Context, rel relation.Relation) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO asset_relations (parent_id, child_id, relation_type)
		VALUES ($1,$2,$3)
	`, rel.ParentID, rel.ChildID, string(rel.Type))
	return err
}

func (r *RelationRepository) DeleteEdge(ctx context.Context, rel relation.Relation) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		DELETE FROM asset_relations WHERE parent_id=$1 AND child_id=$2 AND relation_type=$3
	`, rel.ParentID, rel.ChildID, string(rel.Type))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *RelationRepository) AllEdges(ctx context.Context) ([]relation.Relation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT parent_id, child_id, relation_type FROM asset_relations
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []relation.Relation
	for rows.Next() {
		var rel relation.Relation
		var relType string
		if err := rows.Scan(&rel.ParentID, &rel.ChildID, &relType); err != nil {
			return nil, err
		}
		rel.Type = relation.Type(relType)
		out = append(out, rel)
	}
	return out, rows.Err()
}
