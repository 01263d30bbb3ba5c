package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/itamops/assetman/modules/audit/domain/audit"
	"github.com/itamops/assetman/modules/audit/services"
	"github.com/itamops/assetman/pkg/composables"
)

type AuditRepository struct{}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Insert(ctx context.Context, e *audit.Event) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	var actor pgtype.UUID
	if e.ActorID != nil {
		actor = pgtype.UUID{Bytes: *e.ActorID, Valid: true}
	}
	var payload []byte
	if len(e.Payload) > 0 {
		payload = e.Payload
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_logs (id, seq, subject_id, event_type, occurred_at, actor_id, payload)
		VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb)
	`, e.ID, e.Seq, e.SubjectID, e.EventType, e.OccurredAt.UTC(), actor, payload)
	return err
}

func (r *AuditRepository) MaxSeq(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	var max int64
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM audit_logs`).Scan(&max); err != nil {
		return 0, err
	}
	return max, nil
}

func (r *AuditRepository) List(ctx context.Context, f services.Filter) ([]audit.Event, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	conds := []string{}
	args := []any{}
	if f.SubjectID != nil {
		args = append(args, *f.SubjectID)
		conds = append(conds, fmt.Sprintf("subject_id=$%d", len(args)))
	}
	if f.EventType != nil {
		args = append(args, *f.EventType)
		conds = append(conds, fmt.Sprintf("event_type=$%d", len(args)))
	}
	if f.ActorID != nil {
		args = append(args, *f.ActorID)
		conds = append(conds, fmt.Sprintf("actor_id=$%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, f.Limit)

	rows, err := tx.Query(ctx, fmt.Sprintf(`
		SELECT id, seq, subject_id, event_type, occurred_at, actor_id, payload
		FROM audit_logs
		%s
		ORDER BY occurred_at DESC, seq DESC
		LIMIT $%d
	`, where, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var e audit.Event
		var actor pgtype.UUID
		if err := rows.Scan(&e.ID, &e.Seq, &e.SubjectID, &e.EventType, &e.OccurredAt, &actor, &e.Payload); err != nil {
			return nil, err
		}
		if actor.Valid {
			u := uuid.UUID(actor.Bytes)
			e.ActorID = &u
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil && err != pgx.ErrNoRows {
		return nil, err
	}
	return out, nil
}
