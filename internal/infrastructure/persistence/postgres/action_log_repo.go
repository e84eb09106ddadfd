package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/center-hub/center-hub/internal/domain/shared"
)

// ActionLogRepository implements shared.ActionLogRepository over the action_log table.
type ActionLogRepository struct {
	db Querier
}

// NewActionLogRepository creates a repository over db.
func NewActionLogRepository(db Querier) *ActionLogRepository {
	return &ActionLogRepository{db: db}
}

// Append inserts one audit record.
func (r *ActionLogRepository) Append(ctx context.Context, rec shared.ActionRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO action_log (id, action, details, entity_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), rec.Action, rec.Details, rec.EntityID, createdAt)
	if err != nil {
		return errors.Wrap(err, "postgres: append action")
	}
	return nil
}

// Recent returns up to limit newest records, optionally for one entity.
func (r *ActionLogRepository) Recent(ctx context.Context, entityID string, limit int) ([]shared.ActionRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx, `
		SELECT action, details, entity_id, created_at
		FROM action_log
		WHERE $1 = '' OR entity_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, entityID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: query actions")
	}
	defer rows.Close()

	out := make([]shared.ActionRecord, 0, limit)
	for rows.Next() {
		var rec shared.ActionRecord
		if err := rows.Scan(&rec.Action, &rec.Details, &rec.EntityID, &rec.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "postgres: scan action")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "postgres: iterate actions")
	}
	return out, nil
}

var _ shared.ActionLogRepository = (*ActionLogRepository)(nil)
