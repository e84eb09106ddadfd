package shared

import (
	"context"
	"time"
)

// ActionRecord is one audit trail row.
type ActionRecord struct {
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	EntityID  string    `json:"entityId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ActionLogRepository persists audit rows.
type ActionLogRepository interface {
	Append(ctx context.Context, rec ActionRecord) error
	Recent(ctx context.Context, entityID string, limit int) ([]ActionRecord, error)
}
