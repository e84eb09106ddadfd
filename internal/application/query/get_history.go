package query

import (
	"context"

	"github.com/center-hub/center-hub/internal/domain/shared"
)

// GetHistoryQuery содержит параметры журнала действий.
type GetHistoryQuery struct {
	// EntityID - пустой возвращает все записи.
	EntityID string
	Limit    int
}

// Validate нормализует лимит.
func (q *GetHistoryQuery) Validate() error {
	if q.Limit < 0 {
		return shared.NewValidationError(map[string]string{"limit": "limit cannot be negative"})
	}
	if q.Limit == 0 {
		q.Limit = 50
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
	return nil
}

// GetHistoryHandler читает журнал действий, новые записи первыми.
type GetHistoryHandler struct {
	log shared.ActionLogRepository
}

// NewGetHistoryHandler создаёт обработчик.
func NewGetHistoryHandler(log shared.ActionLogRepository) *GetHistoryHandler {
	return &GetHistoryHandler{log: log}
}

// Handle выполняет запрос.
func (h *GetHistoryHandler) Handle(ctx context.Context, q GetHistoryQuery) ([]shared.ActionRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	records, err := h.log.Recent(ctx, q.EntityID, q.Limit)
	if err != nil {
		return nil, shared.WrapError("query", "GetHistory", shared.ErrStorage, "load action log", err)
	}
	return records, nil
}
