package query

import (
	"context"

	"github.com/center-hub/center-hub/internal/domain/finance"
	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET FINANCE QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetFinanceQuery содержит параметры расчёта оплаты.
type GetFinanceQuery struct {
	StudentID string
}

// GetFinanceResult - расчёт оплаты и баланс.
type GetFinanceResult struct {
	StudentID string            `json:"studentId"`
	Breakdown finance.Breakdown `json:"breakdown"`

	// StoredMonthlyFee - значение в карточке; может отставать от каталога
	// до следующего пересчёта.
	StoredMonthlyFee int `json:"storedMonthlyFee"`
	Balance          int `json:"balance"`

	// MonthsCovered - сколько полных месяцев покрывает положительный баланс.
	MonthsCovered int `json:"monthsCovered"`

	DiscountPercent  float64 `json:"discountPercent"`
	DiscountDuration string  `json:"discountDuration,omitempty"`
}

// GetFinanceHandler обрабатывает запрос расчёта оплаты.
type GetFinanceHandler struct {
	snapshots
}

// NewGetFinanceHandler создаёт обработчик.
func NewGetFinanceHandler(students student.Repository, store shared.SnapshotStore) *GetFinanceHandler {
	return &GetFinanceHandler{snapshots: snapshots{students: students, store: store}}
}

// Handle выполняет запрос.
func (h *GetFinanceHandler) Handle(ctx context.Context, q GetFinanceQuery) (*GetFinanceResult, error) {
	st, err := h.student(ctx, "GetFinance", q.StudentID)
	if err != nil {
		return nil, err
	}
	catalog, _, err := h.catalog(ctx)
	if err != nil {
		return nil, err
	}

	b := finance.Calculate(st, catalog)

	months := 0
	if b.TotalMonthlyFee > 0 && st.Balance > 0 {
		months = st.Balance / b.TotalMonthlyFee
	}

	return &GetFinanceResult{
		StudentID:        st.ID,
		Breakdown:        b,
		StoredMonthlyFee: st.MonthlyFee,
		Balance:          st.Balance,
		MonthsCovered:    months,
		DiscountPercent:  st.DiscountPercent,
		DiscountDuration: st.DiscountDuration,
	}, nil
}
