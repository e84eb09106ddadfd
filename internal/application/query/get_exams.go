package query

import (
	"context"

	"github.com/center-hub/center-hub/internal/domain/exam"
	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET EXAMS QUERY
// Ряд по дням, тепловая карта и сравнение по номеру экзамена.
// ══════════════════════════════════════════════════════════════════════════════

// GetExamsQuery содержит параметры запроса результатов.
type GetExamsQuery struct {
	StudentID string
	// Subjects - фильтр ряда и сравнения. Тепловая карта его не учитывает.
	Subjects []string
}

// GetExamsResult - все представления результатов ученика.
type GetExamsResult struct {
	exam.Summary
	Count   int           `json:"count"`
	Filter  []string      `json:"filter"`
	Results []exam.Result `json:"results"`
}

// GetExamsHandler обрабатывает запрос результатов экзаменов.
type GetExamsHandler struct {
	snapshots
}

// NewGetExamsHandler создаёт обработчик.
func NewGetExamsHandler(students student.Repository, store shared.SnapshotStore) *GetExamsHandler {
	return &GetExamsHandler{snapshots: snapshots{students: students, store: store}}
}

// Handle выполняет запрос.
func (h *GetExamsHandler) Handle(ctx context.Context, q GetExamsQuery) (*GetExamsResult, error) {
	st, err := h.student(ctx, "GetExams", q.StudentID)
	if err != nil {
		return nil, err
	}
	results, err := h.exams(ctx, st.ID)
	if err != nil {
		return nil, err
	}

	filter := cleanFilter(q.Subjects)
	return &GetExamsResult{
		Summary: exam.Summarize(results, st.Subjects, filter),
		Count:   len(results),
		Filter:  filter,
		Results: results,
	}, nil
}
