package query

import (
	"context"

	"github.com/center-hub/center-hub/internal/domain/attendance"
	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ATTENDANCE QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetAttendanceQuery содержит параметры статистики посещаемости.
type GetAttendanceQuery struct {
	StudentID string
	// Courses - фильтр по предметам; пустой означает все.
	Courses []string
}

// GetAttendanceResult - статистика и список предметов для фильтра.
type GetAttendanceResult struct {
	attendance.Stats
	Subjects []string `json:"subjects"`
	Filter   []string `json:"filter"`
}

// GetAttendanceHandler обрабатывает запрос посещаемости.
type GetAttendanceHandler struct {
	snapshots
}

// NewGetAttendanceHandler создаёт обработчик.
func NewGetAttendanceHandler(students student.Repository, store shared.SnapshotStore) *GetAttendanceHandler {
	return &GetAttendanceHandler{snapshots: snapshots{students: students, store: store}}
}

// Handle выполняет запрос.
func (h *GetAttendanceHandler) Handle(ctx context.Context, q GetAttendanceQuery) (*GetAttendanceResult, error) {
	st, err := h.student(ctx, "GetAttendance", q.StudentID)
	if err != nil {
		return nil, err
	}
	events, err := h.attendance(ctx)
	if err != nil {
		return nil, err
	}
	groups, err := h.groups(ctx)
	if err != nil {
		return nil, err
	}

	filter := cleanFilter(q.Courses)
	return &GetAttendanceResult{
		Stats:    attendance.Compute(events, groups, st.ID, filter),
		Subjects: attendance.Subjects(events, groups, st.ID, st.Subjects),
		Filter:   filter,
	}, nil
}
