package query

import (
	"context"
	"time"

	"github.com/center-hub/center-hub/internal/domain/course"
	"github.com/center-hub/center-hub/internal/domain/finance"
	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT QUERY
// Карточка ученика с расчётом оплаты и группами.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentQuery содержит параметры запроса карточки.
type GetStudentQuery struct {
	StudentID string
}

// GroupDTO - группа ученика.
type GroupDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Subject       string `json:"subject"`
	StudentsCount int    `json:"studentsCount"`
	MaxStudents   int    `json:"maxStudents"`
}

// GetStudentResult содержит карточку и производные значения.
type GetStudentResult struct {
	Student student.Student   `json:"student"`
	Finance finance.Breakdown `json:"finance"`
	Groups  []GroupDTO        `json:"groups"`

	// FeeOutOfSync - сохранённый MonthlyFee расходится с текущим каталогом.
	FeeOutOfSync bool `json:"feeOutOfSync"`

	GeneratedAt time.Time `json:"generatedAt"`
}

// GetStudentHandler обрабатывает запрос карточки.
type GetStudentHandler struct {
	snapshots
	clock shared.Clock
}

// NewGetStudentHandler создаёт обработчик.
func NewGetStudentHandler(students student.Repository, store shared.SnapshotStore, clock shared.Clock) *GetStudentHandler {
	if clock == nil {
		clock = shared.NewSystemClock(nil)
	}
	return &GetStudentHandler{snapshots: snapshots{students: students, store: store}, clock: clock}
}

// Handle выполняет запрос.
func (h *GetStudentHandler) Handle(ctx context.Context, q GetStudentQuery) (*GetStudentResult, error) {
	st, err := h.student(ctx, "GetStudent", q.StudentID)
	if err != nil {
		return nil, err
	}
	catalog, _, err := h.catalog(ctx)
	if err != nil {
		return nil, err
	}
	groups, err := h.groups(ctx)
	if err != nil {
		return nil, err
	}

	b := finance.Calculate(st, catalog)

	dtos := make([]GroupDTO, 0, len(st.GroupIDs))
	for _, gid := range st.GroupIDs {
		g, ok := course.FindGroup(groups, gid)
		if !ok {
			// группа удалена из справочника
			dtos = append(dtos, GroupDTO{ID: gid})
			continue
		}
		dtos = append(dtos, GroupDTO{
			ID:            g.ID,
			Name:          g.Name,
			Subject:       g.Subject,
			StudentsCount: g.StudentsCount,
			MaxStudents:   g.MaxStudents,
		})
	}

	return &GetStudentResult{
		Student:      st,
		Finance:      b,
		Groups:       dtos,
		FeeOutOfSync: st.MonthlyFee != b.TotalMonthlyFee,
		GeneratedAt:  h.clock.Now().UTC(),
	}, nil
}
