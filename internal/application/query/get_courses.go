package query

import (
	"context"
	"sort"

	"github.com/center-hub/center-hub/internal/domain/attendance"
	"github.com/center-hub/center-hub/internal/domain/course"
	"github.com/center-hub/center-hub/internal/domain/finance"
	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT COURSES QUERY
// Сводка по каждому предмету ученика: цена, группа, даты, посещаемость.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentCoursesQuery содержит параметры сводки по предметам.
type GetStudentCoursesQuery struct {
	StudentID string
}

// StudentCourseDTO - один предмет ученика.
type StudentCourseDTO struct {
	Subject    string  `json:"subject"`
	BasePrice  int     `json:"basePrice"`
	Discount   float64 `json:"discount"`
	FinalPrice int     `json:"finalPrice"`
	// InCatalog - false, если курса нет в каталоге (цена 0).
	InCatalog bool `json:"inCatalog"`

	GroupID   string `json:"groupId,omitempty"`
	GroupName string `json:"groupName,omitempty"`

	StartDate shared.Date `json:"startDate,omitempty"`
	EndDate   shared.Date `json:"endDate,omitempty"`

	Attendance attendance.Counts `json:"attendance"`
	ExamCount  int               `json:"examCount"`
}

// GetStudentCoursesResult - текущие предметы и завершённые.
type GetStudentCoursesResult struct {
	Current []StudentCourseDTO `json:"current"`
	// Finished - предметы с датой окончания, которых больше нет в списке.
	Finished        []StudentCourseDTO `json:"finished"`
	TotalMonthlyFee int                `json:"totalMonthlyFee"`
}

// GetStudentCoursesHandler обрабатывает запрос сводки по предметам.
type GetStudentCoursesHandler struct {
	snapshots
}

// NewGetStudentCoursesHandler создаёт обработчик.
func NewGetStudentCoursesHandler(students student.Repository, store shared.SnapshotStore) *GetStudentCoursesHandler {
	return &GetStudentCoursesHandler{snapshots: snapshots{students: students, store: store}}
}

// Handle выполняет запрос.
func (h *GetStudentCoursesHandler) Handle(ctx context.Context, q GetStudentCoursesQuery) (*GetStudentCoursesResult, error) {
	st, err := h.student(ctx, "GetStudentCourses", q.StudentID)
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
	events, err := h.attendance(ctx)
	if err != nil {
		return nil, err
	}
	results, err := h.exams(ctx, st.ID)
	if err != nil {
		return nil, err
	}

	stats := attendance.Compute(events, groups, st.ID, nil)
	examCounts := make(map[string]int)
	for _, r := range results {
		examCounts[r.Subject]++
	}

	b := finance.Calculate(st, catalog)
	out := &GetStudentCoursesResult{
		Current:         make([]StudentCourseDTO, 0, len(b.Subjects)),
		Finished:        []StudentCourseDTO{},
		TotalMonthlyFee: b.TotalMonthlyFee,
	}

	for _, p := range b.Subjects {
		_, inCatalog := catalog.Lookup(p.Subject)
		dto := StudentCourseDTO{
			Subject:    p.Subject,
			BasePrice:  p.BasePrice,
			Discount:   p.Discount,
			FinalPrice: p.FinalPrice,
			InCatalog:  inCatalog,
			StartDate:  st.SubjectDetails[p.Subject].StartDate,
			EndDate:    st.SubjectDetails[p.Subject].EndDate,
			Attendance: stats.ByCourse[p.Subject],
			ExamCount:  examCounts[p.Subject],
		}
		for _, gid := range st.GroupIDs {
			if g, ok := course.FindGroup(groups, gid); ok && g.Subject == p.Subject {
				dto.GroupID, dto.GroupName = g.ID, g.Name
				break
			}
		}
		out.Current = append(out.Current, dto)
	}

	for subject, d := range st.SubjectDetails {
		if st.HasSubject(subject) || d.EndDate.IsZero() {
			continue
		}
		out.Finished = append(out.Finished, StudentCourseDTO{
			Subject:    subject,
			StartDate:  d.StartDate,
			EndDate:    d.EndDate,
			Attendance: stats.ByCourse[subject],
			ExamCount:  examCounts[subject],
		})
	}
	sort.Slice(out.Finished, func(i, j int) bool { return out.Finished[i].Subject < out.Finished[j].Subject })

	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST CATALOG QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListCatalogQuery содержит параметры справочника курсов.
type ListCatalogQuery struct {
	// Branch - филиал для расчёта цены; пустой даёт общую цену.
	Branch string
}

// CatalogCourseDTO - курс с ценой для филиала и его группами.
type CatalogCourseDTO struct {
	Name   string     `json:"name"`
	Price  int        `json:"price"`
	Groups []GroupDTO `json:"groups"`
}

// ListCatalogHandler обрабатывает запрос справочника.
type ListCatalogHandler struct {
	snapshots
}

// NewListCatalogHandler создаёт обработчик.
func NewListCatalogHandler(store shared.SnapshotStore) *ListCatalogHandler {
	return &ListCatalogHandler{snapshots: snapshots{store: store}}
}

// Handle выполняет запрос. Курсы по алфавиту.
func (h *ListCatalogHandler) Handle(ctx context.Context, q ListCatalogQuery) ([]CatalogCourseDTO, error) {
	catalog, _, err := h.catalog(ctx)
	if err != nil {
		return nil, err
	}
	groups, err := h.groups(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]CatalogCourseDTO, 0)
	for _, name := range catalog.Names() {
		c, _ := catalog.Lookup(name)
		dto := CatalogCourseDTO{Name: name, Price: c.PriceFor(q.Branch), Groups: []GroupDTO{}}
		for _, g := range groups {
			if g.Subject != name {
				continue
			}
			if q.Branch != "" && g.Branch != "" && g.Branch != q.Branch {
				continue
			}
			dto.Groups = append(dto.Groups, GroupDTO{
				ID:            g.ID,
				Name:          g.Name,
				Subject:       g.Subject,
				StudentsCount: g.StudentsCount,
				MaxStudents:   g.MaxStudents,
			})
		}
		out = append(out, dto)
	}
	return out, nil
}
