package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/center-hub/center-hub/internal/application/query"
	"github.com/center-hub/center-hub/internal/domain/attendance"
	"github.com/center-hub/center-hub/internal/domain/course"
	"github.com/center-hub/center-hub/internal/domain/exam"
	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/domain/student"
	"github.com/center-hub/center-hub/internal/infrastructure/persistence/memory"
)

func seed(t *testing.T) (*memory.Store, student.Repository) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	st := student.Student{
		ID:               "st-1",
		FullName:         "Айгерим Нурланова",
		Branch:           "Центр",
		Status:           student.StatusActive,
		Subjects:         []string{"Математика", "Физика"},
		GroupIDs:         []string{"g-math"},
		SubjectDiscounts: map[string]float64{"Математика": 10},
		SubjectDetails: map[string]student.SubjectDetail{
			"Математика": {StartDate: "2025-01-10"},
			"Химия":      {StartDate: "2024-09-01", EndDate: "2024-12-20"},
		},
		Balance:    72000,
		MonthlyFee: 30000,
	}

	require.NoError(t, shared.Put(ctx, store, shared.KeyStudents, []student.Student{st}))
	require.NoError(t, shared.Put(ctx, store, shared.KeyCourses, []course.Course{
		{Name: "Математика", Price: 20000},
		{Name: "Физика", Price: 15000, BranchPrices: map[string]int{"Центр": 18000}},
		{Name: "Химия", Price: 12000},
	}))
	require.NoError(t, shared.Put(ctx, store, shared.KeyGroups, []course.Group{
		{ID: "g-math", Name: "Математика 7А", Subject: "Математика", MaxStudents: 8, StudentsCount: 1},
		{ID: "g-chem", Name: "Химия 9", Subject: "Химия", Branch: "Левый берег"},
	}))
	require.NoError(t, shared.Put(ctx, store, shared.KeyAttendance, []attendance.Event{
		{GroupID: "g-math", Date: "2025-02-03", Marks: map[string]attendance.Mark{"st-1": attendance.MarkPresent}},
		{GroupID: "g-math", Date: "2025-02-05", Marks: map[string]attendance.Mark{"st-1": attendance.MarkAbsent}},
		{GroupID: "g-chem", Date: "2024-11-05", Marks: map[string]attendance.Mark{"st-1": attendance.MarkLate}},
		{GroupID: "g-gone", Date: "2024-10-01", Marks: map[string]attendance.Mark{"st-1": attendance.MarkPresent}},
	}))
	require.NoError(t, shared.Put(ctx, store, shared.KeyExams, []exam.Result{
		{ID: "e1", StudentID: "st-1", Subject: "Математика", Date: "2025-01-20", Score: 8, MaxScore: 10},
		{ID: "e2", StudentID: "st-1", Subject: "Физика", Date: "2025-02-02", Score: 15, MaxScore: 20},
		{ID: "e3", StudentID: "st-1", Subject: "Химия", Date: "2025-02-10", Score: 5, MaxScore: 10, IsExtra: true},
		{ID: "e4", StudentID: "other", Subject: "Математика", Date: "2025-02-10", Score: 1, MaxScore: 10},
	}))

	return store, student.NewRepository(store)
}

func TestGetStudent(t *testing.T) {
	store, repo := seed(t)
	clock := shared.NewManualClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	h := query.NewGetStudentHandler(repo, store, clock)

	res, err := h.Handle(context.Background(), query.GetStudentQuery{StudentID: "st-1"})
	require.NoError(t, err)

	assert.Equal(t, 36000, res.Finance.TotalMonthlyFee)
	assert.True(t, res.FeeOutOfSync)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, "Математика 7А", res.Groups[0].Name)
	assert.Equal(t, clock.Now(), res.GeneratedAt)

	_, err = h.Handle(context.Background(), query.GetStudentQuery{StudentID: "missing"})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(context.Background(), query.GetStudentQuery{})
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestGetFinance(t *testing.T) {
	store, repo := seed(t)
	h := query.NewGetFinanceHandler(repo, store)

	res, err := h.Handle(context.Background(), query.GetFinanceQuery{StudentID: "st-1"})
	require.NoError(t, err)

	require.Len(t, res.Breakdown.Subjects, 2)
	assert.Equal(t, 18000, res.Breakdown.Subjects[0].FinalPrice)
	assert.Equal(t, 18000, res.Breakdown.Subjects[1].BasePrice)
	assert.Equal(t, 30000, res.StoredMonthlyFee)
	assert.Equal(t, 2, res.MonthsCovered)
}

func TestGetAttendance_FilterSemantics(t *testing.T) {
	store, repo := seed(t)
	h := query.NewGetAttendanceHandler(repo, store)
	ctx := context.Background()

	all, err := h.Handle(ctx, query.GetAttendanceQuery{StudentID: "st-1"})
	require.NoError(t, err)
	blank, err := h.Handle(ctx, query.GetAttendanceQuery{StudentID: "st-1", Courses: []string{" "}})
	require.NoError(t, err)
	assert.Equal(t, all.Stats, blank.Stats)

	assert.Equal(t, 4, all.Totals.Total)
	assert.Equal(t, []string{"Математика", "Физика", attendance.UnknownSubject, "Химия"}, all.Subjects)

	math, err := h.Handle(ctx, query.GetAttendanceQuery{StudentID: "st-1", Courses: []string{"Математика"}})
	require.NoError(t, err)
	assert.Equal(t, 2, math.Totals.Total)
	assert.Equal(t, 50, math.Totals.Percent)
	assert.Len(t, math.ByCourse, 3, "ByCourse ignores the filter")
	assert.Equal(t, shared.Date("2025-02-05"), math.History[0].Date)
}

func TestGetExams(t *testing.T) {
	store, repo := seed(t)
	h := query.NewGetExamsHandler(repo, store)

	res, err := h.Handle(context.Background(), query.GetExamsQuery{StudentID: "st-1"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	require.Len(t, res.Heatmap.Rows, 3)
	assert.Equal(t, "Химия", res.Heatmap.Rows[2].Subject)

	feb := res.Heatmap.Cell("Химия", "2025-02")
	require.NotNil(t, feb)
	assert.True(t, feb.IsExtra)

	require.Len(t, res.Sequence, 1)
	assert.Equal(t, 3, res.Sequence[0].TotalCount)
	assert.Equal(t, 2, res.Sequence[0].CountedCount)

	filtered, err := h.Handle(context.Background(), query.GetExamsQuery{StudentID: "st-1", Subjects: []string{"Физика"}})
	require.NoError(t, err)
	require.Len(t, filtered.TimeSeries, 1)
	assert.Equal(t, 75, filtered.TimeSeries[0].Percent)
	assert.Len(t, filtered.Heatmap.Rows, 3, "heatmap ignores the filter")
}

func TestGetStudentCourses(t *testing.T) {
	store, repo := seed(t)
	h := query.NewGetStudentCoursesHandler(repo, store)

	res, err := h.Handle(context.Background(), query.GetStudentCoursesQuery{StudentID: "st-1"})
	require.NoError(t, err)

	require.Len(t, res.Current, 2)
	mathDTO := res.Current[0]
	assert.Equal(t, "g-math", mathDTO.GroupID)
	assert.Equal(t, 2, mathDTO.Attendance.Total)
	assert.Equal(t, 1, mathDTO.ExamCount)
	assert.Equal(t, shared.Date("2025-01-10"), mathDTO.StartDate)

	require.Len(t, res.Finished, 1)
	assert.Equal(t, "Химия", res.Finished[0].Subject)
	assert.Equal(t, 1, res.Finished[0].Attendance.Late)
	assert.Equal(t, 36000, res.TotalMonthlyFee)
}

func TestListCatalog(t *testing.T) {
	store, _ := seed(t)
	h := query.NewListCatalogHandler(store)

	res, err := h.Handle(context.Background(), query.ListCatalogQuery{Branch: "Центр"})
	require.NoError(t, err)
	require.Len(t, res, 3)

	byName := map[string]query.CatalogCourseDTO{}
	for _, c := range res {
		byName[c.Name] = c
	}
	assert.Equal(t, 18000, byName["Физика"].Price)
	assert.Len(t, byName["Математика"].Groups, 1)
	assert.Empty(t, byName["Химия"].Groups)
}

func TestGetHistory(t *testing.T) {
	log := memory.NewActionLog()
	ctx := context.Background()
	for _, action := range []string{"Создание ученика", "Смена этапа воронки", "Активация ученика"} {
		require.NoError(t, log.Append(ctx, shared.ActionRecord{Action: action, EntityID: "st-1"}))
	}
	require.NoError(t, log.Append(ctx, shared.ActionRecord{Action: "Пересчёт оплаты"}))

	h := query.NewGetHistoryHandler(log)
	records, err := h.Handle(ctx, query.GetHistoryQuery{EntityID: "st-1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Активация ученика", records[0].Action)

	_, err = h.Handle(ctx, query.GetHistoryQuery{Limit: -1})
	assert.True(t, shared.IsValidation(err))
}
