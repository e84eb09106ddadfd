// Package query contains read operations (CQRS - Queries).
// Каждый запрос загружает снимки коллекций и пересчитывает производные
// значения чистыми функциями домена. Запросы ничего не сохраняют.
package query

import (
	"context"
	"strings"

	"github.com/center-hub/center-hub/internal/domain/attendance"
	"github.com/center-hub/center-hub/internal/domain/course"
	"github.com/center-hub/center-hub/internal/domain/exam"
	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/domain/student"
)

// snapshots - загрузчик коллекций, общий для всех обработчиков.
type snapshots struct {
	students student.Repository
	store    shared.SnapshotStore
}

func (s snapshots) student(ctx context.Context, op, id string) (student.Student, error) {
	if strings.TrimSpace(id) == "" {
		return student.Student{}, shared.NewDomainError("query", op, shared.ErrInvalidID, "student id is required")
	}
	return s.students.Get(ctx, id)
}

func (s snapshots) catalog(ctx context.Context) (course.Catalog, []course.Course, error) {
	courses, err := shared.Get(ctx, s.store, shared.KeyCourses, []course.Course{})
	if err != nil {
		return course.Catalog{}, nil, shared.WrapError("query", "LoadCourses", shared.ErrStorage, "load courses", err)
	}
	return course.NewCatalog(courses), courses, nil
}

func (s snapshots) groups(ctx context.Context) ([]course.Group, error) {
	groups, err := shared.Get(ctx, s.store, shared.KeyGroups, []course.Group{})
	if err != nil {
		return nil, shared.WrapError("query", "LoadGroups", shared.ErrStorage, "load groups", err)
	}
	return groups, nil
}

func (s snapshots) attendance(ctx context.Context) ([]attendance.Event, error) {
	events, err := shared.Get(ctx, s.store, shared.KeyAttendance, []attendance.Event{})
	if err != nil {
		return nil, shared.WrapError("query", "LoadAttendance", shared.ErrStorage, "load attendance", err)
	}
	return events, nil
}

func (s snapshots) exams(ctx context.Context, studentID string) ([]exam.Result, error) {
	results, err := shared.Get(ctx, s.store, shared.KeyExams, []exam.Result{})
	if err != nil {
		return nil, shared.WrapError("query", "LoadExams", shared.ErrStorage, "load exams", err)
	}
	return exam.ForStudent(results, studentID), nil
}

// cleanFilter убирает пустые значения. Пустой результат означает "все".
func cleanFilter(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
