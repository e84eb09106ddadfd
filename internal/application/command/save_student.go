package command

import (
	"context"
	"fmt"
	"slices"

	"github.com/center-hub/center-hub/internal/domain/finance"
	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/domain/student"
)

// SaveStudentCommand creates or updates a student card from the form draft.
type SaveStudentCommand struct {
	Draft student.Draft
}

// SaveStudentResult contains the outcome of SaveStudentCommand.
type SaveStudentResult struct {
	Student student.Student   `json:"student"`
	Created bool              `json:"created"`
	Finance finance.Breakdown `json:"finance"`
}

// SaveStudent executes SaveStudentCommand. On validation failure nothing is
// persisted and the field map is returned as *shared.ValidationError.
func (s *Service) SaveStudent(ctx context.Context, cmd SaveStudentCommand) (*SaveStudentResult, error) {
	if err := cmd.Draft.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.students.List(ctx)
	if err != nil {
		return nil, err
	}

	var existing *student.Student
	if cmd.Draft.ID != "" {
		if i := student.Find(list, cmd.Draft.ID); i >= 0 {
			existing = &list[i]
		}
	}
	created := existing == nil

	today := s.today()
	st := cmd.Draft.Apply(existing, s.clock.Now())

	// даты статуса проставляются только при создании или смене статуса
	if created || existing.Status != st.Status {
		st = student.Transition(st, student.ChangeStatus(st.Status), today).Student
	}
	if st.Status == student.StatusActive {
		var before []string
		if existing != nil {
			before = existing.Subjects
		}
		stampNewSubjects(&st, before, today)
	}

	b, err := s.resyncFee(ctx, &st)
	if err != nil {
		return nil, err
	}

	list = student.Replace(list, st)
	if err := s.saveStudents(ctx, list, !created); err != nil {
		return nil, err
	}

	s.publish(shared.NewStudentChangedEvent(shared.EventStudentSaved, st.ID, map[string]interface{}{
		"created":     created,
		"status":      string(st.Status),
		"monthly_fee": st.MonthlyFee,
	}))
	if created {
		s.report(ctx, "Ученик добавлен", shared.SeveritySuccess,
			"Создание ученика", fmt.Sprintf("%s, %s", st.FullName, st.Branch), st.ID)
	} else {
		s.report(ctx, "Ученик сохранён", shared.SeveritySuccess,
			"Изменение ученика", st.FullName, st.ID)
	}

	return &SaveStudentResult{Student: st, Created: created, Finance: b}, nil
}

// stampNewSubjects ставит дату начала предметам, которых не было в before.
func stampNewSubjects(st *student.Student, before []string, today shared.Date) {
	for _, subject := range st.Subjects {
		if slices.Contains(before, subject) {
			continue
		}
		d := st.SubjectDetails[subject]
		if d.StartDate.IsZero() || !d.EndDate.IsZero() {
			d.StartDate = today
			d.EndDate = ""
			st.SubjectDetails[subject] = d
		}
	}
}
