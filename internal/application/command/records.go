package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/center-hub/center-hub/internal/domain/attendance"
	"github.com/center-hub/center-hub/internal/domain/exam"
	"github.com/center-hub/center-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXAMS
// ══════════════════════════════════════════════════════════════════════════════

// RecordExamCommand appends an exam result to the log.
type RecordExamCommand struct {
	StudentID string
	Subject   string
	Date      shared.Date
	Score     float64
	MaxScore  float64
	Title     string
}

// RecordExam executes RecordExamCommand. IsExtra is computed from the
// student's subjects at the moment of recording and never changes later.
func (s *Service) RecordExam(ctx context.Context, cmd RecordExamCommand) (*exam.Result, error) {
	if err := requireStudentID("record_exam", cmd.StudentID); err != nil {
		return nil, err
	}

	r := exam.Result{
		ID:        uuid.New().String(),
		StudentID: cmd.StudentID,
		Subject:   strings.TrimSpace(cmd.Subject),
		Date:      cmd.Date.OrToday(s.today()),
		Score:     cmd.Score,
		MaxScore:  cmd.MaxScore,
		Title:     strings.TrimSpace(cmd.Title),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, i, err := s.loadStudent(ctx, cmd.StudentID)
	if err != nil {
		return nil, err
	}
	r = exam.MarkExtra(r, list[i].Subjects)

	results, err := shared.Get(ctx, s.store, shared.KeyExams, []exam.Result{})
	if err != nil {
		return nil, shared.WrapError("exam", "Load", shared.ErrStorage, "load exams", err)
	}
	results = append(results, r)
	if err := shared.Put(ctx, s.store, shared.KeyExams, results); err != nil {
		return nil, shared.WrapError("exam", "Save", shared.ErrStorage, "save exams", err)
	}

	s.report(ctx, "Результат экзамена сохранён", shared.SeveritySuccess,
		"Запись экзамена", fmt.Sprintf("%s: %g/%g", r.Subject, r.Score, r.MaxScore), r.StudentID)

	return &r, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

// RecordAttendanceCommand writes the journal of one lesson. An existing event
// with the same (GroupID, Date) is replaced.
type RecordAttendanceCommand struct {
	GroupID string
	Date    shared.Date
	Topic   string
	Marks   map[string]attendance.Mark
}

// Validate validates the command.
func (c RecordAttendanceCommand) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(c.GroupID) == "" {
		fields["groupId"] = "this field cannot be blank"
	}
	if !c.Date.IsZero() && !c.Date.IsValid() {
		fields["date"] = "date must be YYYY-MM-DD"
	}
	for studentID, m := range c.Marks {
		if !m.IsValid() {
			fields["marks."+studentID] = fmt.Sprintf("unknown mark %q", m)
		}
	}
	if len(fields) > 0 {
		return shared.NewValidationError(fields)
	}
	return nil
}

// RecordAttendance executes RecordAttendanceCommand.
func (s *Service) RecordAttendance(ctx context.Context, cmd RecordAttendanceCommand) (*attendance.Event, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	ev := attendance.Event{
		GroupID: strings.TrimSpace(cmd.GroupID),
		Date:    cmd.Date.OrToday(s.today()),
		Topic:   strings.TrimSpace(cmd.Topic),
		Marks:   make(map[string]attendance.Mark, len(cmd.Marks)),
	}
	for id, m := range cmd.Marks {
		ev.Marks[id] = m
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := shared.Get(ctx, s.store, shared.KeyAttendance, []attendance.Event{})
	if err != nil {
		return nil, shared.WrapError("attendance", "Load", shared.ErrStorage, "load attendance", err)
	}

	replaced := false
	for i := range events {
		if events[i].GroupID == ev.GroupID && events[i].Date == ev.Date {
			events[i] = ev
			replaced = true
			break
		}
	}
	if !replaced {
		events = append(events, ev)
	}

	if err := shared.Put(ctx, s.store, shared.KeyAttendance, events); err != nil {
		return nil, shared.WrapError("attendance", "Save", shared.ErrStorage, "save attendance", err)
	}

	s.report(ctx, "Посещаемость сохранена", shared.SeveritySuccess,
		"Отметка посещаемости", fmt.Sprintf("Группа %s, %s, отметок: %d", ev.GroupID, ev.Date, len(ev.Marks)), ev.GroupID)

	return &ev, nil
}
