package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/center-hub/center-hub/internal/domain/finance"
	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/domain/student"
	"github.com/center-hub/center-hub/internal/domain/undo"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECT COMMANDS
// Every change of subjects or discounts resyncs MonthlyFee.
// ══════════════════════════════════════════════════════════════════════════════

// AddSubjectCommand enrols a student in a subject.
type AddSubjectCommand struct {
	StudentID string
	Subject   string
}

// Validate validates the command.
func (c AddSubjectCommand) Validate() error {
	if err := requireStudentID("add_subject", c.StudentID); err != nil {
		return err
	}
	if strings.TrimSpace(c.Subject) == "" {
		return shared.NewValidationError(map[string]string{"subject": "this field cannot be blank"})
	}
	return nil
}

// RemoveSubjectCommand removes a subject. Confirmed must be true.
type RemoveSubjectCommand struct {
	StudentID string
	Subject   string
	Confirmed bool
	Scope     string
}

// SetDiscountCommand sets or clears a per-subject discount.
type SetDiscountCommand struct {
	StudentID string
	Subject   string
	// Percent nil clears the per-subject discount; the general one applies again.
	Percent *float64
}

// Validate validates the command.
func (c SetDiscountCommand) Validate() error {
	if err := requireStudentID("set_discount", c.StudentID); err != nil {
		return err
	}
	if strings.TrimSpace(c.Subject) == "" {
		return shared.NewValidationError(map[string]string{"subject": "this field cannot be blank"})
	}
	return nil
}

// SubjectResult contains the outcome of a subject command.
type SubjectResult struct {
	Student student.Student   `json:"student"`
	Finance finance.Breakdown `json:"finance"`
	Changed bool              `json:"changed"`
	// UnassignedGroups lists groups released by a removal.
	UnassignedGroups []string  `json:"unassignedGroups,omitempty"`
	Undo             *UndoInfo `json:"undo,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// AddSubject executes AddSubjectCommand.
func (s *Service) AddSubject(ctx context.Context, cmd AddSubjectCommand) (*SubjectResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	subject := strings.TrimSpace(cmd.Subject)

	s.mu.Lock()
	defer s.mu.Unlock()

	list, i, err := s.loadStudent(ctx, cmd.StudentID)
	if err != nil {
		return nil, err
	}

	st, added := student.AddSubject(list[i], subject, s.today())
	b, err := s.resyncFee(ctx, &st)
	if err != nil {
		return nil, err
	}
	result := &SubjectResult{Student: st, Finance: b, Changed: added}
	if !added {
		return result, nil
	}

	list[i] = st
	if err := s.saveStudents(ctx, list, false); err != nil {
		return nil, err
	}

	s.publish(shared.NewStudentChangedEvent(shared.EventSubjectAdded, st.ID, map[string]interface{}{
		"subject":     subject,
		"monthly_fee": st.MonthlyFee,
	}))
	s.report(ctx, fmt.Sprintf("Предмет «%s» добавлен", subject), shared.SeveritySuccess,
		"Добавление предмета", subject, st.ID)

	return result, nil
}

// RemoveSubject executes RemoveSubjectCommand. Without confirmation nothing
// changes and no undo entry is created.
func (s *Service) RemoveSubject(ctx context.Context, cmd RemoveSubjectCommand) (*SubjectResult, error) {
	if err := requireStudentID("remove_subject", cmd.StudentID); err != nil {
		return nil, err
	}
	if !cmd.Confirmed {
		return nil, shared.ErrRemovalNotConfirmed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, i, err := s.loadStudent(ctx, cmd.StudentID)
	if err != nil {
		return nil, err
	}
	groups, err := s.loadGroups(ctx)
	if err != nil {
		return nil, err
	}

	today := s.today()
	st, snap, unassigned, removed := student.RemoveSubject(list[i], cmd.Subject, groups, today)
	if !removed {
		return nil, shared.ErrSubjectNotEnrolled
	}
	b, err := s.resyncFee(ctx, &st)
	if err != nil {
		return nil, err
	}

	list[i] = st
	if err := s.saveStudents(ctx, list, len(unassigned) > 0); err != nil {
		return nil, err
	}

	label := fmt.Sprintf("Удалён предмет «%s»", cmd.Subject)
	s.subjectUndo.For(scopeOrDefault(cmd.Scope)).Set(undo.Entry[SubjectPayload]{
		Payload:          SubjectPayload{StudentID: st.ID, Subject: cmd.Subject, Snapshot: snap},
		ExpiresInSeconds: s.undoSeconds,
		Label:            label,
	})

	s.publish(shared.NewSubjectRemovedEvent(st.ID, cmd.Subject, unassigned, today))
	s.report(ctx, label, shared.SeverityWarning,
		"Удаление предмета", fmt.Sprintf("%s, группы: %s", cmd.Subject, strings.Join(unassigned, ", ")), st.ID)

	return &SubjectResult{
		Student:          st,
		Finance:          b,
		Changed:          true,
		UnassignedGroups: unassigned,
		Undo:             &UndoInfo{Feature: FeatureSubjects, Label: label, ExpiresInSeconds: s.undoSeconds},
	}, nil
}

// SetDiscount executes SetDiscountCommand. The stored value is clamped to [0,100].
func (s *Service) SetDiscount(ctx context.Context, cmd SetDiscountCommand) (*SubjectResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, i, err := s.loadStudent(ctx, cmd.StudentID)
	if err != nil {
		return nil, err
	}

	before := list[i]
	var st student.Student
	if cmd.Percent == nil {
		st = student.ClearDiscount(before, cmd.Subject)
	} else {
		st = student.SetDiscount(before, cmd.Subject, *cmd.Percent)
	}
	b, err := s.resyncFee(ctx, &st)
	if err != nil {
		return nil, err
	}

	list[i] = st
	if err := s.saveStudents(ctx, list, false); err != nil {
		return nil, err
	}

	details := fmt.Sprintf("%s: %s", cmd.Subject, discountLabel(st, cmd.Subject))
	s.report(ctx, "Скидка сохранена", shared.SeveritySuccess, "Изменение скидки", details, st.ID)

	changed := before.MonthlyFee != st.MonthlyFee || discountEntryChanged(before, st, cmd.Subject)
	return &SubjectResult{Student: st, Finance: b, Changed: changed}, nil
}

// discountEntryChanged сравнивает запись скидки по предмету: наличие и значение.
func discountEntryChanged(before, after student.Student, subject string) bool {
	was, hadBefore := before.SubjectDiscounts[subject]
	now, hasAfter := after.SubjectDiscounts[subject]
	return hadBefore != hasAfter || was != now
}

func discountLabel(st student.Student, subject string) string {
	if pct, ok := st.SubjectDiscounts[subject]; ok {
		return fmt.Sprintf("%g%%", pct)
	}
	return fmt.Sprintf("общая %g%%", st.DiscountPercent)
}

// restoreSubjects is the undo restore for FeatureSubjects.
func (s *Service) restoreSubjects(ctx context.Context, p SubjectPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, i, err := s.loadStudent(ctx, p.StudentID)
	if err != nil {
		return err
	}
	st := p.Snapshot.Restore(list[i])
	if _, err := s.resyncFee(ctx, &st); err != nil {
		return err
	}
	list[i] = st
	return s.saveStudents(ctx, list, true)
}
