package command

import (
	"context"
	"fmt"

	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/domain/student"
	"github.com/center-hub/center-hub/internal/domain/undo"
)

// ══════════════════════════════════════════════════════════════════════════════
// PIPELINE COMMANDS
// Move a lead through New → Call → Trial → Contract → Payment and activate it.
// ══════════════════════════════════════════════════════════════════════════════

// AdvanceCommand moves a lead to the next stage. From Payment it activates.
type AdvanceCommand struct {
	StudentID string
	// Scope selects the undo buffer (operator session).
	Scope string
}

// ActivateCommand activates a student explicitly.
type ActivateCommand struct {
	StudentID string
	Scope     string
}

// MoveStageCommand drags a lead to any stage. Non-adjacent moves are allowed.
type MoveStageCommand struct {
	StudentID string
	Stage     student.Stage
}

// Validate validates the command.
func (c MoveStageCommand) Validate() error {
	if err := requireStudentID("move_stage", c.StudentID); err != nil {
		return err
	}
	if !c.Stage.IsValid() {
		return shared.ErrInvalidStage
	}
	return nil
}

// ChangeStatusCommand sets the student status and stamps its date when empty.
type ChangeStatusCommand struct {
	StudentID string
	Status    student.Status
}

// Validate validates the command.
func (c ChangeStatusCommand) Validate() error {
	if err := requireStudentID("change_status", c.StudentID); err != nil {
		return err
	}
	if !c.Status.IsValid() {
		return shared.ErrInvalidStatus
	}
	return nil
}

// PipelineResult contains the outcome of a pipeline command.
type PipelineResult struct {
	Student   student.Student `json:"student"`
	Changed   bool            `json:"changed"`
	Activated bool            `json:"activated"`
	// Undo is set when the command left a pending undo entry.
	Undo *UndoInfo `json:"undo,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// Advance executes AdvanceCommand.
func (s *Service) Advance(ctx context.Context, cmd AdvanceCommand) (*PipelineResult, error) {
	if err := requireStudentID("advance", cmd.StudentID); err != nil {
		return nil, err
	}
	return s.transition(ctx, cmd.StudentID, cmd.Scope, student.Advance())
}

// Activate executes ActivateCommand.
func (s *Service) Activate(ctx context.Context, cmd ActivateCommand) (*PipelineResult, error) {
	if err := requireStudentID("activate", cmd.StudentID); err != nil {
		return nil, err
	}
	return s.transition(ctx, cmd.StudentID, cmd.Scope, student.Activate())
}

// MoveStage executes MoveStageCommand.
func (s *Service) MoveStage(ctx context.Context, cmd MoveStageCommand) (*PipelineResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return s.transition(ctx, cmd.StudentID, "", student.MoveTo(cmd.Stage))
}

// ChangeStatus executes ChangeStatusCommand.
func (s *Service) ChangeStatus(ctx context.Context, cmd ChangeStatusCommand) (*PipelineResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return s.transition(ctx, cmd.StudentID, "", student.ChangeStatus(cmd.Status))
}

// transition runs the reducer, persists a changed student and records the
// activation undo entry.
func (s *Service) transition(ctx context.Context, id, scope string, ev student.Event) (*PipelineResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, i, err := s.loadStudent(ctx, id)
	if err != nil {
		return nil, err
	}

	before := list[i]
	out := student.Transition(before, ev, s.today())
	result := &PipelineResult{Student: out.Student, Changed: out.Changed, Activated: out.Activated}
	if !out.Changed {
		return result, nil
	}

	list[i] = out.Student
	if err := s.saveStudents(ctx, list, false); err != nil {
		return nil, err
	}

	st := out.Student
	switch {
	case out.Activated:
		label := fmt.Sprintf("Активирован: %s", st.FullName)
		buf := s.pipelineUndo.For(scopeOrDefault(scope))
		buf.Set(undo.Entry[PipelinePayload]{
			Payload:          PipelinePayload{StudentID: st.ID, Snapshot: *out.Activation},
			ExpiresInSeconds: s.undoSeconds,
			Label:            label,
		})
		result.Undo = &UndoInfo{Feature: FeaturePipeline, Label: label, ExpiresInSeconds: s.undoSeconds}

		s.publish(shared.NewStudentActivatedEvent(st.ID, st.StartDate, st.Subjects))
		s.report(ctx, fmt.Sprintf("%s теперь активный ученик", st.FullName), shared.SeveritySuccess,
			"Активация ученика", fmt.Sprintf("Этап: %s, дата начала: %s", st.PipelineStage, st.StartDate), st.ID)

	case ev.Kind == student.EventChangeStatus:
		s.publish(shared.NewStudentChangedEvent(shared.EventStatusChanged, st.ID, map[string]interface{}{
			"from": string(before.Status),
			"to":   string(st.Status),
		}))
		s.report(ctx, "Статус обновлён", shared.SeverityInfo,
			"Смена статуса", fmt.Sprintf("%s → %s", before.Status, st.Status), st.ID)

	default:
		s.publish(shared.NewStudentChangedEvent(shared.EventStageChanged, st.ID, map[string]interface{}{
			"from": string(before.PipelineStage),
			"to":   string(st.PipelineStage),
		}))
		s.report(ctx, fmt.Sprintf("Этап: %s", st.PipelineStage), shared.SeverityInfo,
			"Смена этапа воронки", fmt.Sprintf("%s → %s", before.PipelineStage, st.PipelineStage), st.ID)
	}

	return result, nil
}

// restoreActivation is the undo restore for FeaturePipeline.
func (s *Service) restoreActivation(ctx context.Context, p PipelinePayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, i, err := s.loadStudent(ctx, p.StudentID)
	if err != nil {
		return err
	}
	list[i] = p.Snapshot.Restore(list[i])
	return s.saveStudents(ctx, list, false)
}
