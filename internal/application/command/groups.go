package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/center-hub/center-hub/internal/domain/finance"
	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/domain/student"
)

// AssignGroupCommand binds a student to a group. Other groups of the same
// subject are released.
type AssignGroupCommand struct {
	StudentID string
	GroupID   string
}

// Validate validates the command.
func (c AssignGroupCommand) Validate() error {
	if err := requireStudentID("assign_group", c.StudentID); err != nil {
		return err
	}
	if strings.TrimSpace(c.GroupID) == "" {
		return shared.NewValidationError(map[string]string{"groupId": "this field cannot be blank"})
	}
	return nil
}

// UnassignGroupCommand releases a group.
type UnassignGroupCommand struct {
	StudentID string
	GroupID   string
}

// GroupResult contains the outcome of a group command.
type GroupResult struct {
	Student student.Student      `json:"student"`
	Result  student.AssignResult `json:"result,omitempty"`
	// Replaced lists groups of the same subject the student left.
	Replaced []string           `json:"replaced,omitempty"`
	Finance  *finance.Breakdown `json:"finance,omitempty"`
	Changed  bool               `json:"changed"`
}

// AssignGroup executes AssignGroupCommand. Missing or full groups are reported
// through Result and leave the card untouched.
func (s *Service) AssignGroup(ctx context.Context, cmd AssignGroupCommand) (*GroupResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
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

	before := list[i]
	out := student.AssignGroup(before, cmd.GroupID, groups, s.today())
	result := &GroupResult{Student: out.Student, Result: out.Result, Replaced: out.Replaced}

	switch out.Result {
	case student.AssignResultAssigned:
	case student.AssignResultGroupFull:
		s.report(ctx, "Группа заполнена", shared.SeverityWarning, "", "", "")
		return result, nil
	case student.AssignResultGroupNotFound:
		s.report(ctx, "Группа не найдена", shared.SeverityError, "", "", "")
		return result, nil
	default:
		return result, nil
	}

	st := out.Student
	if len(st.Subjects) != len(before.Subjects) {
		b, err := s.resyncFee(ctx, &st)
		if err != nil {
			return nil, err
		}
		result.Finance = &b
	}
	result.Student = st
	result.Changed = true

	list[i] = st
	if err := s.saveStudents(ctx, list, true); err != nil {
		return nil, err
	}

	s.publish(shared.NewStudentChangedEvent(shared.EventGroupAssigned, st.ID, map[string]interface{}{
		"group_id": cmd.GroupID,
		"replaced": out.Replaced,
	}))
	s.report(ctx, "Ученик добавлен в группу", shared.SeveritySuccess,
		"Привязка к группе", fmt.Sprintf("Группа: %s", cmd.GroupID), st.ID)

	return result, nil
}

// UnassignGroup executes UnassignGroupCommand.
func (s *Service) UnassignGroup(ctx context.Context, cmd UnassignGroupCommand) (*GroupResult, error) {
	if err := requireStudentID("unassign_group", cmd.StudentID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, i, err := s.loadStudent(ctx, cmd.StudentID)
	if err != nil {
		return nil, err
	}

	st, changed := student.UnassignGroup(list[i], cmd.GroupID)
	result := &GroupResult{Student: st, Changed: changed}
	if !changed {
		return result, nil
	}

	list[i] = st
	if err := s.saveStudents(ctx, list, true); err != nil {
		return nil, err
	}

	s.report(ctx, "Ученик удалён из группы", shared.SeverityInfo,
		"Отвязка от группы", fmt.Sprintf("Группа: %s", cmd.GroupID), st.ID)

	return result, nil
}
