package command

import (
	"context"
	"slices"

	"github.com/center-hub/center-hub/internal/domain/shared"
)

// DeleteStudentCommand removes a card. Confirmed must be true.
type DeleteStudentCommand struct {
	StudentID string
	Confirmed bool
}

// DeleteStudent executes DeleteStudentCommand. Group counters are recounted
// from the remaining memberships.
func (s *Service) DeleteStudent(ctx context.Context, cmd DeleteStudentCommand) error {
	if err := requireStudentID("delete_student", cmd.StudentID); err != nil {
		return err
	}
	if !cmd.Confirmed {
		return shared.ErrDeletionNotConfirmed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, i, err := s.loadStudent(ctx, cmd.StudentID)
	if err != nil {
		return err
	}
	removed := list[i]
	list = slices.Delete(slices.Clone(list), i, i+1)

	if err := s.saveStudents(ctx, list, len(removed.GroupIDs) > 0); err != nil {
		return err
	}

	s.report(ctx, "Ученик удалён", shared.SeverityWarning, "Удаление ученика", removed.FullName, removed.ID)
	return nil
}
