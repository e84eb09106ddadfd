package command

import (
	"context"
	"fmt"

	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/domain/undo"
)

// UndoCommand applies the pending entry of a feature in one scope.
type UndoCommand struct {
	Feature string
	Scope   string
}

// UndoResult contains the outcome of UndoCommand.
type UndoResult struct {
	// Applied is false when nothing was pending or the entry already expired.
	Applied bool   `json:"applied"`
	Label   string `json:"label,omitempty"`
}

// Undo executes UndoCommand. The buffer releases its own lock before the
// restore function runs, and restore takes s.mu, so Undo must not hold s.mu.
func (s *Service) Undo(ctx context.Context, cmd UndoCommand) (*UndoResult, error) {
	scope := scopeOrDefault(cmd.Scope)

	var (
		applied   bool
		err       error
		label     string
		studentID string
	)

	switch cmd.Feature {
	case FeaturePipeline:
		var e undo.Entry[PipelinePayload]
		e, applied, err = s.pipelineUndo.For(scope).Undo(ctx)
		label, studentID = e.Label, e.Payload.StudentID
	case FeatureSubjects:
		var e undo.Entry[SubjectPayload]
		e, applied, err = s.subjectUndo.For(scope).Undo(ctx)
		label, studentID = e.Label, e.Payload.StudentID
	default:
		return nil, shared.ErrUnknownUndoFeature
	}

	if err != nil {
		s.logger.Error("undo restore failed", "feature", cmd.Feature, "scope", scope, "error", err)
		return nil, err
	}
	if !applied {
		return &UndoResult{}, nil
	}

	s.publish(shared.NewUndoAppliedEvent(studentID, cmd.Feature, label))
	s.report(ctx, "Действие отменено", shared.SeverityInfo,
		"Отмена действия", fmt.Sprintf("%s: %s", cmd.Feature, label), studentID)

	return &UndoResult{Applied: true, Label: label}, nil
}

// PendingUndo describes the pending entry of a feature, with the seconds left.
func (s *Service) PendingUndo(feature, scope string) (UndoInfo, bool, error) {
	scope = scopeOrDefault(scope)

	switch feature {
	case FeaturePipeline:
		e, ok := s.pipelineUndo.For(scope).Pending()
		if !ok {
			return UndoInfo{}, false, nil
		}
		return UndoInfo{Feature: feature, Label: e.Label, ExpiresInSeconds: e.ExpiresInSeconds}, true, nil
	case FeatureSubjects:
		e, ok := s.subjectUndo.For(scope).Pending()
		if !ok {
			return UndoInfo{}, false, nil
		}
		return UndoInfo{Feature: feature, Label: e.Label, ExpiresInSeconds: e.ExpiresInSeconds}, true, nil
	default:
		return UndoInfo{}, false, shared.ErrUnknownUndoFeature
	}
}
