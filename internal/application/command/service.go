// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/center-hub/center-hub/internal/domain/course"
	"github.com/center-hub/center-hub/internal/domain/finance"
	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/domain/student"
	"github.com/center-hub/center-hub/internal/domain/undo"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// Notifier shows operator feedback. Fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, message string, severity shared.Severity)
}

// ActionLogger writes the audit trail. Fire-and-forget.
type ActionLogger interface {
	LogAction(ctx context.Context, action, details, entityID string)
}

// EventPublisher forwards domain events. Fire-and-forget.
type EventPublisher interface {
	Publish(event shared.Event)
}

// ══════════════════════════════════════════════════════════════════════════════
// UNDO PAYLOADS
// ══════════════════════════════════════════════════════════════════════════════

// Undo features. One buffer per feature per scope.
const (
	FeaturePipeline = "pipeline"
	FeatureSubjects = "subjects"
)

// DefaultScope is used when a command carries no session scope.
const DefaultScope = "default"

// PipelinePayload restores a student to the state before activation.
type PipelinePayload struct {
	StudentID string                     `json:"studentId"`
	Snapshot  student.ActivationSnapshot `json:"snapshot"`
}

// SubjectPayload restores the subject part of a card before removal.
type SubjectPayload struct {
	StudentID string                  `json:"studentId"`
	Subject   string                  `json:"subject"`
	Snapshot  student.SubjectSnapshot `json:"snapshot"`
}

// UndoInfo describes a pending undo entry.
type UndoInfo struct {
	Feature          string `json:"feature"`
	Label            string `json:"label"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// Deps lists Service collaborators. Students and Store are required.
type Deps struct {
	Students  student.Repository
	Store     shared.SnapshotStore
	Clock     shared.Clock
	Notifier  Notifier
	Audit     ActionLogger
	Events    EventPublisher
	Logger    *slog.Logger
	UndoAfter time.Duration
}

// Service runs every write command. Read-modify-write of the students
// collection is serialized by mu.
type Service struct {
	mu sync.Mutex

	students student.Repository
	store    shared.SnapshotStore
	clock    shared.Clock
	notifier Notifier
	audit    ActionLogger
	events   EventPublisher
	logger   *slog.Logger

	undoSeconds  int
	pipelineUndo *undo.Registry[PipelinePayload]
	subjectUndo  *undo.Registry[SubjectPayload]
}

// NewService creates a Service.
func NewService(deps Deps) (*Service, error) {
	if deps.Students == nil {
		return nil, errors.New("command: students repository is required")
	}
	if deps.Store == nil {
		return nil, errors.New("command: snapshot store is required")
	}
	if deps.Clock == nil {
		deps.Clock = shared.NewSystemClock(nil)
	}
	if deps.Notifier == nil {
		deps.Notifier = nopSideChannel{}
	}
	if deps.Audit == nil {
		deps.Audit = nopSideChannel{}
	}
	if deps.Events == nil {
		deps.Events = nopSideChannel{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	seconds := int(deps.UndoAfter / time.Second)
	if seconds <= 0 {
		seconds = undo.DefaultExpiry
	}

	s := &Service{
		students:    deps.Students,
		store:       deps.Store,
		clock:       deps.Clock,
		notifier:    deps.Notifier,
		audit:       deps.Audit,
		events:      deps.Events,
		logger:      deps.Logger.With("component", "command"),
		undoSeconds: seconds,
	}

	s.pipelineUndo = undo.NewRegistry(func() *undo.Buffer[PipelinePayload] {
		return undo.NewBuffer[PipelinePayload](s.clock, s.restoreActivation)
	})
	s.subjectUndo = undo.NewRegistry(func() *undo.Buffer[SubjectPayload] {
		return undo.NewBuffer[SubjectPayload](s.clock, s.restoreSubjects)
	})

	return s, nil
}

// Close stops all undo countdowns.
func (s *Service) Close() {
	s.pipelineUndo.Close()
	s.subjectUndo.Close()
}

// DropScope discards the undo buffers of one session.
func (s *Service) DropScope(scope string) {
	scope = scopeOrDefault(scope)
	s.pipelineUndo.Drop(scope)
	s.subjectUndo.Drop(scope)
}

func (s *Service) today() shared.Date {
	return shared.Today(s.clock)
}

// ══════════════════════════════════════════════════════════════════════════════
// LOAD / SAVE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// loadStudent returns the whole collection and the index of id.
func (s *Service) loadStudent(ctx context.Context, id string) ([]student.Student, int, error) {
	list, err := s.students.List(ctx)
	if err != nil {
		return nil, -1, err
	}
	i := student.Find(list, id)
	if i < 0 {
		return nil, -1, shared.ErrStudentNotFound
	}
	return list, i, nil
}

func (s *Service) loadCatalog(ctx context.Context) (course.Catalog, error) {
	courses, err := shared.Get(ctx, s.store, shared.KeyCourses, []course.Course{})
	if err != nil {
		return course.Catalog{}, shared.WrapError("course", "Load", shared.ErrStorage, "load courses", err)
	}
	return course.NewCatalog(courses), nil
}

func (s *Service) loadGroups(ctx context.Context) ([]course.Group, error) {
	groups, err := shared.Get(ctx, s.store, shared.KeyGroups, []course.Group{})
	if err != nil {
		return nil, shared.WrapError("course", "LoadGroups", shared.ErrStorage, "load groups", err)
	}
	return groups, nil
}

// saveStudents writes the whole collection; with recount it also refreshes
// StudentsCount of every group from the new memberships.
func (s *Service) saveStudents(ctx context.Context, list []student.Student, recount bool) error {
	if err := s.students.ReplaceAll(ctx, list); err != nil {
		return err
	}
	if !recount {
		return nil
	}

	groups, err := s.loadGroups(ctx)
	if err != nil {
		return err
	}
	groups = course.Recount(groups, student.Memberships(list))
	if err := shared.Put(ctx, s.store, shared.KeyGroups, groups); err != nil {
		return shared.WrapError("course", "SaveGroups", shared.ErrStorage, "save groups", err)
	}
	return nil
}

// resyncFee recomputes MonthlyFee from the current catalog.
func (s *Service) resyncFee(ctx context.Context, st *student.Student) (finance.Breakdown, error) {
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return finance.Breakdown{}, err
	}
	b, _ := finance.Recalculate(st, catalog)
	return b, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SIDE CHANNEL
// ══════════════════════════════════════════════════════════════════════════════

func (s *Service) report(ctx context.Context, message string, severity shared.Severity, action, details, entityID string) {
	s.notifier.Notify(ctx, message, severity)
	if action != "" {
		s.audit.LogAction(ctx, action, details, entityID)
	}
}

func (s *Service) publish(event shared.Event) {
	s.events.Publish(event)
}

type nopSideChannel struct{}

func (nopSideChannel) Notify(context.Context, string, shared.Severity)   {}
func (nopSideChannel) LogAction(context.Context, string, string, string) {}
func (nopSideChannel) Publish(shared.Event)                              {}

func scopeOrDefault(scope string) string {
	if scope == "" {
		return DefaultScope
	}
	return scope
}

func requireStudentID(op, id string) error {
	if id == "" {
		return shared.NewValidationError(map[string]string{"studentId": fmt.Sprintf("%s: student id is required", op)})
	}
	return nil
}
