package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/center-hub/center-hub/internal/application/command"
	"github.com/center-hub/center-hub/internal/application/query"
	"github.com/center-hub/center-hub/internal/domain/attendance"
	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/domain/student"
	"github.com/center-hub/center-hub/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves basic API information.
func (s *Server) handleRoot(c echo.Context) error {
	return respond(c, echo.Map{
		"name":    "center-hub",
		"version": "v1",
		"endpoints": echo.Map{
			"health":   "/health",
			"students": "/api/students",
			"courses":  "/api/courses",
			"undo":     "/api/undo/{pipeline|subjects}",
		},
	})
}

// handleHealth reports storage health. 503 when any check fails.
func (s *Server) handleHealth(c echo.Context) error {
	if s.deps.HealthChecker == nil {
		return respond(c, echo.Map{"healthy": true, "uptime": s.Uptime().String()})
	}

	status := s.deps.HealthChecker.Check(c.Request().Context())
	if !status.Healthy {
		return c.JSON(http.StatusServiceUnavailable, JSONResponse{
			Data:      status,
			RequestID: handlers.RequestIDFromContext(c),
		})
	}
	return respond(c, status)
}

// handleLive is the liveness probe.
func (s *Server) handleLive(c echo.Context) error {
	return respond(c, echo.Map{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT CARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleSaveStudent handles POST /api/students and PUT /api/students/:id.
func (s *Server) handleSaveStudent(c echo.Context) error {
	var draft student.Draft
	if err := bindJSON(c, &draft); err != nil {
		return err
	}
	if id := c.Param("id"); id != "" {
		draft.ID = id
	}

	res, err := s.deps.Commands.SaveStudent(c.Request().Context(), command.SaveStudentCommand{Draft: draft})
	if err != nil {
		return err
	}
	return respond(c, res)
}

// handleGetStudent handles GET /api/students/:id.
func (s *Server) handleGetStudent(c echo.Context) error {
	if s.deps.GetStudent == nil {
		return errNotConfigured
	}
	res, err := s.deps.GetStudent.Handle(c.Request().Context(), query.GetStudentQuery{StudentID: c.Param("id")})
	if err != nil {
		return err
	}
	return respond(c, res)
}

// handleDeleteStudent handles DELETE /api/students/:id?confirm=true.
func (s *Server) handleDeleteStudent(c echo.Context) error {
	var confirmed bool
	if err := echo.QueryParamsBinder(c).Bool("confirm", &confirmed).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "confirm must be a boolean")
	}

	err := s.deps.Commands.DeleteStudent(c.Request().Context(), command.DeleteStudentCommand{
		StudentID: c.Param("id"),
		Confirmed: confirmed,
	})
	if err != nil {
		return err
	}
	return respond(c, echo.Map{"deleted": c.Param("id")})
}

// handleGetHistory handles GET /api/students/:id/history?limit=N.
func (s *Server) handleGetHistory(c echo.Context) error {
	if s.deps.GetHistory == nil {
		return errNotConfigured
	}

	q := query.GetHistoryQuery{EntityID: c.Param("id")}
	if err := echo.QueryParamsBinder(c).Int("limit", &q.Limit).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
	}

	records, err := s.deps.GetHistory.Handle(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return respond(c, records)
}

// ══════════════════════════════════════════════════════════════════════════════
// PIPELINE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleAdvance(c echo.Context) error {
	res, err := s.deps.Commands.Advance(c.Request().Context(), command.AdvanceCommand{
		StudentID: c.Param("id"),
		Scope:     handlers.SessionFromContext(c),
	})
	if err != nil {
		return err
	}
	return respond(c, res)
}

func (s *Server) handleActivate(c echo.Context) error {
	res, err := s.deps.Commands.Activate(c.Request().Context(), command.ActivateCommand{
		StudentID: c.Param("id"),
		Scope:     handlers.SessionFromContext(c),
	})
	if err != nil {
		return err
	}
	return respond(c, res)
}

type stageRequest struct {
	Stage student.Stage `json:"stage"`
}

func (s *Server) handleMoveStage(c echo.Context) error {
	var req stageRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	res, err := s.deps.Commands.MoveStage(c.Request().Context(), command.MoveStageCommand{
		StudentID: c.Param("id"),
		Stage:     req.Stage,
	})
	if err != nil {
		return err
	}
	return respond(c, res)
}

type statusRequest struct {
	Status student.Status `json:"status"`
}

func (s *Server) handleChangeStatus(c echo.Context) error {
	var req statusRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	res, err := s.deps.Commands.ChangeStatus(c.Request().Context(), command.ChangeStatusCommand{
		StudentID: c.Param("id"),
		Status:    req.Status,
	})
	if err != nil {
		return err
	}
	return respond(c, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECT & GROUP HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type subjectRequest struct {
	Subject string `json:"subject"`
}

func (s *Server) handleAddSubject(c echo.Context) error {
	var req subjectRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	res, err := s.deps.Commands.AddSubject(c.Request().Context(), command.AddSubjectCommand{
		StudentID: c.Param("id"),
		Subject:   req.Subject,
	})
	if err != nil {
		return err
	}
	return respond(c, res)
}

// handleRemoveSubject handles DELETE /api/students/:id/subjects/:subject?confirm=true.
// Without confirm the response is 409.
func (s *Server) handleRemoveSubject(c echo.Context) error {
	subject, err := pathParam(c, "subject")
	if err != nil {
		return err
	}
	var confirmed bool
	if err := echo.QueryParamsBinder(c).Bool("confirm", &confirmed).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "confirm must be a boolean")
	}

	res, err := s.deps.Commands.RemoveSubject(c.Request().Context(), command.RemoveSubjectCommand{
		StudentID: c.Param("id"),
		Subject:   subject,
		Confirmed: confirmed,
		Scope:     handlers.SessionFromContext(c),
	})
	if err != nil {
		return err
	}
	return respond(c, res)
}

// discountRequest carries the percent; null clears the per-subject discount.
type discountRequest struct {
	Percent *float64 `json:"percent"`
}

func (s *Server) handleSetDiscount(c echo.Context) error {
	subject, err := pathParam(c, "subject")
	if err != nil {
		return err
	}
	var req discountRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	res, err := s.deps.Commands.SetDiscount(c.Request().Context(), command.SetDiscountCommand{
		StudentID: c.Param("id"),
		Subject:   subject,
		Percent:   req.Percent,
	})
	if err != nil {
		return err
	}
	return respond(c, res)
}

type groupRequest struct {
	GroupID string `json:"groupId"`
}

func (s *Server) handleAssignGroup(c echo.Context) error {
	var req groupRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	res, err := s.deps.Commands.AssignGroup(c.Request().Context(), command.AssignGroupCommand{
		StudentID: c.Param("id"),
		GroupID:   req.GroupID,
	})
	if err != nil {
		return err
	}
	return respond(c, res)
}

func (s *Server) handleUnassignGroup(c echo.Context) error {
	groupID, err := pathParam(c, "groupId")
	if err != nil {
		return err
	}
	res, err := s.deps.Commands.UnassignGroup(c.Request().Context(), command.UnassignGroupCommand{
		StudentID: c.Param("id"),
		GroupID:   groupID,
	})
	if err != nil {
		return err
	}
	return respond(c, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// DERIVED METRICS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetFinance(c echo.Context) error {
	if s.deps.GetFinance == nil {
		return errNotConfigured
	}
	res, err := s.deps.GetFinance.Handle(c.Request().Context(), query.GetFinanceQuery{StudentID: c.Param("id")})
	if err != nil {
		return err
	}
	return respond(c, res)
}

// handleGetAttendance handles GET /api/students/:id/attendance?courses=a,b.
func (s *Server) handleGetAttendance(c echo.Context) error {
	if s.deps.GetAttendance == nil {
		return errNotConfigured
	}
	res, err := s.deps.GetAttendance.Handle(c.Request().Context(), query.GetAttendanceQuery{
		StudentID: c.Param("id"),
		Courses:   listParam(c, "courses"),
	})
	if err != nil {
		return err
	}
	return respond(c, res)
}

// handleGetExams handles GET /api/students/:id/exams?subjects=a,b.
func (s *Server) handleGetExams(c echo.Context) error {
	if s.deps.GetExams == nil {
		return errNotConfigured
	}
	res, err := s.deps.GetExams.Handle(c.Request().Context(), query.GetExamsQuery{
		StudentID: c.Param("id"),
		Subjects:  listParam(c, "subjects"),
	})
	if err != nil {
		return err
	}
	return respond(c, res)
}

func (s *Server) handleGetCourses(c echo.Context) error {
	if s.deps.GetCourses == nil {
		return errNotConfigured
	}
	res, err := s.deps.GetCourses.Handle(c.Request().Context(), query.GetStudentCoursesQuery{StudentID: c.Param("id")})
	if err != nil {
		return err
	}
	return respond(c, res)
}

// handleListCatalog handles GET /api/courses?branch=X.
func (s *Server) handleListCatalog(c echo.Context) error {
	if s.deps.ListCatalog == nil {
		return errNotConfigured
	}
	res, err := s.deps.ListCatalog.Handle(c.Request().Context(), query.ListCatalogQuery{Branch: c.QueryParam("branch")})
	if err != nil {
		return err
	}
	return respond(c, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// JOURNAL HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type examRequest struct {
	Subject  string      `json:"subject"`
	Date     shared.Date `json:"date"`
	Score    float64     `json:"score"`
	MaxScore float64     `json:"maxScore"`
	Title    string      `json:"title"`
}

func (s *Server) handleRecordExam(c echo.Context) error {
	var req examRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	res, err := s.deps.Commands.RecordExam(c.Request().Context(), command.RecordExamCommand{
		StudentID: c.Param("id"),
		Subject:   req.Subject,
		Date:      req.Date,
		Score:     req.Score,
		MaxScore:  req.MaxScore,
		Title:     req.Title,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, JSONResponse{Success: true, Data: res, RequestID: handlers.RequestIDFromContext(c)})
}

type attendanceRequest struct {
	GroupID string                     `json:"groupId"`
	Date    shared.Date                `json:"date"`
	Topic   string                     `json:"topic"`
	Marks   map[string]attendance.Mark `json:"marks"`
}

func (s *Server) handleRecordAttendance(c echo.Context) error {
	var req attendanceRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	res, err := s.deps.Commands.RecordAttendance(c.Request().Context(), command.RecordAttendanceCommand{
		GroupID: req.GroupID,
		Date:    req.Date,
		Topic:   req.Topic,
		Marks:   req.Marks,
	})
	if err != nil {
		return err
	}
	return respond(c, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// UNDO HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handlePendingUndo handles GET /api/undo/:feature. 404 when nothing is pending.
func (s *Server) handlePendingUndo(c echo.Context) error {
	info, pending, err := s.deps.Commands.PendingUndo(c.Param("feature"), handlers.SessionFromContext(c))
	if err != nil {
		return err
	}
	if !pending {
		return echo.NewHTTPError(http.StatusNotFound, "nothing to undo")
	}
	return respond(c, info)
}

// handleUndo handles POST /api/undo/:feature. An expired entry yields applied=false.
func (s *Server) handleUndo(c echo.Context) error {
	res, err := s.deps.Commands.Undo(c.Request().Context(), command.UndoCommand{
		Feature: c.Param("feature"),
		Scope:   handlers.SessionFromContext(c),
	})
	if err != nil {
		return err
	}
	return respond(c, res)
}

// handleDropUndo handles DELETE /api/undo: сессия оператора закрыта,
// её отложенные отмены больше не нужны.
func (s *Server) handleDropUndo(c echo.Context) error {
	s.deps.Commands.DropScope(handlers.SessionFromContext(c))
	return c.NoContent(http.StatusNoContent)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

var errNotConfigured = echo.NewHTTPError(http.StatusNotImplemented, "handler not configured")

// bindJSON decodes the request body only, so path params never leak into it.
func bindJSON(c echo.Context, dst any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}
	return nil
}

// pathParam returns an unescaped path parameter. Subject names are Cyrillic.
func pathParam(c echo.Context, name string) (string, error) {
	v, err := url.PathUnescape(c.Param(name))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "malformed "+name)
	}
	return v, nil
}

// listParam splits a comma-separated query parameter. Repeated keys are merged.
func listParam(c echo.Context, name string) []string {
	var out []string
	for _, raw := range c.QueryParams()[name] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
