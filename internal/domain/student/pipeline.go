package student

import (
	"github.com/center-hub/center-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PIPELINE STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

// EventKind - тип перехода в воронке.
type EventKind string

const (
	// EventAdvance - следующий этап; из Payment выполняет активацию.
	EventAdvance EventKind = "advance"
	// EventActivate - явная активация ученика.
	EventActivate EventKind = "activate"
	// EventMoveToStage - ручной перенос на любой этап (drag-and-drop).
	EventMoveToStage EventKind = "move_to_stage"
	// EventChangeStatus - смена статуса с проставлением даты.
	EventChangeStatus EventKind = "change_status"
)

// Event - вход редьюсера.
type Event struct {
	Kind   EventKind
	Stage  Stage  // для EventMoveToStage
	Status Status // для EventChangeStatus
}

// Advance создаёт событие перехода на следующий этап.
func Advance() Event { return Event{Kind: EventAdvance} }

// Activate создаёт событие активации.
func Activate() Event { return Event{Kind: EventActivate} }

// MoveTo создаёт событие ручного переноса.
func MoveTo(stage Stage) Event { return Event{Kind: EventMoveToStage, Stage: stage} }

// ChangeStatus создаёт событие смены статуса.
func ChangeStatus(status Status) Event { return Event{Kind: EventChangeStatus, Status: status} }

// ActivationSnapshot - состояние ученика до активации, нужное для отмены.
type ActivationSnapshot struct {
	Status         Status                   `json:"status"`
	PipelineStage  Stage                    `json:"pipelineStage"`
	StartDate      shared.Date              `json:"startDate,omitempty"`
	SubjectDetails map[string]SubjectDetail `json:"subjectDetails"`
}

// Restore возвращает ученика с полями из снимка. Остальные поля не трогаются.
func (a ActivationSnapshot) Restore(st Student) Student {
	out := st.Clone()
	out.Status = a.Status
	out.PipelineStage = a.PipelineStage
	out.StartDate = a.StartDate
	out.SubjectDetails = cloneMap(a.SubjectDetails)
	return out
}

// Outcome - результат перехода.
type Outcome struct {
	Student Student
	// Activation заполнен, только если переход выполнил активацию.
	Activation *ActivationSnapshot
	Activated  bool
	// Changed - изменилось ли хоть что-то.
	Changed bool
}

// Transition - чистый редьюсер воронки. Никогда не возвращает ошибку:
// переходы вне порядка допустимы, неизвестные значения оставляют ученика как есть.
func Transition(st Student, ev Event, today shared.Date) Outcome {
	st = st.Clone()

	switch ev.Kind {
	case EventAdvance:
		next, ok := st.PipelineStage.Next()
		if !ok {
			if st.PipelineStage.IsTerminal() {
				return activate(st, today)
			}
			return Outcome{Student: st}
		}
		st.PipelineStage = next
		return Outcome{Student: st, Changed: true}

	case EventActivate:
		return activate(st, today)

	case EventMoveToStage:
		if !ev.Stage.IsValid() || ev.Stage == st.PipelineStage {
			return Outcome{Student: st}
		}
		st.PipelineStage = ev.Stage
		return Outcome{Student: st, Changed: true}

	case EventChangeStatus:
		if !ev.Status.IsValid() {
			return Outcome{Student: st}
		}
		before := st
		st = applyStatus(st, ev.Status, today)
		return Outcome{Student: st, Changed: before.Status != st.Status || statusDatesDiffer(before, st)}
	}

	return Outcome{Student: st}
}

// activate переводит ученика в Active и проставляет отсутствующие даты начала.
// Этап воронки не меняется.
func activate(st Student, today shared.Date) Outcome {
	snap := ActivationSnapshot{
		Status:         st.Status,
		PipelineStage:  st.PipelineStage,
		StartDate:      st.StartDate,
		SubjectDetails: cloneMap(st.SubjectDetails),
	}

	st.Status = StatusActive
	if st.StartDate.IsZero() {
		st.StartDate = today
	}
	for _, subject := range st.Subjects {
		d := st.SubjectDetails[subject]
		if d.StartDate.IsZero() {
			d.StartDate = today
			st.SubjectDetails[subject] = d
		}
	}

	return Outcome{Student: st, Activation: &snap, Activated: true, Changed: true}
}

// applyStatus меняет статус и ставит дату статуса, только если она пуста.
func applyStatus(st Student, status Status, today shared.Date) Student {
	st.Status = status
	switch status {
	case StatusActive:
		if st.StartDate.IsZero() {
			st.StartDate = today
		}
	case StatusArchived:
		if st.EndDate.IsZero() {
			st.EndDate = today
		}
	case StatusDropped:
		if st.DropOffDate.IsZero() {
			st.DropOffDate = today
		}
	case StatusPresale:
		if st.PresaleDate.IsZero() {
			st.PresaleDate = today
		}
	case StatusPaused:
		// без даты
	}
	return st
}

func statusDatesDiffer(a, b Student) bool {
	return a.StartDate != b.StartDate ||
		a.EndDate != b.EndDate ||
		a.DropOffDate != b.DropOffDate ||
		a.PresaleDate != b.PresaleDate
}
