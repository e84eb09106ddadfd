// Package student содержит доменную модель ученика учебного центра:
// карточку, воронку продаж, предметы, группы и скидки.
package student

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/center-hub/center-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status определяет жизненный статус ученика.
type Status string

const (
	// StatusActive - ученик занимается и платит.
	StatusActive Status = "Active"
	// StatusPresale - лид, ещё не ставший учеником.
	StatusPresale Status = "Presale"
	// StatusPaused - обучение приостановлено.
	StatusPaused Status = "Paused"
	// StatusArchived - карточка в архиве.
	StatusArchived Status = "Archived"
	// StatusDropped - ученик ушёл.
	StatusDropped Status = "Dropped"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusPresale, StatusPaused, StatusArchived, StatusDropped:
		return true
	default:
		return false
	}
}

// Stage - позиция лида в воронке продаж.
type Stage string

const (
	StageNew      Stage = "New"
	StageCall     Stage = "Call"
	StageTrial    Stage = "Trial"
	StageContract Stage = "Contract"
	StagePayment  Stage = "Payment"
)

// pipelineOrder - фиксированный порядок этапов воронки.
var pipelineOrder = []Stage{StageNew, StageCall, StageTrial, StageContract, StagePayment}

// Stages возвращает этапы воронки по порядку.
func Stages() []Stage {
	return slices.Clone(pipelineOrder)
}

// IsValid проверяет, что этап входит в воронку.
func (s Stage) IsValid() bool {
	return s.Index() >= 0
}

// Index возвращает позицию этапа в воронке или -1.
func (s Stage) Index() int {
	return slices.Index(pipelineOrder, s)
}

// Next возвращает следующий этап. ok=false для Payment (дальше только активация)
// и для неизвестных значений.
func (s Stage) Next() (next Stage, ok bool) {
	i := s.Index()
	if i < 0 || i == len(pipelineOrder)-1 {
		return s, false
	}
	return pipelineOrder[i+1], true
}

// IsTerminal возвращает true для последнего этапа воронки.
func (s Stage) IsTerminal() bool {
	return s == StagePayment
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// SubjectDetail хранит даты начала и окончания занятий по предмету.
type SubjectDetail struct {
	StartDate shared.Date `json:"startDate,omitempty"`
	EndDate   shared.Date `json:"endDate,omitempty"`
}

// Student - карточка ученика (или лида).
type Student struct {
	ID         string `json:"id"`
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Branch     string `json:"branch"`
	ParentName string `json:"parentName,omitempty"`
	Email      string `json:"email,omitempty"`
	Comment    string `json:"comment,omitempty"`

	// Status и PipelineStage независимы: этап остаётся Payment после активации.
	Status        Status `json:"status"`
	PipelineStage Stage  `json:"pipelineStage"`

	// Subjects - упорядоченное множество предметов.
	Subjects []string `json:"subjects"`
	// GroupIDs - не более одной группы на предмет.
	GroupIDs []string `json:"groupIds"`
	// SubjectDiscounts - скидка по предмету в процентах [0,100].
	SubjectDiscounts map[string]float64       `json:"subjectDiscounts"`
	SubjectDetails   map[string]SubjectDetail `json:"subjectDetails"`

	// Balance может быть отрицательным (долг).
	Balance int `json:"balance"`
	// MonthlyFee - производное значение, синхронизируется калькулятором.
	MonthlyFee       int     `json:"monthlyFee"`
	DiscountPercent  float64 `json:"discountPercent,omitempty"`
	DiscountDuration string  `json:"discountDuration,omitempty"`

	StartDate   shared.Date `json:"startDate,omitempty"`
	EndDate     shared.Date `json:"endDate,omitempty"`
	DropOffDate shared.Date `json:"dropOffDate,omitempty"`
	PresaleDate shared.Date `json:"presaleDate,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Normalize заполняет пустые коллекции, чтобы структурное сравнение было однозначным.
func (s *Student) Normalize() {
	if s.Subjects == nil {
		s.Subjects = []string{}
	}
	if s.GroupIDs == nil {
		s.GroupIDs = []string{}
	}
	if s.SubjectDiscounts == nil {
		s.SubjectDiscounts = map[string]float64{}
	}
	if s.SubjectDetails == nil {
		s.SubjectDetails = map[string]SubjectDetail{}
	}
	if s.Status == "" {
		s.Status = StatusPresale
	}
	if s.PipelineStage == "" {
		s.PipelineStage = StageNew
	}
}

// UnmarshalJSON декодирует карточку и сразу нормализует её.
func (s *Student) UnmarshalJSON(data []byte) error {
	type plain Student
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Student(p)
	s.Normalize()
	return nil
}

// HasSubject проверяет, записан ли ученик на предмет.
func (s *Student) HasSubject(subject string) bool {
	return slices.Contains(s.Subjects, subject)
}

// HasGroup проверяет, привязана ли группа.
func (s *Student) HasGroup(groupID string) bool {
	return slices.Contains(s.GroupIDs, groupID)
}

// EffectiveDiscount возвращает скидку по предмету: индивидуальную, иначе общую.
func (s *Student) EffectiveDiscount(subject string) float64 {
	if d, ok := s.SubjectDiscounts[subject]; ok {
		return d
	}
	return s.DiscountPercent
}

// IsLead возвращает true, пока ученик не активирован.
func (s *Student) IsLead() bool {
	return s.Status == StatusPresale
}

// String возвращает строковое представление ученика для логирования.
func (s *Student) String() string {
	return fmt.Sprintf(
		"Student{ID: %s, Name: %s, Status: %s, Stage: %s, Subjects: %d}",
		s.ID, s.FullName, s.Status, s.PipelineStage, len(s.Subjects),
	)
}

// Clone создаёт глубокую копию ученика.
func (s Student) Clone() Student {
	c := s
	c.Subjects = slices.Clone(s.Subjects)
	c.GroupIDs = slices.Clone(s.GroupIDs)
	c.SubjectDiscounts = cloneMap(s.SubjectDiscounts)
	c.SubjectDetails = cloneMap(s.SubjectDetails)
	c.Normalize()
	return c
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// COLLECTION HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// Find возвращает индекс ученика в коллекции или -1.
func Find(list []Student, id string) int {
	return slices.IndexFunc(list, func(s Student) bool { return s.ID == id })
}

// Replace возвращает новую коллекцию, где ученик с тем же ID заменён.
// Если ученика нет, он добавляется в конец.
func Replace(list []Student, st Student) []Student {
	out := slices.Clone(list)
	if i := Find(out, st.ID); i >= 0 {
		out[i] = st
		return out
	}
	return append(out, st)
}
