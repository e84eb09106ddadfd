package student

import (
	"slices"

	"github.com/center-hub/center-hub/internal/domain/course"
	"github.com/center-hub/center-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECT EDITING
// ══════════════════════════════════════════════════════════════════════════════

// SubjectSnapshot - предметная часть карточки до удаления предмета.
type SubjectSnapshot struct {
	Subjects         []string                 `json:"subjects"`
	GroupIDs         []string                 `json:"groupIds"`
	SubjectDiscounts map[string]float64       `json:"subjectDiscounts"`
	SubjectDetails   map[string]SubjectDetail `json:"subjectDetails"`
}

// CaptureSubjects снимает копию предметной части карточки.
func CaptureSubjects(st Student) SubjectSnapshot {
	c := st.Clone()
	return SubjectSnapshot{
		Subjects:         c.Subjects,
		GroupIDs:         c.GroupIDs,
		SubjectDiscounts: c.SubjectDiscounts,
		SubjectDetails:   c.SubjectDetails,
	}
}

// Restore возвращает ученика с предметной частью из снимка.
func (s SubjectSnapshot) Restore(st Student) Student {
	out := st.Clone()
	out.Subjects = slices.Clone(s.Subjects)
	out.GroupIDs = slices.Clone(s.GroupIDs)
	out.SubjectDiscounts = cloneMap(s.SubjectDiscounts)
	out.SubjectDetails = cloneMap(s.SubjectDetails)
	out.Normalize()
	return out
}

// RemoveSubject удаляет предмет: отвязывает его группы, ставит дату окончания
// и удаляет скидку. Возвращает снимок для отмены и отвязанные группы.
// Если предмета у ученика нет, removed=false и карточка не меняется.
func RemoveSubject(st Student, subject string, groups []course.Group, today shared.Date) (out Student, snap SubjectSnapshot, unassigned []string, removed bool) {
	if !st.HasSubject(subject) {
		return st.Clone(), SubjectSnapshot{}, nil, false
	}

	snap = CaptureSubjects(st)
	out = st.Clone()

	out.Subjects = slices.DeleteFunc(out.Subjects, func(s string) bool { return s == subject })

	kept := make([]string, 0, len(out.GroupIDs))
	for _, gid := range out.GroupIDs {
		if gs, ok := course.SubjectOf(groups, gid); ok && gs == subject {
			unassigned = append(unassigned, gid)
			continue
		}
		kept = append(kept, gid)
	}
	out.GroupIDs = kept

	d := out.SubjectDetails[subject]
	d.EndDate = today
	out.SubjectDetails[subject] = d

	delete(out.SubjectDiscounts, subject)

	return out, snap, unassigned, true
}

// AddSubject добавляет предмет. Для активного ученика проставляет дату начала;
// при повторной записи сбрасывает дату окончания.
func AddSubject(st Student, subject string, today shared.Date) (Student, bool) {
	if subject == "" || st.HasSubject(subject) {
		return st.Clone(), false
	}

	out := st.Clone()
	out.Subjects = append(out.Subjects, subject)

	d, existed := out.SubjectDetails[subject]
	reenrolled := existed && !d.EndDate.IsZero()
	d.EndDate = ""
	if out.Status == StatusActive && (d.StartDate.IsZero() || reenrolled) {
		d.StartDate = today
	}
	if existed || !d.StartDate.IsZero() {
		out.SubjectDetails[subject] = d
	}

	return out, true
}

// ClampDiscount ограничивает скидку диапазоном [0,100].
func ClampDiscount(percent float64) float64 {
	return shared.ClampPercent(percent)
}

// SetDiscount записывает скидку по предмету с ограничением [0,100].
func SetDiscount(st Student, subject string, percent float64) Student {
	out := st.Clone()
	out.SubjectDiscounts[subject] = ClampDiscount(percent)
	return out
}

// ClearDiscount удаляет индивидуальную скидку; начинает действовать общая.
func ClearDiscount(st Student, subject string) Student {
	out := st.Clone()
	delete(out.SubjectDiscounts, subject)
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// GROUPS
// ══════════════════════════════════════════════════════════════════════════════

// AssignResult - итог привязки к группе.
type AssignResult string

const (
	AssignResultAssigned        AssignResult = "assigned"
	AssignResultAlreadyAssigned AssignResult = "already_assigned"
	AssignResultGroupNotFound   AssignResult = "group_not_found"
	AssignResultGroupFull       AssignResult = "group_full"
)

// AssignOutcome - результат AssignGroup.
type AssignOutcome struct {
	Student  Student
	Result   AssignResult
	Replaced []string // группы того же предмета, от которых ученик отвязан
}

// AssignGroup привязывает ученика к группе, отвязывая от других групп того же предмета.
// Если предмета группы нет у ученика, он добавляется.
func AssignGroup(st Student, groupID string, groups []course.Group, today shared.Date) AssignOutcome {
	g, ok := course.FindGroup(groups, groupID)
	if !ok {
		return AssignOutcome{Student: st.Clone(), Result: AssignResultGroupNotFound}
	}
	if st.HasGroup(groupID) {
		return AssignOutcome{Student: st.Clone(), Result: AssignResultAlreadyAssigned}
	}
	if g.IsFull() {
		return AssignOutcome{Student: st.Clone(), Result: AssignResultGroupFull}
	}

	out := st.Clone()
	var replaced []string
	kept := make([]string, 0, len(out.GroupIDs)+1)
	for _, gid := range out.GroupIDs {
		if gs, ok := course.SubjectOf(groups, gid); ok && gs == g.Subject {
			replaced = append(replaced, gid)
			continue
		}
		kept = append(kept, gid)
	}
	out.GroupIDs = append(kept, groupID)

	if g.Subject != "" && !out.HasSubject(g.Subject) {
		out, _ = AddSubject(out, g.Subject, today)
	}

	return AssignOutcome{Student: out, Result: AssignResultAssigned, Replaced: replaced}
}

// UnassignGroup отвязывает группу. false, если группа не была привязана.
func UnassignGroup(st Student, groupID string) (Student, bool) {
	if !st.HasGroup(groupID) {
		return st.Clone(), false
	}
	out := st.Clone()
	out.GroupIDs = slices.DeleteFunc(out.GroupIDs, func(id string) bool { return id == groupID })
	return out, true
}

// Memberships считает привязанных учеников по группам.
func Memberships(list []Student) map[string]int {
	counts := make(map[string]int)
	for _, st := range list {
		for _, gid := range st.GroupIDs {
			counts[gid]++
		}
	}
	return counts
}
