// Package attendance сворачивает журнал посещаемости в статистику ученика.
package attendance

import (
	"sort"

	"github.com/center-hub/center-hub/internal/domain/course"
	"github.com/center-hub/center-hub/internal/domain/shared"
)

// Mark - отметка в журнале.
type Mark string

const (
	MarkPresent Mark = "П"
	MarkAbsent  Mark = "Н"
	MarkLate    Mark = "О"
)

// IsValid проверяет, что отметка известна.
func (m Mark) IsValid() bool {
	return m == MarkPresent || m == MarkAbsent || m == MarkLate
}

// UnknownSubject - предмет события, группа которого не найдена в каталоге.
const UnknownSubject = "Неизвестный предмет"

// Event - одно занятие группы. Ключ: (GroupID, Date).
type Event struct {
	GroupID string          `json:"groupId"`
	Date    shared.Date     `json:"date"`
	Topic   string          `json:"topic,omitempty"`
	Marks   map[string]Mark `json:"marks"`
}

// Record - строка истории посещений ученика.
type Record struct {
	Date    shared.Date `json:"date"`
	Status  Mark        `json:"status"`
	Subject string      `json:"subject"`
	Topic   string      `json:"topic,omitempty"`
	GroupID string      `json:"groupId"`
}

// Counts - счётчики посещений.
type Counts struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

func (c *Counts) add(m Mark) {
	switch m {
	case MarkPresent:
		c.Present++
	case MarkAbsent:
		c.Absent++
	case MarkLate:
		c.Late++
	default:
		return
	}
	c.Total++
	c.Percent = shared.Percent(float64(c.Present), float64(c.Total))
}

// Stats - статистика посещаемости ученика.
type Stats struct {
	// History учитывает фильтр, отсортирована по убыванию даты.
	History []Record `json:"history"`
	// ByCourse - по всем предметам, где у ученика были отметки, без фильтра.
	ByCourse map[string]Counts `json:"byCourse"`
	// Courses - ключи ByCourse по алфавиту.
	Courses []string `json:"courses"`
	// Totals - по отфильтрованной истории.
	Totals Counts `json:"totals"`
}

// Compute строит статистику ученика. Пустой фильтр (nil или []) означает "все предметы".
func Compute(events []Event, groups []course.Group, studentID string, filter []string) Stats {
	subjects := subjectIndex(groups)
	allowed := toSet(filter)

	stats := Stats{
		History:  []Record{},
		ByCourse: map[string]Counts{},
		Courses:  []string{},
	}

	for _, ev := range events {
		mark, ok := ev.Marks[studentID]
		if !ok || !mark.IsValid() {
			continue
		}
		subject := subjectFor(subjects, ev.GroupID)

		c := stats.ByCourse[subject]
		c.add(mark)
		stats.ByCourse[subject] = c

		if len(allowed) > 0 {
			if _, ok := allowed[subject]; !ok {
				continue
			}
		}
		stats.History = append(stats.History, Record{
			Date:    ev.Date,
			Status:  mark,
			Subject: subject,
			Topic:   ev.Topic,
			GroupID: ev.GroupID,
		})
		stats.Totals.add(mark)
	}

	sort.SliceStable(stats.History, func(i, j int) bool {
		a, b := stats.History[i], stats.History[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		return a.GroupID < b.GroupID
	})

	for subject := range stats.ByCourse {
		stats.Courses = append(stats.Courses, subject)
	}
	sort.Strings(stats.Courses)

	return stats
}

// Subjects возвращает предметы для фильтра: сначала текущие, затем все,
// встреченные в журнале ученика (по алфавиту), без повторов.
func Subjects(events []Event, groups []course.Group, studentID string, current []string) []string {
	index := subjectIndex(groups)
	seen := make(map[string]struct{}, len(current))
	out := make([]string, 0, len(current))
	for _, s := range current {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	var historical []string
	for _, ev := range events {
		if _, ok := ev.Marks[studentID]; !ok {
			continue
		}
		s := subjectFor(index, ev.GroupID)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		historical = append(historical, s)
	}
	sort.Strings(historical)
	return append(out, historical...)
}

func subjectIndex(groups []course.Group) map[string]string {
	m := make(map[string]string, len(groups))
	for _, g := range groups {
		m[g.ID] = g.Subject
	}
	return m
}

func subjectFor(index map[string]string, groupID string) string {
	if s, ok := index[groupID]; ok && s != "" {
		return s
	}
	return UnknownSubject
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
