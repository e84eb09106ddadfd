// Package exam сворачивает результаты экзаменов ученика в ряды, тепловую карту
// и сравнение по порядковому номеру экзамена.
package exam

import (
	"slices"
	"sort"
	"strings"

	"github.com/center-hub/center-hub/internal/domain/shared"
)

// Result - результат одного экзамена.
type Result struct {
	ID        string      `json:"id"`
	StudentID string      `json:"studentId"`
	Subject   string      `json:"subject"`
	Date      shared.Date `json:"date"`
	Score     float64     `json:"score"`
	MaxScore  float64     `json:"maxScore"`
	// IsExtra - предмета не было в списке ученика на момент записи.
	IsExtra bool   `json:"isExtra"`
	Title   string `json:"title,omitempty"`
}

// Validate проверяет результат перед записью.
func (r Result) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(r.Subject) == "" {
		fields["subject"] = shared.ErrExamSubjectRequired.Message
	}
	if r.MaxScore <= 0 {
		fields["maxScore"] = shared.ErrExamMaxScoreNonPositive.Message
	}
	if r.Score < 0 {
		fields["score"] = "score cannot be negative"
	}
	if !r.Date.IsValid() {
		fields["date"] = "date must be YYYY-MM-DD"
	}
	if len(fields) > 0 {
		return shared.NewValidationError(fields)
	}
	return nil
}

// MarkExtra проставляет IsExtra по текущему списку предметов ученика.
func MarkExtra(r Result, currentSubjects []string) Result {
	r.IsExtra = !slices.Contains(currentSubjects, r.Subject)
	return r
}

// ForStudent выбирает результаты одного ученика.
func ForStudent(results []Result, studentID string) []Result {
	out := make([]Result, 0)
	for _, r := range results {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out
}

// chronological возвращает копию, отсортированную по дате (при равенстве - по ID).
func chronological(results []Result) []Result {
	out := slices.Clone(results)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func filterSubjects(results []Result, filter []string) []Result {
	if len(filter) == 0 {
		return results
	}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if slices.Contains(filter, r.Subject) {
			out = append(out, r)
		}
	}
	return out
}
