package exam

import (
	"fmt"
	"sort"

	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TIME SERIES
// ══════════════════════════════════════════════════════════════════════════════

// DayPoint - сумма результатов за один день.
type DayPoint struct {
	Date     shared.Date `json:"date"`
	Score    float64     `json:"score"`
	MaxScore float64     `json:"maxScore"`
	Percent  int         `json:"percent"`
	Count    int         `json:"count"`
	// HasExtra - хотя бы один результат дня вне программы.
	HasExtra bool `json:"hasExtra"`
}

// TimeSeries группирует результаты по дате, по возрастанию даты.
// Внепрограммные результаты входят в сумму, но помечают день.
func TimeSeries(results []Result) []DayPoint {
	byDate := make(map[shared.Date]*DayPoint)
	for _, r := range results {
		p, ok := byDate[r.Date]
		if !ok {
			p = &DayPoint{Date: r.Date}
			byDate[r.Date] = p
		}
		p.Score += r.Score
		p.MaxScore += r.MaxScore
		p.Count++
		p.HasExtra = p.HasExtra || r.IsExtra
	}

	out := make([]DayPoint, 0, len(byDate))
	for _, p := range byDate {
		p.Percent = shared.Percent(p.Score, p.MaxScore)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// HEATMAP
// ══════════════════════════════════════════════════════════════════════════════

// Month - колонка тепловой карты.
type Month struct {
	Key   string `json:"key"`   // YYYY-MM
	Label string `json:"label"` // сокращённое название месяца
}

// Cell - результаты предмета за месяц.
type Cell struct {
	Percent int     `json:"percent"`
	Count   int     `json:"count"`
	RawAvg  float64 `json:"rawAvg"`
	RawMax  float64 `json:"rawMax"`
	// IsExtra - хотя бы один экзамен ячейки вне программы.
	IsExtra bool `json:"isExtra"`
}

// Row - строка тепловой карты. Cells выровнены по Heatmap.Months; nil - нет экзаменов.
type Row struct {
	Subject string  `json:"subject"`
	Cells   []*Cell `json:"cells"`
}

// Heatmap - предметы × месяцы.
type Heatmap struct {
	Months []Month `json:"months"`
	Rows   []Row   `json:"rows"`
}

// Cell возвращает ячейку по предмету и ключу месяца.
func (h Heatmap) Cell(subject, monthKey string) *Cell {
	col := -1
	for i, m := range h.Months {
		if m.Key == monthKey {
			col = i
			break
		}
	}
	if col < 0 {
		return nil
	}
	for _, row := range h.Rows {
		if row.Subject == subject {
			return row.Cells[col]
		}
	}
	return nil
}

type cellAcc struct {
	score, max float64
	count      int
	extra      bool
}

// BuildHeatmap строит тепловую карту. Строки: текущие предметы в их порядке,
// затем остальные предметы из истории по алфавиту. Колонки: месяцы с экзаменами.
func BuildHeatmap(results []Result, currentSubjects []string) Heatmap {
	acc := make(map[string]map[string]*cellAcc)
	monthSet := make(map[string]struct{})
	for _, r := range results {
		key := r.Date.MonthKey()
		if key == "" {
			continue
		}
		monthSet[key] = struct{}{}
		bySubject, ok := acc[r.Subject]
		if !ok {
			bySubject = make(map[string]*cellAcc)
			acc[r.Subject] = bySubject
		}
		c, ok := bySubject[key]
		if !ok {
			c = &cellAcc{}
			bySubject[key] = c
		}
		c.score += r.Score
		c.max += r.MaxScore
		c.count++
		c.extra = c.extra || r.IsExtra
	}

	keys := make([]string, 0, len(monthSet))
	for k := range monthSet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := Heatmap{Months: make([]Month, 0, len(keys)), Rows: []Row{}}
	for _, k := range keys {
		h.Months = append(h.Months, Month{Key: k, Label: timeutil.MonthLabel(k)})
	}

	for _, subject := range rowSubjects(results, currentSubjects) {
		row := Row{Subject: subject, Cells: make([]*Cell, len(keys))}
		for i, k := range keys {
			c, ok := acc[subject][k]
			if !ok {
				continue
			}
			row.Cells[i] = &Cell{
				Percent: shared.Percent(c.score, c.max),
				Count:   c.count,
				RawAvg:  shared.Round1(c.score / float64(c.count)),
				RawMax:  shared.Round1(c.max / float64(c.count)),
				IsExtra: c.extra,
			}
		}
		h.Rows = append(h.Rows, row)
	}
	return h
}

func rowSubjects(results []Result, current []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(current))
	for _, s := range current {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	var rest []string
	for _, r := range results {
		if _, ok := seen[r.Subject]; ok {
			continue
		}
		seen[r.Subject] = struct{}{}
		rest = append(rest, r.Subject)
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// ══════════════════════════════════════════════════════════════════════════════
// SEQUENCE COMPARISON
// ══════════════════════════════════════════════════════════════════════════════

// SequenceRow - строка сравнения по номеру экзамена.
type SequenceRow struct {
	Number int    `json:"number"`
	Label  string `json:"label"`
	// Subject и Date заполнены только в режиме фильтра.
	Subject string      `json:"subject,omitempty"`
	Date    shared.Date `json:"date,omitempty"`

	AvgScore float64 `json:"avgScore"`
	AvgMax   float64 `json:"avgMax"`
	Percent  int     `json:"percent"`
	// TotalCount - все экзамены с этим номером, включая внепрограммные.
	TotalCount int `json:"totalCount"`
	// CountedCount - только вошедшие в среднее.
	CountedCount int `json:"countedCount"`
	// OnlyExtra - с этим номером только внепрограммные экзамены.
	OnlyExtra bool `json:"onlyExtra"`
	IsExtra   bool `json:"isExtra"`
}

// Sequence без фильтра сравнивает i-е экзамены всех предметов,
// усредняя только программные. С фильтром возвращает каждый экзамен
// выбранных предметов с номером внутри своего предмета.
func Sequence(results []Result, filter []string) []SequenceRow {
	numbered := numberBySubject(results)
	if len(filter) > 0 {
		return perExamRows(numbered, filter)
	}
	return acrossSubjectRows(numbered)
}

type numberedResult struct {
	Result
	number int
}

// numberBySubject нумерует экзамены каждого предмета хронологически с 1.
func numberBySubject(results []Result) []numberedResult {
	counters := make(map[string]int)
	out := make([]numberedResult, 0, len(results))
	for _, r := range chronological(results) {
		counters[r.Subject]++
		out = append(out, numberedResult{Result: r, number: counters[r.Subject]})
	}
	return out
}

func acrossSubjectRows(numbered []numberedResult) []SequenceRow {
	type acc struct {
		score, max     float64
		total, counted int
	}
	byNumber := make(map[int]*acc)
	maxNumber := 0
	for _, n := range numbered {
		a, ok := byNumber[n.number]
		if !ok {
			a = &acc{}
			byNumber[n.number] = a
		}
		a.total++
		if !n.IsExtra {
			a.counted++
			a.score += n.Score
			a.max += n.MaxScore
		}
		if n.number > maxNumber {
			maxNumber = n.number
		}
	}

	rows := make([]SequenceRow, 0, maxNumber)
	for i := 1; i <= maxNumber; i++ {
		a := byNumber[i]
		row := SequenceRow{
			Number:       i,
			Label:        fmt.Sprintf("Экзамен №%d (все предметы)", i),
			TotalCount:   a.total,
			CountedCount: a.counted,
		}
		if a.counted == 0 {
			row.OnlyExtra = true
		} else {
			row.AvgScore = shared.Round1(a.score / float64(a.counted))
			row.AvgMax = shared.Round1(a.max / float64(a.counted))
			row.Percent = shared.Percent(a.score, a.max)
		}
		rows = append(rows, row)
	}
	return rows
}

func perExamRows(numbered []numberedResult, filter []string) []SequenceRow {
	allowed := make(map[string]struct{}, len(filter))
	for _, s := range filter {
		allowed[s] = struct{}{}
	}

	rows := make([]SequenceRow, 0)
	for _, n := range numbered {
		if _, ok := allowed[n.Subject]; !ok {
			continue
		}
		label := n.Title
		if label == "" {
			label = fmt.Sprintf("Экзамен №%d", n.number)
		}
		rows = append(rows, SequenceRow{
			Number:       n.number,
			Label:        label,
			Subject:      n.Subject,
			Date:         n.Date,
			AvgScore:     n.Score,
			AvgMax:       n.MaxScore,
			Percent:      shared.Percent(n.Score, n.MaxScore),
			TotalCount:   1,
			CountedCount: 1,
			IsExtra:      n.IsExtra,
		})
	}
	return rows
}

// ══════════════════════════════════════════════════════════════════════════════
// SUMMARY
// ══════════════════════════════════════════════════════════════════════════════

// Summary объединяет все представления результатов ученика.
type Summary struct {
	TimeSeries []DayPoint    `json:"timeSeries"`
	Heatmap    Heatmap       `json:"heatmap"`
	Sequence   []SequenceRow `json:"sequence"`
}

// Summarize строит все представления. Фильтр влияет на ряд и сравнение,
// тепловая карта всегда по всем предметам.
func Summarize(results []Result, currentSubjects, filter []string) Summary {
	return Summary{
		TimeSeries: TimeSeries(filterSubjects(results, filter)),
		Heatmap:    BuildHeatmap(results, currentSubjects),
		Sequence:   Sequence(results, filter),
	}
}
