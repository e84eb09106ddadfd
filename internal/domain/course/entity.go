// Package course содержит каталог курсов и учебные группы.
package course

import (
	"slices"
	"sort"
)

// BranchConfig - переопределение цены курса для филиала.
type BranchConfig struct {
	Price    int  `json:"price"`
	IsActive bool `json:"isActive"`
}

// Course - курс (предмет) каталога. Name совпадает с названием предмета ученика.
type Course struct {
	Name         string                  `json:"name"`
	Price        int                     `json:"price"`
	BranchPrices map[string]int          `json:"branchPrices,omitempty"`
	BranchConfig map[string]BranchConfig `json:"branchConfig,omitempty"`
}

// PriceFor возвращает базовую цену для филиала:
// активное переопределение, затем плоская цена филиала, затем общая цена.
func (c Course) PriceFor(branch string) int {
	if cfg, ok := c.BranchConfig[branch]; ok && cfg.IsActive {
		return cfg.Price
	}
	if p, ok := c.BranchPrices[branch]; ok {
		return p
	}
	return c.Price
}

// Group - учебная группа по одному предмету.
type Group struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Subject       string `json:"subject"`
	Branch        string `json:"branch,omitempty"`
	MaxStudents   int    `json:"maxStudents"`
	StudentsCount int    `json:"studentsCount"`
}

// IsFull возвращает true, если в группе нет мест. MaxStudents=0 - без ограничения.
func (g Group) IsFull() bool {
	return g.MaxStudents > 0 && g.StudentsCount >= g.MaxStudents
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Catalog - снимок курсов, индексированный по названию.
type Catalog struct {
	byName map[string]Course
}

// NewCatalog строит каталог. При дублях побеждает последний курс.
func NewCatalog(courses []Course) Catalog {
	m := make(map[string]Course, len(courses))
	for _, c := range courses {
		m[c.Name] = c
	}
	return Catalog{byName: m}
}

// Lookup ищет курс по названию.
func (c Catalog) Lookup(name string) (Course, bool) {
	course, ok := c.byName[name]
	return course, ok
}

// BasePrice возвращает цену предмета для филиала; 0, если курса нет в каталоге.
func (c Catalog) BasePrice(subject, branch string) int {
	course, ok := c.byName[subject]
	if !ok {
		return 0
	}
	return course.PriceFor(branch)
}

// Names возвращает названия курсов по алфавиту.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c.byName))
	for n := range c.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ══════════════════════════════════════════════════════════════════════════════
// GROUP HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// FindGroup ищет группу по ID.
func FindGroup(groups []Group, id string) (Group, bool) {
	i := slices.IndexFunc(groups, func(g Group) bool { return g.ID == id })
	if i < 0 {
		return Group{}, false
	}
	return groups[i], true
}

// SubjectOf возвращает предмет группы.
func SubjectOf(groups []Group, id string) (string, bool) {
	g, ok := FindGroup(groups, id)
	if !ok {
		return "", false
	}
	return g.Subject, true
}

// Recount возвращает копию групп с StudentsCount из фактических привязок.
// members - число учеников на группу.
func Recount(groups []Group, members map[string]int) []Group {
	out := slices.Clone(groups)
	for i := range out {
		out[i].StudentsCount = members[out[i].ID]
	}
	return out
}
