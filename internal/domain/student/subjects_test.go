package student

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/center-hub/center-hub/internal/domain/course"
	"github.com/center-hub/center-hub/internal/domain/shared"
)

var testGroups = []course.Group{
	{ID: "g-math-1", Name: "Математика 7А", Subject: "Математика", MaxStudents: 10, StudentsCount: 3},
	{ID: "g-math-2", Name: "Математика 7Б", Subject: "Математика", MaxStudents: 10, StudentsCount: 4},
	{ID: "g-phys-1", Name: "Физика 8", Subject: "Физика", MaxStudents: 2, StudentsCount: 2},
	{ID: "g-eng-1", Name: "Английский", Subject: "Английский", MaxStudents: 0, StudentsCount: 40},
}

func enrolled() Student {
	st := Student{
		ID:               "st-1",
		FullName:         "Даурен Сеитов",
		Phone:            "+77020000000",
		Branch:           "Центр",
		Status:           StatusActive,
		PipelineStage:    StagePayment,
		Subjects:         []string{"Математика", "Физика"},
		GroupIDs:         []string{"g-math-1", "g-phys-1"},
		SubjectDiscounts: map[string]float64{"Математика": 10, "Физика": 20},
		SubjectDetails: map[string]SubjectDetail{
			"Математика": {StartDate: "2024-09-01"},
			"Физика":     {StartDate: "2024-09-01"},
		},
	}
	st.Normalize()
	return st
}

func TestRemoveSubject(t *testing.T) {
	st := enrolled()

	out, snap, unassigned, removed := RemoveSubject(st, "Математика", testGroups, today)

	require.True(t, removed)
	assert.Equal(t, []string{"Физика"}, out.Subjects)
	assert.Equal(t, []string{"g-phys-1"}, out.GroupIDs)
	assert.Equal(t, []string{"g-math-1"}, unassigned)
	assert.NotContains(t, out.SubjectDiscounts, "Математика")
	assert.Equal(t, today, out.SubjectDetails["Математика"].EndDate)
	assert.Equal(t, shared.Date("2024-09-01"), out.SubjectDetails["Математика"].StartDate)

	assert.Equal(t, st.Subjects, snap.Subjects)
	assert.Equal(t, st.GroupIDs, snap.GroupIDs)
	assert.Equal(t, st.SubjectDiscounts, snap.SubjectDiscounts)
	assert.Equal(t, st.SubjectDetails, snap.SubjectDetails)
}

func TestRemoveSubject_RestoreIsExact(t *testing.T) {
	st := enrolled()

	out, snap, _, removed := RemoveSubject(st, "Физика", testGroups, today)
	require.True(t, removed)

	restored := snap.Restore(out)
	assert.Equal(t, st, restored)
}

func TestRemoveSubject_NotEnrolled(t *testing.T) {
	st := enrolled()

	out, _, unassigned, removed := RemoveSubject(st, "Химия", testGroups, today)

	assert.False(t, removed)
	assert.Nil(t, unassigned)
	assert.Equal(t, st, out)
}

func TestRemoveSubject_KeepsUnknownGroups(t *testing.T) {
	st := enrolled()
	st.GroupIDs = append(st.GroupIDs, "g-deleted")

	out, _, _, _ := RemoveSubject(st, "Математика", testGroups, today)
	assert.Equal(t, []string{"g-phys-1", "g-deleted"}, out.GroupIDs)
}

func TestAddSubject(t *testing.T) {
	t.Run("active student gets start date", func(t *testing.T) {
		out, added := AddSubject(enrolled(), "Химия", today)
		require.True(t, added)
		assert.Equal(t, []string{"Математика", "Физика", "Химия"}, out.Subjects)
		assert.Equal(t, today, out.SubjectDetails["Химия"].StartDate)
	})

	t.Run("lead gets no start date", func(t *testing.T) {
		out, added := AddSubject(lead(StageCall), "Химия", today)
		require.True(t, added)
		assert.NotContains(t, out.SubjectDetails, "Химия")
	})

	t.Run("re-enrolment clears end date", func(t *testing.T) {
		st := enrolled()
		st, _, _, _ = RemoveSubject(st, "Физика", testGroups, "2025-01-15")

		out, added := AddSubject(st, "Физика", today)
		require.True(t, added)
		assert.Empty(t, out.SubjectDetails["Физика"].EndDate)
		assert.Equal(t, today, out.SubjectDetails["Физика"].StartDate)
	})

	t.Run("duplicate is ignored", func(t *testing.T) {
		st := enrolled()
		out, added := AddSubject(st, "Физика", today)
		assert.False(t, added)
		assert.Equal(t, st, out)
	})
}

func TestSetDiscount_Clamps(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{150, 100},
		{-20, 0},
		{0, 0},
		{100, 100},
		{35.5, 35.5},
		{math.NaN(), 0},
	}

	for _, tt := range tests {
		out := SetDiscount(enrolled(), "Физика", tt.in)
		assert.Equal(t, tt.want, out.SubjectDiscounts["Физика"], "input %v", tt.in)
		assert.GreaterOrEqual(t, out.SubjectDiscounts["Физика"], 0.0)
		assert.LessOrEqual(t, out.SubjectDiscounts["Физика"], 100.0)
	}
}

func TestClearDiscount(t *testing.T) {
	out := ClearDiscount(enrolled(), "Физика")
	assert.NotContains(t, out.SubjectDiscounts, "Физика")
	assert.Contains(t, out.SubjectDiscounts, "Математика")
}

func TestAssignGroup(t *testing.T) {
	t.Run("replaces group of the same subject", func(t *testing.T) {
		out := AssignGroup(enrolled(), "g-math-2", testGroups, today)
		assert.Equal(t, AssignResultAssigned, out.Result)
		assert.Equal(t, []string{"g-phys-1", "g-math-2"}, out.Student.GroupIDs)
		assert.Equal(t, []string{"g-math-1"}, out.Replaced)
	})

	t.Run("already assigned", func(t *testing.T) {
		out := AssignGroup(enrolled(), "g-math-1", testGroups, today)
		assert.Equal(t, AssignResultAlreadyAssigned, out.Result)
	})

	t.Run("unknown group", func(t *testing.T) {
		st := enrolled()
		out := AssignGroup(st, "g-none", testGroups, today)
		assert.Equal(t, AssignResultGroupNotFound, out.Result)
		assert.Equal(t, st, out.Student)
	})

	t.Run("full group", func(t *testing.T) {
		st := enrolled()
		st.GroupIDs = []string{}
		out := AssignGroup(st, "g-phys-1", testGroups, today)
		assert.Equal(t, AssignResultGroupFull, out.Result)
		assert.Empty(t, out.Student.GroupIDs)
	})

	t.Run("unlimited group enrols the subject", func(t *testing.T) {
		out := AssignGroup(enrolled(), "g-eng-1", testGroups, today)
		assert.Equal(t, AssignResultAssigned, out.Result)
		assert.Contains(t, out.Student.Subjects, "Английский")
		assert.Equal(t, today, out.Student.SubjectDetails["Английский"].StartDate)
	})
}

func TestAssignGroup_AtMostOneGroupPerSubject(t *testing.T) {
	st := enrolled()
	for _, gid := range []string{"g-math-2", "g-math-1", "g-math-2"} {
		st = AssignGroup(st, gid, testGroups, today).Student
	}

	perSubject := map[string]int{}
	for _, gid := range st.GroupIDs {
		subject, ok := course.SubjectOf(testGroups, gid)
		require.True(t, ok)
		perSubject[subject]++
	}
	for subject, n := range perSubject {
		assert.Equal(t, 1, n, subject)
	}
}

func TestUnassignGroup(t *testing.T) {
	out, ok := UnassignGroup(enrolled(), "g-phys-1")
	assert.True(t, ok)
	assert.Equal(t, []string{"g-math-1"}, out.GroupIDs)

	_, ok = UnassignGroup(out, "g-phys-1")
	assert.False(t, ok)
}

func TestMemberships(t *testing.T) {
	a := enrolled()
	b := enrolled()
	b.ID = "st-2"
	b.GroupIDs = []string{"g-math-1"}

	counts := Memberships([]Student{a, b})
	assert.Equal(t, 2, counts["g-math-1"])
	assert.Equal(t, 1, counts["g-phys-1"])
}
