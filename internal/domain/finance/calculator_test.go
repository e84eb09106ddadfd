package finance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/center-hub/center-hub/internal/domain/course"
	"github.com/center-hub/center-hub/internal/domain/student"
)

var catalog = course.NewCatalog([]course.Course{
	{
		Name:         "Математика",
		Price:        30000,
		BranchPrices: map[string]int{"Левый берег": 28000},
		BranchConfig: map[string]course.BranchConfig{
			"Центр":  {Price: 35000, IsActive: true},
			"Восток": {Price: 99999, IsActive: false},
		},
	},
	{Name: "Физика", Price: 25000},
	{Name: "Английский", Price: 20001},
})

func newStudent(branch string, subjects ...string) student.Student {
	st := student.Student{ID: "st-1", Branch: branch, Subjects: subjects}
	st.Normalize()
	return st
}

func TestCatalog_BasePriceResolution(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		branch  string
		want    int
	}{
		{"active branch config wins", "Математика", "Центр", 35000},
		{"inactive config falls through to flat price", "Математика", "Восток", 30000},
		{"flat branch price", "Математика", "Левый берег", 28000},
		{"course price", "Физика", "Центр", 25000},
		{"missing course is free", "Химия", "Центр", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, catalog.BasePrice(tt.subject, tt.branch))
		})
	}
}

func TestCalculate(t *testing.T) {
	st := newStudent("Центр", "Математика", "Физика", "Химия")
	st.SubjectDiscounts["Математика"] = 10
	st.DiscountPercent = 20

	b := Calculate(st, catalog)

	require.Len(t, b.Subjects, 3)
	assert.Equal(t, SubjectPrice{Subject: "Математика", BasePrice: 35000, Discount: 10, FinalPrice: 31500}, b.Subjects[0])
	assert.Equal(t, SubjectPrice{Subject: "Физика", BasePrice: 25000, Discount: 20, FinalPrice: 20000}, b.Subjects[1])
	assert.Equal(t, SubjectPrice{Subject: "Химия", BasePrice: 0, Discount: 20, FinalPrice: 0}, b.Subjects[2])
	assert.Equal(t, 51500, b.TotalMonthlyFee)
}

func TestCalculate_NoSubjects(t *testing.T) {
	b := Calculate(newStudent("Центр"), catalog)
	assert.Empty(t, b.Subjects)
	assert.Zero(t, b.TotalMonthlyFee)
}

func TestFinalPrice_RoundsHalfAwayFromZero(t *testing.T) {
	// 20001 * 0.5 = 10000.5
	assert.Equal(t, 10001, FinalPrice(20001, 50))
	// 25000 * (1 - 33.3/100) = 16675
	assert.Equal(t, 16675, FinalPrice(25000, 33.3))
	assert.Equal(t, 0, FinalPrice(25000, 100))
	assert.Equal(t, 25000, FinalPrice(25000, 0))
}

func TestCalculate_NaNDiscountCountsAsNone(t *testing.T) {
	st := newStudent("Центр", "Математика")
	st.SubjectDiscounts["Математика"] = math.NaN()

	var b Breakdown
	require.NotPanics(t, func() { b = Calculate(st, catalog) })
	assert.Equal(t, 0.0, b.Subjects[0].Discount)
	assert.Equal(t, 35000, b.TotalMonthlyFee)
	assert.Equal(t, 25000, FinalPrice(25000, math.NaN()))
	assert.Equal(t, 0, FinalPrice(25000, 250))
}

func TestCalculate_MonthlyFeeInvariant(t *testing.T) {
	discounts := []float64{0, 5, 12.5, 33, 50, 99.9, 100}
	for _, d := range discounts {
		st := newStudent("Левый берег", "Математика", "Физика", "Английский")
		st.SubjectDiscounts["Физика"] = d
		st.DiscountPercent = 100 - d

		b := Calculate(st, catalog)

		want := 0
		for _, p := range b.Subjects {
			want += int(math.Round(float64(p.BasePrice) * (1 - p.Discount/100)))
		}
		assert.Equal(t, want, b.TotalMonthlyFee, "discount %v", d)

		Resync(&st, b)
		assert.Equal(t, b.TotalMonthlyFee, st.MonthlyFee)
	}
}

func TestResync(t *testing.T) {
	st := newStudent("Центр", "Физика")

	b, changed := Recalculate(&st, catalog)
	assert.True(t, changed)
	assert.Equal(t, 25000, st.MonthlyFee)

	changed = Resync(&st, b)
	assert.False(t, changed)
}
