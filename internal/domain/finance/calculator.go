// Package finance рассчитывает ежемесячную оплату ученика по предметам.
package finance

import (
	"github.com/shopspring/decimal"

	"github.com/center-hub/center-hub/internal/domain/course"
	"github.com/center-hub/center-hub/internal/domain/student"
)

var hundred = decimal.NewFromInt(100)

// SubjectPrice - цена одного предмета.
type SubjectPrice struct {
	Subject    string  `json:"subject"`
	BasePrice  int     `json:"basePrice"`
	Discount   float64 `json:"discount"`
	FinalPrice int     `json:"finalPrice"`
}

// Breakdown - расчёт оплаты по всем предметам ученика.
type Breakdown struct {
	Subjects        []SubjectPrice `json:"subjects"`
	TotalMonthlyFee int            `json:"totalMonthlyFee"`
}

// Calculate считает цену каждого предмета и итоговую сумму в месяц.
// Ошибок нет: отсутствующий курс даёт цену 0.
func Calculate(st student.Student, catalog course.Catalog) Breakdown {
	b := Breakdown{Subjects: make([]SubjectPrice, 0, len(st.Subjects))}
	for _, subject := range st.Subjects {
		base := catalog.BasePrice(subject, st.Branch)
		discount := student.ClampDiscount(st.EffectiveDiscount(subject))
		final := FinalPrice(base, discount)

		b.Subjects = append(b.Subjects, SubjectPrice{
			Subject:    subject,
			BasePrice:  base,
			Discount:   discount,
			FinalPrice: final,
		})
		b.TotalMonthlyFee += final
	}
	return b
}

// FinalPrice возвращает round(base * (1 - discount/100)).
// Округление - половина от нуля. Скидка приводится к [0, 100].
func FinalPrice(base int, discount float64) int {
	discount = student.ClampDiscount(discount)
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(discount).Div(hundred))
	return int(decimal.NewFromInt(int64(base)).Mul(factor).Round(0).IntPart())
}

// Resync записывает итоговую сумму в MonthlyFee. Возвращает true, если значение изменилось.
func Resync(st *student.Student, b Breakdown) bool {
	if st.MonthlyFee == b.TotalMonthlyFee {
		return false
	}
	st.MonthlyFee = b.TotalMonthlyFee
	return true
}

// Recalculate считает и сразу синхронизирует MonthlyFee.
func Recalculate(st *student.Student, catalog course.Catalog) (Breakdown, bool) {
	b := Calculate(*st, catalog)
	return b, Resync(st, b)
}
