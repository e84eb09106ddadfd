package student

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"

	"github.com/center-hub/center-hub/internal/domain/shared"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	// пользовательские теги
	notBlankTag = "notblank"
	statusTag   = "student_status"
	stageTag    = "pipeline_stage"
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Ошибки адресуются JSON-именами полей.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	_ = validate.RegisterValidation(statusTag, func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).IsValid()
	})
	_ = validate.RegisterValidation(stageTag, func(fl validator.FieldLevel) bool {
		return Stage(fl.Field().String()).IsValid()
	})

	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range []string{notBlankTag, statusTag, stageTag} {
		_ = validate.RegisterTranslation(tag, translator, registerFn, translateCustomErrs)
	}
}

func translateCustomErrs(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return "this field cannot be blank"
	case statusTag:
		return "unknown student status"
	case stageTag:
		return "unknown pipeline stage"
	default:
		return ""
	}
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// DRAFT
// ══════════════════════════════════════════════════════════════════════════════

// Draft - данные формы карточки. Пустой ID означает создание нового ученика.
type Draft struct {
	ID               string             `json:"id"`
	FullName         string             `json:"fullName" validate:"required,notblank"`
	Phone            string             `json:"phone" validate:"required,notblank"`
	Branch           string             `json:"branch" validate:"required,notblank"`
	ParentName       string             `json:"parentName"`
	Email            string             `json:"email" validate:"omitempty,email"`
	Comment          string             `json:"comment"`
	Status           Status             `json:"status" validate:"omitempty,student_status"`
	PipelineStage    Stage              `json:"pipelineStage" validate:"omitempty,pipeline_stage"`
	Subjects         []string           `json:"subjects" validate:"dive,notblank"`
	SubjectDiscounts map[string]float64 `json:"subjectDiscounts"`
	Balance          int                `json:"balance"`
	DiscountPercent  float64            `json:"discountPercent"`
	DiscountDuration string             `json:"discountDuration"`
}

// Validate проверяет обязательные поля и возвращает *shared.ValidationError
// с картой "поле → сообщение".
func (d Draft) Validate() error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return shared.WrapError("student", "Validate", shared.ErrValidation, "validation failed", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		// для элементов среза имя вида "subjects[0]"
		name := fe.Field()
		if _, seen := fields[name]; !seen {
			fields[name] = fe.Translate(translator)
		}
	}
	return shared.NewValidationError(fields)
}

// Apply создаёт новую карточку или обновляет существующую из черновика.
// Производные поля (MonthlyFee) и даты статусов здесь не трогаются.
func (d Draft) Apply(existing *Student, now time.Time) Student {
	var st Student
	if existing != nil {
		st = existing.Clone()
	} else {
		st = Student{
			ID:        uuid.New().String(),
			Status:    StatusPresale,
			CreatedAt: now.UTC(),
		}
		if d.ID != "" {
			st.ID = d.ID
		}
	}

	st.FullName = strings.TrimSpace(d.FullName)
	st.Phone = strings.TrimSpace(d.Phone)
	st.Branch = strings.TrimSpace(d.Branch)
	st.ParentName = strings.TrimSpace(d.ParentName)
	st.Email = strings.TrimSpace(d.Email)
	st.Comment = d.Comment
	st.Balance = d.Balance
	st.DiscountPercent = shared.ClampPercent(d.DiscountPercent)
	st.DiscountDuration = d.DiscountDuration

	if d.Status != "" {
		st.Status = d.Status
	}
	if d.PipelineStage != "" {
		st.PipelineStage = d.PipelineStage
	}
	if d.Subjects != nil {
		st.Subjects = dedupe(d.Subjects)
	}
	if d.SubjectDiscounts != nil {
		st.SubjectDiscounts = make(map[string]float64, len(d.SubjectDiscounts))
		for subject, pct := range d.SubjectDiscounts {
			st.SubjectDiscounts[subject] = ClampDiscount(pct)
		}
	}

	st.Normalize()
	return st
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
