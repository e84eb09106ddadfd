// Package student содержит доменную модель ученика учебного центра.
//
// Пакет определяет:
//
//   - Сущность Student и её статусы (Status) и этапы воронки (Stage)
//   - Чистый редьюсер воронки Transition
//   - Операции над предметами: AddSubject, RemoveSubject, SetDiscount
//   - Привязку к группам: AssignGroup, UnassignGroup
//   - Черновик карточки Draft с валидацией полей
//
// # Воронка
//
// Этапы идут строго по порядку New → Call → Trial → Contract → Payment.
// Advance из Payment выполняет активацию: статус становится Active,
// а этап остаётся Payment.
//
//	out := Transition(st, Advance(), shared.Today(clock))
//	if out.Activated {
//	    buffer.Set(undo.Entry[...]{Payload: *out.Activation, ExpiresInSeconds: 5})
//	}
//
// Ручной перенос (MoveTo) допускает любой этап и никогда не активирует ученика.
//
// # Даты статусов
//
// Смена статуса ставит дату (StartDate, EndDate, DropOffDate, PresaleDate)
// только если она пуста. Повторное переключение статуса дату не перезаписывает.
//
// # Отмена
//
// Activation и удаление предмета возвращают снимки (ActivationSnapshot,
// SubjectSnapshot). Их Restore возвращает карточку к прежнему состоянию.
package student
