package student

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/center-hub/center-hub/internal/domain/shared"
)

const today = shared.Date("2025-03-10")

func lead(stage Stage) Student {
	st := Student{
		ID:            "st-1",
		FullName:      "Айгерим Нурланова",
		Phone:         "+77010000000",
		Branch:        "Центр",
		Status:        StatusPresale,
		PipelineStage: stage,
		Subjects:      []string{"Математика", "Физика"},
	}
	st.Normalize()
	return st
}

func TestTransition_AdvanceIsLinear(t *testing.T) {
	tests := []struct {
		from Stage
		want Stage
	}{
		{StageNew, StageCall},
		{StageCall, StageTrial},
		{StageTrial, StageContract},
		{StageContract, StagePayment},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			out := Transition(lead(tt.from), Advance(), today)
			assert.Equal(t, tt.want, out.Student.PipelineStage)
			assert.False(t, out.Activated)
			assert.Nil(t, out.Activation)
			assert.Equal(t, StatusPresale, out.Student.Status)
		})
	}
}

func TestTransition_AdvanceFromPaymentActivates(t *testing.T) {
	st := lead(StageContract)

	out := Transition(st, Advance(), today)
	require.Equal(t, StagePayment, out.Student.PipelineStage)

	out = Transition(out.Student, Advance(), today)
	assert.True(t, out.Activated)
	assert.Equal(t, StatusActive, out.Student.Status)
	assert.Equal(t, StagePayment, out.Student.PipelineStage)
	assert.Equal(t, today, out.Student.StartDate)
	assert.Equal(t, today, out.Student.SubjectDetails["Математика"].StartDate)
	assert.Equal(t, today, out.Student.SubjectDetails["Физика"].StartDate)

	require.NotNil(t, out.Activation)
	assert.Equal(t, StatusPresale, out.Activation.Status)
	assert.Equal(t, StagePayment, out.Activation.PipelineStage)
	assert.Empty(t, out.Activation.StartDate)
	assert.Empty(t, out.Activation.SubjectDetails)
}

func TestTransition_ActivationKeepsExistingDates(t *testing.T) {
	st := lead(StagePayment)
	st.StartDate = "2024-09-01"
	st.SubjectDetails["Физика"] = SubjectDetail{StartDate: "2024-09-02"}

	out := Transition(st, Activate(), today)

	assert.Equal(t, shared.Date("2024-09-01"), out.Student.StartDate)
	assert.Equal(t, shared.Date("2024-09-02"), out.Student.SubjectDetails["Физика"].StartDate)
	assert.Equal(t, today, out.Student.SubjectDetails["Математика"].StartDate)
}

func TestTransition_ActivationSnapshotRestores(t *testing.T) {
	st := lead(StagePayment)
	st.SubjectDetails["Физика"] = SubjectDetail{StartDate: "2024-09-02"}

	out := Transition(st, Activate(), today)
	require.NotNil(t, out.Activation)

	restored := out.Activation.Restore(out.Student)
	assert.Equal(t, st, restored)
}

func TestTransition_ActivationDoesNotAliasInput(t *testing.T) {
	st := lead(StagePayment)

	_ = Transition(st, Activate(), today)

	assert.Empty(t, st.SubjectDetails)
	assert.Equal(t, StatusPresale, st.Status)
}

func TestTransition_MoveToStage(t *testing.T) {
	t.Run("non-adjacent move is allowed", func(t *testing.T) {
		out := Transition(lead(StageNew), MoveTo(StageContract), today)
		assert.Equal(t, StageContract, out.Student.PipelineStage)
		assert.True(t, out.Changed)
	})

	t.Run("move to payment does not activate", func(t *testing.T) {
		out := Transition(lead(StageNew), MoveTo(StagePayment), today)
		assert.False(t, out.Activated)
		assert.Equal(t, StatusPresale, out.Student.Status)
		assert.Empty(t, out.Student.StartDate)
	})

	t.Run("unknown stage is ignored", func(t *testing.T) {
		st := lead(StageTrial)
		out := Transition(st, MoveTo(Stage("Lost")), today)
		assert.Equal(t, st, out.Student)
		assert.False(t, out.Changed)
	})
}

func TestTransition_StatusDatesAreStampedOnce(t *testing.T) {
	st := lead(StageNew)

	out := Transition(st, ChangeStatus(StatusActive), today)
	assert.Equal(t, today, out.Student.StartDate)

	out = Transition(out.Student, ChangeStatus(StatusPaused), "2025-04-01")
	out = Transition(out.Student, ChangeStatus(StatusActive), "2025-05-01")
	assert.Equal(t, today, out.Student.StartDate)

	out = Transition(out.Student, ChangeStatus(StatusDropped), "2025-06-01")
	assert.Equal(t, shared.Date("2025-06-01"), out.Student.DropOffDate)

	out = Transition(out.Student, ChangeStatus(StatusArchived), "2025-07-01")
	assert.Equal(t, shared.Date("2025-07-01"), out.Student.EndDate)

	out = Transition(out.Student, ChangeStatus(StatusPresale), "2025-08-01")
	assert.Equal(t, shared.Date("2025-08-01"), out.Student.PresaleDate)

	out = Transition(out.Student, ChangeStatus(StatusArchived), "2025-09-01")
	assert.Equal(t, shared.Date("2025-07-01"), out.Student.EndDate)
}

func TestTransition_PausedHasNoDate(t *testing.T) {
	out := Transition(lead(StageNew), ChangeStatus(StatusPaused), today)

	assert.Equal(t, StatusPaused, out.Student.Status)
	assert.Empty(t, out.Student.StartDate)
	assert.Empty(t, out.Student.EndDate)
	assert.Empty(t, out.Student.DropOffDate)
	assert.Empty(t, out.Student.PresaleDate)
}

func TestTransition_UnknownStatusIsIgnored(t *testing.T) {
	st := lead(StageNew)
	out := Transition(st, ChangeStatus(Status("Frozen")), today)
	assert.Equal(t, st, out.Student)
	assert.False(t, out.Changed)
}

func TestStage_Next(t *testing.T) {
	next, ok := StagePayment.Next()
	assert.False(t, ok)
	assert.Equal(t, StagePayment, next)

	_, ok = Stage("").Next()
	assert.False(t, ok)
}
