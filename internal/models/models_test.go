package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"private", "OPEN", " closed ", "Archived"} {
		st, err := ParseStatus(s)
		require.NoError(t, err, s)
		assert.True(t, st.Valid())
	}
	for _, s := range []string{"", "draft", "public", "opened"} {
		_, err := ParseStatus(s)
		assert.Error(t, err, s)
	}
	assert.False(t, Status("bogus").Valid())
}

func TestStatusFromLegacy(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		published string
		open      *bool
		want      Status
	}{
		{"draft", nil, StatusPrivate},
		{"draft", &yes, StatusPrivate},
		{"public", nil, StatusOpen},
		{"public", &yes, StatusOpen},
		{"PUBLIC", &no, StatusClosed},
	}
	for _, tt := range tests {
		got, err := StatusFromLegacy(tt.published, tt.open)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	_, err := StatusFromLegacy("live", nil)
	assert.Error(t, err)
}

func TestPublicVisibility(t *testing.T) {
	assert.True(t, StatusOpen.PubliclyVisible())
	assert.True(t, StatusClosed.PubliclyVisible())
	assert.False(t, StatusPrivate.PubliclyVisible())
	assert.False(t, StatusArchived.PubliclyVisible())
}

func TestDateJSON(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2030-01-02"`), &d))
	assert.Equal(t, Date{Year: 2030, Month: time.January, Day: 2}, d)

	require.NoError(t, json.Unmarshal([]byte(`"2030-01-02T10:00:00Z"`), &d))
	assert.Equal(t, 2, d.Day)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2030-01-02"`, string(b))

	assert.Error(t, json.Unmarshal([]byte(`"02/01/2030"`), &d))
}

func TestDateCompare(t *testing.T) {
	a := Date{Year: 2026, Month: time.October, Day: 19}
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, -1, a.Compare(Date{Year: 2026, Month: time.November, Day: 1}))
	assert.Equal(t, 1, a.Compare(Date{Year: 2025, Month: time.December, Day: 31}))
}

func TestTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(9*3600+30*60), got)
	assert.Equal(t, "09:30:00", got.String())

	got, err = ParseTimeOfDay("23:59:58")
	require.NoError(t, err)
	assert.Equal(t, "23:59:58", got.String())

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)

	assert.Equal(t, TimeOfDay(14*3600+5), ClockOf(time.Date(2026, 1, 1, 14, 0, 5, 0, time.UTC)))
}

func TestOptionalUnmarshal(t *testing.T) {
	var body struct {
		Capacity Optional[int]    `json:"capacityLimit"`
		Name     Optional[string] `json:"name"`
		Location Optional[string] `json:"location"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"capacityLimit":null,"name":"Gala"}`), &body))
	assert.True(t, body.Capacity.Set)
	assert.True(t, body.Capacity.Null)
	assert.Nil(t, body.Capacity.Ptr())
	assert.Equal(t, Some("Gala"), body.Name)
	assert.False(t, body.Location.Set)
}

func TestEventPatchApply(t *testing.T) {
	limit := 10
	ev := Event{Name: "Old", CapacityLimit: &limit, Status: StatusPrivate}
	p := EventPatch{
		Name:          Some("New"),
		CapacityLimit: Null[int](),
		Status:        Some(StatusOpen),
	}
	assert.False(t, p.Empty())
	p.Apply(&ev)
	assert.Equal(t, "New", ev.Name)
	assert.Nil(t, ev.CapacityLimit)
	assert.Equal(t, StatusOpen, ev.Status)
	assert.True(t, EventPatch{}.Empty())
}

func TestQuestionTypeOptions(t *testing.T) {
	for _, qt := range []QuestionType{QuestionMultipleChoice, QuestionDropdown, QuestionCheckbox} {
		assert.True(t, qt.SupportsOptions(), qt)
	}
	for _, qt := range []QuestionType{QuestionText, QuestionTextarea, QuestionEmail, QuestionNumber} {
		assert.False(t, qt.SupportsOptions(), qt)
	}
	_, err := ParseQuestionType("slider")
	assert.Error(t, err)
}
